package archive

import (
	"context"

	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Transcript{})
}

func (s *Store) Save(ctx context.Context, t *Transcript) error {
	return s.db.WithContext(ctx).Create(t).Error
}

// ListRecent returns the most recent entries in oldest-first order plus
// the total row count.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Transcript, int64, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Transcript{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []Transcript
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	return rows, total, nil
}

// ListBySession returns a session's archived entries in spoken order.
func (s *Store) ListBySession(ctx context.Context, sessionID string, limit int) ([]Transcript, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []Transcript
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
