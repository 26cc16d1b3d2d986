package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func TestStore_SaveAndListRecent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.Save(ctx, &Transcript{
			SessionID:  "sess_a",
			Text:       fmt.Sprintf("line %d", i),
			Confidence: 0.9,
			SpokenAt:   time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	rows, total, err := store.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Text != fmt.Sprintf("line %d", i) {
			t.Errorf("row %d: expected oldest-first order, got %q", i, row.Text)
		}
	}
}

func TestStore_ListRecent_TrailingWindow(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := store.Save(ctx, &Transcript{
			SessionID: "sess_a",
			Text:      fmt.Sprintf("line %d", i),
			SpokenAt:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	rows, total, err := store.ListRecent(ctx, 4)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if total != 10 {
		t.Errorf("expected total 10, got %d", total)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].Text != "line 6" || rows[3].Text != "line 9" {
		t.Errorf("expected trailing window line 6..9, got %q..%q", rows[0].Text, rows[3].Text)
	}
}

func TestStore_ListBySession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entries := []struct {
		session string
		text    string
	}{
		{"sess_a", "first"},
		{"sess_b", "other"},
		{"sess_a", "second"},
	}
	for _, e := range entries {
		err := store.Save(ctx, &Transcript{
			SessionID: e.session,
			Text:      e.text,
			SpokenAt:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	rows, err := store.ListBySession(ctx, "sess_a", 0)
	if err != nil {
		t.Fatalf("list by session: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Text != "first" || rows[1].Text != "second" {
		t.Errorf("expected spoken order, got %q then %q", rows[0].Text, rows[1].Text)
	}

	rows, err = store.ListBySession(ctx, "sess_missing", 0)
	if err != nil {
		t.Fatalf("list by session: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows for unknown session, got %d", len(rows))
	}
}

func TestStore_ListRecent_Empty(t *testing.T) {
	store := setupTestStore(t)

	rows, total, err := store.ListRecent(context.Background(), 0)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Errorf("expected empty archive, got total=%d rows=%d", total, len(rows))
	}
}
