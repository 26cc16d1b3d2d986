package archive

import "time"

// Transcript is a durably archived finalized transcript entry. The redis
// history window serves live reads; this table survives restarts and backs
// export tooling.
type Transcript struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"index;size:64" json:"session_id"`
	Text       string    `gorm:"type:text" json:"text"`
	Confidence float64   `json:"confidence"`
	SpokenAt   time.Time `gorm:"index" json:"spoken_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Transcript) TableName() string {
	return "transcripts"
}
