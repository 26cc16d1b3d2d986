package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	historyKey   = "transcripts:history"
	totalKey     = "transcripts:total"
	historyLimit = 50
	historyTTL   = 24 * time.Hour
)

// HistoryStore keeps the process-wide trailing window of finalized
// transcripts plus a running total, backed by redis. The window is shared
// across sessions: get_transcriptions serves the last 50 entries the relay
// has seen.
type HistoryStore struct {
	redis *redis.Client
}

func NewHistoryStore(redisClient *redis.Client) *HistoryStore {
	return &HistoryStore{redis: redisClient}
}

func (s *HistoryStore) Append(ctx context.Context, entry TranscriptEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, historyKey, data)
	pipe.LTrim(ctx, historyKey, 0, historyLimit-1)
	pipe.Expire(ctx, historyKey, historyTTL)
	pipe.Incr(ctx, totalKey)
	_, err = pipe.Exec(ctx)
	return err
}

// Window returns up to the last 50 entries in original (oldest-first)
// order, plus the total number of entries ever appended.
func (s *HistoryStore) Window(ctx context.Context) ([]TranscriptEntry, int64, error) {
	raw, err := s.redis.LRange(ctx, historyKey, 0, historyLimit-1).Result()
	if err != nil {
		return nil, 0, err
	}

	total, err := s.redis.Get(ctx, totalKey).Int64()
	if err == redis.Nil {
		total = 0
	} else if err != nil {
		return nil, 0, err
	}

	// LPUSH stores newest first; reverse back to arrival order.
	entries := make([]TranscriptEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e TranscriptEntry
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}

	return entries, total, nil
}
