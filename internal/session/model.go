package session

import (
	"sync"
	"time"

	"github.com/eleven-am/transcribe-relay/internal/provider"
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusActive       Status = "active"
	StatusStopped      Status = "stopped"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// TranscriptEntry is one finalized recognition result.
type TranscriptEntry struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// logCap bounds the in-memory transcript log; reads only ever serve the
// trailing window, so older entries are discarded (the archive keeps them).
const logCap = 50

// Session tracks one client's transcription lifecycle. All status and
// handle transitions are serialized behind the session's own mutex;
// contention is inherently per-connection and low.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	status      Status
	ready       bool
	handle      provider.Handle
	audioFrames uint64
	finals      uint64
	log         []TranscriptEntry
}

func newSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		status:    StatusConnecting,
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Ready reports whether audio may be forwarded to the adapter. It is
// distinct from status: it covers the gap between "start requested" and
// "provider confirmed open".
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Session) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Handle returns the current adapter handle, or nil when none is open.
func (s *Session) Handle() provider.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// AttachHandle installs a newly opened adapter handle. It returns false if
// one is already attached: at most one live handle per session, a second
// start is a no-op.
func (s *Session) AttachHandle(h provider.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return false
	}
	s.handle = h
	return true
}

// DetachHandle clears and returns the adapter handle so the caller can
// close it exactly once. Returns nil if no handle is attached.
func (s *Session) DetachHandle() provider.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handle
	s.handle = nil
	s.ready = false
	return h
}

// DetachIfNotReady clears and returns the handle only while the open is
// still unconfirmed. The ready check and the detach share one critical
// section so a confirmation cannot slip in between them.
func (s *Session) DetachIfNotReady() (provider.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil, false
	}
	h := s.handle
	s.handle = nil
	return h, true
}

func (s *Session) CountAudioFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioFrames++
}

func (s *Session) AudioFrames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioFrames
}

// AppendTranscript records a finalized entry in the session log.
func (s *Session) AppendTranscript(e TranscriptEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals++
	s.log = append(s.log, e)
	if len(s.log) > logCap {
		s.log = s.log[len(s.log)-logCap:]
	}
}

// Transcripts returns the trailing window of finalized entries in original
// order, plus the total number ever finalized for this session.
func (s *Session) Transcripts(limit int) ([]TranscriptEntry, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.log
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	out := make([]TranscriptEntry, len(entries))
	copy(out, entries)
	return out, s.finals
}
