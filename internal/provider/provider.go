// Package provider defines the capability surface of an upstream streaming
// transcription service. The relay talks to every provider through Adapter
// and Handle; provider-specific wire formats live in the subpackages.
package provider

import "context"

// TranscriptEvent is a single recognition result. Interim events are
// superseded by later events for the same stretch of audio; a final event
// will not be revised.
type TranscriptEvent struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// Callbacks receive normalized provider events. All callbacks are optional
// and may be invoked from the adapter's own goroutine; implementations must
// not block for long.
type Callbacks struct {
	OnOpen       func()
	OnClose      func()
	OnError      func(error)
	OnTranscript func(TranscriptEvent)
}

// SessionConfig carries everything an adapter needs to open one session.
type SessionConfig struct {
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	InterimResults bool
}

// Handle is one live provider session. PushAudio and Finish return errors
// for logging only; callers must treat them as non-fatal. Close is
// idempotent and safe to call against a session whose open was never
// confirmed.
type Handle interface {
	PushAudio(audio []byte) error
	Finish() error
	Close() error
}

// Adapter opens provider sessions. Open performs network I/O and may fail
// with a connection error; OnOpen fires asynchronously once the provider
// confirms the session.
type Adapter interface {
	Open(ctx context.Context, cfg SessionConfig, cb Callbacks) (Handle, error)
}
