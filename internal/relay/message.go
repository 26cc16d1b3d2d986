package relay

import (
	"encoding/json"
	"time"

	"github.com/eleven-am/transcribe-relay/internal/session"
)

// Inbound frame types. Both client vocabularies are accepted on the same
// socket: start/stop/end and start_session/stop_session/audio_chunk.
const (
	TypeStart             = "start"
	TypeStop              = "stop"
	TypeEnd               = "end"
	TypeStartSession      = "start_session"
	TypeStopSession       = "stop_session"
	TypeAudioChunk        = "audio_chunk"
	TypeHealthCheck       = "health_check"
	TypeGetTranscriptions = "get_transcriptions"
)

// Outbound frame types.
const (
	TypeStatus               = "status"
	TypeError                = "error"
	TypeTranscription        = "transcription"
	TypeInterimTranscription = "interim_transcription"
	TypeSessionStarted       = "session_started"
	TypeSessionReady         = "session_ready"
	TypeSessionStopped       = "session_stopped"
	TypeHealthResponse       = "health_response"
	TypeHistory              = "transcription_history"
)

// InboundFrame is the tagged union of client control frames. Unknown tags
// keep their Type and are answered with a generic error frame.
type InboundFrame struct {
	Type     string `json:"type"`
	Audio    string `json:"audio,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

func ParseInbound(data []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return InboundFrame{}, err
	}
	return f, nil
}

// OutboundFrame is the serialized form of every frame the relay sends.
type OutboundFrame struct {
	Type       string     `json:"type"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
	Text       string     `json:"text,omitempty"`
	IsFinal    *bool      `json:"isFinal,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	Data       any        `json:"data,omitempty"`
}

type HealthData struct {
	Status              string    `json:"status"`
	Service             string    `json:"service"`
	ActiveSessions      int       `json:"activeSessions"`
	TotalTranscriptions int64     `json:"totalTranscriptions"`
	Timestamp           time.Time `json:"timestamp"`
}

type HistoryData struct {
	Total          int64                     `json:"total"`
	Transcriptions []session.TranscriptEntry `json:"transcriptions"`
}

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func timePtr(t time.Time) *time.Time { return &t }

func statusFrame(message string) *OutboundFrame {
	return &OutboundFrame{Type: TypeStatus, Message: message}
}

func errorFrame(message string) *OutboundFrame {
	return &OutboundFrame{Type: TypeError, Error: message, Message: message}
}

func sessionFrame(frameType, sessionID string) *OutboundFrame {
	return &OutboundFrame{Type: frameType, SessionID: sessionID}
}

func finalFrame(text string, confidence float64, at time.Time) *OutboundFrame {
	return &OutboundFrame{
		Type:       TypeTranscription,
		Text:       text,
		IsFinal:    boolPtr(true),
		Confidence: floatPtr(confidence),
		Timestamp:  timePtr(at),
	}
}

func interimFrame(text string, confidence float64) *OutboundFrame {
	return &OutboundFrame{
		Type:       TypeInterimTranscription,
		Text:       text,
		IsFinal:    boolPtr(false),
		Confidence: floatPtr(confidence),
	}
}
