package hub

import "time"

// Port message vocabulary. Inbound commands come from UI surfaces;
// outbound broadcasts fan relay events to every registered port.
const (
	CmdConnect        = "CONNECT"
	CmdStartRecording = "START_RECORDING"
	CmdAudioChunk     = "AUDIO_CHUNK"
	CmdStopRecording  = "STOP_RECORDING"
	CmdGetStatus      = "GET_STATUS"

	EvtConnectionStatus = "CONNECTION_STATUS"
	EvtSessionStarted   = "SESSION_STARTED"
	EvtSessionReady     = "SESSION_READY"
	EvtSessionStopped   = "SESSION_STOPPED"
	EvtTranscription    = "TRANSCRIPTION"
	EvtInterim          = "INTERIM_TRANSCRIPTION"
	EvtError            = "ERROR"
	EvtStatus           = "STATUS"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// PortMessage is both the command and the broadcast shape; unused fields
// stay empty.
type PortMessage struct {
	Type       string     `json:"type"`
	Status     string     `json:"status,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	Text       string     `json:"text,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	IsFinal    *bool      `json:"isFinal,omitempty"`
	Message    string     `json:"message,omitempty"`
	Audio      string     `json:"audio,omitempty"`
	MimeType   string     `json:"mimeType,omitempty"`
}

// Result is the synchronous answer to a port command.
type Result struct {
	Status           string `json:"status,omitempty"`
	Error            string `json:"error,omitempty"`
	ConnectionStatus string `json:"connectionStatus,omitempty"`
	IsRecording      bool   `json:"isRecording,omitempty"`
	SessionID        string `json:"sessionId,omitempty"`
}

// Port is one registered UI surface. Send must not block; slow consumers
// drop broadcasts.
type Port interface {
	Send(msg PortMessage)
}
