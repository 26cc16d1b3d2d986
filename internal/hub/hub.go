// Package hub implements the persistent multiplexer between one upstream
// relay socket and any number of UI ports. The socket's lifecycle is
// independent of port registration; a dropped socket schedules exactly one
// reconnect attempt per drop and never stops trying.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/transcribe-relay/internal/shared"
	"github.com/gorilla/websocket"
)

const defaultReconnectDelay = 3 * time.Second

type Config struct {
	RelayURL string
	// Reconnect governs the retry policy after a drop: fixed delay, no
	// backoff growth, MaxAttempts zero means never give up.
	Reconnect shared.BackoffConfig
}

type Hub struct {
	url       string
	reconnect shared.BackoffConfig
	dialer    *websocket.Dialer
	log       *slog.Logger

	writeMu        sync.Mutex
	mu             sync.Mutex
	ws             *websocket.Conn
	status         string
	connecting     bool
	reconnectArmed bool
	attempts       int
	isRecording    bool
	sessionID      string
	closed         bool
	ports          map[Port]struct{}
}

func New(cfg Config, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Reconnect.Delay <= 0 {
		cfg.Reconnect.Delay = defaultReconnectDelay
	}
	return &Hub{
		url:       cfg.RelayURL,
		reconnect: cfg.Reconnect,
		dialer:    websocket.DefaultDialer,
		log:       log.With("component", "hub"),
		status:    StatusDisconnected,
		ports:     make(map[Port]struct{}),
	}
}

// Register adds a UI port. Registration never affects the upstream socket.
func (h *Hub) Register(p Port) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ports[p] = struct{}{}
}

func (h *Hub) Deregister(p Port) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.ports, p)
}

// Connect opens the upstream socket if it is not already open or opening.
func (h *Hub) Connect() {
	h.mu.Lock()
	if h.closed || h.connecting || h.ws != nil {
		h.mu.Unlock()
		return
	}
	h.connecting = true
	h.mu.Unlock()

	go h.dial()
}

func (h *Hub) dial() {
	ws, _, err := h.dialer.Dial(h.url, nil)

	h.mu.Lock()
	h.connecting = false
	if h.closed {
		h.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		return
	}
	if err != nil {
		h.mu.Unlock()
		h.log.Warn("relay dial failed", "error", err)
		h.broadcast(PortMessage{Type: EvtConnectionStatus, Status: StatusDisconnected})
		h.scheduleReconnect()
		return
	}

	h.ws = ws
	h.status = StatusConnected
	h.attempts = 0
	h.mu.Unlock()

	h.log.Info("connected to relay", "url", h.url)
	h.broadcast(PortMessage{Type: EvtConnectionStatus, Status: StatusConnected})

	go h.readLoop(ws)
}

func (h *Hub) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			h.handleDrop(ws)
			return
		}
		h.handleRelayFrame(data)
	}
}

func (h *Hub) handleDrop(ws *websocket.Conn) {
	h.mu.Lock()
	if h.ws != ws {
		h.mu.Unlock()
		return
	}
	h.ws = nil
	h.status = StatusDisconnected
	closed := h.closed
	h.mu.Unlock()

	ws.Close()
	h.log.Info("relay socket closed")
	h.broadcast(PortMessage{Type: EvtConnectionStatus, Status: StatusDisconnected})

	if !closed {
		h.scheduleReconnect()
	}
}

// scheduleReconnect arms a single timer per drop. The fire-time status
// check avoids duplicate connects from overlapping timers. A successful
// connect resets the attempt counter.
func (h *Hub) scheduleReconnect() {
	h.mu.Lock()
	if h.reconnectArmed || h.closed {
		h.mu.Unlock()
		return
	}
	if h.reconnect.MaxAttempts > 0 && h.attempts >= h.reconnect.MaxAttempts {
		h.mu.Unlock()
		h.log.Warn("reconnect attempts exhausted", "max_attempts", h.reconnect.MaxAttempts)
		return
	}
	h.attempts++
	h.reconnectArmed = true
	h.mu.Unlock()

	time.AfterFunc(h.reconnect.Delay, func() {
		h.mu.Lock()
		h.reconnectArmed = false
		stillDown := h.status == StatusDisconnected && !h.closed
		h.mu.Unlock()

		if stillDown {
			h.log.Info("attempting relay reconnect")
			h.Connect()
		}
	})
}

func (h *Hub) handleRelayFrame(data []byte) {
	var frame struct {
		Type       string     `json:"type"`
		Message    string     `json:"message"`
		Error      string     `json:"error"`
		Text       string     `json:"text"`
		IsFinal    bool       `json:"isFinal"`
		Confidence *float64   `json:"confidence"`
		Timestamp  *time.Time `json:"timestamp"`
		SessionID  string     `json:"sessionId"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		h.log.Debug("dropping malformed relay frame", "error", err)
		return
	}

	switch frame.Type {
	case "session_started":
		h.mu.Lock()
		h.sessionID = frame.SessionID
		h.mu.Unlock()
		h.broadcast(PortMessage{Type: EvtSessionStarted, SessionID: frame.SessionID})

	case "session_ready":
		h.broadcast(PortMessage{Type: EvtSessionReady})

	case "session_stopped":
		h.mu.Lock()
		h.isRecording = false
		h.mu.Unlock()
		h.broadcast(PortMessage{Type: EvtSessionStopped})

	case "transcription", "transcript":
		final := frame.IsFinal || frame.Type == "transcription"
		h.broadcast(PortMessage{
			Type:       EvtTranscription,
			Text:       frame.Text,
			Confidence: frame.Confidence,
			Timestamp:  frame.Timestamp,
			IsFinal:    &final,
		})

	case "interim_transcription":
		notFinal := false
		h.broadcast(PortMessage{
			Type:       EvtInterim,
			Text:       frame.Text,
			Confidence: frame.Confidence,
			IsFinal:    &notFinal,
		})

	case "error":
		msg := frame.Message
		if msg == "" {
			msg = frame.Error
		}
		h.broadcast(PortMessage{Type: EvtError, Message: msg})

	case "status":
		h.broadcast(PortMessage{Type: EvtStatus, Message: frame.Message})
	}
}

func (h *Hub) broadcast(msg PortMessage) {
	h.mu.Lock()
	targets := make([]Port, 0, len(h.ports))
	for p := range h.ports {
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		p.Send(msg)
	}
}

// HandleCommand processes one inbound port command and answers
// synchronously. Commands requiring connectivity fail fast; nothing is
// queued.
func (h *Hub) HandleCommand(msg PortMessage) Result {
	switch msg.Type {
	case CmdConnect:
		h.Connect()
		return Result{Status: "connecting"}

	case CmdStartRecording:
		h.mu.Lock()
		if h.status != StatusConnected || h.ws == nil {
			h.mu.Unlock()
			return Result{Error: "not connected to server"}
		}
		h.isRecording = true
		h.mu.Unlock()

		h.sendUpstream(map[string]any{"type": "start_session"})
		return Result{Status: "starting"}

	case CmdAudioChunk:
		h.mu.Lock()
		forward := h.status == StatusConnected && h.ws != nil && h.isRecording
		h.mu.Unlock()
		if forward {
			h.sendUpstream(map[string]any{
				"type":     "audio_chunk",
				"audio":    msg.Audio,
				"mimeType": msg.MimeType,
			})
		}
		return Result{}

	case CmdStopRecording:
		h.mu.Lock()
		forward := h.status == StatusConnected && h.ws != nil && h.isRecording
		h.isRecording = false
		h.mu.Unlock()
		if forward {
			h.sendUpstream(map[string]any{"type": "stop_session"})
		}
		return Result{Status: "stopped"}

	case CmdGetStatus:
		h.mu.Lock()
		defer h.mu.Unlock()
		return Result{
			ConnectionStatus: h.status,
			IsRecording:      h.isRecording,
			SessionID:        h.sessionID,
		}

	default:
		return Result{Error: "unknown command"}
	}
}

// sendUpstream is best-effort: a failed write surfaces as a socket drop on
// the read side, never as a caller error.
func (h *Hub) sendUpstream(payload any) {
	h.mu.Lock()
	ws := h.ws
	h.mu.Unlock()
	if ws == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal upstream frame failed", "error", err)
		return
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		h.log.Debug("upstream write failed", "error", err)
	}
}

func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	ws := h.ws
	h.ws = nil
	h.status = StatusDisconnected
	h.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}
