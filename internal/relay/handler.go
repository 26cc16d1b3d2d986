package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/eleven-am/transcribe-relay/internal/archive"
	"github.com/eleven-am/transcribe-relay/internal/provider"
	"github.com/eleven-am/transcribe-relay/internal/session"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024

	defaultStartTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Config struct {
	Provider     provider.SessionConfig
	Service      string
	StartTimeout time.Duration
}

// Handler owns the relay side of the client protocol: one session per
// WebSocket connection, control frames and binary audio in, normalized
// events out.
type Handler struct {
	registry *session.Registry
	adapter  provider.Adapter
	history  *session.HistoryStore
	archive  *archive.Store
	cfg      Config
	log      *slog.Logger
}

func NewHandler(
	registry *session.Registry,
	adapter provider.Adapter,
	history *session.HistoryStore,
	archiveStore *archive.Store,
	cfg Config,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = defaultStartTimeout
	}
	return &Handler{
		registry: registry,
		adapter:  adapter,
		history:  history,
		archive:  archiveStore,
		cfg:      cfg,
		log:      log.With("component", "relay"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleConnection)
}

func (h *Handler) HandleConnection(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return err
	}

	sess := h.registry.Create()
	conn := newConn(h, ws, sess)

	h.log.Info("client connected", "session_id", sess.ID)

	go conn.writePump()
	conn.enqueue(sessionFrame(TypeSessionStarted, sess.ID))

	conn.readPump()
	conn.teardown()

	h.log.Info("client disconnected",
		"session_id", sess.ID,
		"audio_frames", sess.AudioFrames())
	return nil
}

type conn struct {
	h    *Handler
	ws   *websocket.Conn
	sess *session.Session
	log  *slog.Logger

	send      chan *OutboundFrame
	done      chan struct{}
	closeOnce sync.Once

	timerMu    sync.Mutex
	startTimer *time.Timer
}

func newConn(h *Handler, ws *websocket.Conn, sess *session.Session) *conn {
	return &conn{
		h:    h,
		ws:   ws,
		sess: sess,
		log:  h.log.With("session_id", sess.ID),
		send: make(chan *OutboundFrame, 128),
		done: make(chan struct{}),
	}
}

// enqueue is best-effort: frames for a closed or congested client are
// dropped, never retried.
func (c *conn) enqueue(f *OutboundFrame) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- f:
	default:
		c.log.Warn("send buffer full, dropping frame", "type", f.Type)
	}
}

func (c *conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket read error", "error", err)
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			c.handleAudio(data)
			continue
		}

		frame, err := ParseInbound(data)
		if err != nil {
			c.enqueue(errorFrame("invalid message format"))
			continue
		}

		if done := c.handleControl(frame); done {
			return
		}
	}
}

// handleControl processes one control frame. It returns true when the
// connection should close. Frames are handled strictly in arrival order;
// adapter open is awaited before the next frame is read.
func (c *conn) handleControl(frame InboundFrame) bool {
	switch frame.Type {
	case TypeStart, TypeStartSession:
		c.startSession()

	case TypeStop, TypeStopSession:
		c.stopSession()

	case TypeEnd:
		c.endSession()
		return true

	case TypeAudioChunk:
		audio, err := base64.StdEncoding.DecodeString(frame.Audio)
		if err != nil {
			c.enqueue(errorFrame("invalid audio payload"))
			return false
		}
		c.handleAudio(audio)

	case TypeHealthCheck:
		c.healthCheck()

	case TypeGetTranscriptions:
		c.getTranscriptions()

	default:
		c.enqueue(errorFrame("unknown message type"))
	}
	return false
}

// startSession opens the upstream adapter. A second start while a handle
// is open is a no-op, not a second session.
func (c *conn) startSession() {
	if c.sess.Handle() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.h.cfg.StartTimeout)
	defer cancel()

	handle, err := c.h.adapter.Open(ctx, c.h.cfg.Provider, provider.Callbacks{
		OnOpen:       c.onAdapterOpen,
		OnClose:      c.onAdapterClose,
		OnError:      c.onAdapterError,
		OnTranscript: c.onTranscript,
	})
	if err != nil {
		c.log.Error("adapter open failed", "error", err)
		c.sess.SetStatus(session.StatusError)
		c.enqueue(errorFrame(ClassifyError(err)))
		return
	}

	if !c.sess.AttachHandle(handle) {
		_ = handle.Close()
		return
	}

	c.armStartTimeout()
}

// stopSession signals end-of-audio but keeps the session queryable;
// trailing finals may still arrive until the client ends or disconnects.
func (c *conn) stopSession() {
	if h := c.sess.Handle(); h != nil {
		if err := h.Finish(); err != nil {
			c.log.Debug("finish failed", "error", err)
		}
	}

	c.sess.SetReady(false)
	c.sess.SetStatus(session.StatusStopped)
	c.enqueue(sessionFrame(TypeSessionStopped, c.sess.ID))
}

func (c *conn) endSession() {
	c.cancelStartTimeout()
	if h := c.sess.DetachHandle(); h != nil {
		_ = h.Close()
	}
}

// handleAudio forwards one audio chunk. A chunk with no adapter open
// triggers an implicit start; chunks arriving while the adapter is still
// connecting are dropped rather than buffered.
func (c *conn) handleAudio(audio []byte) {
	c.sess.CountAudioFrame()

	if c.sess.Handle() == nil {
		c.startSession()
	}

	if !c.sess.Ready() {
		return
	}

	h := c.sess.Handle()
	if h == nil {
		return
	}

	if err := h.PushAudio(audio); err != nil {
		c.log.Debug("push audio failed", "error", err)
	}
}

func (c *conn) healthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var total int64
	if c.h.history != nil {
		if _, t, err := c.h.history.Window(ctx); err == nil {
			total = t
		}
	}

	c.enqueue(&OutboundFrame{
		Type: TypeHealthResponse,
		Data: HealthData{
			Status:              "ok",
			Service:             c.h.cfg.Service,
			ActiveSessions:      c.h.registry.Count(),
			TotalTranscriptions: total,
			Timestamp:           time.Now().UTC(),
		},
	})
}

func (c *conn) getTranscriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		entries []session.TranscriptEntry
		total   int64
	)
	if c.h.history != nil {
		var err error
		entries, total, err = c.h.history.Window(ctx)
		if err != nil {
			c.log.Error("history read failed", "error", err)
			c.enqueue(errorFrame(msgGenericFailure))
			return
		}
	}
	if entries == nil {
		entries = []session.TranscriptEntry{}
	}

	c.enqueue(&OutboundFrame{
		Type: TypeHistory,
		Data: HistoryData{
			Total:          total,
			Transcriptions: entries,
		},
	})
}

func (c *conn) onAdapterOpen() {
	c.cancelStartTimeout()
	c.sess.SetStatus(session.StatusActive)
	c.sess.SetReady(true)
	c.enqueue(statusFrame("connected"))
	c.enqueue(sessionFrame(TypeSessionReady, c.sess.ID))
}

func (c *conn) onAdapterClose() {
	c.sess.SetReady(false)
	c.sess.SetStatus(session.StatusDisconnected)
	c.enqueue(statusFrame("closed"))
}

func (c *conn) onAdapterError(err error) {
	c.cancelStartTimeout()
	c.sess.SetReady(false)
	c.sess.SetStatus(session.StatusError)
	c.log.Error("adapter error", "error", err)
	c.enqueue(errorFrame(ClassifyError(err)))
}

func (c *conn) onTranscript(evt provider.TranscriptEvent) {
	if evt.Text == "" {
		return
	}

	if !evt.IsFinal {
		c.enqueue(interimFrame(evt.Text, evt.Confidence))
		return
	}

	entry := session.TranscriptEntry{
		SessionID:  c.sess.ID,
		Text:       evt.Text,
		Confidence: evt.Confidence,
		Timestamp:  time.Now().UTC(),
	}
	c.sess.AppendTranscript(entry)
	c.persistFinal(entry)
	c.enqueue(finalFrame(entry.Text, entry.Confidence, entry.Timestamp))
}

func (c *conn) persistFinal(entry session.TranscriptEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if c.h.history != nil {
		if err := c.h.history.Append(ctx, entry); err != nil {
			c.log.Error("history append failed", "error", err)
		}
	}

	if c.h.archive != nil {
		record := &archive.Transcript{
			SessionID:  entry.SessionID,
			Text:       entry.Text,
			Confidence: entry.Confidence,
			SpokenAt:   entry.Timestamp,
		}
		if err := c.h.archive.Save(ctx, record); err != nil {
			c.log.Error("archive save failed", "error", err)
		}
	}
}

func (c *conn) armStartTimeout() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	c.startTimer = time.AfterFunc(c.h.cfg.StartTimeout, c.onStartTimeout)
}

func (c *conn) cancelStartTimeout() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.startTimer != nil {
		c.startTimer.Stop()
		c.startTimer = nil
	}
}

// onStartTimeout fires when the provider never confirms the open; the
// session would otherwise sit in connecting forever. The readiness check
// and the detach are one atomic step, so a confirmation racing the timer
// either wins cleanly or loses cleanly.
func (c *conn) onStartTimeout() {
	h, timedOut := c.sess.DetachIfNotReady()
	if !timedOut {
		return
	}

	if h != nil {
		_ = h.Close()
	}
	c.sess.SetStatus(session.StatusError)
	c.log.Warn("session start timed out")
	c.enqueue(errorFrame(msgGenericFailure))
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			data, err := json.Marshal(frame)
			if err != nil {
				c.log.Error("failed to marshal frame", "error", err)
				continue
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown runs exactly once when the client connection ends: the adapter
// is closed even if an open is still in flight, and the registry entry is
// removed.
func (c *conn) teardown() {
	c.closeOnce.Do(func() {
		c.cancelStartTimeout()
		if h := c.sess.DetachHandle(); h != nil {
			_ = h.Close()
		}
		c.h.registry.Remove(c.sess.ID)
		close(c.done)
		c.ws.Close()
	})
}
