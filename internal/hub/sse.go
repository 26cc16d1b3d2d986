package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const sseKeepAliveInterval = 30 * time.Second

// SSEPort is one UI surface attached over Server-Sent Events. Broadcasts
// are buffered; a full buffer drops the frame rather than stalling the hub.
type SSEPort struct {
	send      chan PortMessage
	done      chan struct{}
	closeOnce sync.Once
}

func NewSSEPort() *SSEPort {
	return &SSEPort{
		send: make(chan PortMessage, 128),
		done: make(chan struct{}),
	}
}

func (p *SSEPort) Send(msg PortMessage) {
	select {
	case <-p.done:
	case p.send <- msg:
	default:
	}
}

func (p *SSEPort) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// Handler exposes the hub to UI surfaces: an SSE event stream per port and
// a command endpoint answering synchronously.
type Handler struct {
	hub *Hub
	log *slog.Logger
}

func NewHandler(h *Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		hub: h,
		log: log.With("component", "hub_handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/events", h.Events)
	e.POST("/command", h.Command)
}

func (h *Handler) Events(c echo.Context) error {
	w := c.Response()
	flusher, ok := w.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	port := NewSSEPort()
	h.hub.Register(port)
	defer func() {
		h.hub.Deregister(port)
		port.Close()
	}()

	keepAlive := time.NewTicker(sseKeepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case msg := <-port.send:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("marshal broadcast failed", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return nil
			}
			flusher.Flush()

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) Command(c echo.Context) error {
	var msg PortMessage
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid command")
	}

	result := h.hub.HandleCommand(msg)
	return c.JSON(http.StatusOK, result)
}
