package hub

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestEcho(handler *Handler) *echo.Echo {
	e := echo.New()
	handler.RegisterRoutes(e)
	return e
}

func TestSSEPort_DropsWhenFull(t *testing.T) {
	port := NewSSEPort()

	for i := 0; i < 200; i++ {
		port.Send(PortMessage{Type: EvtStatus})
	}
	if len(port.send) != 128 {
		t.Errorf("expected buffer capped at 128, got %d", len(port.send))
	}
}

func TestSSEPort_SendAfterClose(t *testing.T) {
	port := NewSSEPort()
	port.Close()
	port.Close()

	// must not panic or block
	port.Send(PortMessage{Type: EvtStatus})
}

func TestCommandEndpoint(t *testing.T) {
	stub := newRelayStub(t)
	h := newTestHub(t, stub, time.Second)
	handler := NewHandler(h, slog.New(slog.NewTextHandler(io.Discard, nil)))

	e := newTestEcho(handler)
	server := httptest.NewServer(e)
	defer server.Close()

	resp, err := http.Post(server.URL+"/command", "application/json",
		strings.NewReader(`{"type":"GET_STATUS"}`))
	if err != nil {
		t.Fatalf("post command: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.ConnectionStatus != StatusDisconnected {
		t.Errorf("expected disconnected, got %+v", result)
	}
}

func TestCommandEndpoint_InvalidBody(t *testing.T) {
	stub := newRelayStub(t)
	h := newTestHub(t, stub, time.Second)
	handler := NewHandler(h, slog.New(slog.NewTextHandler(io.Discard, nil)))

	e := newTestEcho(handler)
	server := httptest.NewServer(e)
	defer server.Close()

	resp, err := http.Post(server.URL+"/command", "application/json",
		strings.NewReader("{broken"))
	if err != nil {
		t.Fatalf("post command: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEventsStream_DeliversBroadcasts(t *testing.T) {
	stub := newRelayStub(t)
	h := newTestHub(t, stub, time.Second)
	handler := NewHandler(h, slog.New(slog.NewTextHandler(io.Discard, nil)))

	e := newTestEcho(handler)
	server := httptest.NewServer(e)
	defer server.Close()

	resp, err := http.Get(server.URL + "/events")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", ct)
	}

	// wait until the port registers before broadcasting
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		registered := len(h.ports) == 1
		h.mu.Unlock()
		if registered {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.broadcast(PortMessage{Type: EvtTranscription, Text: "over sse"})

	reader := bufio.NewReader(resp.Body)
	lineCh := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lineCh <- line
				return
			}
		}
	}()

	select {
	case line := <-lineCh:
		var msg PortMessage
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &msg); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if msg.Type != EvtTranscription || msg.Text != "over sse" {
			t.Errorf("unexpected event %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE event")
	}
}
