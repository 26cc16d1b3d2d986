package archive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *Store) {
	t.Helper()
	store := setupTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(store, logger), store
}

func seedTranscripts(t *testing.T, store *Store, sessionID string, texts ...string) {
	t.Helper()
	for _, text := range texts {
		err := store.Save(context.Background(), &Transcript{
			SessionID: sessionID,
			Text:      text,
			SpokenAt:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestHandler_List(t *testing.T) {
	h, store := newTestHandler(t)
	seedTranscripts(t, store, "sess_a", "one", "two", "three")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/transcriptions?limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("expected total 3, got %d", resp.Total)
	}
	if len(resp.Transcriptions) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(resp.Transcriptions))
	}
	if resp.Transcriptions[0].Text != "two" || resp.Transcriptions[1].Text != "three" {
		t.Errorf("expected trailing window in order, got %+v", resp.Transcriptions)
	}
}

func TestHandler_ListBySession(t *testing.T) {
	h, store := newTestHandler(t)
	seedTranscripts(t, store, "sess_a", "mine")
	seedTranscripts(t, store, "sess_b", "other")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess_a/transcriptions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("sess_a")

	if err := h.ListBySession(c); err != nil {
		t.Fatalf("list by session: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Transcriptions) != 1 || resp.Transcriptions[0].Text != "mine" {
		t.Errorf("expected only sess_a rows, got %+v", resp.Transcriptions)
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"25", 25},
		{"-1", 0},
		{"abc", 0},
	}
	for _, tc := range cases {
		if got := parseLimit(tc.raw); got != tc.want {
			t.Errorf("parseLimit(%q): expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}
