package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/eleven-am/transcribe-relay/internal/shared"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry()

	s := r.Create()
	if !strings.HasPrefix(s.ID, "sess_") {
		t.Errorf("expected sess_ prefix, got %q", s.ID)
	}
	if s.Status() != StatusConnecting {
		t.Errorf("expected connecting, got %s", s.Status())
	}

	got, err := r.Get(s.ID)
	if err != nil || got != s {
		t.Errorf("expected to retrieve the created session, got %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("expected count 1, got %d", r.Count())
	}
}

func TestRegistry_UniqueIDs(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := r.Create()
		if seen[s.ID] {
			t.Fatalf("duplicate id %q", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestRegistry_RemoveClosesHandle(t *testing.T) {
	r := NewRegistry()
	s := r.Create()

	h := &fakeHandle{}
	s.AttachHandle(h)

	r.Remove(s.ID)

	if _, err := r.Get(s.ID); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
	if h.closeCount() != 1 {
		t.Errorf("expected handle closed once, got %d", h.closeCount())
	}

	// removing again is harmless
	r.Remove(s.ID)
	if h.closeCount() != 1 {
		t.Errorf("remove is not idempotent: close count %d", h.closeCount())
	}
}

func TestRegistry_GetAbsent(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("sess_missing"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent session, got %v", err)
	}
}
