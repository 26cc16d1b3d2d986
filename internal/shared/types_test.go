package shared

import (
	"strings"
	"testing"
)

func TestNewID_Prefix(t *testing.T) {
	id := NewID("sess_")
	if !strings.HasPrefix(id, "sess_") {
		t.Errorf("expected sess_ prefix, got %q", id)
	}
	if len(id) != len("sess_")+32 {
		t.Errorf("expected 32 hex chars after prefix, got %q", id)
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewID("t_")
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
