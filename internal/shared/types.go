package shared

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewID returns an opaque unique token with the given prefix.
// Collisions are not a practical concern for process-lifetime ids.
func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// BackoffConfig describes a fixed-delay retry policy. MaxAttempts of
// zero retries without bound.
type BackoffConfig struct {
	Delay       time.Duration
	MaxAttempts int
}
