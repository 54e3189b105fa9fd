// Package idempotency de-duplicates mutating requests that carry a
// caller-supplied key. A KeyStore holds one record per key; the Guard on top of
// it decides whether a request runs, replays a stored result, or is rejected.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// Record states.
const (
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
)

// ErrLeaseLost is returned by Complete when the in-progress marker now belongs
// to another caller, because this caller's lease expired and the key was taken over.
var ErrLeaseLost = errors.New("idempotency lease lost")

// Record is what a KeyStore keeps under a key.
type Record struct {
	State       string    `json:"state"`
	Token       string    `json:"token"`
	Fingerprint string    `json:"fingerprint"`
	Result      []byte    `json:"result,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// KeyStore is the shared resource behind the Guard. Every method must be atomic
// with respect to other callers using the same key.
type KeyStore interface {
	// Reserve stores rec under key with the given lease if key is absent or
	// expired, and reports true. Otherwise it returns the live record.
	Reserve(ctx context.Context, key string, rec Record, lease time.Duration) (bool, *Record, error)
	// Complete replaces the in-progress marker owned by token with rec.
	Complete(ctx context.Context, key, token string, rec Record, ttl time.Duration) error
	// Release frees key if it is still an in-progress marker owned by token.
	Release(ctx context.Context, key, token string) error
}
