package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "balanceledger/internal/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the outcome of Begin.
type Status int

const (
	// Fresh means the caller owns the key and must run the operation.
	Fresh Status = iota
	// InProgress means another caller is running the operation right now.
	InProgress
	// Completed means the operation already ran; Result holds its output.
	Completed
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// Reservation is returned by Begin. For Fresh it carries the lease token that
// Complete and Abort need.
type Reservation struct {
	Key         string
	Status      Status
	Result      []byte
	token       string
	fingerprint string
}

type Guard struct {
	store KeyStore
	ttl   time.Duration
	lease time.Duration
	log   *zap.Logger
}

// NewGuard wraps a KeyStore. Completed results are kept for ttl; an in-progress
// marker that is never completed or aborted frees itself after lease.
func NewGuard(store KeyStore, ttl, lease time.Duration, log *zap.Logger) *Guard {
	if store == nil {
		panic("key store is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{store: store, ttl: ttl, lease: lease, log: log}
}

// Fingerprint hashes a request payload so that a key reused for a different
// request can be detected.
func Fingerprint(request interface{}) (string, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Begin checks and reserves key. A key already used with a different
// fingerprint fails with ErrIdempotencyMismatch.
func (g *Guard) Begin(ctx context.Context, key, fingerprint string) (*Reservation, error) {
	token := uuid.NewString()
	reserved, existing, err := g.store.Reserve(ctx, key, Record{
		State:       StateInProgress,
		Token:       token,
		Fingerprint: fingerprint,
	}, g.lease)
	if err != nil {
		return nil, err
	}
	if reserved {
		return &Reservation{Key: key, Status: Fresh, token: token, fingerprint: fingerprint}, nil
	}

	if existing.Fingerprint != fingerprint {
		return nil, apperrors.ErrIdempotencyMismatch
	}
	if existing.State == StateCompleted {
		return &Reservation{Key: key, Status: Completed, Result: existing.Result}, nil
	}
	return &Reservation{Key: key, Status: InProgress}, nil
}

// Complete stores the result for a Fresh reservation.
func (g *Guard) Complete(ctx context.Context, r *Reservation, result []byte) error {
	return g.store.Complete(ctx, r.Key, r.token, Record{
		State:       StateCompleted,
		Token:       r.token,
		Fingerprint: r.fingerprint,
		Result:      result,
	}, g.ttl)
}

// Abort frees a Fresh reservation so the client can retry under the same key.
func (g *Guard) Abort(ctx context.Context, r *Reservation) error {
	return g.store.Release(ctx, r.Key, r.token)
}

// Execute runs fn at most once per key. An empty key runs fn unguarded. A
// replayed call returns the stored result with replayed set; a concurrent
// duplicate fails with ErrDuplicateRequest. If fn fails the key is freed.
func (g *Guard) Execute(ctx context.Context, key, fingerprint string, fn func(context.Context) ([]byte, error)) (result []byte, replayed bool, err error) {
	if key == "" {
		result, err = fn(ctx)
		return result, false, err
	}

	r, err := g.Begin(ctx, key, fingerprint)
	if err != nil {
		return nil, false, err
	}
	switch r.Status {
	case Completed:
		return r.Result, true, nil
	case InProgress:
		return nil, false, apperrors.ErrDuplicateRequest
	}

	// Bookkeeping must outlive a cancelled request context.
	bg := context.WithoutCancel(ctx)

	result, err = fn(ctx)
	if err != nil {
		if abortErr := g.Abort(bg, r); abortErr != nil {
			g.log.Warn("failed to release idempotency key",
				zap.String("key", key),
				zap.Error(abortErr),
			)
		}
		return nil, false, err
	}

	if err := g.Complete(bg, r, result); err != nil {
		if errors.Is(err, ErrLeaseLost) {
			g.log.Warn("idempotency lease expired before completion", zap.String("key", key))
		} else {
			g.log.Error("failed to store idempotency result", zap.String("key", key), zap.Error(err))
		}
	}
	return result, false, nil
}
