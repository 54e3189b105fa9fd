package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "balanceledger/internal/errors"
	"balanceledger/internal/quantity"
	"balanceledger/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type service struct {
	repo    repositories.LedgerRepository
	config  Config
	metrics MetricsCollector
	log     *zap.Logger
}

// NewService creates a new ledger engine
func NewService(
	repo repositories.LedgerRepository,
	config Config,
	metrics MetricsCollector,
	log *zap.Logger,
) Service {
	if repo == nil {
		panic("repo is required")
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}
	if config.TxTimeout <= 0 {
		config.TxTimeout = DefaultTxTimeout
	}

	// Metrics is optional, create no-op collector if nil
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &service{
		repo:    repo,
		config:  config,
		metrics: metrics,
		log:     log.Named("ledger"),
	}
}

// withRetry runs fn in a fresh transaction, re-running it while it fails with
// contention and retries remain. fn must rebuild all of its state per attempt.
func (s *service) withRetry(ctx context.Context, op string, fn func(ctx context.Context, tx repositories.LedgerRepository) error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := s.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrContention) || attempt >= s.config.MaxRetries {
			return err
		}

		s.metrics.RecordRetry(op)
		s.log.Warn("retrying contended transaction",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		backoff *= 2
	}
}

func (s *service) attempt(parent context.Context, fn func(ctx context.Context, tx repositories.LedgerRepository) error) error {
	ctx, cancel := context.WithTimeout(parent, s.config.TxTimeout)
	defer cancel()

	err := s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		return fn(ctx, tx)
	})
	// Cut short by the attempt timeout rather than by the caller.
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%w: transaction timed out", apperrors.ErrContention)
	}
	return err
}

// observe records duration and outcome of one public operation.
func (s *service) observe(op string, start time.Time, err error) {
	s.metrics.RecordOperationDuration(op, time.Since(start))
	if err == nil {
		s.metrics.RecordOperationResult(op, resultSuccess)
		return
	}

	code := apperrors.CodeOf(err)
	s.metrics.RecordOperationResult(op, strings.ToLower(code))

	switch code {
	case apperrors.CodeInternal, apperrors.CodeConstraintViolation, apperrors.CodeNegativeBalance:
		s.log.Error("ledger operation failed", zap.String("operation", op), zap.Error(err))
	case apperrors.CodeContention:
		s.log.Warn("ledger operation gave up on contention", zap.String("operation", op), zap.Error(err))
	default:
		s.log.Debug("ledger operation rejected", zap.String("operation", op), zap.Error(err))
	}
}

func refPtr(reference string) *string {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil
	}
	return &reference
}

// checkCapacity rejects a credit that would push a balance past what the
// store can hold.
func checkCapacity(balance decimal.Decimal) error {
	if err := quantity.CheckRange(balance); err != nil {
		return fmt.Errorf("%w: resulting balance: %v", apperrors.ErrInvalidAmount, err)
	}
	return nil
}
