package ledger

import (
	"context"
	"time"

	"balanceledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the only component allowed to change an account balance. Every
// operation is atomic: it either commits all of its balance updates and
// entries or leaves the ledger untouched.
type Service interface {
	// Account management
	OpenAccount(ctx context.Context, ownerRef, unit string) (*models.Account, error)

	// Single-account movements
	Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, reference string) (*models.LedgerEntry, error)
	Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, reference string) (*models.LedgerEntry, error)
	Adjust(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal, reference string) (*models.LedgerEntry, error)

	// Two-account movements
	Transfer(ctx context.Context, sourceID, destinationID uuid.UUID, amount decimal.Decimal, reference string) (*TransferResult, error)
	TransferByOwner(ctx context.Context, sourceOwner, destinationOwner, unit string, amount decimal.Decimal, reference string) (*TransferResult, error)
}

// MetricsCollector defines the interface for collecting ledger metrics
type MetricsCollector interface {
	// Operation metrics
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)

	// Contention metrics
	RecordRetry(operation string)

	// Volume metrics
	RecordVolume(kind models.EntryKind, unit string, amount float64)
}
