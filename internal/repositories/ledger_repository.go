package repositories

import (
	"context"
	"errors"

	"balanceledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoTransaction is returned by locking operations called outside ExecuteInTransaction.
	ErrNoTransaction = errors.New("operation requires an active transaction")
	// ErrDuplicateAccount is returned by CreateAccount when the owner/unit pair already exists.
	ErrDuplicateAccount = errors.New("account already exists for owner and unit")
	// ErrNotLocked is returned by UpdateBalance on a row the transaction has not locked.
	ErrNotLocked = errors.New("account row is not locked by this transaction")
)

// LedgerRepository is the durable store for accounts and ledger entries.
//
// Domain failures come back as the sentinels of package internal/errors:
// ErrAccountNotFound, ErrEntryNotFound, ErrNegativeBalance,
// ErrConstraintViolation and ErrContention.
type LedgerRepository interface {
	// ExecuteInTransaction runs fn against a repository bound to one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise,
	// including when ctx is cancelled before commit.
	ExecuteInTransaction(ctx context.Context, fn func(tx LedgerRepository) error) error

	// Account operations
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByOwner(ctx context.Context, ownerRef, unit string) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error
	// ListAccounts returns committed accounts oldest first, plus the total count.
	ListAccounts(ctx context.Context, page models.Page) ([]models.Account, int64, error)

	// Entry operations
	AppendEntry(ctx context.Context, entry *models.LedgerEntry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, accountID uuid.UUID, page models.Page) ([]models.LedgerEntry, int64, error)
	ListEntriesAscending(ctx context.Context, accountID uuid.UUID) ([]models.LedgerEntry, error)

	// Stats counts accounts and entries and totals balances per unit.
	Stats(ctx context.Context) (*models.LedgerStats, error)

	Ping(ctx context.Context) error
}

// newEntryID returns a time-ordered id so that entries sharing a timestamp
// still sort in creation order.
func newEntryID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
