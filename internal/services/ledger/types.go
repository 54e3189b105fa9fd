package ledger

import (
	"time"

	"balanceledger/internal/models"
)

// TransferResult holds both sides of a transfer.
type TransferResult struct {
	Debit  models.LedgerEntry `json:"debit"`
	Credit models.LedgerEntry `json:"credit"`
}

// Config tunes retries and transaction bounds.
type Config struct {
	// MaxRetries is how many times a transaction failing with contention is re-run.
	MaxRetries int
	// RetryBackoff is the first wait between attempts; it doubles per retry.
	RetryBackoff time.Duration
	// TxTimeout bounds one transaction attempt.
	TxTimeout time.Duration
}
