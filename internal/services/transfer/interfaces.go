package transfer

import (
	"context"

	"balanceledger/internal/models"
	"balanceledger/internal/services/ledger"
)

// Service is the entry point for mutating requests coming from outside the
// process. It parses amounts, applies the idempotency key and delegates to the
// ledger engine. The bool result reports a replay of a stored outcome.
type Service interface {
	OpenAccount(ctx context.Context, req OpenAccountRequest) (*models.Account, error)
	Deposit(ctx context.Context, req MovementRequest) (*models.LedgerEntry, bool, error)
	Withdraw(ctx context.Context, req MovementRequest) (*models.LedgerEntry, bool, error)
	Adjust(ctx context.Context, req AdjustRequest) (*models.LedgerEntry, bool, error)
	Transfer(ctx context.Context, req TransferRequest) (*ledger.TransferResult, bool, error)
	TransferStock(ctx context.Context, req StockTransferRequest) (*ledger.TransferResult, bool, error)
}
