package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "balanceledger/internal/errors"
	"balanceledger/internal/idempotency"
	"balanceledger/internal/models"
	"balanceledger/internal/quantity"
	"balanceledger/internal/services/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// service implements the transfer Service interface.
type service struct {
	engine ledger.Service
	guard  *idempotency.Guard
	log    *zap.Logger
}

// NewService creates a new transfer service instance.
func NewService(engine ledger.Service, guard *idempotency.Guard, log *zap.Logger) Service {
	if engine == nil {
		panic("ledger engine is required")
	}
	if guard == nil {
		panic("idempotency guard is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &service{engine: engine, guard: guard, log: log.Named("transfer")}
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := quantity.Parse(s)
	if errors.Is(err, quantity.ErrOutOfRange) {
		return decimal.Zero, fmt.Errorf("%w: %v", apperrors.ErrInvalidAmount, err)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal number", apperrors.ErrInvalidAmount, s)
	}
	return d, nil
}

// reference falls back to the idempotency key, so entries stay traceable to
// the request that produced them.
func reference(ref, key string) string {
	if ref != "" {
		return ref
	}
	return key
}

// guarded runs fn under key. The stored outcome is the JSON of fn's result
// and is decoded again on replay.
func guarded[T any](ctx context.Context, s *service, op, key string, req interface{}, fn func(context.Context) (*T, error)) (*T, bool, error) {
	fp, err := idempotency.Fingerprint(struct {
		Op      string      `json:"op"`
		Request interface{} `json:"request"`
	}{op, req})
	if err != nil {
		return nil, false, err
	}

	var out *T
	raw, replayed, err := s.guard.Execute(ctx, key, fp, func(ctx context.Context) ([]byte, error) {
		res, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		out = res
		return json.Marshal(res)
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		return out, false, nil
	}

	var stored T
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("failed to decode stored result for key %q: %w", key, err)
	}
	s.log.Debug("replayed idempotent request", zap.String("operation", op), zap.String("key", key))
	return &stored, true, nil
}

func (s *service) OpenAccount(ctx context.Context, req OpenAccountRequest) (*models.Account, error) {
	return s.engine.OpenAccount(ctx, req.OwnerRef, req.Unit)
}

func (s *service) Deposit(ctx context.Context, req MovementRequest) (*models.LedgerEntry, bool, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, false, err
	}
	return guarded(ctx, s, ledger.OpDeposit, req.IdempotencyKey, req, func(ctx context.Context) (*models.LedgerEntry, error) {
		return s.engine.Deposit(ctx, req.AccountID, amount, reference(req.Reference, req.IdempotencyKey))
	})
}

func (s *service) Withdraw(ctx context.Context, req MovementRequest) (*models.LedgerEntry, bool, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, false, err
	}
	return guarded(ctx, s, ledger.OpWithdraw, req.IdempotencyKey, req, func(ctx context.Context) (*models.LedgerEntry, error) {
		return s.engine.Withdraw(ctx, req.AccountID, amount, reference(req.Reference, req.IdempotencyKey))
	})
}

func (s *service) Adjust(ctx context.Context, req AdjustRequest) (*models.LedgerEntry, bool, error) {
	delta, err := parseAmount(req.Delta)
	if err != nil {
		return nil, false, err
	}
	return guarded(ctx, s, ledger.OpAdjust, req.IdempotencyKey, req, func(ctx context.Context) (*models.LedgerEntry, error) {
		return s.engine.Adjust(ctx, req.AccountID, delta, reference(req.Reference, req.IdempotencyKey))
	})
}

// Transfer moves funds between two accounts addressed by id.
func (s *service) Transfer(ctx context.Context, req TransferRequest) (*ledger.TransferResult, bool, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, false, err
	}
	return guarded(ctx, s, ledger.OpTransfer, req.IdempotencyKey, req, func(ctx context.Context) (*ledger.TransferResult, error) {
		return s.engine.Transfer(ctx, req.SourceAccountID, req.DestinationAccountID, amount, reference(req.Reference, req.IdempotencyKey))
	})
}

// TransferStock moves stock between warehouses. The destination stock row is
// created on first use.
func (s *service) TransferStock(ctx context.Context, req StockTransferRequest) (*ledger.TransferResult, bool, error) {
	qty, err := parseAmount(req.Quantity)
	if err != nil {
		return nil, false, err
	}
	from := models.StockOwner(req.ProductID, req.FromWarehouseID)
	to := models.StockOwner(req.ProductID, req.ToWarehouseID)

	return guarded(ctx, s, ledger.OpTransferByOwner, req.IdempotencyKey, req, func(ctx context.Context) (*ledger.TransferResult, error) {
		return s.engine.TransferByOwner(ctx, from, to, quantity.UnitStock, qty, reference(req.Reference, req.IdempotencyKey))
	})
}
