package ledger

import (
	"context"
	"fmt"
	"time"

	apperrors "balanceledger/internal/errors"
	"balanceledger/internal/lockorder"
	"balanceledger/internal/models"
	"balanceledger/internal/quantity"
	"balanceledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *service) Transfer(ctx context.Context, sourceID, destinationID uuid.UUID, amount decimal.Decimal, reference string) (result *TransferResult, err error) {
	start := time.Now()
	defer func() { s.observe(OpTransfer, start, err) }()

	if sourceID == destinationID {
		return nil, fmt.Errorf("%w: source and destination are the same account", apperrors.ErrInvalidOperation)
	}

	source, q, err := s.prepareAmount(ctx, sourceID, amount)
	if err != nil {
		return nil, err
	}
	destination, err := s.repo.GetAccount(ctx, destinationID)
	if err != nil {
		return nil, err
	}
	if source.Unit != destination.Unit {
		return nil, fmt.Errorf("%w: %s to %s", apperrors.ErrUnitMismatch, source.Unit, destination.Unit)
	}

	err = s.withRetry(ctx, OpTransfer, func(ctx context.Context, tx repositories.LedgerRepository) error {
		r, err := move(ctx, tx, sourceID, destinationID, q, reference)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVolume(models.EntryTransferOut, source.Unit, q.InexactFloat64())
	return result, nil
}

// TransferByOwner moves amount between the accounts of two owners in unit. The
// source must exist; the destination is created empty on first use, inside
// the same transaction as the move.
func (s *service) TransferByOwner(ctx context.Context, sourceOwner, destinationOwner, unit string, amount decimal.Decimal, reference string) (result *TransferResult, err error) {
	start := time.Now()
	defer func() { s.observe(OpTransferByOwner, start, err) }()

	sourceOwner, unit, err = normalizeOwner(sourceOwner, unit)
	if err != nil {
		return nil, err
	}
	destinationOwner, _, err = normalizeOwner(destinationOwner, unit)
	if err != nil {
		return nil, err
	}
	if sourceOwner == destinationOwner {
		return nil, fmt.Errorf("%w: source and destination are the same account", apperrors.ErrInvalidOperation)
	}

	if err := quantity.CheckRange(amount); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidAmount, err)
	}
	q, ok := quantity.Positive(amount, unit)
	if !amount.IsPositive() || !ok {
		return nil, apperrors.ErrInvalidAmount
	}

	source, err := s.repo.GetAccountByOwner(ctx, sourceOwner, unit)
	if err != nil {
		return nil, err
	}

	err = s.withRetry(ctx, OpTransferByOwner, func(ctx context.Context, tx repositories.LedgerRepository) error {
		// A fresh destination row is only visible to this transaction, so
		// creating it ahead of the ordered locks cannot deadlock.
		destination, _, err := insertOrGet(ctx, tx, destinationOwner, unit)
		if err != nil {
			return err
		}
		r, err := move(ctx, tx, source.ID, destination.ID, q, reference)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVolume(models.EntryTransferOut, unit, q.InexactFloat64())
	return result, nil
}

// move debits source and credits destination inside tx. Both rows are locked
// in lockorder.Order, never in source/destination order.
func move(ctx context.Context, tx repositories.LedgerRepository, sourceID, destinationID uuid.UUID, amount decimal.Decimal, reference string) (*TransferResult, error) {
	locked := make(map[uuid.UUID]*models.Account, 2)
	for _, id := range lockorder.Order(sourceID, destinationID) {
		account, err := tx.GetAccountForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	source, destination := locked[sourceID], locked[destinationID]

	if source.Unit != destination.Unit {
		return nil, fmt.Errorf("%w: %s to %s", apperrors.ErrUnitMismatch, source.Unit, destination.Unit)
	}
	if source.Balance.LessThan(amount) {
		return nil, apperrors.ErrInsufficientFunds
	}

	sourceBalance := source.Balance.Sub(amount)
	destinationBalance := destination.Balance.Add(amount)
	if err := checkCapacity(destinationBalance); err != nil {
		return nil, err
	}
	if err := tx.UpdateBalance(ctx, sourceID, sourceBalance); err != nil {
		return nil, err
	}
	if err := tx.UpdateBalance(ctx, destinationID, destinationBalance); err != nil {
		return nil, err
	}

	ref := refPtr(reference)
	debit := &models.LedgerEntry{
		AccountID:             sourceID,
		Kind:                  models.EntryTransferOut,
		Amount:                amount,
		BalanceAfter:          sourceBalance,
		CounterpartyAccountID: &destinationID,
		Reference:             ref,
	}
	if err := tx.AppendEntry(ctx, debit); err != nil {
		return nil, err
	}
	credit := &models.LedgerEntry{
		AccountID:             destinationID,
		Kind:                  models.EntryTransferIn,
		Amount:                amount,
		BalanceAfter:          destinationBalance,
		CounterpartyAccountID: &sourceID,
		Reference:             ref,
	}
	if err := tx.AppendEntry(ctx, credit); err != nil {
		return nil, err
	}

	return &TransferResult{Debit: *debit, Credit: *credit}, nil
}
