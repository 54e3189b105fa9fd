package ledger

import (
	"context"
	"fmt"
	"time"

	apperrors "balanceledger/internal/errors"
	"balanceledger/internal/models"
	"balanceledger/internal/quantity"
	"balanceledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// prepareAmount validates amount against the unit of accountID without taking
// any lock. Units never change, so the unlocked read is safe.
func (s *service) prepareAmount(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*models.Account, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return nil, decimal.Zero, apperrors.ErrInvalidAmount
	}

	if err := quantity.CheckRange(amount); err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: %v", apperrors.ErrInvalidAmount, err)
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	q, ok := quantity.Positive(amount, account.Unit)
	if !ok {
		return nil, decimal.Zero, fmt.Errorf("%w: %s rounds to zero in %s", apperrors.ErrInvalidAmount, amount, account.Unit)
	}
	return account, q, nil
}

func (s *service) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, reference string) (entry *models.LedgerEntry, err error) {
	start := time.Now()
	defer func() { s.observe(OpDeposit, start, err) }()

	account, q, err := s.prepareAmount(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}

	err = s.withRetry(ctx, OpDeposit, func(ctx context.Context, tx repositories.LedgerRepository) error {
		locked, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		newBalance := locked.Balance.Add(q)
		if err := checkCapacity(newBalance); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, accountID, newBalance); err != nil {
			return err
		}

		e := &models.LedgerEntry{
			AccountID:    accountID,
			Kind:         models.EntryDeposit,
			Amount:       q,
			BalanceAfter: newBalance,
			Reference:    refPtr(reference),
		}
		if err := tx.AppendEntry(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVolume(models.EntryDeposit, account.Unit, q.InexactFloat64())
	return entry, nil
}

func (s *service) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, reference string) (entry *models.LedgerEntry, err error) {
	start := time.Now()
	defer func() { s.observe(OpWithdraw, start, err) }()

	account, q, err := s.prepareAmount(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}

	err = s.withRetry(ctx, OpWithdraw, func(ctx context.Context, tx repositories.LedgerRepository) error {
		locked, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		// Withdrawing the whole balance is allowed.
		if locked.Balance.LessThan(q) {
			return apperrors.ErrInsufficientFunds
		}

		newBalance := locked.Balance.Sub(q)
		if err := tx.UpdateBalance(ctx, accountID, newBalance); err != nil {
			return err
		}

		e := &models.LedgerEntry{
			AccountID:    accountID,
			Kind:         models.EntryWithdraw,
			Amount:       q,
			BalanceAfter: newBalance,
			Reference:    refPtr(reference),
		}
		if err := tx.AppendEntry(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVolume(models.EntryWithdraw, account.Unit, q.InexactFloat64())
	return entry, nil
}

// Adjust applies a signed correction, e.g. after a stocktake. The entry stores
// |delta| as its amount; its direction is recoverable from balance-after.
func (s *service) Adjust(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal, reference string) (entry *models.LedgerEntry, err error) {
	start := time.Now()
	defer func() { s.observe(OpAdjust, start, err) }()

	account, q, err := s.prepareAmount(ctx, accountID, delta.Abs())
	if err != nil {
		return nil, err
	}
	signed := q
	if delta.IsNegative() {
		signed = q.Neg()
	}

	err = s.withRetry(ctx, OpAdjust, func(ctx context.Context, tx repositories.LedgerRepository) error {
		locked, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		newBalance := locked.Balance.Add(signed)
		if newBalance.IsNegative() {
			return apperrors.ErrInsufficientFunds
		}
		if err := checkCapacity(newBalance); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, accountID, newBalance); err != nil {
			return err
		}

		e := &models.LedgerEntry{
			AccountID:    accountID,
			Kind:         models.EntryAdjustment,
			Amount:       q,
			BalanceAfter: newBalance,
			Reference:    refPtr(reference),
		}
		if err := tx.AppendEntry(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVolume(models.EntryAdjustment, account.Unit, q.InexactFloat64())
	return entry, nil
}
