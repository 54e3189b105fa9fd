package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "balanceledger/internal/errors"
	"balanceledger/internal/models"
	"balanceledger/internal/quantity"
	"balanceledger/internal/repositories"
)

func normalizeOwner(ownerRef, unit string) (string, string, error) {
	ownerRef = strings.TrimSpace(ownerRef)
	unit = quantity.NormalizeUnit(unit)
	if ownerRef == "" || unit == "" {
		return "", "", fmt.Errorf("%w: owner and unit are required", apperrors.ErrInvalidOperation)
	}
	return ownerRef, unit, nil
}

// OpenAccount returns the account of ownerRef in unit, creating it empty when
// it does not exist yet. Repeating the call returns the same account.
func (s *service) OpenAccount(ctx context.Context, ownerRef, unit string) (account *models.Account, err error) {
	start := time.Now()
	defer func() { s.observe(OpOpenAccount, start, err) }()

	ownerRef, unit, err = normalizeOwner(ownerRef, unit)
	if err != nil {
		return nil, err
	}

	err = s.withRetry(ctx, OpOpenAccount, func(ctx context.Context, tx repositories.LedgerRepository) error {
		a, _, err := insertOrGet(ctx, tx, ownerRef, unit)
		if err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// insertOrGet finds the account of ownerRef in unit or creates it inside tx.
// A concurrent creator wins the unique index; the lookup is then repeated once.
func insertOrGet(ctx context.Context, tx repositories.LedgerRepository, ownerRef, unit string) (*models.Account, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		account, err := tx.GetAccountByOwner(ctx, ownerRef, unit)
		if err == nil {
			return account, false, nil
		}
		if !errors.Is(err, apperrors.ErrAccountNotFound) {
			return nil, false, err
		}

		account = &models.Account{OwnerRef: ownerRef, Unit: unit}
		err = tx.CreateAccount(ctx, account)
		if err == nil {
			return account, true, nil
		}
		if !errors.Is(err, repositories.ErrDuplicateAccount) {
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("%w: account %s/%s was created and removed concurrently", apperrors.ErrContention, ownerRef, unit)
}
