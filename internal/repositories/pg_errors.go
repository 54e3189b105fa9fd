package repositories

import (
	"errors"
	"fmt"

	apperrors "balanceledger/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the ledger reacts to.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgNumericOutOfRange    = "22003"
)

// ownerUnitConstraint is the unique index on accounts(owner_ref, unit).
const ownerUnitConstraint = "ux_accounts_owner_unit"

// translateError maps driver errors onto ledger sentinels. Errors that are
// already domain errors, and anything unrecognised, pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return fmt.Errorf("%w: %s", apperrors.ErrContention, pgErr.Message)
	case pgUniqueViolation:
		if pgErr.ConstraintName == ownerUnitConstraint {
			return fmt.Errorf("%w: %s", ErrDuplicateAccount, pgErr.ConstraintName)
		}
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", apperrors.ErrConstraintViolation, pgErr.ConstraintName)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", apperrors.ErrNegativeBalance, pgErr.ConstraintName)
	case pgNumericOutOfRange:
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidAmount, pgErr.Message)
	}
	return err
}
