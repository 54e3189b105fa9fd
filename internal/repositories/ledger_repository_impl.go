package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "balanceledger/internal/errors"
	"balanceledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db          *gorm.DB
	inTx        bool
	lockTimeout time.Duration
}

// NewLedgerRepository returns a PostgreSQL-backed LedgerRepository. Row lock
// waits inside a transaction are bounded by lockTimeout.
func NewLedgerRepository(db *gorm.DB, lockTimeout time.Duration) LedgerRepository {
	return &ledgerRepository{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

func (r *ledgerRepository) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	if r.inTx {
		return fn(r)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			// SET LOCAL does not accept bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		txRepo := &ledgerRepository{db: tx, inTx: true, lockTimeout: r.lockTimeout}
		if err := fn(txRepo); err != nil {
			return err
		}
		return ctx.Err()
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})

	return translateError(err)
}

func (r *ledgerRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if !r.inTx {
		return nil, ErrNoTransaction
	}

	var account models.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, translateError(err)
	}
	return &account, nil
}

func (r *ledgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", translateError(err))
	}
	return &account, nil
}

func (r *ledgerRepository) GetAccountByOwner(ctx context.Context, ownerRef, unit string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("owner_ref = ? AND unit = ?", ownerRef, unit).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by owner: %w", translateError(err))
	}
	return &account, nil
}

// CreateAccount inserts a zero-balance account. Inside a transaction the
// insert runs under a savepoint, so a unique conflict leaves the outer
// transaction usable for a follow-up read.
func (r *ledgerRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	db := r.db.WithContext(ctx)
	var err error
	if r.inTx {
		err = db.Transaction(func(sp *gorm.DB) error {
			return sp.Create(account).Error
		})
	} else {
		err = db.Create(account).Error
	}
	return translateError(err)
}

// UpdateBalance is the single enforcement point of the non-negative balance rule.
func (r *ledgerRepository) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	if !r.inTx {
		return ErrNoTransaction
	}
	if newBalance.IsNegative() {
		return apperrors.ErrNegativeBalance
	}

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

func (r *ledgerRepository) ListAccounts(ctx context.Context, page models.Page) ([]models.Account, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	accounts := make([]models.Account, 0, page.Size)
	if page.Size < 1 || page.Offset() < 0 || int64(page.Offset()) >= total {
		return accounts, total, nil
	}
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&accounts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, total, nil
}

type unitTotal struct {
	Unit    string
	Balance decimal.Decimal
}

func (r *ledgerRepository) Stats(ctx context.Context) (*models.LedgerStats, error) {
	stats := &models.LedgerStats{TotalBalance: map[string]decimal.Decimal{}}
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Account{}).Count(&stats.Accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	if err := db.Model(&models.LedgerEntry{}).Count(&stats.LedgerEntries).Error; err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	var totals []unitTotal
	err := db.Model(&models.Account{}).
		Select("unit, SUM(balance) AS balance").
		Group("unit").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to total balances: %w", err)
	}
	for _, t := range totals {
		stats.TotalBalance[t.Unit] = t.Balance
	}
	return stats, nil
}

func (r *ledgerRepository) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = newEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(entry).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *ledgerRepository) GetEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", translateError(err))
	}
	return &entry, nil
}

func (r *ledgerRepository) ListEntries(ctx context.Context, accountID uuid.UUID, page models.Page) ([]models.LedgerEntry, int64, error) {
	var total int64
	db := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("account_id = ?", accountID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	entries := make([]models.LedgerEntry, 0, page.Size)
	if page.Size < 1 || page.Offset() < 0 || int64(page.Offset()) >= total {
		return entries, total, nil
	}
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, total, nil
}

func (r *ledgerRepository) ListEntriesAscending(ctx context.Context, accountID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
