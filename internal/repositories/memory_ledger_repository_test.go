package repositories

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	apperrors "balanceledger/internal/errors"
	"balanceledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, repo LedgerRepository, owner string, balance int64) *models.Account {
	t.Helper()
	ctx := context.Background()
	acct := &models.Account{OwnerRef: owner, Unit: "KZT"}
	require.NoError(t, repo.CreateAccount(ctx, acct))
	if balance > 0 {
		require.NoError(t, repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
			if _, err := tx.GetAccountForUpdate(ctx, acct.ID); err != nil {
				return err
			}
			return tx.UpdateBalance(ctx, acct.ID, decimal.NewFromInt(balance))
		}))
	}
	return acct
}

func TestMemory_LockingRequiresTransaction(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	ctx := context.Background()

	_, err := repo.GetAccountForUpdate(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNoTransaction)
	assert.ErrorIs(t, repo.UpdateBalance(ctx, uuid.New(), decimal.Zero), ErrNoTransaction)
}

func TestMemory_CommitAndRollback(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	ctx := context.Background()
	acct := seedAccount(t, repo, "wallet:1", 100)

	boom := errors.New("boom")
	err := repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
		if _, err := tx.GetAccountForUpdate(ctx, acct.ID); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, acct.ID, decimal.NewFromInt(1)); err != nil {
			return err
		}
		if err := tx.AppendEntry(ctx, &models.LedgerEntry{AccountID: acct.ID, Kind: models.EntryWithdraw, Amount: decimal.NewFromInt(99)}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))

	entries, total, err := repo.ListEntries(ctx, acct.ID, models.Page{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
}

func TestMemory_UncommittedWritesAreInvisible(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	ctx := context.Background()
	acct := seedAccount(t, repo, "wallet:1", 10)

	inside := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
			if _, err := tx.GetAccountForUpdate(ctx, acct.ID); err != nil {
				return err
			}
			if err := tx.UpdateBalance(ctx, acct.ID, decimal.NewFromInt(500)); err != nil {
				return err
			}
			close(inside)
			<-proceed
			return nil
		})
	}()

	<-inside
	got, err := repo.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(10)), "dirty read of %s", got.Balance)

	close(proceed)
	require.NoError(t, <-done)

	got, err = repo.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, int64(3), got.Version)
}

func TestMemory_LockWaitTimesOutAsContention(t *testing.T) {
	repo := NewMemoryLedgerRepository(50 * time.Millisecond)
	ctx := context.Background()
	acct := seedAccount(t, repo, "wallet:1", 0)

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
			_, err := tx.GetAccountForUpdate(ctx, acct.ID)
			close(locked)
			<-release
			return err
		})
	}()
	<-locked

	err := repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
		_, err := tx.GetAccountForUpdate(ctx, acct.ID)
		return err
	})
	assert.ErrorIs(t, err, apperrors.ErrContention)
	close(release)
}

func TestMemory_CancelledContextRollsBack(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	acct := seedAccount(t, repo, "wallet:1", 10)

	ctx, cancel := context.WithCancel(context.Background())
	err := repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
		if _, err := tx.GetAccountForUpdate(ctx, acct.ID); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, acct.ID, decimal.NewFromInt(0)); err != nil {
			return err
		}
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := repo.GetAccount(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(10)))
}

func TestMemory_UpdateBalanceRejectsNegative(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	ctx := context.Background()
	acct := seedAccount(t, repo, "wallet:1", 0)

	err := repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
		if _, err := tx.GetAccountForUpdate(ctx, acct.ID); err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, acct.ID, decimal.NewFromInt(-1))
	})
	assert.ErrorIs(t, err, apperrors.ErrNegativeBalance)
}

func TestMemory_AppendEntryRequiresAccount(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	err := repo.AppendEntry(context.Background(), &models.LedgerEntry{AccountID: uuid.New(), Kind: models.EntryDeposit, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)
}

func TestMemory_DuplicateOwner(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	ctx := context.Background()
	seedAccount(t, repo, "stock:1:1", 0)

	err := repo.CreateAccount(ctx, &models.Account{OwnerRef: "stock:1:1", Unit: "KZT"})
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	// Same owner in another unit is a distinct account.
	assert.NoError(t, repo.CreateAccount(ctx, &models.Account{OwnerRef: "stock:1:1", Unit: "USD"}))
}

func TestMemory_PendingCreationBlocksOwnerLookup(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	ctx := context.Background()

	created := make(chan struct{})
	rollback := make(chan struct{})
	go func() {
		_ = repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
			if err := tx.CreateAccount(ctx, &models.Account{OwnerRef: "stock:9:9", Unit: "stock-units"}); err != nil {
				return err
			}
			close(created)
			<-rollback
			return errors.New("abort")
		})
	}()
	<-created

	_, err := repo.GetAccountByOwner(ctx, "stock:9:9", "stock-units")
	assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)

	lookup := make(chan error)
	go func() {
		lookup <- repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
			_, err := tx.GetAccountByOwner(ctx, "stock:9:9", "stock-units")
			return err
		})
	}()

	select {
	case <-lookup:
		t.Fatal("lookup returned before the creating transaction finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(rollback)
	assert.ErrorIs(t, <-lookup, apperrors.ErrAccountNotFound)
}

func TestMemory_ListEntriesNewestFirst(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	ctx := context.Background()
	acct := seedAccount(t, repo, "wallet:1", 0)

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.AppendEntry(ctx, &models.LedgerEntry{
			AccountID:    acct.ID,
			Kind:         models.EntryDeposit,
			Amount:       decimal.NewFromInt(int64(i)),
			BalanceAfter: decimal.NewFromInt(int64(i)),
		}))
	}

	page1, total, err := repo.ListEntries(ctx, acct.ID, models.Page{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.True(t, page1[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.True(t, page1[1].Amount.Equal(decimal.NewFromInt(4)))

	page3, _, err := repo.ListEntries(ctx, acct.ID, models.Page{Page: 3, Size: 2})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.True(t, page3[0].Amount.Equal(decimal.NewFromInt(1)))

	for _, page := range []models.Page{
		{Page: 4, Size: 2},
		{Page: math.MaxInt, Size: 20},
		{Page: 0, Size: 2},
	} {
		out, total, err := repo.ListEntries(ctx, acct.ID, page)
		require.NoError(t, err)
		assert.Empty(t, out, "page %+v", page)
		assert.Equal(t, int64(5), total)
	}

	got, err := repo.GetEntry(ctx, page3[0].ID)
	require.NoError(t, err)
	assert.Equal(t, page3[0].ID, got.ID)

	_, err = repo.GetEntry(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)

	asc, err := repo.ListEntriesAscending(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, asc[0].Amount.Equal(decimal.NewFromInt(1)))
}

func TestMemory_ListAccountsAndStats(t *testing.T) {
	repo := NewMemoryLedgerRepository(time.Second)
	ctx := context.Background()
	want := map[uuid.UUID]bool{}
	for i, balance := range []int64{10, 0, 5} {
		acct := seedAccount(t, repo, models.WalletOwner(uint(i+1)), balance)
		want[acct.ID] = true
	}
	stock := &models.Account{OwnerRef: models.StockOwner(1, 1), Unit: "stock-units"}
	require.NoError(t, repo.CreateAccount(ctx, stock))
	want[stock.ID] = true
	require.NoError(t, repo.AppendEntry(ctx, &models.LedgerEntry{AccountID: stock.ID, Kind: models.EntryAdjustment, Amount: decimal.NewFromInt(1)}))

	// An account created by an open transaction is not listed or counted.
	release := make(chan struct{})
	opened := make(chan struct{})
	go func() {
		_ = repo.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
			err := tx.CreateAccount(ctx, &models.Account{OwnerRef: "wallet:pending", Unit: "KZT"})
			close(opened)
			<-release
			return err
		})
	}()
	<-opened
	defer close(release)

	seen := map[uuid.UUID]bool{}
	tests := []struct {
		page models.Page
		n    int
	}{
		{models.Page{Page: 1, Size: 3}, 3},
		{models.Page{Page: 2, Size: 3}, 1},
		{models.Page{Page: 3, Size: 3}, 0},
		{models.Page{Page: math.MaxInt, Size: 3}, 0},
	}
	for _, tt := range tests {
		out, total, err := repo.ListAccounts(ctx, tt.page)
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, out, tt.n, "page %+v", tt.page)
		for _, a := range out {
			assert.False(t, seen[a.ID], "account %s listed twice", a.ID)
			seen[a.ID] = true
		}
	}
	assert.Equal(t, want, seen)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Accounts)
	assert.Equal(t, int64(1), stats.LedgerEntries)
	require.Len(t, stats.TotalBalance, 2)
	assert.True(t, stats.TotalBalance["KZT"].Equal(decimal.NewFromInt(15)))
	assert.True(t, stats.TotalBalance["stock-units"].IsZero())
}
