package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "balanceledger/internal/errors"
	"balanceledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memAccount struct {
	account models.Account
	// pending marks a row inserted by a transaction that has not committed yet.
	pending bool
}

type entryLoc struct {
	accountID uuid.UUID
	index     int
}

// MemoryLedgerRepository is a process-local LedgerRepository for single-process
// deployments and tests. Each account has a one-slot channel acting as its row
// lock; a transaction holds the locks it took until commit or rollback, and its
// writes stay invisible to others until commit.
type MemoryLedgerRepository struct {
	mu          sync.RWMutex
	accounts    map[uuid.UUID]*memAccount
	owners      map[string]uuid.UUID
	entries     map[uuid.UUID][]models.LedgerEntry
	entryIndex  map[uuid.UUID]entryLoc
	locks       map[uuid.UUID]chan struct{}
	lockTimeout time.Duration
}

// NewMemoryLedgerRepository returns an empty store. Lock waits longer than
// lockTimeout fail with ErrContention; zero means wait for the context only.
func NewMemoryLedgerRepository(lockTimeout time.Duration) *MemoryLedgerRepository {
	return &MemoryLedgerRepository{
		accounts:    make(map[uuid.UUID]*memAccount),
		owners:      make(map[string]uuid.UUID),
		entries:     make(map[uuid.UUID][]models.LedgerEntry),
		entryIndex:  make(map[uuid.UUID]entryLoc),
		locks:       make(map[uuid.UUID]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

func ownerKey(ownerRef, unit string) string {
	return ownerRef + "|" + unit
}

func (s *MemoryLedgerRepository) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	tx := &memoryTx{
		store:    s,
		held:     make(map[uuid.UUID]struct{}),
		balances: make(map[uuid.UUID]decimal.Decimal),
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryLedgerRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return nil, ErrNoTransaction
}

func (s *MemoryLedgerRepository) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	return ErrNoTransaction
}

func (s *MemoryLedgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ma, ok := s.accounts[id]
	if !ok || ma.pending {
		return nil, apperrors.ErrAccountNotFound
	}
	acct := ma.account
	return &acct, nil
}

func (s *MemoryLedgerRepository) GetAccountByOwner(ctx context.Context, ownerRef, unit string) (*models.Account, error) {
	s.mu.RLock()
	id, ok := s.owners[ownerKey(ownerRef, unit)]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	return s.GetAccount(ctx, id)
}

func (s *MemoryLedgerRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	return s.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
		return tx.CreateAccount(ctx, account)
	})
}

func (s *MemoryLedgerRepository) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return s.ExecuteInTransaction(ctx, func(tx LedgerRepository) error {
		return tx.AppendEntry(ctx, entry)
	})
}

func (s *MemoryLedgerRepository) GetEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.entryIndex[id]
	if !ok {
		return nil, apperrors.ErrEntryNotFound
	}
	entry := s.entries[loc.accountID][loc.index]
	return &entry, nil
}

func (s *MemoryLedgerRepository) ListEntries(ctx context.Context, accountID uuid.UUID, page models.Page) ([]models.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.entries[accountID]
	total := int64(len(all))
	offset := page.Offset()
	if page.Size < 1 || offset < 0 || offset >= len(all) {
		return []models.LedgerEntry{}, total, nil
	}
	out := make([]models.LedgerEntry, 0, page.Size)
	// Newest first: walk the append log backwards.
	for i := len(all) - 1 - offset; i >= 0 && len(out) < page.Size; i-- {
		out = append(out, all[i])
	}
	return out, total, nil
}

func (s *MemoryLedgerRepository) ListEntriesAscending(ctx context.Context, accountID uuid.UUID) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.LedgerEntry, len(s.entries[accountID]))
	copy(out, s.entries[accountID])
	return out, nil
}

func (s *MemoryLedgerRepository) Ping(ctx context.Context) error {
	return nil
}

// committed returns copies of all committed accounts, oldest first. The
// caller holds s.mu.
func (s *MemoryLedgerRepository) committed() []models.Account {
	out := make([]models.Account, 0, len(s.accounts))
	for _, ma := range s.accounts {
		if !ma.pending {
			out = append(out, ma.account)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *MemoryLedgerRepository) ListAccounts(ctx context.Context, page models.Page) ([]models.Account, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.committed()
	total := int64(len(all))
	offset := page.Offset()
	if page.Size < 1 || offset < 0 || offset >= len(all) {
		return []models.Account{}, total, nil
	}
	end := len(all)
	if len(all)-offset > page.Size {
		end = offset + page.Size
	}
	return all[offset:end], total, nil
}

func (s *MemoryLedgerRepository) Stats(ctx context.Context) (*models.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.LedgerStats{
		LedgerEntries: int64(len(s.entryIndex)),
		TotalBalance:  map[string]decimal.Decimal{},
	}
	for _, ma := range s.accounts {
		if ma.pending {
			continue
		}
		stats.Accounts++
		stats.TotalBalance[ma.account.Unit] = stats.TotalBalance[ma.account.Unit].Add(ma.account.Balance)
	}
	return stats, nil
}

func (s *MemoryLedgerRepository) lockFor(id uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *MemoryLedgerRepository) acquire(ctx context.Context, id uuid.UUID) error {
	ch := s.lockFor(id)

	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return apperrors.ErrContention
	}
}

func (s *MemoryLedgerRepository) release(id uuid.UUID) {
	s.mu.RLock()
	ch := s.locks[id]
	s.mu.RUnlock()
	<-ch
}

// memoryTx is the transaction-bound view handed to ExecuteInTransaction callbacks.
type memoryTx struct {
	store    *MemoryLedgerRepository
	held     map[uuid.UUID]struct{}
	balances map[uuid.UUID]decimal.Decimal
	created  []uuid.UUID
	entries  []models.LedgerEntry
}

func (tx *memoryTx) ExecuteInTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	return fn(tx)
}

// visible returns the account as this transaction sees it: committed state,
// its own pending inserts, and its own staged balances.
func (tx *memoryTx) visible(id uuid.UUID) (models.Account, bool) {
	tx.store.mu.RLock()
	ma, ok := tx.store.accounts[id]
	var acct models.Account
	pending := false
	if ok {
		acct = ma.account
		pending = ma.pending
	}
	tx.store.mu.RUnlock()

	if !ok {
		return models.Account{}, false
	}
	if pending && !tx.createdHere(id) {
		return models.Account{}, false
	}
	if b, staged := tx.balances[id]; staged {
		acct.Balance = b
	}
	return acct, true
}

func (tx *memoryTx) createdHere(id uuid.UUID) bool {
	for _, c := range tx.created {
		if c == id {
			return true
		}
	}
	return false
}

func (tx *memoryTx) exists(id uuid.UUID) bool {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	_, ok := tx.store.accounts[id]
	return ok
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if _, ok := tx.held[id]; !ok {
		if !tx.exists(id) {
			return nil, apperrors.ErrAccountNotFound
		}
		if err := tx.store.acquire(ctx, id); err != nil {
			return nil, err
		}
		tx.held[id] = struct{}{}
	}

	// A pending row whose creator rolled back is gone once we get its lock.
	acct, ok := tx.visible(id)
	if !ok {
		delete(tx.held, id)
		tx.store.release(id)
		return nil, apperrors.ErrAccountNotFound
	}
	return &acct, nil
}

func (tx *memoryTx) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	acct, ok := tx.visible(id)
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	return &acct, nil
}

// GetAccountByOwner waits for another transaction's uncommitted insert of the
// same owner to resolve, the way a unique index would.
func (tx *memoryTx) GetAccountByOwner(ctx context.Context, ownerRef, unit string) (*models.Account, error) {
	tx.store.mu.RLock()
	id, ok := tx.store.owners[ownerKey(ownerRef, unit)]
	var pending bool
	if ok {
		pending = tx.store.accounts[id].pending
	}
	tx.store.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	if pending && !tx.createdHere(id) {
		if _, held := tx.held[id]; !held {
			if err := tx.store.acquire(ctx, id); err != nil {
				return nil, err
			}
			tx.store.release(id)
		}
	}
	return tx.GetAccount(ctx, id)
}

func (tx *memoryTx) CreateAccount(ctx context.Context, account *models.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now().UTC()
	account.Balance = decimal.Zero
	account.Version = 1
	account.CreatedAt = now
	account.UpdatedAt = now

	s := tx.store
	s.mu.Lock()
	key := ownerKey(account.OwnerRef, account.Unit)
	if _, dup := s.owners[key]; dup {
		s.mu.Unlock()
		return ErrDuplicateAccount
	}
	s.accounts[account.ID] = &memAccount{account: *account, pending: true}
	s.owners[key] = account.ID
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	s.locks[account.ID] = ch
	s.mu.Unlock()

	tx.created = append(tx.created, account.ID)
	tx.held[account.ID] = struct{}{}
	return nil
}

func (tx *memoryTx) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	if newBalance.IsNegative() {
		return apperrors.ErrNegativeBalance
	}
	if _, ok := tx.held[id]; !ok {
		return ErrNotLocked
	}
	tx.balances[id] = newBalance
	return nil
}

func (tx *memoryTx) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if _, ok := tx.visible(entry.AccountID); !ok {
		return apperrors.ErrConstraintViolation
	}
	if entry.ID == uuid.Nil {
		entry.ID = newEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	tx.entries = append(tx.entries, *entry)
	return nil
}

func (tx *memoryTx) GetEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	return tx.store.GetEntry(ctx, id)
}

func (tx *memoryTx) ListEntries(ctx context.Context, accountID uuid.UUID, page models.Page) ([]models.LedgerEntry, int64, error) {
	return tx.store.ListEntries(ctx, accountID, page)
}

func (tx *memoryTx) ListEntriesAscending(ctx context.Context, accountID uuid.UUID) ([]models.LedgerEntry, error) {
	return tx.store.ListEntriesAscending(ctx, accountID)
}

func (tx *memoryTx) ListAccounts(ctx context.Context, page models.Page) ([]models.Account, int64, error) {
	return tx.store.ListAccounts(ctx, page)
}

func (tx *memoryTx) Stats(ctx context.Context) (*models.LedgerStats, error) {
	return tx.store.Stats(ctx)
}

func (tx *memoryTx) Ping(ctx context.Context) error {
	return nil
}

func (tx *memoryTx) commit() {
	s := tx.store
	now := time.Now().UTC()

	s.mu.Lock()
	for _, id := range tx.created {
		s.accounts[id].pending = false
	}
	for id, balance := range tx.balances {
		ma := s.accounts[id]
		ma.account.Balance = balance
		ma.account.Version++
		ma.account.UpdatedAt = now
	}
	for _, e := range tx.entries {
		s.entries[e.AccountID] = append(s.entries[e.AccountID], e)
		s.entryIndex[e.ID] = entryLoc{accountID: e.AccountID, index: len(s.entries[e.AccountID]) - 1}
	}
	s.mu.Unlock()

	tx.releaseAll()
}

func (tx *memoryTx) rollback() {
	s := tx.store

	s.mu.Lock()
	for _, id := range tx.created {
		ma := s.accounts[id]
		delete(s.owners, ownerKey(ma.account.OwnerRef, ma.account.Unit))
		delete(s.accounts, id)
	}
	s.mu.Unlock()

	tx.releaseAll()
}

func (tx *memoryTx) releaseAll() {
	for id := range tx.held {
		tx.store.release(id)
	}
	tx.held = map[uuid.UUID]struct{}{}
}
