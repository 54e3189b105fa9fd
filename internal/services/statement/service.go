// Package statement serves read-only views of the ledger: accounts, balances,
// paginated statements, single entries, ledger totals and reconciliation
// reports. It takes no
// locks and sees committed data only.
package statement

import (
	"context"
	"fmt"
	"strings"

	"balanceledger/internal/models"
	"balanceledger/internal/quantity"
	"balanceledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Service interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	GetAccountByOwner(ctx context.Context, ownerRef, unit string) (*models.Account, error)
	ListAccounts(ctx context.Context, page models.Page) (*models.AccountList, error)
	Stats(ctx context.Context) (*models.LedgerStats, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (*models.AccountBalance, error)
	GetStatement(ctx context.Context, accountID uuid.UUID, page models.Page) (*models.Statement, error)
	GetEntry(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (*Reconciliation, error)
}

// Reconciliation compares an account's stored balance with the replay of its entries.
type Reconciliation struct {
	AccountID       uuid.UUID       `json:"accountId"`
	Unit            string          `json:"unit"`
	StoredBalance   decimal.Decimal `json:"storedBalance"`
	ReplayedBalance decimal.Decimal `json:"replayedBalance"`
	Entries         int             `json:"entries"`
	Consistent      bool            `json:"consistent"`
	Discrepancies   []Discrepancy   `json:"discrepancies,omitempty"`
}

// Discrepancy is an entry whose balance-after snapshot disagrees with the replay.
type Discrepancy struct {
	EntryID  uuid.UUID       `json:"entryId"`
	Expected decimal.Decimal `json:"expected"`
	Recorded decimal.Decimal `json:"recorded"`
}

type service struct {
	repo repositories.LedgerRepository
	log  *zap.Logger
}

func NewService(repo repositories.LedgerRepository, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &service{repo: repo, log: log.Named("statement")}
}

func (s *service) GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	return s.repo.GetAccount(ctx, accountID)
}

// GetAccountByOwner looks an account up the same way OpenAccount keys it: the
// owner reference trimmed and the unit normalised.
func (s *service) GetAccountByOwner(ctx context.Context, ownerRef, unit string) (*models.Account, error) {
	return s.repo.GetAccountByOwner(ctx, strings.TrimSpace(ownerRef), quantity.NormalizeUnit(unit))
}

func (s *service) ListAccounts(ctx context.Context, page models.Page) (*models.AccountList, error) {
	page = page.Normalize(DefaultPageSize, MaxPageSize)
	accounts, total, err := s.repo.ListAccounts(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return &models.AccountList{
		Accounts: accounts,
		Page:     page.Page,
		Size:     page.Size,
		Total:    total,
	}, nil
}

func (s *service) Stats(ctx context.Context) (*models.LedgerStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger stats: %w", err)
	}
	return stats, nil
}

func (s *service) GetBalance(ctx context.Context, accountID uuid.UUID) (*models.AccountBalance, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &models.AccountBalance{
		AccountID: account.ID,
		Unit:      account.Unit,
		Balance:   account.Balance,
	}, nil
}

func (s *service) GetStatement(ctx context.Context, accountID uuid.UUID, page models.Page) (*models.Statement, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	page = page.Normalize(DefaultPageSize, MaxPageSize)
	entries, total, err := s.repo.ListEntries(ctx, accountID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to load statement: %w", err)
	}
	return &models.Statement{
		Entries: entries,
		Page:    page.Page,
		Size:    page.Size,
		Total:   total,
	}, nil
}

func (s *service) GetEntry(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	return s.repo.GetEntry(ctx, entryID)
}

// Reconcile replays the account's entries oldest first. Adjustments carry no
// direction, so their sign is taken from the balance-after snapshot.
func (s *service) Reconcile(ctx context.Context, accountID uuid.UUID) (*Reconciliation, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntriesAscending(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	running := decimal.Zero
	report := &Reconciliation{
		AccountID:     account.ID,
		Unit:          account.Unit,
		StoredBalance: account.Balance,
		Entries:       len(entries),
	}

	for _, e := range entries {
		switch {
		case e.Kind.Credits():
			running = running.Add(e.Amount)
		case e.Kind == models.EntryAdjustment:
			if up := running.Add(e.Amount); up.Equal(e.BalanceAfter) {
				running = up
			} else {
				running = running.Sub(e.Amount)
			}
		default:
			running = running.Sub(e.Amount)
		}

		if !running.Equal(e.BalanceAfter) {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				EntryID:  e.ID,
				Expected: running,
				Recorded: e.BalanceAfter,
			})
		}
	}

	report.ReplayedBalance = running
	report.Consistent = len(report.Discrepancies) == 0 && running.Equal(account.Balance)
	if !report.Consistent {
		s.log.Error("ledger reconciliation failed",
			zap.String("account_id", accountID.String()),
			zap.String("stored", account.Balance.String()),
			zap.String("replayed", running.String()),
			zap.Int("discrepancies", len(report.Discrepancies)),
		)
	}
	return report, nil
}
