package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind is the direction of one side of a movement.
type EntryKind string

const (
	EntryDeposit     EntryKind = "deposit"
	EntryWithdraw    EntryKind = "withdraw"
	EntryTransferIn  EntryKind = "transfer-in"
	EntryTransferOut EntryKind = "transfer-out"
	EntryAdjustment  EntryKind = "adjustment"
)

// Credits reports whether the kind adds to the balance. Adjustments carry no
// fixed direction and report false.
func (k EntryKind) Credits() bool {
	return k == EntryDeposit || k == EntryTransferIn
}

// LedgerEntry is an immutable record of one side of one movement. Amount is
// always positive; Kind encodes the direction.
type LedgerEntry struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID             uuid.UUID       `gorm:"type:uuid;not null;index:ix_ledger_entries_account_created,priority:1" json:"accountId"`
	Account               *Account        `gorm:"foreignKey:AccountID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	Kind                  EntryKind       `gorm:"type:varchar(16);not null" json:"kind"`
	Amount                decimal.Decimal `gorm:"type:numeric(38,6);not null;check:ck_ledger_entries_amount_pos,amount > 0" json:"amount"`
	BalanceAfter          decimal.Decimal `gorm:"type:numeric(38,6);not null" json:"balanceAfter"`
	CounterpartyAccountID *uuid.UUID      `gorm:"type:uuid" json:"counterpartyAccountId"`
	Reference             *string         `gorm:"type:varchar(255);index:ix_ledger_entries_reference" json:"reference"`
	CreatedAt             time.Time       `gorm:"not null;index:ix_ledger_entries_account_created,priority:2,sort:desc" json:"createdAt"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// Page requests one page of a statement. Page is 1-based.
type Page struct {
	Page int
	Size int
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Size
}

// MaxOffset bounds Offset so that Page times Size never overflows.
const MaxOffset = math.MaxInt32

// Normalize clamps the page to sane bounds. Pages past MaxOffset are clamped
// to the last reachable page, which is always empty in practice.
func (p Page) Normalize(defaultSize, maxSize int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = defaultSize
	}
	if p.Size > maxSize {
		p.Size = maxSize
	}
	if maxPage := MaxOffset/p.Size + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

// Statement is a page of ledger entries plus pagination metadata.
type Statement struct {
	Entries []LedgerEntry `json:"data"`
	Page    int           `json:"page"`
	Size    int           `json:"size"`
	Total   int64         `json:"total"`
}
