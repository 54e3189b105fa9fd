package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account is a generic balance holder: a user wallet or a product stock row at a warehouse.
type Account struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerRef  string          `gorm:"type:varchar(128);not null;uniqueIndex:ux_accounts_owner_unit" json:"ownerRef"`
	Unit      string          `gorm:"type:varchar(16);not null;uniqueIndex:ux_accounts_owner_unit" json:"unit"`
	Balance   decimal.Decimal `gorm:"type:numeric(38,6);not null;default:0;check:ck_accounts_balance_nonneg,balance >= 0" json:"balance"`
	Version   int64           `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	// Accounts always open empty; value only arrives through ledger entries.
	a.Balance = decimal.Zero
	if a.Version == 0 {
		a.Version = 1
	}
	return nil
}

// AccountBalance is the read projection returned by balance lookups.
type AccountBalance struct {
	AccountID uuid.UUID       `json:"accountId"`
	Unit      string          `json:"unit"`
	Balance   decimal.Decimal `json:"balance"`
}

// AccountList is a page of accounts plus pagination metadata.
type AccountList struct {
	Accounts []Account `json:"data"`
	Page     int       `json:"page"`
	Size     int       `json:"size"`
	Total    int64     `json:"total"`
}

// LedgerStats summarises the whole ledger. Balances in different units do not
// add up, so TotalBalance is keyed by unit.
type LedgerStats struct {
	Accounts      int64                      `json:"accounts"`
	LedgerEntries int64                      `json:"ledgerEntries"`
	TotalBalance  map[string]decimal.Decimal `json:"totalBalance"`
}
