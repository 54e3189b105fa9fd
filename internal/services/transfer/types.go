package transfer

import "github.com/google/uuid"

type OpenAccountRequest struct {
	OwnerRef string `json:"ownerRef"`
	Unit     string `json:"unit"`
}

// MovementRequest is a deposit or withdrawal. IdempotencyKey travels next to
// the payload but stays out of the request fingerprint.
type MovementRequest struct {
	IdempotencyKey string    `json:"-"`
	AccountID      uuid.UUID `json:"accountId"`
	Amount         string    `json:"amount"`
	Reference      string    `json:"reference,omitempty"`
}

type AdjustRequest struct {
	IdempotencyKey string    `json:"-"`
	AccountID      uuid.UUID `json:"accountId"`
	Delta          string    `json:"delta"`
	Reference      string    `json:"reference,omitempty"`
}

type TransferRequest struct {
	IdempotencyKey       string    `json:"-"`
	SourceAccountID      uuid.UUID `json:"sourceAccountId"`
	DestinationAccountID uuid.UUID `json:"destinationAccountId"`
	Amount               string    `json:"amount"`
	Reference            string    `json:"reference,omitempty"`
}

// StockTransferRequest moves stock of one product between two warehouses.
type StockTransferRequest struct {
	IdempotencyKey  string `json:"-"`
	ProductID       uint   `json:"productId"`
	FromWarehouseID uint   `json:"fromWarehouseId"`
	ToWarehouseID   uint   `json:"toWarehouseId"`
	Quantity        string `json:"quantity"`
	Reference       string `json:"reference,omitempty"`
}
