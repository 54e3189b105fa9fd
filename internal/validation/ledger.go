package validation

import "github.com/google/uuid"

// Column widths of the accounts and ledger_entries tables.
const (
	MaxOwnerRefLength  = 128
	MaxUnitLength      = 16
	MaxReferenceLength = 255
)

// OpenAccount validates an account opening request.
func (v *Validator) OpenAccount(ownerRef, unit string) {
	v.Owner(ownerRef, unit)
}

// Owner validates the owner/unit pair that identifies an account.
func (v *Validator) Owner(ownerRef, unit string) {
	v.Required("ownerRef", ownerRef)
	v.MaxLength("ownerRef", ownerRef, MaxOwnerRefLength)
	v.Required("unit", unit)
	v.MaxLength("unit", unit, MaxUnitLength)
}

// Reference validates the optional free-form reference of a movement.
func (v *Validator) Reference(ref string) {
	v.MaxLength("reference", ref, MaxReferenceLength)
}

// AccountIDs validates the two ends of a transfer.
func (v *Validator) AccountIDs(source, destination uuid.UUID) {
	v.Check(source != uuid.Nil, "sourceAccountId", "must not be empty")
	v.Check(destination != uuid.Nil, "destinationAccountId", "must not be empty")
}

// StockTransfer validates the product and warehouse ids of a stock movement.
func (v *Validator) StockTransfer(productID, fromWarehouseID, toWarehouseID uint) {
	v.Check(productID != 0, "productId", "must not be zero")
	v.Check(fromWarehouseID != 0, "fromWarehouseId", "must not be zero")
	v.Check(toWarehouseID != 0, "toWarehouseId", "must not be zero")
}
