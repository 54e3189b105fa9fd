package models

import "fmt"

// WalletOwner is the owner reference of a user's wallet account.
func WalletOwner(userID uint) string {
	return fmt.Sprintf("wallet:%d", userID)
}

// StockOwner is the owner reference of a product's stock row at a warehouse.
func StockOwner(productID, warehouseID uint) string {
	return fmt.Sprintf("stock:%d:%d", productID, warehouseID)
}
