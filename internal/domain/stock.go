package domain

// IsLowStock reports whether currentStock has fallen below minStockQuantity.
func IsLowStock(currentStock, minStockQuantity int) bool {
	return currentStock < minStockQuantity
}

// Reconciliation compares a product's stock counter with the net sum of its ledger.
type Reconciliation struct {
	ProductID     string `json:"product_id"`
	CurrentStock  int    `json:"current_stock"`
	LedgerBalance int    `json:"ledger_balance"`
	Consistent    bool   `json:"consistent"`
}
