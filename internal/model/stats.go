package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// TransactionTally aggregates one party's transactions. Amount is the sum
// of the prices charged to buyers.
type TransactionTally struct {
	Count    int
	Pending  int
	Verified int
	Amount   decimal.Decimal
}

// SuccessRate is the verified share in percent, rounded to one decimal.
func (t TransactionTally) SuccessRate() float64 {
	if t.Count == 0 {
		return 0
	}
	return math.Round(float64(t.Verified)*1000/float64(t.Count)) / 10
}

type BuyerStats struct {
	TotalPurchases      int             `json:"total_purchases"`
	TotalSpent          decimal.Decimal `json:"total_spent"`
	PendingVerification int             `json:"pending_verification"`
	SuccessRate         float64         `json:"success_rate"`
}

type SellerStats struct {
	TotalSales     decimal.Decimal `json:"total_sales"`
	ActiveListings int             `json:"active_listings"`
	PendingOrders  int             `json:"pending_orders"`
	SuccessRate    float64         `json:"success_rate"`
}

// InventoryLine is one category of a seller's listing: items still for
// sale plus verified sales and their revenue.
type InventoryLine struct {
	Category  Category        `json:"category"`
	Available int             `json:"available"`
	Sales     int             `json:"sales"`
	Revenue   decimal.Decimal `json:"revenue"`
}
