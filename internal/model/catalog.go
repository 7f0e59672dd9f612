package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category prices a class of credential sets. SellPrice is charged to the
// buyer up front, BuyPrice is what the seller receives on settlement.
type Category struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	BuyPrice    decimal.Decimal `json:"buy_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (c Category) Validate() error {
	if c.ID == "" || c.Name == "" {
		return ErrInvalidInput
	}
	if c.BuyPrice.IsNegative() || c.SellPrice.IsNegative() {
		return ErrInvalidInput
	}
	return nil
}

// Item is a credential set listed by a seller.
type Item struct {
	ID            string    `json:"id"`
	SellerID      string    `json:"seller_id"`
	CategoryID    string    `json:"category_id"`
	Login         string    `json:"login"`
	Password      string    `json:"password"`
	RecoveryEmail string    `json:"recovery_email,omitempty"`
	IsAvailable   bool      `json:"is_available"`
	IsSold        bool      `json:"is_sold"`
	CreatedAt     time.Time `json:"created_at"`
}

type SellerStock struct {
	SellerID  string `json:"seller_id"`
	Available int    `json:"available"`
}
