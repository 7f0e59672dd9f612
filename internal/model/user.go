package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string          `json:"id"`
	FullName  string          `json:"full_name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
