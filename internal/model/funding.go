package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundingKind separates money entering the platform from money leaving it.
type FundingKind string

const (
	FundingDeposit    FundingKind = "deposit"
	FundingWithdrawal FundingKind = "withdrawal"
)

type FundingStatus string

const (
	FundingPending  FundingStatus = "pending"
	FundingApproved FundingStatus = "approved"
	FundingRejected FundingStatus = "rejected"
)

type FundingRequest struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Kind          FundingKind     `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Status        FundingStatus   `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Reference     string          `json:"reference,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	AccountName   string          `json:"account_name,omitempty"`
	BankName      string          `json:"bank_name,omitempty"`
	AdminID       string          `json:"admin_id,omitempty"`
	AdminNote     string          `json:"admin_note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Delta is the signed ledger movement applied when the request is approved.
func (r FundingRequest) Delta() decimal.Decimal {
	if r.Kind == FundingWithdrawal {
		return r.Amount.Neg()
	}
	return r.Amount
}

type FundingResolution struct {
	RequestID string
	Approve   bool
	AdminID   string
	Note      string
	At        time.Time
}

func (r FundingResolution) Status() FundingStatus {
	if r.Approve {
		return FundingApproved
	}
	return FundingRejected
}
