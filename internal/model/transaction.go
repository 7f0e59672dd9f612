package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionVerified TransactionStatus = "verified"
	TransactionDisputed TransactionStatus = "disputed"
	TransactionRefunded TransactionStatus = "refunded"
)

var transactionGraph = map[TransactionStatus][]TransactionStatus{
	TransactionPending:  {TransactionVerified, TransactionDisputed},
	TransactionDisputed: {TransactionVerified, TransactionRefunded},
}

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(s); st {
	case TransactionPending, TransactionVerified, TransactionDisputed, TransactionRefunded:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown transaction status %q", ErrInvalidInput, s)
}

// Terminal reports whether no transition leaves s.
func (s TransactionStatus) Terminal() bool {
	return len(transactionGraph[s]) == 0
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, to := range transactionGraph[s] {
		if to == next {
			return true
		}
	}
	return false
}

type Transaction struct {
	ID                   string            `json:"id"`
	BuyerID              string            `json:"buyer_id"`
	SellerID             string            `json:"seller_id"`
	ItemID               string            `json:"item_id"`
	CategoryID           string            `json:"category_id"`
	Amount               decimal.Decimal   `json:"amount"`
	Status               TransactionStatus `json:"status"`
	IsVerified           bool              `json:"is_verified"`
	IsDisputed           bool              `json:"is_disputed"`
	VerificationDeadline time.Time         `json:"verification_deadline"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// VerificationDue reports whether the buyer's window has closed at now.
func (t Transaction) VerificationDue(now time.Time) bool {
	return t.Status == TransactionPending && !now.Before(t.VerificationDeadline)
}

// PurchaseOrder is the input of an atomic reserve-debit-record operation.
type PurchaseOrder struct {
	BuyerID    string
	SellerID   string
	CategoryID string
	Quantity   int
	UnitPrice  decimal.Decimal
	Deadline   time.Time
	At         time.Time
}

func (o PurchaseOrder) Total() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

type Purchase struct {
	Transactions []Transaction   `json:"transactions"`
	Items        []Item          `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Deadline     time.Time       `json:"verification_deadline"`
}

// Settlement moves a transaction from From to To, credits CreditAmount to
// CreditParty, and optionally finalizes a pending dispute, as one unit.
type Settlement struct {
	TransactionID string
	From          TransactionStatus
	To            TransactionStatus
	CreditParty   string
	CreditAmount  decimal.Decimal

	DisputeID     string
	DisputeStatus DisputeStatus
	Resolution    string

	At time.Time
}

func (s Settlement) Validate() error {
	if !s.From.CanTransitionTo(s.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, s.From, s.To)
	}
	if s.To != TransactionVerified && s.To != TransactionRefunded {
		return fmt.Errorf("%w: settlement must end in verified or refunded, got %s", ErrInvalidState, s.To)
	}
	if s.CreditParty == "" || s.CreditAmount.IsNegative() {
		return ErrInvalidInput
	}
	if s.DisputeID != "" && !DisputePending.CanTransitionTo(s.DisputeStatus) {
		return fmt.Errorf("%w: dispute cannot become %q", ErrInvalidState, s.DisputeStatus)
	}
	return nil
}

// Apply returns t as it looks after the settlement.
func (s Settlement) Apply(t Transaction) Transaction {
	t.Status = s.To
	if s.To == TransactionVerified {
		t.IsVerified = true
	}
	t.UpdatedAt = s.At
	return t
}
