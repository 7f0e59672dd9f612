package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type itemRequest struct {
	CategoryID    string `json:"category_id" validate:"required,max=64"`
	Login         string `json:"login" validate:"required,max=320"`
	Password      string `json:"password" validate:"required,max=256"`
	RecoveryEmail string `json:"recovery_email" validate:"omitempty,email"`
}

type addItemsRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

type purchaseRequest struct {
	SellerID   string `json:"seller_id" validate:"required,max=64"`
	CategoryID string `json:"category_id" validate:"required,max=64"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
}

type disputeRequest struct {
	IssueType   string `json:"issue_type" validate:"required,max=64"`
	Description string `json:"description" validate:"max=2000"`
}

type respondRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

type depositRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"required,max=16"`
	Reference     string          `json:"reference" validate:"max=128"`
}

type withdrawalRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"required,max=16"`
	AccountNumber string          `json:"account_number" validate:"required,max=64"`
	AccountName   string          `json:"account_name" validate:"required,max=128"`
	BankName      string          `json:"bank_name" validate:"max=128"`
}

type createUserRequest struct {
	ID       string `json:"id" validate:"omitempty,max=64"`
	FullName string `json:"full_name" validate:"required,max=128"`
}

type categoryRequest struct {
	Name        string          `json:"name" validate:"required,max=128"`
	Slug        string          `json:"slug" validate:"omitempty,max=128"`
	Description string          `json:"description" validate:"max=2000"`
	BuyPrice    decimal.Decimal `json:"buy_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	IsActive    *bool           `json:"is_active"`
}

type resolveRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Note    string `json:"note" validate:"max=500"`
}

type adjustRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// decode reads a JSON body into dst and runs its validation tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid_json: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}
