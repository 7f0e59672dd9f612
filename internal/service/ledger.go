package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mailmart/internal/model"
)

var (
	maxDeposit    = decimal.NewFromInt(1000)
	minWithdrawal = decimal.NewFromInt(5)

	depositMethods    = map[string]bool{"bkash": true, "nagad": true}
	withdrawalMethods = map[string]bool{"bkash": true, "nagad": true, "bank": true}
)

// Ledger exposes balances and the admin-approved funding flows. Money only
// enters or leaves the platform through ResolveFunding and Adjust.
type Ledger struct {
	*base
}

type DepositInput struct {
	Amount        decimal.Decimal
	PaymentMethod string
	Reference     string
}

type WithdrawalInput struct {
	Amount        decimal.Decimal
	PaymentMethod string
	AccountNumber string
	AccountName   string
	BankName      string
}

func (l *Ledger) CreateUser(ctx context.Context, id, fullName string) (model.User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := l.now().UTC()
	return l.store.CreateUser(ctx, model.User{
		ID:        id,
		FullName:  strings.TrimSpace(fullName),
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	u, err := l.store.User(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("user %s: %w", userID, err)
	}
	return u.Balance, nil
}

// Adjust applies a signed manual correction. It enforces no floor.
func (l *Ledger) Adjust(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsZero() || !isCents(delta) {
		return decimal.Zero, fmt.Errorf("%w: adjustment must be a non-zero amount in cents", model.ErrInvalidInput)
	}
	balance, err := l.store.Adjust(ctx, userID, delta)
	if err != nil {
		return decimal.Zero, fmt.Errorf("adjust %s: %w", userID, err)
	}
	l.logger.Info("balance adjusted", "user_id", userID, "delta", delta.String(), "balance", balance.String())
	return balance, nil
}

func (l *Ledger) RequestDeposit(ctx context.Context, userID string, in DepositInput) (model.FundingRequest, error) {
	if !in.Amount.IsPositive() || !isCents(in.Amount) || in.Amount.GreaterThan(maxDeposit) {
		return model.FundingRequest{}, fmt.Errorf("%w: deposit must be between 0.01 and %s", model.ErrInvalidInput, maxDeposit)
	}
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if method != "" && !depositMethods[method] {
		return model.FundingRequest{}, fmt.Errorf("%w: unsupported payment method %q", model.ErrInvalidInput, in.PaymentMethod)
	}
	if _, err := l.store.User(ctx, userID); err != nil {
		return model.FundingRequest{}, fmt.Errorf("user %s: %w", userID, err)
	}

	now := l.now().UTC()
	return l.store.CreateFundingRequest(ctx, model.FundingRequest{
		ID:            uuid.NewString(),
		UserID:        userID,
		Kind:          model.FundingDeposit,
		Amount:        in.Amount,
		Status:        model.FundingPending,
		PaymentMethod: method,
		Reference:     strings.TrimSpace(in.Reference),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// RequestWithdrawal checks the balance at request time; approval re-checks it
// atomically with the debit.
func (l *Ledger) RequestWithdrawal(ctx context.Context, userID string, in WithdrawalInput) (model.FundingRequest, error) {
	if !isCents(in.Amount) || in.Amount.LessThan(minWithdrawal) {
		return model.FundingRequest{}, fmt.Errorf("%w: minimum withdrawal is %s", model.ErrInvalidInput, minWithdrawal)
	}
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if !withdrawalMethods[method] {
		return model.FundingRequest{}, fmt.Errorf("%w: unsupported payment method %q", model.ErrInvalidInput, in.PaymentMethod)
	}
	if strings.TrimSpace(in.AccountNumber) == "" || strings.TrimSpace(in.AccountName) == "" {
		return model.FundingRequest{}, fmt.Errorf("%w: account number and name are required", model.ErrInvalidInput)
	}

	u, err := l.store.User(ctx, userID)
	if err != nil {
		return model.FundingRequest{}, fmt.Errorf("user %s: %w", userID, err)
	}
	if u.Balance.LessThan(in.Amount) {
		return model.FundingRequest{}, model.ErrInsufficientFunds
	}

	now := l.now().UTC()
	return l.store.CreateFundingRequest(ctx, model.FundingRequest{
		ID:            uuid.NewString(),
		UserID:        userID,
		Kind:          model.FundingWithdrawal,
		Amount:        in.Amount,
		Status:        model.FundingPending,
		PaymentMethod: method,
		AccountNumber: strings.TrimSpace(in.AccountNumber),
		AccountName:   strings.TrimSpace(in.AccountName),
		BankName:      strings.TrimSpace(in.BankName),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (l *Ledger) FundingRequests(ctx context.Context, userID string, kind model.FundingKind) ([]model.FundingRequest, error) {
	if kind != model.FundingDeposit && kind != model.FundingWithdrawal {
		return nil, fmt.Errorf("%w: unknown funding kind %q", model.ErrInvalidInput, kind)
	}
	return l.store.FundingRequests(ctx, userID, kind)
}

// ResolveFunding is the admin approval collaborator. Approval moves the
// balance in the same unit of work as the status change.
func (l *Ledger) ResolveFunding(ctx context.Context, requestID, adminID string, approve bool, note string) (model.FundingRequest, error) {
	r, err := l.store.ResolveFundingRequest(ctx, model.FundingResolution{
		RequestID: requestID,
		Approve:   approve,
		AdminID:   adminID,
		Note:      strings.TrimSpace(note),
		At:        l.now().UTC(),
	})
	if err != nil {
		return model.FundingRequest{}, fmt.Errorf("resolve funding request %s: %w", requestID, err)
	}

	l.logger.Info("funding request resolved",
		"request_id", r.ID,
		"kind", r.Kind,
		"status", r.Status,
		"amount", r.Amount.String(),
		"admin_id", adminID,
	)

	typ, title, msg := fundingNotice(r)
	l.notify(ctx, r.UserID, typ, title, msg, r.ID)
	return r, nil
}

func fundingNotice(r model.FundingRequest) (model.NotificationType, string, string) {
	amount := r.Amount.StringFixed(2)
	reason := ""
	if r.AdminNote != "" {
		reason = " Reason: " + r.AdminNote
	}
	switch {
	case r.Kind == model.FundingDeposit && r.Status == model.FundingApproved:
		return model.NotifyDepositApproved, "Deposit Request Approved",
			fmt.Sprintf("Your deposit request for $%s has been approved and added to your balance.", amount)
	case r.Kind == model.FundingDeposit:
		return model.NotifyDepositRejected, "Deposit Request Rejected",
			fmt.Sprintf("Your deposit request for $%s has been rejected.%s", amount, reason)
	case r.Status == model.FundingApproved:
		return model.NotifyWithdrawalApproved, "Withdrawal Request Approved",
			fmt.Sprintf("Your withdrawal request for $%s has been approved and processed.", amount)
	default:
		return model.NotifyWithdrawalRejected, "Withdrawal Request Rejected",
			fmt.Sprintf("Your withdrawal request for $%s has been rejected.%s", amount, reason)
	}
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
