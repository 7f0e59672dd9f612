package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mailmart/internal/model"
)

// Market covers inventory listing, purchasing and buyer verification.
type Market struct {
	*base
}

type ItemInput struct {
	CategoryID    string
	Login         string
	Password      string
	RecoveryEmail string
}

type PurchaseRequest struct {
	BuyerID    string
	SellerID   string
	CategoryID string
	Quantity   int
}

type TransactionView struct {
	model.Transaction
	Category model.Category `json:"category"`
	Item     *model.Item    `json:"item,omitempty"`
}

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// AddItems lists new credential sets for sellerID.
func (m *Market) AddItems(ctx context.Context, sellerID string, inputs []ItemInput) ([]model.Item, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no items", model.ErrInvalidInput)
	}
	if _, err := m.store.User(ctx, sellerID); err != nil {
		return nil, fmt.Errorf("seller %s: %w", sellerID, err)
	}

	checked := make(map[string]bool)
	now := m.now().UTC()
	items := make([]model.Item, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in.Login) == "" || in.Password == "" {
			return nil, fmt.Errorf("%w: login and password are required", model.ErrInvalidInput)
		}
		if !checked[in.CategoryID] {
			if _, err := m.store.Category(ctx, in.CategoryID); err != nil {
				return nil, fmt.Errorf("category %s: %w", in.CategoryID, err)
			}
			checked[in.CategoryID] = true
		}
		items = append(items, model.Item{
			ID:            uuid.NewString(),
			SellerID:      sellerID,
			CategoryID:    in.CategoryID,
			Login:         strings.TrimSpace(in.Login),
			Password:      in.Password,
			RecoveryEmail: strings.TrimSpace(in.RecoveryEmail),
			IsAvailable:   true,
			CreatedAt:     now,
		})
	}

	if err := m.store.AddItems(ctx, items); err != nil {
		return nil, err
	}
	m.logger.Info("items listed", "seller_id", sellerID, "count", len(items))
	return items, nil
}

// ListAvailable groups the purchasable items of a category by seller.
func (m *Market) ListAvailable(ctx context.Context, categoryID string) ([]model.SellerStock, error) {
	if _, err := m.store.Category(ctx, categoryID); err != nil {
		return nil, fmt.Errorf("category %s: %w", categoryID, err)
	}
	return m.store.AvailableStock(ctx, categoryID)
}

// Purchase charges the buyer the category's sell price per item and opens a
// pending transaction for each reserved item.
func (m *Market) Purchase(ctx context.Context, req PurchaseRequest) (model.Purchase, error) {
	if req.Quantity < 1 || req.Quantity > m.cfg.MaxQuantity {
		return model.Purchase{}, fmt.Errorf("%w: quantity must be between 1 and %d", model.ErrInvalidInput, m.cfg.MaxQuantity)
	}
	if req.BuyerID == req.SellerID {
		return model.Purchase{}, fmt.Errorf("%w: cannot buy own inventory", model.ErrNotAuthorized)
	}

	cat, err := m.store.Category(ctx, req.CategoryID)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("category %s: %w", req.CategoryID, err)
	}
	if !cat.IsActive {
		return model.Purchase{}, fmt.Errorf("category %s: %w", req.CategoryID, model.ErrNotFound)
	}

	now := m.now().UTC()
	order := model.PurchaseOrder{
		BuyerID:    req.BuyerID,
		SellerID:   req.SellerID,
		CategoryID: cat.ID,
		Quantity:   req.Quantity,
		UnitPrice:  cat.SellPrice,
		Deadline:   now.Add(m.cfg.VerificationWindow),
		At:         now,
	}
	p, err := m.store.Purchase(ctx, order)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("purchase: %w", err)
	}

	m.logger.Info("purchase completed",
		"buyer_id", req.BuyerID,
		"seller_id", req.SellerID,
		"category_id", cat.ID,
		"quantity", req.Quantity,
		"total", p.Total.String(),
	)

	relatedID := p.Transactions[0].ID
	m.notify(ctx, req.BuyerID, model.NotifyPurchase,
		"Account Purchased Successfully",
		fmt.Sprintf("You have purchased %d account(s) from the %s category. Total amount: $%s", req.Quantity, cat.Name, p.Total.StringFixed(2)),
		relatedID)
	m.notify(ctx, req.SellerID, model.NotifyAccountSold,
		"Account Sold",
		fmt.Sprintf("%d of your account(s) from the %s category have been sold and are awaiting buyer verification.", req.Quantity, cat.Name),
		relatedID)

	return p, nil
}

// Verify is the buyer confirming that the credentials work.
func (m *Market) Verify(ctx context.Context, transactionID, callerID string) (model.Transaction, error) {
	t, err := m.store.Transaction(ctx, transactionID)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, err)
	}
	if t.BuyerID != callerID {
		return model.Transaction{}, model.ErrNotAuthorized
	}
	if t.Status != model.TransactionPending {
		return model.Transaction{}, fmt.Errorf("%w: transaction is %s", model.ErrInvalidState, t.Status)
	}

	settled, err := m.payout(ctx, t, nil, "")
	if err != nil {
		return model.Transaction{}, fmt.Errorf("verify %s: %w", t.ID, err)
	}
	m.logger.Info("transaction verified", "transaction_id", t.ID, "buyer_id", t.BuyerID)
	m.notifyPayout(ctx, settled)
	return settled, nil
}

// Transaction returns t to either party; only the buyer sees the credentials.
func (m *Market) Transaction(ctx context.Context, transactionID, callerID string) (TransactionView, error) {
	t, err := m.store.Transaction(ctx, transactionID)
	if err != nil {
		return TransactionView{}, fmt.Errorf("transaction %s: %w", transactionID, err)
	}
	if t.BuyerID != callerID && t.SellerID != callerID {
		return TransactionView{}, model.ErrNotAuthorized
	}

	view := TransactionView{Transaction: t}
	cat, err := m.store.Category(ctx, t.CategoryID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return TransactionView{}, err
	}
	view.Category = cat
	if t.BuyerID == callerID {
		item, err := m.store.Item(ctx, t.ItemID)
		if err != nil {
			return TransactionView{}, fmt.Errorf("item %s: %w", t.ItemID, err)
		}
		view.Item = &item
	}
	return view, nil
}

func (m *Market) Transactions(ctx context.Context, userID string, role Role) ([]model.Transaction, error) {
	switch role {
	case RoleBuyer:
		return m.store.TransactionsByBuyer(ctx, userID)
	case RoleSeller:
		return m.store.TransactionsBySeller(ctx, userID)
	}
	return nil, fmt.Errorf("%w: unknown role %q", model.ErrInvalidInput, role)
}
