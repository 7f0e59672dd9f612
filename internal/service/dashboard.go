package service

import (
	"context"
	"fmt"

	"mailmart/internal/model"
)

// MaxListLimit caps the admin monitoring listings.
const MaxListLimit = 500

func (m *Market) BuyerStats(ctx context.Context, buyerID string) (model.BuyerStats, error) {
	if _, err := m.store.User(ctx, buyerID); err != nil {
		return model.BuyerStats{}, fmt.Errorf("buyer %s: %w", buyerID, err)
	}
	t, err := m.store.BuyerTally(ctx, buyerID)
	if err != nil {
		return model.BuyerStats{}, err
	}
	return model.BuyerStats{
		TotalPurchases:      t.Count,
		TotalSpent:          t.Amount,
		PendingVerification: t.Pending,
		SuccessRate:         t.SuccessRate(),
	}, nil
}

func (m *Market) SellerStats(ctx context.Context, sellerID string) (model.SellerStats, error) {
	if _, err := m.store.User(ctx, sellerID); err != nil {
		return model.SellerStats{}, fmt.Errorf("seller %s: %w", sellerID, err)
	}
	t, err := m.store.SellerTally(ctx, sellerID)
	if err != nil {
		return model.SellerStats{}, err
	}
	lines, err := m.store.SellerInventory(ctx, sellerID)
	if err != nil {
		return model.SellerStats{}, err
	}
	listings := 0
	for _, l := range lines {
		listings += l.Available
	}
	return model.SellerStats{
		TotalSales:     t.Amount,
		ActiveListings: listings,
		PendingOrders:  t.Pending,
		SuccessRate:    t.SuccessRate(),
	}, nil
}

// SellerInventory lists the seller's stock and verified sales per category.
// Inactive categories only show up while they still hold stock or sales.
func (m *Market) SellerInventory(ctx context.Context, sellerID string) ([]model.InventoryLine, error) {
	if _, err := m.store.User(ctx, sellerID); err != nil {
		return nil, fmt.Errorf("seller %s: %w", sellerID, err)
	}
	lines, err := m.store.SellerInventory(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	out := lines[:0]
	for _, l := range lines {
		if l.Category.IsActive || l.Available > 0 || l.Sales > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

// RecentTransactions is the admin view over every party.
func (m *Market) RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	return m.store.RecentTransactions(ctx, clampLimit(limit))
}

// Recent is the admin view of disputes over every seller.
func (d *Disputes) Recent(ctx context.Context, limit int) ([]model.Dispute, error) {
	return d.store.RecentDisputes(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
