package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmart/internal/model"
	"mailmart/internal/service"
)

func TestDashboardStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.Ledger.Adjust(ctx, "buyer", dec("20.00"))
	require.NoError(t, err)

	tx := e.buyOne(t)
	_, err = e.svc.Market.Verify(ctx, tx.ID, "buyer")
	require.NoError(t, err)
	e.buyOne(t)

	buyer, err := e.svc.Market.BuyerStats(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, 2, buyer.TotalPurchases)
	assert.Equal(t, 1, buyer.PendingVerification)
	assert.True(t, dec("25.98").Equal(buyer.TotalSpent), buyer.TotalSpent.String())
	assert.Equal(t, 50.0, buyer.SuccessRate)

	seller, err := e.svc.Market.SellerStats(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, 1, seller.ActiveListings)
	assert.Equal(t, 1, seller.PendingOrders)
	assert.True(t, dec("25.98").Equal(seller.TotalSales), seller.TotalSales.String())
	assert.Equal(t, 50.0, seller.SuccessRate)

	idle, err := e.svc.Market.BuyerStats(ctx, "other")
	require.NoError(t, err)
	assert.Zero(t, idle.TotalPurchases)
	assert.Zero(t, idle.SuccessRate)

	_, err = e.svc.Market.SellerStats(ctx, "nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSellerInventory_HidesEmptyInactiveCategories(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Catalog.Upsert(ctx, model.Category{
		ID: "legacy", Name: "Legacy", BuyPrice: dec("1.00"), SellPrice: dec("2.00"), IsActive: false,
	})
	require.NoError(t, err)
	_, err = e.svc.Catalog.Upsert(ctx, model.Category{
		ID: "outlook", Name: "Outlook", BuyPrice: dec("1.00"), SellPrice: dec("2.00"), IsActive: true,
	})
	require.NoError(t, err)
	tx := e.buyOne(t)
	_, err = e.svc.Market.Verify(ctx, tx.ID, "buyer")
	require.NoError(t, err)

	lines, err := e.svc.Market.SellerInventory(ctx, "seller")
	require.NoError(t, err)
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.Category.ID
	}
	assert.Equal(t, []string{"gmail", "outlook"}, ids)
	assert.Equal(t, 2, lines[0].Available)
	assert.Equal(t, 1, lines[0].Sales)
	assert.True(t, dec("12.99").Equal(lines[0].Revenue))
}

func TestRecentListings_ClampLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.buyOne(t)

	txs, err := e.svc.Market.RecentTransactions(ctx, service.MaxListLimit+1)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	ds, err := e.svc.Disputes.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ds)
}
