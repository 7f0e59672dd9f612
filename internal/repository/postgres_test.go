package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmart/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestStore needs DATABASE_URL pointing at a disposable database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, dsn, "up"))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE notifications, funding_requests, disputes, transactions, items, categories, users CASCADE`)
	require.NoError(t, err)

	s := New(pool)
	for _, id := range []string{"buyer", "other", "seller"} {
		_, err := s.CreateUser(ctx, model.User{ID: id, Balance: decimal.RequireFromString("20.00"), CreatedAt: t0, UpdatedAt: t0})
		require.NoError(t, err)
	}
	_, err = s.UpsertCategory(ctx, model.Category{
		ID: "gmail", Name: "Gmail", Slug: "gmail",
		BuyPrice: decimal.RequireFromString("8.00"), SellPrice: decimal.RequireFromString("12.99"),
		IsActive: true, CreatedAt: t0,
	})
	require.NoError(t, err)
	return s
}

func addItems(t *testing.T, s *Store, n int) {
	t.Helper()
	items := make([]model.Item, n)
	for i := range items {
		items[i] = model.Item{
			ID: fmt.Sprintf("item-%02d", i), SellerID: "seller", CategoryID: "gmail",
			Login: fmt.Sprintf("acct%02d@gmail.com", i), Password: "pw",
			IsAvailable: true, CreatedAt: t0,
		}
	}
	require.NoError(t, s.AddItems(context.Background(), items))
}

func order(buyer string) model.PurchaseOrder {
	return model.PurchaseOrder{
		BuyerID: buyer, SellerID: "seller", CategoryID: "gmail", Quantity: 1,
		UnitPrice: decimal.RequireFromString("12.99"),
		Deadline:  t0.Add(24 * time.Hour), At: t0,
	}
}

func TestPostgres_PurchaseAndSettle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItems(t, s, 2)

	p, err := s.Purchase(ctx, order("buyer"))
	require.NoError(t, err)
	require.Len(t, p.Transactions, 1)
	assert.Equal(t, "item-00", p.Items[0].ID)

	buyer, err := s.User(ctx, "buyer")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7.01").Equal(buyer.Balance))

	_, err = s.Purchase(ctx, order("buyer"))
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	stock, err := s.AvailableStock(ctx, "gmail")
	require.NoError(t, err)
	assert.Equal(t, []model.SellerStock{{SellerID: "seller", Available: 1}}, stock)

	due, err := s.DueTransactions(ctx, t0.Add(24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	settle := model.Settlement{
		TransactionID: due[0].ID,
		From:          model.TransactionPending,
		To:            model.TransactionVerified,
		CreditParty:   "seller",
		CreditAmount:  decimal.RequireFromString("8.00"),
		At:            t0.Add(25 * time.Hour),
	}
	settled, err := s.Settle(ctx, settle)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionVerified, settled.Status)

	_, err = s.Settle(ctx, settle)
	assert.ErrorIs(t, err, model.ErrInvalidState)
	settle.TransactionID = "missing"
	_, err = s.Settle(ctx, settle)
	assert.ErrorIs(t, err, model.ErrNotFound)

	seller, err := s.User(ctx, "seller")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("28.00").Equal(seller.Balance))
}

func TestPostgres_LastItemSoldOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItems(t, s, 1)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, buyer := range []string{"buyer", "other"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Purchase(ctx, order(buyer))
		}()
	}
	wg.Wait()

	var ok, soldOut int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrInsufficientInventory):
			soldOut++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, soldOut)
}

func TestPostgres_ConcurrentAdjustConservesBalance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	deltas := []string{"1.25", "-0.50", "3.00", "-2.75", "0.01"}
	const rounds = 20

	want := decimal.RequireFromString("20.00")
	errs := make(chan error, rounds*len(deltas))
	var wg sync.WaitGroup
	for r := 0; r < rounds; r++ {
		for _, d := range deltas {
			delta := decimal.RequireFromString(d)
			want = want.Add(delta)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Adjust(ctx, "buyer", delta)
				errs <- err
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	u, err := s.User(ctx, "buyer")
	require.NoError(t, err)
	assert.True(t, want.Equal(u.Balance), "want %s got %s", want, u.Balance)
}

func TestPostgres_CategoriesEmptyIsNotNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `DELETE FROM categories`)
	require.NoError(t, err)

	cats, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.NotNil(t, cats)
	assert.Empty(t, cats)
}

func TestPostgres_StatsAndInventory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItems(t, s, 3)

	first, err := s.Purchase(ctx, order("buyer"))
	require.NoError(t, err)
	_, err = s.Purchase(ctx, order("other"))
	require.NoError(t, err)
	_, err = s.Settle(ctx, model.Settlement{
		TransactionID: first.Transactions[0].ID,
		From:          model.TransactionPending,
		To:            model.TransactionVerified,
		CreditParty:   "seller",
		CreditAmount:  decimal.RequireFromString("8.00"),
		At:            t0.Add(time.Hour),
	})
	require.NoError(t, err)

	tally, err := s.SellerTally(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, 2, tally.Count)
	assert.Equal(t, 1, tally.Pending)
	assert.Equal(t, 1, tally.Verified)
	assert.True(t, decimal.RequireFromString("25.98").Equal(tally.Amount), tally.Amount.String())

	buyer, err := s.BuyerTally(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, 1, buyer.Count)
	assert.Equal(t, 100.0, buyer.SuccessRate())

	lines, err := s.SellerInventory(ctx, "seller")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Available)
	assert.Equal(t, 1, lines[0].Sales)
	assert.True(t, decimal.RequireFromString("12.99").Equal(lines[0].Revenue), lines[0].Revenue.String())

	recent, err := s.RecentTransactions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
	ds, err := s.RecentDisputes(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestPostgres_DisputeLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItems(t, s, 1)

	p, err := s.Purchase(ctx, order("buyer"))
	require.NoError(t, err)
	tx := p.Transactions[0]

	d := model.Dispute{ID: "d1", TransactionID: tx.ID, BuyerID: "buyer", SellerID: "seller",
		IssueType: "cannot-login", Status: model.DisputePending, CreatedAt: t0.Add(time.Hour)}
	_, err = s.OpenDispute(ctx, d)
	require.NoError(t, err)
	d.ID = "d2"
	_, err = s.OpenDispute(ctx, d)
	assert.ErrorIs(t, err, model.ErrInvalidState)

	stale, err := s.StaleDisputes(ctx, t0.Add(4*time.Hour).Add(-3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	refunded, err := s.Settle(ctx, model.Settlement{
		TransactionID: tx.ID,
		From:          model.TransactionDisputed,
		To:            model.TransactionRefunded,
		CreditParty:   "buyer",
		CreditAmount:  tx.Amount,
		DisputeID:     "d1",
		DisputeStatus: model.DisputeAccepted,
		Resolution:    "auto",
		At:            t0.Add(4 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionRefunded, refunded.Status)
	assert.True(t, refunded.IsDisputed)

	got, err := s.Dispute(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.DisputeAccepted, got.Status)
	assert.True(t, got.IsResolved)

	buyer, _ := s.User(ctx, "buyer")
	assert.True(t, decimal.RequireFromString("20.00").Equal(buyer.Balance))
}

func TestPostgres_FundingAndNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r, err := s.CreateFundingRequest(ctx, model.FundingRequest{
		ID: "w1", UserID: "buyer", Kind: model.FundingWithdrawal, Amount: decimal.RequireFromString("25"),
		Status: model.FundingPending, PaymentMethod: "bank", CreatedAt: t0,
	})
	require.NoError(t, err)
	_, err = s.ResolveFundingRequest(ctx, model.FundingResolution{RequestID: r.ID, Approve: true, AdminID: "admin", At: t0})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	r, err = s.ResolveFundingRequest(ctx, model.FundingResolution{RequestID: r.ID, Approve: false, AdminID: "admin", Note: "too much", At: t0})
	require.NoError(t, err)
	assert.Equal(t, model.FundingRejected, r.Status)

	n := model.Notification{ID: "n1", UserID: "buyer", Type: model.NotifyRefund, Title: "t", Message: "m", CreatedAt: t0}
	require.NoError(t, s.CreateNotification(ctx, n))
	require.NoError(t, s.CreateNotification(ctx, n))
	count, err := s.UnreadCount(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	marked, err := s.MarkAllRead(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
}
