package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"mailmart/internal/model"
)

// LedgerStore owns party balances. Adjust is an atomic in-place increment.
type LedgerStore interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	User(ctx context.Context, id string) (model.User, error)
	Adjust(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error)
}

type CatalogStore interface {
	Category(ctx context.Context, id string) (model.Category, error)
	Categories(ctx context.Context) ([]model.Category, error)
	UpsertCategory(ctx context.Context, c model.Category) (model.Category, error)
}

type InventoryStore interface {
	AddItems(ctx context.Context, items []model.Item) error
	AvailableStock(ctx context.Context, categoryID string) ([]model.SellerStock, error)
	Item(ctx context.Context, id string) (model.Item, error)
	// SellerInventory has one line per category, including empty ones.
	SellerInventory(ctx context.Context, sellerID string) ([]model.InventoryLine, error)
}

// TransactionStore implements the purchase and settlement units of work.
//
// Purchase reserves order.Quantity items, debits the buyer and records one
// pending transaction per item, or changes nothing. Settle applies a
// transition only if the transaction is still in s.From and returns
// model.ErrInvalidState otherwise.
type TransactionStore interface {
	Purchase(ctx context.Context, order model.PurchaseOrder) (model.Purchase, error)
	Transaction(ctx context.Context, id string) (model.Transaction, error)
	TransactionsByBuyer(ctx context.Context, buyerID string) ([]model.Transaction, error)
	TransactionsBySeller(ctx context.Context, sellerID string) ([]model.Transaction, error)
	Settle(ctx context.Context, s model.Settlement) (model.Transaction, error)
	DueTransactions(ctx context.Context, now time.Time, limit int) ([]model.Transaction, error)
	RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error)
	// Tallies leave refunded transactions out of Amount.
	BuyerTally(ctx context.Context, buyerID string) (model.TransactionTally, error)
	SellerTally(ctx context.Context, sellerID string) (model.TransactionTally, error)
}

// DisputeStore.OpenDispute inserts d and moves its transaction from pending
// to disputed in one unit of work.
type DisputeStore interface {
	OpenDispute(ctx context.Context, d model.Dispute) (model.Dispute, error)
	Dispute(ctx context.Context, id string) (model.Dispute, error)
	DisputesBySeller(ctx context.Context, sellerID string) ([]model.Dispute, error)
	StaleDisputes(ctx context.Context, createdBefore time.Time, limit int) ([]model.Dispute, error)
	RecentDisputes(ctx context.Context, limit int) ([]model.Dispute, error)
}

type FundingStore interface {
	CreateFundingRequest(ctx context.Context, r model.FundingRequest) (model.FundingRequest, error)
	FundingRequest(ctx context.Context, id string) (model.FundingRequest, error)
	FundingRequests(ctx context.Context, userID string, kind model.FundingKind) ([]model.FundingRequest, error)
	ResolveFundingRequest(ctx context.Context, r model.FundingResolution) (model.FundingRequest, error)
}

// NotificationStore.CreateNotification must ignore a duplicate ID.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n model.Notification) error
	Notifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type Store interface {
	LedgerStore
	CatalogStore
	InventoryStore
	TransactionStore
	DisputeStore
	FundingStore
	NotificationStore
}
