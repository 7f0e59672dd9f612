// Package memory is a process-local store. Every operation runs under one
// mutex, so each unit of work is trivially atomic.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mailmart/internal/model"
	"mailmart/internal/service"
)

var _ service.Store = (*Store)(nil)

type Store struct {
	mu sync.Mutex

	users         map[string]model.User
	categories    map[string]model.Category
	items         map[string]model.Item
	itemOrder     []string
	transactions  map[string]model.Transaction
	disputes      map[string]model.Dispute
	disputeByTx   map[string]string
	funding       map[string]model.FundingRequest
	notifications map[string]model.Notification
}

func New() *Store {
	return &Store{
		users:         make(map[string]model.User),
		categories:    make(map[string]model.Category),
		items:         make(map[string]model.Item),
		transactions:  make(map[string]model.Transaction),
		disputes:      make(map[string]model.Dispute),
		disputeByTx:   make(map[string]string),
		funding:       make(map[string]model.FundingRequest),
		notifications: make(map[string]model.Notification),
	}
}

// --- ledger ---

func (s *Store) CreateUser(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return model.User{}, fmt.Errorf("%w: user %s already exists", model.ErrInvalidState, u.ID)
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) User(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (s *Store) Adjust(_ context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.credit(userID, delta, time.Now().UTC()) {
		return decimal.Zero, model.ErrNotFound
	}
	return s.users[userID].Balance, nil
}

// credit must be called with mu held.
func (s *Store) credit(userID string, delta decimal.Decimal, at time.Time) bool {
	u, ok := s.users[userID]
	if !ok {
		return false
	}
	u.Balance = u.Balance.Add(delta)
	u.UpdatedAt = at
	s.users[userID] = u
	return true
}

// --- catalog ---

func (s *Store) Category(_ context.Context, id string) (model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return model.Category{}, model.ErrNotFound
	}
	return c, nil
}

func (s *Store) Categories(_ context.Context) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpsertCategory(_ context.Context, c model.Category) (model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.categories[c.ID]; ok {
		c.CreatedAt = prev.CreatedAt
	}
	s.categories[c.ID] = c
	return c, nil
}

// --- inventory ---

func (s *Store) AddItems(_ context.Context, items []model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range items {
		if _, ok := s.items[it.ID]; ok {
			return fmt.Errorf("%w: item %s already exists", model.ErrInvalidState, it.ID)
		}
	}
	for _, it := range items {
		s.items[it.ID] = it
		s.itemOrder = append(s.itemOrder, it.ID)
	}
	return nil
}

func (s *Store) AvailableStock(_ context.Context, categoryID string) ([]model.SellerStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, id := range s.itemOrder {
		it := s.items[id]
		if it.CategoryID == categoryID && it.IsAvailable && !it.IsSold {
			counts[it.SellerID]++
		}
	}
	out := make([]model.SellerStock, 0, len(counts))
	for seller, n := range counts {
		out = append(out, model.SellerStock{SellerID: seller, Available: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SellerID < out[j].SellerID })
	return out, nil
}

func (s *Store) Item(_ context.Context, id string) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return model.Item{}, model.ErrNotFound
	}
	return it, nil
}

func (s *Store) SellerInventory(_ context.Context, sellerID string) ([]model.InventoryLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make(map[string]*model.InventoryLine, len(s.categories))
	out := make([]model.InventoryLine, 0, len(s.categories))
	for _, c := range s.categories {
		lines[c.ID] = &model.InventoryLine{Category: c, Revenue: decimal.Zero}
	}
	for _, it := range s.items {
		if l, ok := lines[it.CategoryID]; ok && it.SellerID == sellerID && it.IsAvailable && !it.IsSold {
			l.Available++
		}
	}
	for _, t := range s.transactions {
		if l, ok := lines[t.CategoryID]; ok && t.SellerID == sellerID && t.Status == model.TransactionVerified {
			l.Sales++
			l.Revenue = l.Revenue.Add(t.Amount)
		}
	}
	for _, l := range lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category.Name < out[j].Category.Name })
	return out, nil
}

// --- transactions ---

func (s *Store) Purchase(_ context.Context, o model.PurchaseOrder) (model.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buyer, ok := s.users[o.BuyerID]
	if !ok {
		return model.Purchase{}, fmt.Errorf("buyer %s: %w", o.BuyerID, model.ErrNotFound)
	}
	if _, ok := s.users[o.SellerID]; !ok {
		return model.Purchase{}, fmt.Errorf("seller %s: %w", o.SellerID, model.ErrNotFound)
	}

	picked := make([]string, 0, o.Quantity)
	for _, id := range s.itemOrder {
		it := s.items[id]
		if it.SellerID == o.SellerID && it.CategoryID == o.CategoryID && it.IsAvailable && !it.IsSold {
			picked = append(picked, id)
			if len(picked) == o.Quantity {
				break
			}
		}
	}
	if len(picked) < o.Quantity {
		return model.Purchase{}, model.ErrInsufficientInventory
	}
	total := o.Total()
	if buyer.Balance.LessThan(total) {
		return model.Purchase{}, model.ErrInsufficientFunds
	}

	s.credit(o.BuyerID, total.Neg(), o.At)
	p := model.Purchase{Total: total, Deadline: o.Deadline}
	for _, id := range picked {
		it := s.items[id]
		it.IsAvailable = false
		it.IsSold = true
		s.items[id] = it

		t := model.Transaction{
			ID:                   uuid.NewString(),
			BuyerID:              o.BuyerID,
			SellerID:             o.SellerID,
			ItemID:               it.ID,
			CategoryID:           o.CategoryID,
			Amount:               o.UnitPrice,
			Status:               model.TransactionPending,
			VerificationDeadline: o.Deadline,
			CreatedAt:            o.At,
			UpdatedAt:            o.At,
		}
		s.transactions[t.ID] = t
		p.Transactions = append(p.Transactions, t)
		p.Items = append(p.Items, it)
	}
	return p, nil
}

func (s *Store) Transaction(_ context.Context, id string) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok {
		return model.Transaction{}, model.ErrNotFound
	}
	return t, nil
}

func (s *Store) TransactionsByBuyer(_ context.Context, buyerID string) ([]model.Transaction, error) {
	return s.filterTransactions(func(t model.Transaction) bool { return t.BuyerID == buyerID }), nil
}

func (s *Store) TransactionsBySeller(_ context.Context, sellerID string) ([]model.Transaction, error) {
	return s.filterTransactions(func(t model.Transaction) bool { return t.SellerID == sellerID }), nil
}

func (s *Store) RecentTransactions(_ context.Context, limit int) ([]model.Transaction, error) {
	out := s.filterTransactions(func(model.Transaction) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) BuyerTally(_ context.Context, buyerID string) (model.TransactionTally, error) {
	return s.tally(func(t model.Transaction) bool { return t.BuyerID == buyerID }), nil
}

func (s *Store) SellerTally(_ context.Context, sellerID string) (model.TransactionTally, error) {
	return s.tally(func(t model.Transaction) bool { return t.SellerID == sellerID }), nil
}

func (s *Store) tally(keep func(model.Transaction) bool) model.TransactionTally {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := model.TransactionTally{Amount: decimal.Zero}
	for _, t := range s.transactions {
		if !keep(t) {
			continue
		}
		out.Count++
		switch t.Status {
		case model.TransactionPending:
			out.Pending++
		case model.TransactionVerified:
			out.Verified++
		}
		if t.Status != model.TransactionRefunded {
			out.Amount = out.Amount.Add(t.Amount)
		}
	}
	return out
}

func (s *Store) filterTransactions(keep func(model.Transaction) bool) []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Transaction, 0)
	for _, t := range s.transactions {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) Settle(_ context.Context, st model.Settlement) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[st.TransactionID]
	if !ok {
		return model.Transaction{}, model.ErrNotFound
	}
	if t.Status != st.From {
		return model.Transaction{}, fmt.Errorf("%w: transaction is %s, expected %s", model.ErrInvalidState, t.Status, st.From)
	}

	var d model.Dispute
	if st.DisputeID != "" {
		d, ok = s.disputes[st.DisputeID]
		if !ok {
			return model.Transaction{}, fmt.Errorf("dispute %s: %w", st.DisputeID, model.ErrNotFound)
		}
		if d.Status != model.DisputePending {
			return model.Transaction{}, fmt.Errorf("%w: dispute is %s", model.ErrInvalidState, d.Status)
		}
	}
	if _, ok := s.users[st.CreditParty]; !ok {
		return model.Transaction{}, fmt.Errorf("party %s: %w", st.CreditParty, model.ErrNotFound)
	}

	s.credit(st.CreditParty, st.CreditAmount, st.At)
	t = st.Apply(t)
	s.transactions[t.ID] = t
	if st.DisputeID != "" {
		d.Status = st.DisputeStatus
		d.SellerResponse = st.Resolution
		d.IsResolved = true
		d.UpdatedAt = st.At
		s.disputes[d.ID] = d
	}
	return t, nil
}

func (s *Store) DueTransactions(_ context.Context, now time.Time, limit int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Transaction, 0)
	for _, t := range s.transactions {
		if t.Status == model.TransactionPending && !t.VerificationDeadline.After(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].VerificationDeadline.Before(out[j].VerificationDeadline)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- disputes ---

func (s *Store) OpenDispute(_ context.Context, d model.Dispute) (model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[d.TransactionID]
	if !ok {
		return model.Dispute{}, model.ErrNotFound
	}
	if _, exists := s.disputeByTx[t.ID]; exists {
		return model.Dispute{}, fmt.Errorf("%w: transaction %s already disputed", model.ErrInvalidState, t.ID)
	}
	if t.Status != model.TransactionPending {
		return model.Dispute{}, fmt.Errorf("%w: transaction is %s", model.ErrInvalidState, t.Status)
	}

	t.Status = model.TransactionDisputed
	t.IsDisputed = true
	t.UpdatedAt = d.CreatedAt
	s.transactions[t.ID] = t
	s.disputes[d.ID] = d
	s.disputeByTx[t.ID] = d.ID
	return d, nil
}

func (s *Store) Dispute(_ context.Context, id string) (model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.disputes[id]
	if !ok {
		return model.Dispute{}, model.ErrNotFound
	}
	return d, nil
}

func (s *Store) DisputesBySeller(_ context.Context, sellerID string) ([]model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Dispute, 0)
	for _, d := range s.disputes {
		if d.SellerID == sellerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RecentDisputes(_ context.Context, limit int) ([]model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Dispute, 0, len(s.disputes))
	for _, d := range s.disputes {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) StaleDisputes(_ context.Context, createdBefore time.Time, limit int) ([]model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Dispute, 0)
	for _, d := range s.disputes {
		if d.Status == model.DisputePending && !d.CreatedAt.After(createdBefore) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- funding ---

func (s *Store) CreateFundingRequest(_ context.Context, r model.FundingRequest) (model.FundingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[r.UserID]; !ok {
		return model.FundingRequest{}, model.ErrNotFound
	}
	s.funding[r.ID] = r
	return r, nil
}

func (s *Store) FundingRequest(_ context.Context, id string) (model.FundingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.funding[id]
	if !ok {
		return model.FundingRequest{}, model.ErrNotFound
	}
	return r, nil
}

// FundingRequests lists requests of kind; an empty userID lists everyone's.
func (s *Store) FundingRequests(_ context.Context, userID string, kind model.FundingKind) ([]model.FundingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.FundingRequest, 0)
	for _, r := range s.funding {
		if r.Kind == kind && (userID == "" || r.UserID == userID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ResolveFundingRequest(_ context.Context, res model.FundingResolution) (model.FundingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.funding[res.RequestID]
	if !ok {
		return model.FundingRequest{}, model.ErrNotFound
	}
	if r.Status != model.FundingPending {
		return model.FundingRequest{}, fmt.Errorf("%w: request already %s", model.ErrInvalidState, r.Status)
	}
	if res.Approve {
		u, ok := s.users[r.UserID]
		if !ok {
			return model.FundingRequest{}, model.ErrNotFound
		}
		delta := r.Delta()
		if delta.IsNegative() && u.Balance.Add(delta).IsNegative() {
			return model.FundingRequest{}, model.ErrInsufficientFunds
		}
		s.credit(r.UserID, delta, res.At)
	}

	r.Status = res.Status()
	r.AdminID = res.AdminID
	r.AdminNote = res.Note
	r.UpdatedAt = res.At
	s.funding[r.ID] = r
	return r, nil
}

// --- notifications ---

func (s *Store) CreateNotification(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[n.ID]; ok {
		return nil
	}
	s.notifications[n.ID] = n
	return nil
}

func (s *Store) Notifications(_ context.Context, userID string, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, x := range s.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return model.ErrNotFound
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			s.notifications[id] = n
			marked++
		}
	}
	return marked, nil
}
