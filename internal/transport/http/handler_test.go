package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmart/internal/model"
	"mailmart/internal/repository/memory"
	"mailmart/internal/service"
	"mailmart/internal/worker"
)

const (
	testGatewayToken = "gateway-secret"
	testAdminToken   = "admin-secret"
)

type testAPI struct {
	srv *httptest.Server
	svc *service.Services
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	svc := service.New(store, service.NewStoreNotifier(store), service.DefaultConfig(), service.WithLogger(logger))
	sched := worker.NewSweepScheduler(svc.Sweeper, nil, worker.DefaultSchedulerConfig(), worker.WithSchedulerLogger(logger))

	ctx := context.Background()
	for _, id := range []string{"buyer", "seller"} {
		_, err := svc.Ledger.CreateUser(ctx, id, id)
		require.NoError(t, err)
	}
	_, err := svc.Ledger.Adjust(ctx, "buyer", decimal.RequireFromString("30.00"))
	require.NoError(t, err)
	_, err = svc.Catalog.Upsert(ctx, model.Category{
		ID: "gmail", Name: "Gmail",
		BuyPrice:  decimal.RequireFromString("8.00"),
		SellPrice: decimal.RequireFromString("12.99"),
		IsActive:  true,
	})
	require.NoError(t, err)

	h := NewHandler(svc, sched, testGatewayToken, testAdminToken, logger)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, svc: svc}
}

func (a *testAPI) do(t *testing.T, method, path, token, user string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (a *testAPI) as(t *testing.T, user, method, path string, body any) (*http.Response, []byte) {
	return a.do(t, method, path, testGatewayToken, user, body)
}

func (a *testAPI) admin(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	return a.do(t, method, path, testAdminToken, "", body)
}

func listItems(t *testing.T, a *testAPI, n int) {
	t.Helper()
	items := make([]map[string]string, n)
	for i := range items {
		items[i] = map[string]string{"category_id": "gmail", "login": "acct@gmail.com", "password": "pw"}
	}
	resp, _ := a.as(t, "seller", http.MethodPost, "/api/v1/items", map[string]any{"items": items})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(t, http.MethodGet, "/api/v1/balance", "", "buyer", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/balance", "wrong", "buyer", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/balance", testGatewayToken, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The gateway token does not open admin routes.
	resp, _ = a.do(t, http.MethodPost, "/api/v1/admin/sweep", testGatewayToken, "buyer", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPurchaseAndVerify(t *testing.T) {
	a := newTestAPI(t)
	listItems(t, a, 2)

	resp, body := a.as(t, "buyer", http.MethodGet, "/api/v1/categories/gmail/stock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stock []model.SellerStock
	require.NoError(t, json.Unmarshal(body, &stock))
	require.Len(t, stock, 1)
	assert.Equal(t, 2, stock[0].Available)

	resp, body = a.as(t, "buyer", http.MethodPost, "/api/v1/purchases",
		map[string]any{"seller_id": "seller", "category_id": "gmail", "quantity": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var p model.Purchase
	require.NoError(t, json.Unmarshal(body, &p))
	require.Len(t, p.Transactions, 1)
	txID := p.Transactions[0].ID

	// Credentials are shown to the buyer only.
	resp, body = a.as(t, "buyer", http.MethodGet, "/api/v1/transactions/"+txID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "acct@gmail.com")
	resp, body = a.as(t, "seller", http.MethodGet, "/api/v1/transactions/"+txID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), "acct@gmail.com")

	resp, _ = a.as(t, "seller", http.MethodPost, "/api/v1/transactions/"+txID+"/verify", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = a.as(t, "buyer", http.MethodPost, "/api/v1/transactions/"+txID+"/verify", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = a.as(t, "buyer", http.MethodPost, "/api/v1/transactions/"+txID+"/verify", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	bal, err := a.svc.Ledger.Balance(context.Background(), "seller")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("8.00").Equal(bal), bal.String())

	resp, body = a.as(t, "seller", http.MethodGet, "/api/v1/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"unread":2}`, string(body))
}

func TestPurchaseErrors(t *testing.T) {
	a := newTestAPI(t)
	listItems(t, a, 1)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing quantity", map[string]any{"seller_id": "seller", "category_id": "gmail"}, http.StatusBadRequest},
		{"unknown field", map[string]any{"seller_id": "seller", "category_id": "gmail", "quantity": 1, "price": 1}, http.StatusBadRequest},
		{"too many", map[string]any{"seller_id": "seller", "category_id": "gmail", "quantity": 51}, http.StatusBadRequest},
		{"unknown category", map[string]any{"seller_id": "seller", "category_id": "yahoo", "quantity": 1}, http.StatusNotFound},
		{"short inventory", map[string]any{"seller_id": "seller", "category_id": "gmail", "quantity": 2}, http.StatusUnprocessableEntity},
		{"own inventory", map[string]any{"seller_id": "buyer", "category_id": "gmail", "quantity": 1}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := a.as(t, "buyer", http.MethodPost, "/api/v1/purchases", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}
}

func TestDisputeFlow(t *testing.T) {
	a := newTestAPI(t)
	listItems(t, a, 1)

	_, body := a.as(t, "buyer", http.MethodPost, "/api/v1/purchases",
		map[string]any{"seller_id": "seller", "category_id": "gmail", "quantity": 1})
	var p model.Purchase
	require.NoError(t, json.Unmarshal(body, &p))
	txID := p.Transactions[0].ID

	resp, body := a.as(t, "buyer", http.MethodPost, "/api/v1/transactions/"+txID+"/dispute",
		map[string]string{"issue_type": "wrong_password", "description": "cannot log in"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var d model.Dispute
	require.NoError(t, json.Unmarshal(body, &d))

	resp, _ = a.as(t, "buyer", http.MethodPost, "/api/v1/transactions/"+txID+"/dispute",
		map[string]string{"issue_type": "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = a.as(t, "seller", http.MethodPost, "/api/v1/disputes/"+d.ID+"/respond",
		map[string]string{"action": "maybe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.as(t, "seller", http.MethodPost, "/api/v1/disputes/"+d.ID+"/respond",
		map[string]string{"action": "accept"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = a.as(t, "buyer", http.MethodGet, "/api/v1/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal struct {
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(body, &bal))
	assert.True(t, decimal.RequireFromString("30.00").Equal(bal.Balance), bal.Balance.String())
}

func TestFundingApproval(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.as(t, "seller", http.MethodPost, "/api/v1/deposits",
		map[string]any{"amount": "50.00", "payment_method": "bkash", "reference": "TX1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var fr model.FundingRequest
	require.NoError(t, json.Unmarshal(body, &fr))

	resp, _ = a.admin(t, http.MethodPost, "/api/v1/admin/funding/"+fr.ID+"/resolve", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.admin(t, http.MethodPost, "/api/v1/admin/funding/"+fr.ID+"/resolve", map[string]any{"approve": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = a.admin(t, http.MethodPost, "/api/v1/admin/funding/"+fr.ID+"/resolve", map[string]any{"approve": true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = a.as(t, "seller", http.MethodGet, "/api/v1/deposits", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []model.FundingRequest
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, model.FundingApproved, list[0].Status)

	resp, _ = a.as(t, "seller", http.MethodPost, "/api/v1/withdrawals",
		map[string]any{"amount": "80.00", "payment_method": "bank", "account_number": "1", "account_name": "S"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAdminSweep(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.admin(t, http.MethodPost, "/api/v1/admin/sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var res service.SweepResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Empty())

	resp, body = a.admin(t, http.MethodGet, "/api/v1/admin/sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st worker.SweepStatus
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 1, st.Runs)
}

func TestDashboards(t *testing.T) {
	a := newTestAPI(t)
	listItems(t, a, 3)

	_, body := a.as(t, "buyer", http.MethodPost, "/api/v1/purchases",
		map[string]any{"seller_id": "seller", "category_id": "gmail", "quantity": 2})
	var p model.Purchase
	require.NoError(t, json.Unmarshal(body, &p))
	resp, _ := a.as(t, "buyer", http.MethodPost, "/api/v1/transactions/"+p.Transactions[0].ID+"/verify", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = a.as(t, "buyer", http.MethodGet, "/api/v1/dashboard/buyer", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var buyer struct {
		Stats        model.BuyerStats    `json:"stats"`
		Transactions []model.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(body, &buyer))
	assert.Equal(t, 2, buyer.Stats.TotalPurchases)
	assert.Equal(t, 1, buyer.Stats.PendingVerification)
	assert.Equal(t, 50.0, buyer.Stats.SuccessRate)
	assert.Len(t, buyer.Transactions, 2)

	resp, body = a.as(t, "seller", http.MethodGet, "/api/v1/dashboard/seller", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var seller struct {
		Stats        model.SellerStats     `json:"stats"`
		Inventory    []model.InventoryLine `json:"inventory"`
		Transactions []model.Transaction   `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(body, &seller))
	assert.Equal(t, 1, seller.Stats.ActiveListings)
	assert.Equal(t, 1, seller.Stats.PendingOrders)
	assert.True(t, decimal.RequireFromString("25.98").Equal(seller.Stats.TotalSales), seller.Stats.TotalSales.String())
	require.Len(t, seller.Inventory, 1)
	assert.Equal(t, 1, seller.Inventory[0].Available)
	assert.Equal(t, 1, seller.Inventory[0].Sales)
	assert.Len(t, seller.Transactions, 2)

	resp, body = a.as(t, "seller", http.MethodGet, "/api/v1/inventory", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lines []model.InventoryLine
	require.NoError(t, json.Unmarshal(body, &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "gmail", lines[0].Category.ID)

	resp, _ = a.as(t, "ghost", http.MethodGet, "/api/v1/dashboard/seller", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminMonitoring(t *testing.T) {
	a := newTestAPI(t)
	listItems(t, a, 2)
	_, body := a.as(t, "buyer", http.MethodPost, "/api/v1/purchases",
		map[string]any{"seller_id": "seller", "category_id": "gmail", "quantity": 2})
	var p model.Purchase
	require.NoError(t, json.Unmarshal(body, &p))
	resp, _ := a.as(t, "buyer", http.MethodPost, "/api/v1/transactions/"+p.Transactions[1].ID+"/dispute",
		map[string]string{"issue_type": "wrong_password"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = a.admin(t, http.MethodGet, "/api/v1/admin/transactions?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txs []model.Transaction
	require.NoError(t, json.Unmarshal(body, &txs))
	assert.Len(t, txs, 1)

	resp, body = a.admin(t, http.MethodGet, "/api/v1/admin/disputes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ds []model.Dispute
	require.NoError(t, json.Unmarshal(body, &ds))
	require.Len(t, ds, 1)
	assert.Equal(t, p.Transactions[1].ID, ds[0].TransactionID)

	resp, _ = a.admin(t, http.MethodGet, "/api/v1/admin/transactions?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.as(t, "buyer", http.MethodGet, "/api/v1/admin/transactions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
