package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailmart/internal/model"
	"mailmart/internal/service"
	"mailmart/internal/worker"
)

// SweepTrigger is satisfied by *worker.SweepScheduler.
type SweepTrigger interface {
	RunNow(ctx context.Context) (service.SweepResult, error)
	Status() worker.SweepStatus
}

type Handler struct {
	svc          *service.Services
	sweeper      SweepTrigger
	gatewayToken string
	adminToken   string
	logger       *slog.Logger
}

func NewHandler(svc *service.Services, sweeper SweepTrigger, gatewayToken, adminToken string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:          svc,
		sweeper:      sweeper,
		gatewayToken: gatewayToken,
		adminToken:   adminToken,
		logger:       logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(instrument)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	h.Register(r)
	return r
}

func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(adminAuth(h.adminToken))
	admin.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/adjust", h.AdjustBalance).Methods(http.MethodPost)
	admin.HandleFunc("/categories/{id}", h.UpsertCategory).Methods(http.MethodPut)
	admin.HandleFunc("/transactions", h.RecentTransactions).Methods(http.MethodGet)
	admin.HandleFunc("/disputes", h.RecentDisputes).Methods(http.MethodGet)
	admin.HandleFunc("/funding", h.ListFunding).Methods(http.MethodGet)
	admin.HandleFunc("/funding/{id}/resolve", h.ResolveFunding).Methods(http.MethodPost)
	admin.HandleFunc("/sweep", h.RunSweep).Methods(http.MethodPost)
	admin.HandleFunc("/sweep", h.SweepStatus).Methods(http.MethodGet)

	user := api.NewRoute().Subrouter()
	user.Use(gatewayAuth(h.gatewayToken))
	user.HandleFunc("/categories", h.ListCategories).Methods(http.MethodGet)
	user.HandleFunc("/categories/{id}/stock", h.ListStock).Methods(http.MethodGet)
	user.HandleFunc("/items", h.AddItems).Methods(http.MethodPost)
	user.HandleFunc("/inventory", h.Inventory).Methods(http.MethodGet)
	user.HandleFunc("/dashboard/buyer", h.BuyerDashboard).Methods(http.MethodGet)
	user.HandleFunc("/dashboard/seller", h.SellerDashboard).Methods(http.MethodGet)
	user.HandleFunc("/purchases", h.Purchase).Methods(http.MethodPost)
	user.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	user.HandleFunc("/transactions/{id}", h.GetTransaction).Methods(http.MethodGet)
	user.HandleFunc("/transactions/{id}/verify", h.Verify).Methods(http.MethodPost)
	user.HandleFunc("/transactions/{id}/dispute", h.FileDispute).Methods(http.MethodPost)
	user.HandleFunc("/disputes", h.ListDisputes).Methods(http.MethodGet)
	user.HandleFunc("/disputes/{id}", h.GetDispute).Methods(http.MethodGet)
	user.HandleFunc("/disputes/{id}/respond", h.RespondDispute).Methods(http.MethodPost)
	user.HandleFunc("/balance", h.Balance).Methods(http.MethodGet)
	user.HandleFunc("/deposits", h.RequestDeposit).Methods(http.MethodPost)
	user.HandleFunc("/deposits", h.listOwnFunding(model.FundingDeposit)).Methods(http.MethodGet)
	user.HandleFunc("/withdrawals", h.RequestWithdrawal).Methods(http.MethodPost)
	user.HandleFunc("/withdrawals", h.listOwnFunding(model.FundingWithdrawal)).Methods(http.MethodGet)
	user.HandleFunc("/notifications", h.ListNotifications).Methods(http.MethodGet)
	user.HandleFunc("/notifications/unread-count", h.UnreadCount).Methods(http.MethodGet)
	user.HandleFunc("/notifications/read-all", h.MarkAllRead).Methods(http.MethodPost)
	user.HandleFunc("/notifications/{id}/read", h.MarkRead).Methods(http.MethodPost)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- market ---

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Catalog.Categories(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

func (h *Handler) ListStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.svc.Market.ListAvailable(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stock)
}

func (h *Handler) AddItems(w http.ResponseWriter, r *http.Request) {
	var req addItemsRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	inputs := make([]service.ItemInput, len(req.Items))
	for i, it := range req.Items {
		inputs[i] = service.ItemInput{
			CategoryID:    it.CategoryID,
			Login:         it.Login,
			Password:      it.Password,
			RecoveryEmail: it.RecoveryEmail,
		}
	}
	items, err := h.svc.Market.AddItems(r.Context(), userID(r), inputs)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	respondJSON(w, http.StatusCreated, map[string]any{"item_ids": ids})
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.svc.Market.Purchase(r.Context(), service.PurchaseRequest{
		BuyerID:    userID(r),
		SellerID:   req.SellerID,
		CategoryID: req.CategoryID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	role := service.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = service.RoleBuyer
	}
	txs, err := h.svc.Market.Transactions(r.Context(), userID(r), role)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Market.Transaction(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Market.Verify(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	lines, err := h.svc.Market.SellerInventory(r.Context(), userID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

// --- dashboards ---

func (h *Handler) BuyerDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, id := r.Context(), userID(r)
	stats, err := h.svc.Market.BuyerStats(ctx, id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	txs, err := h.svc.Market.Transactions(ctx, id, service.RoleBuyer)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stats": stats, "transactions": txs})
}

func (h *Handler) SellerDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, id := r.Context(), userID(r)
	stats, err := h.svc.Market.SellerStats(ctx, id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	inventory, err := h.svc.Market.SellerInventory(ctx, id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	txs, err := h.svc.Market.Transactions(ctx, id, service.RoleSeller)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stats": stats, "inventory": inventory, "transactions": txs})
}

// --- disputes ---

func (h *Handler) FileDispute(w http.ResponseWriter, r *http.Request) {
	var req disputeRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := h.svc.Disputes.File(r.Context(), mux.Vars(r)["id"], userID(r), req.IssueType, req.Description)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *Handler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.Disputes.SellerDisputes(r.Context(), userID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

func (h *Handler) GetDispute(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Disputes.Dispute(r.Context(), mux.Vars(r)["id"], userID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) RespondDispute(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.svc.Disputes.Respond(r.Context(), mux.Vars(r)["id"], userID(r), model.DisputeAction(req.Action))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// --- ledger ---

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.svc.Ledger.Balance(r.Context(), userID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"balance": bal})
}

func (h *Handler) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	fr, err := h.svc.Ledger.RequestDeposit(r.Context(), userID(r), service.DepositInput{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Reference:     req.Reference,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, fr)
}

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	fr, err := h.svc.Ledger.RequestWithdrawal(r.Context(), userID(r), service.WithdrawalInput{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		BankName:      req.BankName,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, fr)
}

func (h *Handler) listOwnFunding(kind model.FundingKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := h.svc.Ledger.FundingRequests(r.Context(), userID(r), kind)
		if err != nil {
			h.serviceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// --- notifications ---

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Inbox.List(r.Context(), userID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Inbox.UnreadCount(r.Context(), userID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Inbox.MarkRead(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Inbox.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"marked": n})
}

// --- admin ---

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.svc.Ledger.CreateUser(r.Context(), req.ID, req.FullName)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := mux.Vars(r)["id"]
	bal, err := h.svc.Ledger.Adjust(r.Context(), id, req.Amount)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.logger.Info("admin balance adjustment", "admin_id", adminID(r), "user_id", id, "amount", req.Amount.String())
	respondJSON(w, http.StatusOK, map[string]any{"balance": bal})
}

func (h *Handler) UpsertCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	c, err := h.svc.Catalog.Upsert(r.Context(), model.Category{
		ID:          mux.Vars(r)["id"],
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		BuyPrice:    req.BuyPrice,
		SellPrice:   req.SellPrice,
		IsActive:    active,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	txs, err := h.svc.Market.RecentTransactions(r.Context(), limit)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

func (h *Handler) RecentDisputes(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	ds, err := h.svc.Disputes.Recent(r.Context(), limit)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

// queryLimit reads ?limit=; zero means the service default.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (h *Handler) ListFunding(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := model.FundingKind(q.Get("kind"))
	if kind == "" {
		kind = model.FundingDeposit
	}
	list, err := h.svc.Ledger.FundingRequests(r.Context(), q.Get("user_id"), kind)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) ResolveFunding(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	fr, err := h.svc.Ledger.ResolveFunding(r.Context(), mux.Vars(r)["id"], adminID(r), *req.Approve, req.Note)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fr)
}

func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.RunNow(r.Context())
	if errors.Is(err, worker.ErrSweepInProgress) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("manual sweep failed", "admin_id", adminID(r), "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]any{"result": res, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) SweepStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sweeper.Status())
}

// serviceError maps the model's sentinel errors onto HTTP statuses.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrNotAuthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrInvalidState):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInsufficientFunds), errors.Is(err, model.ErrInsufficientInventory):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
