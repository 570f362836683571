package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/escriba-app/escriba/internal/domain"
	"github.com/escriba-app/escriba/internal/handler"
	"github.com/escriba-app/escriba/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SubscriptionHandler serves the subscription billing API: checkout,
// order status, order listing, and the plan catalog.
type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewSubscriptionHandler creates a new subscription API handler.
func NewSubscriptionHandler(subscriptions service.SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		validate:      validator.New(),
		logger:        logger,
	}
}

type checkoutRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	PlanID string `json:"plan_id" validate:"required,uuid"`
}

// CreateCheckout handles POST /api/checkout.
//
// Request:  {"user_id": "...", "plan_id": "..."}
// Response: 201 {"order_id": "...", "checkout_url": "...", "preapproval_id": "..."}
func (h *SubscriptionHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("checkout.create", "Invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	userID, _ := uuid.Parse(req.UserID)
	planID, _ := uuid.Parse(req.PlanID)

	detail, err := h.subscriptions.CreateCheckout(r.Context(), service.CreateCheckoutParams{
		UserID: userID,
		PlanID: planID,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, detail)
}

// orderStatusResponse is the projection returned by GetOrderStatus.
type orderStatusResponse struct {
	OrderID     uuid.UUID          `json:"order_id"`
	Status      domain.OrderStatus `json:"status"`
	AmountCents int64              `json:"amount_cents"`
	Currency    string             `json:"currency"`
	PlanName    string             `json:"plan_name,omitempty"`
	UserEmail   string             `json:"user_email,omitempty"`
	Entitled    bool               `json:"entitled"`
}

// GetOrderStatus handles GET /api/orders/{id}. Reconciles against the
// gateway on the way unless the order is already approved.
func (h *SubscriptionHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("order.status", "Order id must be a UUID"))
		return
	}

	detail, err := h.subscriptions.CheckOrderStatus(r.Context(), orderID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := orderStatusResponse{
		OrderID:     detail.Order.ID,
		Status:      detail.Order.Status,
		AmountCents: detail.Order.AmountCents,
		Currency:    detail.Order.Currency,
	}
	if detail.Plan != nil {
		resp.PlanName = detail.Plan.Name
	}
	if detail.User != nil {
		resp.UserEmail = detail.User.Email
		resp.Entitled = detail.User.HasActiveEntitlement(timeNow())
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListOrders handles GET /api/orders with optional user_id, status, page,
// and limit query parameters.
func (h *SubscriptionHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := service.ListOrdersParams{
		Status: q.Get("status"),
		Page:   parseInt32(q.Get("page"), 1),
		Limit:  parseInt32(q.Get("limit"), 20),
	}
	if raw := q.Get("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			handler.ErrorResponse(w, r, domain.Invalid("order.list", "user_id must be a UUID"))
			return
		}
		params.UserID = &userID
	}

	page, err := h.subscriptions.ListOrders(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// planResponse is the public plan projection; price is exposed in cents to
// keep clients out of float arithmetic.
type planResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	PriceCents   int64     `json:"price_cents"`
	Currency     string    `json:"currency"`
	DurationDays int32     `json:"duration_days"`
}

// ListPlans handles GET /api/plans.
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.subscriptions.ListPlans(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, planResponse{
			ID:           p.ID,
			Name:         p.Name,
			PriceCents:   p.PriceCents,
			Currency:     p.Currency,
			DurationDays: p.DurationDays,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": resp})
}

// timeNow is swapped in tests.
var timeNow = time.Now

func parseInt32(raw string, fallback int32) int32 {
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(n)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", "error", err)
	}
}
