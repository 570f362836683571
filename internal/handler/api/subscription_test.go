package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/escriba-app/escriba/internal/billing"
	"github.com/escriba-app/escriba/internal/domain"
	"github.com/escriba-app/escriba/internal/service"
	"github.com/escriba-app/escriba/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	handler *SubscriptionHandler
	store   *store.MemoryStore
	gateway *billing.MockGateway
	user    domain.User
	plan    domain.Plan
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	gw := billing.NewMockGateway()

	user := domain.User{ID: uuid.New(), Email: "maria@example.com", Name: "Maria"}
	plan := domain.Plan{
		ID:           uuid.New(),
		Name:         "Pro",
		PriceCents:   4990,
		Currency:     "BRL",
		DurationDays: 30,
		Active:       true,
	}
	st.PutUser(user)
	st.PutPlan(plan)

	logger := slog.New(slog.DiscardHandler)
	svc := service.NewSubscriptionService(st, gw, logger, service.CheckoutConfig{})
	return &testEnv{
		handler: NewSubscriptionHandler(svc, logger),
		store:   st,
		gateway: gw,
		user:    user,
		plan:    plan,
	}
}

func TestCreateCheckoutHandler(t *testing.T) {
	env := newTestEnv(t)

	body := `{"user_id": "` + env.user.ID.String() + `", "plan_id": "` + env.plan.ID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.handler.CreateCheckout(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		OrderID     string `json:"order_id"`
		CheckoutURL string `json:"checkout_url"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.CheckoutURL)

	orderID, err := uuid.Parse(resp.OrderID)
	require.NoError(t, err)
	order, err := env.store.GetOrder(req.Context(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
}

func TestCreateCheckoutHandler_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"bad uuid", `{"user_id": "nope", "plan_id": "also-nope"}`},
		{"not json", `plan=pro`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			env.handler.CreateCheckout(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateCheckoutHandler_UnknownPlan(t *testing.T) {
	env := newTestEnv(t)

	body := `{"user_id": "` + env.user.ID.String() + `", "plan_id": "` + uuid.New().String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.handler.CreateCheckout(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderStatusHandler(t *testing.T) {
	env := newTestEnv(t)

	// Checkout, then flip the provider state so the poll reconciles.
	body := `{"user_id": "` + env.user.ID.String() + `", "plan_id": "` + env.plan.ID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.handler.CreateCheckout(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var checkout struct {
		OrderID       string `json:"order_id"`
		PreapprovalID string `json:"preapproval_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&checkout))
	env.gateway.SetStatus(checkout.PreapprovalID, billing.PreapprovalStatusAuthorized)

	req = httptest.NewRequest(http.MethodGet, "/api/orders/"+checkout.OrderID, nil)
	req.SetPathValue("id", checkout.OrderID)
	rec = httptest.NewRecorder()

	env.handler.GetOrderStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Status   string `json:"status"`
		PlanName string `json:"plan_name"`
		Entitled bool   `json:"entitled"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "approved", resp.Status)
	assert.Equal(t, "Pro", resp.PlanName)
	assert.True(t, resp.Entitled)
}

func TestGetOrderStatusHandler_BadID(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()

	env.handler.GetOrderStatus(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderStatusHandler_NotFound(t *testing.T) {
	env := newTestEnv(t)

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()

	env.handler.GetOrderStatus(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersHandler(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		body := `{"user_id": "` + env.user.ID.String() + `", "plan_id": "` + env.plan.ID.String() + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
		rec := httptest.NewRecorder()
		env.handler.CreateCheckout(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders?limit=2&page=3", nil)
	rec := httptest.NewRecorder()

	env.handler.ListOrders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Orders      []json.RawMessage `json:"orders"`
		Total       int64             `json:"total"`
		TotalPages  int64             `json:"total_pages"`
		CurrentPage int32             `json:"current_page"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(5), resp.Total)
	assert.Equal(t, int64(3), resp.TotalPages)
	assert.Equal(t, int32(3), resp.CurrentPage)
	assert.Len(t, resp.Orders, 1)
}

func TestListOrdersHandler_InvalidFilters(t *testing.T) {
	env := newTestEnv(t)

	t.Run("bad status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders?status=refunded", nil)
		rec := httptest.NewRecorder()
		env.handler.ListOrders(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders?user_id=nope", nil)
		rec := httptest.NewRecorder()
		env.handler.ListOrders(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListPlansHandler(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	rec := httptest.NewRecorder()

	env.handler.ListPlans(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Plans []planResponse `json:"plans"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Plans, 1)
	assert.Equal(t, "Pro", resp.Plans[0].Name)
	assert.Equal(t, int64(4990), resp.Plans[0].PriceCents)
}
