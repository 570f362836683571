package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *MercadoPagoGateway {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw, err := NewMercadoPagoGateway(MercadoPagoConfig{
		AccessToken: "TEST-token",
		BaseURL:     srv.URL,
	})
	require.NoError(t, err)
	return gw
}

func TestNewMercadoPagoGateway_RequiresToken(t *testing.T) {
	_, err := NewMercadoPagoGateway(MercadoPagoConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMercadoPagoConfig_IsTestMode(t *testing.T) {
	assert.True(t, (&MercadoPagoConfig{AccessToken: "TEST-123"}).IsTestMode())
	assert.False(t, (&MercadoPagoConfig{AccessToken: "APP_USR-123"}).IsTestMode())
}

func TestCreatePreapproval(t *testing.T) {
	var captured preapprovalRequest

	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/preapproval", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"id": "mp_123",
			"status": "pending",
			"external_reference": "` + captured.ExternalReference + `",
			"init_point": "https://www.mercadopago.com/subscriptions/checkout?preapproval_id=mp_123",
			"payer_email": "maria@example.com"
		}`))
	})

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	pre, err := gw.CreatePreapproval(context.Background(), CreatePreapprovalParams{
		Reason:            "Escriba Pro subscription",
		ExternalReference: "order-1",
		PayerEmail:        "maria@example.com",
		AutoRecurring: AutoRecurring{
			Frequency:         1,
			FrequencyType:     "months",
			TransactionAmount: 49.90,
			CurrencyID:        "BRL",
			StartDate:         start,
			EndDate:           start.AddDate(1, 0, 0),
		},
		Status: PreapprovalStatusPending,
	})
	require.NoError(t, err)

	assert.Equal(t, "mp_123", pre.ID)
	assert.Equal(t, PreapprovalStatusPending, pre.Status)
	assert.Contains(t, pre.InitPoint, "mp_123")
	assert.NotEmpty(t, pre.Raw)

	// Wire format checks
	assert.Equal(t, "order-1", captured.ExternalReference)
	assert.Equal(t, "2026-08-01T00:00:00Z", captured.AutoRecurring.StartDate)
	assert.InDelta(t, 49.90, captured.AutoRecurring.TransactionAmount, 0.001)
}

func TestGetPreapproval(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/preapproval/mp_123", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "mp_123", "status": "authorized", "external_reference": "order-1"}`))
	})

	pre, err := gw.GetPreapproval(context.Background(), "mp_123")
	require.NoError(t, err)
	assert.Equal(t, PreapprovalStatusAuthorized, pre.Status)
	assert.Equal(t, "order-1", pre.ExternalReference)
}

func TestGetPreapproval_NotFound(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "preapproval not found", "status": 404}`))
	})

	_, err := gw.GetPreapproval(context.Background(), "mp_missing")
	assert.True(t, IsNotFound(err))
}

func TestCreatePreapproval_APIError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "payer_email is required", "status": 400}`))
	})

	_, err := gw.CreatePreapproval(context.Background(), CreatePreapprovalParams{})
	require.Error(t, err)

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusBadRequest, gerr.StatusCode)
	assert.Equal(t, "payer_email is required", gerr.Message)
	assert.False(t, gerr.IsTemporary())
}

func TestGatewayError_IsTemporary(t *testing.T) {
	assert.True(t, (&GatewayError{StatusCode: 500}).IsTemporary())
	assert.True(t, (&GatewayError{StatusCode: 429}).IsTemporary())
	assert.False(t, (&GatewayError{StatusCode: 400}).IsTemporary())
}
