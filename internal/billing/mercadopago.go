package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.mercadopago.com"

// MercadoPagoConfig contains configuration for the MercadoPago gateway.
type MercadoPagoConfig struct {
	// AccessToken is the MercadoPago access token (APP_USR-... or TEST-...)
	AccessToken string

	// BaseURL overrides the API base URL. Used by tests; empty means the
	// production endpoint.
	BaseURL string

	// TimeoutSeconds is the HTTP timeout for gateway calls in seconds.
	// Default: 15. Timeout expiry surfaces as a recoverable GatewayError.
	TimeoutSeconds int
}

// Validate checks that required configuration is present.
func (c *MercadoPagoConfig) Validate() error {
	if c.AccessToken == "" {
		return ErrNotConfigured
	}
	return nil
}

// IsTestMode returns true if using test credentials.
func (c *MercadoPagoConfig) IsTestMode() bool {
	return len(c.AccessToken) > 4 && c.AccessToken[:5] == "TEST-"
}

// MercadoPagoGateway implements Gateway using MercadoPago's preapproval API.
type MercadoPagoGateway struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

// Compile-time check that MercadoPagoGateway implements Gateway.
var _ Gateway = (*MercadoPagoGateway)(nil)

// NewMercadoPagoGateway creates a new MercadoPago gateway client.
// Returns ErrNotConfigured if the access token is missing.
func NewMercadoPagoGateway(cfg MercadoPagoConfig) (*MercadoPagoGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 15
	}

	return &MercadoPagoGateway{
		accessToken: cfg.AccessToken,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

// preapprovalRequest is the wire format of POST /preapproval.
type preapprovalRequest struct {
	Reason            string               `json:"reason"`
	ExternalReference string               `json:"external_reference"`
	PayerEmail        string               `json:"payer_email"`
	AutoRecurring     autoRecurringPayload `json:"auto_recurring"`
	BackURL           string               `json:"back_url"`
	NotificationURL   string               `json:"notification_url,omitempty"`
	Status            string               `json:"status"`
}

// autoRecurringPayload mirrors AutoRecurring with the provider's expected
// timestamp format.
type autoRecurringPayload struct {
	Frequency         int32   `json:"frequency"`
	FrequencyType     string  `json:"frequency_type"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
	StartDate         string  `json:"start_date"`
	EndDate           string  `json:"end_date"`
}

// apiError is the provider's error response body.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// CreatePreapproval creates a preapproval via POST /preapproval.
func (g *MercadoPagoGateway) CreatePreapproval(ctx context.Context, params CreatePreapprovalParams) (*Preapproval, error) {
	body := preapprovalRequest{
		Reason:            params.Reason,
		ExternalReference: params.ExternalReference,
		PayerEmail:        params.PayerEmail,
		AutoRecurring: autoRecurringPayload{
			Frequency:         params.AutoRecurring.Frequency,
			FrequencyType:     params.AutoRecurring.FrequencyType,
			TransactionAmount: params.AutoRecurring.TransactionAmount,
			CurrencyID:        params.AutoRecurring.CurrencyID,
			StartDate:         params.AutoRecurring.StartDate.UTC().Format(time.RFC3339),
			EndDate:           params.AutoRecurring.EndDate.UTC().Format(time.RFC3339),
		},
		BackURL:         params.BackURL,
		NotificationURL: params.NotificationURL,
		Status:          params.Status,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preapproval request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/preapproval", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build preapproval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	return g.do(req)
}

// GetPreapproval fetches a preapproval via GET /preapproval/{id}.
func (g *MercadoPagoGateway) GetPreapproval(ctx context.Context, id string) (*Preapproval, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/preapproval/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build preapproval request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	return g.do(req)
}

// do executes a request and decodes the preapproval response, mapping
// transport failures and non-2xx statuses to *GatewayError.
func (g *MercadoPagoGateway) do(req *http.Request) (*Preapproval, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &GatewayError{Message: "request failed", OriginalError: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Message: "failed to read response", StatusCode: resp.StatusCode, OriginalError: err}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPreapprovalNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		msg := "unexpected response"
		if err := json.Unmarshal(raw, &apiErr); err == nil {
			if apiErr.Message != "" {
				msg = apiErr.Message
			} else if apiErr.Error != "" {
				msg = apiErr.Error
			}
		}
		return nil, &GatewayError{Message: msg, StatusCode: resp.StatusCode}
	}

	var pre Preapproval
	if err := json.Unmarshal(raw, &pre); err != nil {
		return nil, &GatewayError{Message: "failed to decode response", StatusCode: resp.StatusCode, OriginalError: err}
	}
	pre.Raw = json.RawMessage(raw)

	return &pre, nil
}

// IsNotFound reports whether err means the preapproval does not exist on the
// provider side.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPreapprovalNotFound)
}
