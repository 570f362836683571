package billing

import (
	"context"
	"encoding/json"
	"time"
)

// Gateway defines the interface for the recurring-billing provider.
// The production implementation talks to MercadoPago's preapproval API;
// tests substitute the mock in mock.go.
type Gateway interface {
	// CreatePreapproval creates a recurring subscription (a "preapproval" in
	// MercadoPago terms) and returns its identifier plus the checkout URL the
	// payer must visit to authorize it.
	CreatePreapproval(ctx context.Context, params CreatePreapprovalParams) (*Preapproval, error)

	// GetPreapproval fetches the current provider-side state of a
	// preapproval. Reconciliation always re-fetches rather than trusting
	// notification payload fields.
	GetPreapproval(ctx context.Context, id string) (*Preapproval, error)
}

// AutoRecurring describes the recurring charge schedule of a preapproval.
type AutoRecurring struct {
	// Frequency together with FrequencyType sets the cadence
	// (1 + "months" = monthly).
	Frequency     int32  `json:"frequency"`
	FrequencyType string `json:"frequency_type"`

	// TransactionAmount is the charge per period in major currency units.
	TransactionAmount float64 `json:"transaction_amount"`

	// CurrencyID is the ISO currency code (e.g. "BRL").
	CurrencyID string `json:"currency_id"`

	// StartDate/EndDate bound the provider's charging window. EndDate caps
	// the provider's auto-retry horizon.
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// CreatePreapprovalParams contains parameters for creating a preapproval.
type CreatePreapprovalParams struct {
	// Reason is the human-readable subscription description shown to the
	// payer during checkout.
	Reason string

	// ExternalReference is the local order identifier. The provider echoes
	// it back in every subsequent fetch, which is how notifications are
	// mapped to orders.
	ExternalReference string

	// PayerEmail identifies the payer on the provider side.
	PayerEmail string

	AutoRecurring AutoRecurring

	// BackURL is where the provider redirects the payer after checkout.
	BackURL string

	// NotificationURL receives asynchronous webhook deliveries.
	NotificationURL string

	// Status is the initial provider-side status, always "pending" at
	// creation time.
	Status string
}

// Preapproval represents a provider-side subscription object.
type Preapproval struct {
	// ID is the provider's preapproval identifier.
	ID string `json:"id"`

	// Status is the provider-side status: "pending", "authorized",
	// "paused", "cancelled", or other values the provider may add.
	Status string `json:"status"`

	// ExternalReference echoes the correlation id supplied at creation.
	ExternalReference string `json:"external_reference"`

	// InitPoint is the checkout URL for the payer.
	InitPoint string `json:"init_point"`

	PayerEmail string `json:"payer_email"`

	Reason string `json:"reason"`

	AutoRecurring AutoRecurring `json:"auto_recurring"`

	// Raw is the full provider response body, persisted on orders as an
	// audit snapshot.
	Raw json.RawMessage `json:"-"`
}

// Provider-side preapproval statuses relevant to reconciliation.
const (
	PreapprovalStatusPending    = "pending"
	PreapprovalStatusAuthorized = "authorized"
	PreapprovalStatusPaused     = "paused"
	PreapprovalStatusCancelled  = "cancelled"
)
