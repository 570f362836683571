package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the local lifecycle state of a subscription order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsValidOrderStatus checks if the given status is a known order status.
func IsValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusApproved, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further provider-driven
// transition. Terminal orders are never re-entered to pending.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusApproved || s == OrderStatusCancelled
}

// SubscriptionOrder is the source of truth for one billing attempt. Created
// pending at checkout; moved to approved or cancelled only by reconciliation
// (webhook or poll). Owned exclusively by the subscription core.
type SubscriptionOrder struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	PlanID      uuid.UUID
	AmountCents int64
	Currency    string
	Status      OrderStatus

	// PreapprovalID is the gateway's subscription identifier, set once when
	// the checkout is submitted.
	PreapprovalID string

	// PaymentID is the identifier carried by the latest gateway
	// notification. Refreshed on every reconciliation.
	PaymentID string

	// PaymentDetails is the last-seen raw gateway state snapshot, kept for
	// audit. Refreshed on every reconciliation even when the status is
	// unchanged.
	PaymentDetails []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderSummary is the listing projection: an order row joined with the
// owning user and plan.
type OrderSummary struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"user_id"`
	UserEmail     string      `json:"user_email"`
	PlanID        uuid.UUID   `json:"plan_id"`
	PlanName      string      `json:"plan_name"`
	AmountCents   int64       `json:"amount_cents"`
	Currency      string      `json:"currency"`
	Status        OrderStatus `json:"status"`
	PreapprovalID string      `json:"preapproval_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}
