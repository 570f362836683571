package service

import (
	"context"

	"github.com/escriba-app/escriba/internal/domain"
	"github.com/google/uuid"
)

// NotificationTypePreapproval is the gateway topic for subscription
// (preapproval) notifications. All other topics are ignored.
const NotificationTypePreapproval = "subscription_preapproval"

// SubscriptionService provides the subscription billing lifecycle: checkout
// initiation, webhook reconciliation, on-demand status polling, and order
// listing.
type SubscriptionService interface {
	// CreateCheckout creates a pending order for the user and plan, submits
	// a preapproval to the payment gateway, and returns the checkout URL.
	//
	// Returns ErrUserNotFound / ErrPlanNotFound for missing entities,
	// ErrGatewayUnavailable when no gateway is configured, and an EPAYMENT
	// error wrapping the provider message on gateway failure. A gateway
	// failure leaves the pending order in place; it carries no entitlement
	// until approved.
	CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*CheckoutDetail, error)

	// ProcessGatewayNotification reconciles one asynchronous gateway
	// notification against local state. Deliveries may be duplicated,
	// reordered, or concurrent; applying the same notification twice has no
	// additional effect.
	//
	// Never returns an error: failures are logged and swallowed so the
	// webhook endpoint can always acknowledge receipt. The status poller is
	// the backstop for dropped notifications.
	ProcessGatewayNotification(ctx context.Context, n GatewayNotification)

	// CheckOrderStatus returns the order's current projection, reconciling
	// against the gateway first unless the order is already approved
	// (terminal - no gateway call). Gateway fetch errors are logged and the
	// last-known local state returned; callers should poll again later.
	CheckOrderStatus(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)

	// ListOrders returns a filtered, paginated page of order summaries.
	ListOrders(ctx context.Context, params ListOrdersParams) (*OrderPage, error)

	// ListPlans returns the purchasable plan catalog.
	ListPlans(ctx context.Context) ([]domain.Plan, error)
}

// CreateCheckoutParams contains parameters for initiating a checkout.
type CreateCheckoutParams struct {
	UserID uuid.UUID
	PlanID uuid.UUID
}

// CheckoutDetail is returned to the caller after a successful checkout
// submission.
type CheckoutDetail struct {
	// OrderID is the local order identifier, also sent to the gateway as
	// the external correlation reference.
	OrderID uuid.UUID `json:"order_id"`

	// CheckoutURL is where the payer authorizes the subscription.
	CheckoutURL string `json:"checkout_url"`

	// PreapprovalID is the gateway's subscription identifier.
	PreapprovalID string `json:"preapproval_id"`
}

// GatewayNotification is the body of an asynchronous gateway webhook:
// a topic plus the identifier of the changed resource.
type GatewayNotification struct {
	Type   string
	DataID string
}

// OrderDetail aggregates an order with its plan and owning user.
type OrderDetail struct {
	Order domain.SubscriptionOrder
	Plan  *domain.Plan
	User  *domain.User
}

// ListOrdersParams contains filters and pagination for order listing.
type ListOrdersParams struct {
	// UserID filters to a single user when non-nil.
	UserID *uuid.UUID

	// Status filters by order status when non-empty. Must be a valid
	// status value.
	Status string

	// Page is 1-based; values below 1 are treated as 1.
	Page int32

	// Limit is the page size; defaults to 20, capped at 100.
	Limit int32
}

// OrderPage is a page of order summaries with pagination totals.
type OrderPage struct {
	Orders      []domain.OrderSummary `json:"orders"`
	Total       int64                 `json:"total"`
	TotalPages  int64                 `json:"total_pages"`
	CurrentPage int32                 `json:"current_page"`
}
