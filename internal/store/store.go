// Package store provides persistence for users, plans, and subscription
// orders. The Postgres implementation backs production; the in-memory
// implementation backs tests.
package store

import (
	"context"
	"errors"

	"github.com/escriba-app/escriba/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
// Services map it to domain not-found errors.
var ErrNotFound = errors.New("store: record not found")

// TransitionOrderParams describes a reconciliation write against an order.
// The payment id and details snapshot are always refreshed; the status only
// moves when the stored status still equals FromStatus (compare-and-swap),
// which is what keeps concurrent webhook/poll deliveries from double-applying
// a transition.
type TransitionOrderParams struct {
	OrderID        uuid.UUID
	FromStatus     domain.OrderStatus
	ToStatus       domain.OrderStatus
	PaymentID      string
	PaymentDetails []byte
}

// ListOrdersParams contains filters and pagination for order listing.
type ListOrdersParams struct {
	// UserID filters to a single user when non-nil.
	UserID *uuid.UUID

	// Status filters by order status when non-empty.
	Status domain.OrderStatus

	// Limit is the page size; Offset the number of rows to skip.
	Limit  int32
	Offset int32
}

// Store is the persistence contract required by the subscription core.
type Store interface {
	// GetUser returns a user by id, or ErrNotFound.
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// UpdateUserEntitlement writes the plan reference, expiration, and reset
	// usage counters in a single atomic update.
	UpdateUserEntitlement(ctx context.Context, userID uuid.UUID, ent domain.Entitlement) error

	// GetPlan returns a plan by id, or ErrNotFound.
	GetPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error)

	// ListActivePlans returns the purchasable plan catalog.
	ListActivePlans(ctx context.Context) ([]domain.Plan, error)

	// CreateOrder persists a new subscription order.
	CreateOrder(ctx context.Context, order *domain.SubscriptionOrder) error

	// GetOrder returns an order by id, or ErrNotFound. Reconciliation always
	// works from a fresh read, never a cached record.
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.SubscriptionOrder, error)

	// SetOrderPreapprovalID records the gateway's subscription identifier on
	// the order. Set once, right after checkout submission.
	SetOrderPreapprovalID(ctx context.Context, orderID uuid.UUID, preapprovalID string) error

	// TransitionOrder applies a reconciliation write. The returned bool
	// reports whether this call won the status transition; callers gate the
	// entitlement side effect on it. When the CAS misses (another delivery
	// already moved the order) the snapshot is still refreshed and the
	// current row is returned with applied=false.
	TransitionOrder(ctx context.Context, params TransitionOrderParams) (*domain.SubscriptionOrder, bool, error)

	// ListOrders returns a page of order summaries joined with user and plan
	// projections, plus the unpaginated total for page-count arithmetic.
	ListOrders(ctx context.Context, params ListOrdersParams) ([]domain.OrderSummary, int64, error)
}
