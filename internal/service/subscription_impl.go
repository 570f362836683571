package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/escriba-app/escriba/internal/billing"
	"github.com/escriba-app/escriba/internal/domain"
	"github.com/escriba-app/escriba/internal/store"
	"github.com/escriba-app/escriba/internal/telemetry"
	"github.com/google/uuid"
)

// CheckoutConfig carries the URLs handed to the gateway at preapproval
// creation time.
type CheckoutConfig struct {
	// BackURL is where the gateway redirects the payer after checkout.
	BackURL string

	// NotificationURL is the webhook endpoint the gateway delivers
	// notifications to.
	NotificationURL string
}

// subscriptionService implements SubscriptionService.
type subscriptionService struct {
	store        store.Store
	gateway      billing.Gateway
	entitlements *EntitlementCalculator
	logger       *slog.Logger
	cfg          CheckoutConfig
}

// NewSubscriptionService creates a new SubscriptionService instance.
// A nil gateway is allowed; checkout then fails with ErrGatewayUnavailable
// and polling returns local state only.
func NewSubscriptionService(st store.Store, gateway billing.Gateway, logger *slog.Logger, cfg CheckoutConfig) SubscriptionService {
	return &subscriptionService{
		store:        st,
		gateway:      gateway,
		entitlements: NewEntitlementCalculator(),
		logger:       logger,
		cfg:          cfg,
	}
}

// CreateCheckout creates a pending order and submits it to the gateway.
//
// Flow:
//  1. Verify the gateway is configured
//  2. Load user and plan
//  3. Create the local order (pending status, plan price)
//  4. Submit a preapproval: monthly cadence, fixed amount, start now,
//     end now + 1 year as the upper bound on the provider's retry window,
//     with the order id as the external correlation reference
//  5. Persist the returned preapproval id on the order
//
// A gateway failure after step 3 leaves the pending order in place. That is
// deliberate: a dangling pending order carries no entitlement until approved,
// and rolling back would race the gateway's own retries.
func (s *subscriptionService) CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*CheckoutDetail, error) {
	const op = "subscription.checkout"

	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	user, err := s.store.GetUser(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}

	plan, err := s.store.GetPlan(ctx, params.PlanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, domain.Internal(err, op, "failed to load plan")
	}
	if !plan.Active {
		return nil, ErrPlanNotFound
	}

	order := &domain.SubscriptionOrder{
		ID:          uuid.New(),
		UserID:      user.ID,
		PlanID:      plan.ID,
		AmountCents: plan.PriceCents,
		Currency:    plan.Currency,
		Status:      domain.OrderStatusPending,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, domain.Internal(err, op, "failed to create order")
	}

	now := time.Now()
	pre, err := s.createPreapproval(ctx, billing.CreatePreapprovalParams{
		Reason:            fmt.Sprintf("Escriba %s subscription", plan.Name),
		ExternalReference: order.ID.String(),
		PayerEmail:        user.Email,
		AutoRecurring: billing.AutoRecurring{
			Frequency:         1,
			FrequencyType:     "months",
			TransactionAmount: plan.Price(),
			CurrencyID:        plan.Currency,
			StartDate:         now,
			EndDate:           now.AddDate(1, 0, 0),
		},
		BackURL:         s.cfg.BackURL,
		NotificationURL: s.cfg.NotificationURL,
		Status:          billing.PreapprovalStatusPending,
	})
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.CheckoutFailed.WithLabelValues(plan.Name).Inc()
		}
		s.logger.Error("gateway rejected preapproval",
			"order_id", order.ID, "plan", plan.Name, "error", err)
		return nil, domain.WrapError(err, domain.EPAYMENT, op, gatewayMessage(err))
	}

	if err := s.store.SetOrderPreapprovalID(ctx, order.ID, pre.ID); err != nil {
		return nil, domain.Internal(err, op, "failed to persist preapproval id")
	}

	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.WithLabelValues(plan.Name).Inc()
	}
	s.logger.Info("checkout created",
		"order_id", order.ID, "user_id", user.ID, "plan", plan.Name, "preapproval_id", pre.ID)

	return &CheckoutDetail{
		OrderID:       order.ID,
		CheckoutURL:   pre.InitPoint,
		PreapprovalID: pre.ID,
	}, nil
}

// ProcessGatewayNotification reconciles one asynchronous notification.
// All failures are logged and swallowed so the webhook endpoint always ACKs;
// the status poller re-converges anything dropped here.
func (s *subscriptionService) ProcessGatewayNotification(ctx context.Context, n GatewayNotification) {
	start := time.Now()
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(n.Type).Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues(n.Type).Observe(time.Since(start).Seconds())
		}()
	}

	if n.Type != NotificationTypePreapproval {
		s.logger.Debug("ignoring notification of unrelated type", "type", n.Type, "data_id", n.DataID)
		s.countIgnored("type")
		return
	}

	if s.gateway == nil {
		s.logger.Error("notification received but gateway is not configured", "data_id", n.DataID)
		s.countFailed("gateway_unconfigured")
		return
	}

	// Never trust notification payload fields for authoritative status -
	// always re-fetch the full preapproval.
	pre, err := s.getPreapproval(ctx, n.DataID)
	if err != nil {
		s.logger.Error("failed to fetch preapproval for notification", "data_id", n.DataID, "error", err)
		s.countFailed("gateway_fetch")
		return
	}

	if pre.ExternalReference == "" {
		s.logger.Warn("preapproval has no external reference, dropping notification", "preapproval_id", pre.ID)
		s.countIgnored("no_reference")
		return
	}
	orderID, err := uuid.Parse(pre.ExternalReference)
	if err != nil {
		s.logger.Warn("preapproval external reference is not an order id",
			"preapproval_id", pre.ID, "external_reference", pre.ExternalReference)
		s.countIgnored("bad_reference")
		return
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("notification references unknown order", "order_id", orderID, "preapproval_id", pre.ID)
			s.countIgnored("unknown_order")
			return
		}
		s.logger.Error("failed to load order for notification", "order_id", orderID, "error", err)
		s.countFailed("store")
		return
	}

	if _, err := s.applyPreapproval(ctx, order, pre); err != nil {
		s.logger.Error("failed to reconcile notification", "order_id", orderID, "error", err)
		s.countFailed("reconcile")
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(n.Type).Inc()
	}
}

// CheckOrderStatus reconciles an order against the gateway on demand and
// returns its projection.
func (s *subscriptionService) CheckOrderStatus(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	const op = "subscription.status"

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}

	switch {
	case order.Status == domain.OrderStatusApproved:
		// Terminal: return immediately without touching the gateway.
		s.countPoll("terminal")

	case order.PreapprovalID == "" || s.gateway == nil:
		s.countPoll("no_preapproval")

	default:
		pre, err := s.getPreapproval(ctx, order.PreapprovalID)
		if err != nil {
			// Recoverable: return the last-known local state and let the
			// caller poll again.
			s.logger.Warn("gateway fetch failed during status poll",
				"order_id", order.ID, "preapproval_id", order.PreapprovalID, "error", err)
			s.countPoll("gateway_error")
			break
		}

		updated, err := s.applyPreapproval(ctx, order, pre)
		if err != nil {
			s.logger.Error("failed to reconcile during status poll", "order_id", order.ID, "error", err)
			s.countPoll("reconcile_error")
			break
		}
		order = updated
		s.countPoll("reconciled")
	}

	return s.orderDetail(ctx, order)
}

func (s *subscriptionService) ListOrders(ctx context.Context, params ListOrdersParams) (*OrderPage, error) {
	const op = "subscription.list"

	if params.Status != "" && !domain.IsValidOrderStatus(params.Status) {
		return nil, ErrInvalidOrderStatus
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	orders, total, err := s.store.ListOrders(ctx, store.ListOrdersParams{
		UserID: params.UserID,
		Status: domain.OrderStatus(params.Status),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return &OrderPage{
		Orders:      orders,
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: page,
	}, nil
}

func (s *subscriptionService) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	plans, err := s.store.ListActivePlans(ctx)
	if err != nil {
		return nil, domain.Internal(err, "plan.list", "failed to list plans")
	}
	return plans, nil
}

// applyPreapproval maps a freshly-fetched provider state onto the local
// order and, when the status actually changes, applies the entitlement side
// effect exactly once. Shared by the webhook reconciler and the status
// poller so both paths converge identically.
//
// The provider snapshot (payment id + raw state) is persisted
// unconditionally, even when the status is unchanged, for audit. The
// entitlement side effect is gated on the store-level status
// compare-and-swap: duplicate or racing deliveries see applied=false and
// skip it, which is what keeps a double-delivered "authorized" from
// extending an expiration twice.
func (s *subscriptionService) applyPreapproval(ctx context.Context, order *domain.SubscriptionOrder, pre *billing.Preapproval) (*domain.SubscriptionOrder, error) {
	target := order.Status
	switch pre.Status {
	case billing.PreapprovalStatusAuthorized:
		target = domain.OrderStatusApproved
	case billing.PreapprovalStatusCancelled, billing.PreapprovalStatusPaused:
		target = domain.OrderStatusCancelled
	}

	updated, applied, err := s.store.TransitionOrder(ctx, store.TransitionOrderParams{
		OrderID:        order.ID,
		FromStatus:     order.Status,
		ToStatus:       target,
		PaymentID:      pre.ID,
		PaymentDetails: pre.Raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist order transition: %w", err)
	}

	if !applied {
		return updated, nil
	}

	// Fresh read: the entitlement must be computed against current user
	// state, not whatever the caller had cached.
	user, err := s.store.GetUser(ctx, updated.UserID)
	if err != nil {
		return updated, fmt.Errorf("failed to load user for entitlement update: %w", err)
	}

	switch target {
	case domain.OrderStatusApproved:
		plan, err := s.store.GetPlan(ctx, updated.PlanID)
		if err != nil {
			return updated, fmt.Errorf("failed to load plan for entitlement grant: %w", err)
		}
		ent := s.entitlements.GrantOrExtend(*user, *plan)
		if err := s.store.UpdateUserEntitlement(ctx, user.ID, ent); err != nil {
			return updated, fmt.Errorf("failed to grant entitlement: %w", err)
		}
		if telemetry.Business != nil {
			telemetry.Business.SubscriptionsActivated.WithLabelValues(plan.Name).Inc()
			telemetry.Business.EntitlementsGranted.WithLabelValues(plan.Name).Inc()
			telemetry.Business.RevenueCollected.WithLabelValues(plan.Name, updated.Currency).Add(float64(updated.AmountCents))
		}
		s.logger.Info("subscription approved",
			"order_id", updated.ID, "user_id", user.ID, "plan", plan.Name,
			"expires_at", ent.PlanExpiresAt)

	case domain.OrderStatusCancelled:
		ent := s.entitlements.Revoke(*user)
		if err := s.store.UpdateUserEntitlement(ctx, user.ID, ent); err != nil {
			return updated, fmt.Errorf("failed to revoke entitlement: %w", err)
		}
		if telemetry.Business != nil {
			planName := "unknown"
			if plan, err := s.store.GetPlan(ctx, updated.PlanID); err == nil {
				planName = plan.Name
			}
			telemetry.Business.SubscriptionsCancelled.WithLabelValues(planName).Inc()
			telemetry.Business.EntitlementsRevoked.Inc()
		}
		s.logger.Info("subscription cancelled",
			"order_id", updated.ID, "user_id", user.ID, "provider_status", pre.Status)
	}

	return updated, nil
}

func (s *subscriptionService) orderDetail(ctx context.Context, order *domain.SubscriptionOrder) (*OrderDetail, error) {
	detail := &OrderDetail{Order: *order}

	plan, err := s.store.GetPlan(ctx, order.PlanID)
	if err == nil {
		detail.Plan = plan
	}
	user, err := s.store.GetUser(ctx, order.UserID)
	if err == nil {
		detail.User = user
	}
	return detail, nil
}

func (s *subscriptionService) createPreapproval(ctx context.Context, params billing.CreatePreapprovalParams) (*billing.Preapproval, error) {
	start := time.Now()
	pre, err := s.gateway.CreatePreapproval(ctx, params)
	if telemetry.Business != nil {
		telemetry.Business.GatewayLatency.WithLabelValues("create_preapproval").Observe(time.Since(start).Seconds())
	}
	return pre, err
}

func (s *subscriptionService) getPreapproval(ctx context.Context, id string) (*billing.Preapproval, error) {
	start := time.Now()
	pre, err := s.gateway.GetPreapproval(ctx, id)
	if telemetry.Business != nil {
		telemetry.Business.GatewayLatency.WithLabelValues("get_preapproval").Observe(time.Since(start).Seconds())
	}
	return pre, err
}

func (s *subscriptionService) countIgnored(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookIgnored.WithLabelValues(reason).Inc()
	}
}

func (s *subscriptionService) countFailed(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues(reason).Inc()
	}
}

func (s *subscriptionService) countPoll(outcome string) {
	if telemetry.Business != nil {
		telemetry.Business.StatusPolls.WithLabelValues(outcome).Inc()
	}
}

// gatewayMessage extracts a user-presentable message from a gateway error
// without leaking transport internals.
func gatewayMessage(err error) string {
	var gerr *billing.GatewayError
	if errors.As(err, &gerr) {
		return fmt.Sprintf("Payment gateway error: %s", gerr.Message)
	}
	return "Payment gateway error"
}
