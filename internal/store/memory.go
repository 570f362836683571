package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/escriba-app/escriba/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests. Semantics match the
// Postgres implementation, including the status compare-and-swap in
// TransitionOrder.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*domain.User
	plans  map[uuid.UUID]*domain.Plan
	orders map[uuid.UUID]*domain.SubscriptionOrder
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[uuid.UUID]*domain.User),
		plans:  make(map[uuid.UUID]*domain.Plan),
		orders: make(map[uuid.UUID]*domain.SubscriptionOrder),
	}
}

// PutUser seeds a user. Test helper.
func (s *MemoryStore) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

// PutPlan seeds a plan. Test helper.
func (s *MemoryStore) PutPlan(p domain.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = &p
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *MemoryStore) UpdateUserEntitlement(ctx context.Context, userID uuid.UUID, ent domain.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PlanID = ent.PlanID
	u.PlanExpiresAt = ent.PlanExpiresAt
	u.Usage = ent.Usage
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) ListActivePlans(ctx context.Context) ([]domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var plans []domain.Plan
	for _, p := range s.plans {
		if p.Active {
			plans = append(plans, *p)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].PriceCents < plans[j].PriceCents })
	return plans, nil
}

func (s *MemoryStore) CreateOrder(ctx context.Context, order *domain.SubscriptionOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.SubscriptionOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (s *MemoryStore) SetOrderPreapprovalID(ctx context.Context, orderID uuid.UUID, preapprovalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.PreapprovalID = preapprovalID
	o.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) TransitionOrder(ctx context.Context, params TransitionOrderParams) (*domain.SubscriptionOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[params.OrderID]
	if !ok {
		return nil, false, ErrNotFound
	}

	applied := false
	if params.FromStatus != params.ToStatus && o.Status == params.FromStatus {
		o.Status = params.ToStatus
		applied = true
	}
	o.PaymentID = params.PaymentID
	o.PaymentDetails = params.PaymentDetails
	o.UpdatedAt = time.Now()

	copied := *o
	return &copied, applied, nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, params ListOrdersParams) ([]domain.OrderSummary, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.SubscriptionOrder
	for _, o := range s.orders {
		if params.UserID != nil && o.UserID != *params.UserID {
			continue
		}
		if params.Status != "" && o.Status != params.Status {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))

	start := int(params.Offset)
	if start > len(matched) {
		start = len(matched)
	}
	end := start + int(params.Limit)
	if end > len(matched) {
		end = len(matched)
	}

	var summaries []domain.OrderSummary
	for _, o := range matched[start:end] {
		sum := domain.OrderSummary{
			ID:            o.ID,
			UserID:        o.UserID,
			PlanID:        o.PlanID,
			AmountCents:   o.AmountCents,
			Currency:      o.Currency,
			Status:        o.Status,
			PreapprovalID: o.PreapprovalID,
			CreatedAt:     o.CreatedAt,
		}
		if u, ok := s.users[o.UserID]; ok {
			sum.UserEmail = u.Email
		}
		if p, ok := s.plans[o.PlanID]; ok {
			sum.PlanName = p.Name
		}
		summaries = append(summaries, sum)
	}
	return summaries, total, nil
}
