package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/escriba-app/escriba/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `id, email, name, plan_id, plan_expires_at,
	transcription_count, transcription_minutes, agent_uses, assistant_uses,
	created_at, updated_at`

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, pgUUID(id))
	return scanUser(row)
}

func (s *PostgresStore) UpdateUserEntitlement(ctx context.Context, userID uuid.UUID, ent domain.Entitlement) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET plan_id = $2,
		    plan_expires_at = $3,
		    transcription_count = $4,
		    transcription_minutes = $5,
		    agent_uses = $6,
		    assistant_uses = $7,
		    updated_at = now()
		WHERE id = $1`,
		pgUUID(userID),
		pgUUIDPtr(ent.PlanID),
		pgTimestampPtr(ent.PlanExpiresAt),
		ent.Usage.TranscriptionCount,
		ent.Usage.TranscriptionMinutes,
		ent.Usage.AgentUses,
		ent.Usage.AssistantUses,
	)
	if err != nil {
		return fmt.Errorf("failed to update user entitlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	var (
		plan  domain.Plan
		pgID  pgtype.UUID
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, price_cents, currency, duration_days, active, created_at
		FROM plans WHERE id = $1`, pgUUID(id)).
		Scan(&pgID, &plan.Name, &plan.PriceCents, &plan.Currency, &plan.DurationDays, &plan.Active, &plan.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	plan.ID = uuid.UUID(pgID.Bytes)
	return &plan, nil
}

func (s *PostgresStore) ListActivePlans(ctx context.Context) ([]domain.Plan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, price_cents, currency, duration_days, active, created_at
		FROM plans WHERE active ORDER BY price_cents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		var (
			plan domain.Plan
			pgID pgtype.UUID
		)
		if err := rows.Scan(&pgID, &plan.Name, &plan.PriceCents, &plan.Currency, &plan.DurationDays, &plan.Active, &plan.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plan.ID = uuid.UUID(pgID.Bytes)
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *PostgresStore) CreateOrder(ctx context.Context, order *domain.SubscriptionOrder) error {
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscription_orders
			(id, user_id, plan_id, amount_cents, currency, status,
			 preapproval_id, payment_id, payment_details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pgUUID(order.ID), pgUUID(order.UserID), pgUUID(order.PlanID),
		order.AmountCents, order.Currency, string(order.Status),
		order.PreapprovalID, order.PaymentID, order.PaymentDetails,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, plan_id, amount_cents, currency, status,
	preapproval_id, payment_id, payment_details, created_at, updated_at`

func (s *PostgresStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.SubscriptionOrder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM subscription_orders WHERE id = $1`, pgUUID(id))
	return scanOrder(row)
}

func (s *PostgresStore) SetOrderPreapprovalID(ctx context.Context, orderID uuid.UUID, preapprovalID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscription_orders
		SET preapproval_id = $2, updated_at = now()
		WHERE id = $1`,
		pgUUID(orderID), preapprovalID)
	if err != nil {
		return fmt.Errorf("failed to set preapproval id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TransitionOrder(ctx context.Context, params TransitionOrderParams) (*domain.SubscriptionOrder, bool, error) {
	// Status change: single-statement compare-and-swap so only one of two
	// racing deliveries applies the transition.
	if params.FromStatus != params.ToStatus {
		row := s.pool.QueryRow(ctx, `
			UPDATE subscription_orders
			SET status = $3, payment_id = $4, payment_details = $5, updated_at = now()
			WHERE id = $1 AND status = $2
			RETURNING `+orderColumns,
			pgUUID(params.OrderID), string(params.FromStatus), string(params.ToStatus),
			params.PaymentID, params.PaymentDetails)

		order, err := scanOrder(row)
		if err == nil {
			return order, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
		// CAS missed: another delivery already moved the order. Fall through
		// to a snapshot-only refresh against the current row.
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE subscription_orders
		SET payment_id = $2, payment_details = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		pgUUID(params.OrderID), params.PaymentID, params.PaymentDetails)

	order, err := scanOrder(row)
	if err != nil {
		return nil, false, err
	}
	return order, false, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, params ListOrdersParams) ([]domain.OrderSummary, int64, error) {
	where := []string{}
	args := []any{}

	if params.UserID != nil {
		args = append(args, pgUUID(*params.UserID))
		where = append(where, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, string(params.Status))
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM subscription_orders o`+clause, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT o.id, o.user_id, u.email, o.plan_id, p.name,
		       o.amount_cents, o.currency, o.status, o.preapproval_id, o.created_at
		FROM subscription_orders o
		JOIN users u ON u.id = o.user_id
		JOIN plans p ON p.id = o.plan_id
		%s
		ORDER BY o.created_at DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var summaries []domain.OrderSummary
	for rows.Next() {
		var (
			sum                    domain.OrderSummary
			pgID, pgUserID, pgPlan pgtype.UUID
			status                 string
		)
		if err := rows.Scan(&pgID, &pgUserID, &sum.UserEmail, &pgPlan, &sum.PlanName,
			&sum.AmountCents, &sum.Currency, &status, &sum.PreapprovalID, &sum.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan order summary: %w", err)
		}
		sum.ID = uuid.UUID(pgID.Bytes)
		sum.UserID = uuid.UUID(pgUserID.Bytes)
		sum.PlanID = uuid.UUID(pgPlan.Bytes)
		sum.Status = domain.OrderStatus(status)
		summaries = append(summaries, sum)
	}
	return summaries, total, rows.Err()
}

// =============================================================================
// Helpers
// =============================================================================

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgUUIDPtr(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func pgTimestampPtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user      domain.User
		pgID      pgtype.UUID
		pgPlanID  pgtype.UUID
		pgExpires pgtype.Timestamptz
	)
	err := row.Scan(&pgID, &user.Email, &user.Name, &pgPlanID, &pgExpires,
		&user.Usage.TranscriptionCount, &user.Usage.TranscriptionMinutes,
		&user.Usage.AgentUses, &user.Usage.AssistantUses,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.ID = uuid.UUID(pgID.Bytes)
	if pgPlanID.Valid {
		planID := uuid.UUID(pgPlanID.Bytes)
		user.PlanID = &planID
	}
	if pgExpires.Valid {
		expires := pgExpires.Time
		user.PlanExpiresAt = &expires
	}
	return &user, nil
}

func scanOrder(row pgx.Row) (*domain.SubscriptionOrder, error) {
	var (
		order                  domain.SubscriptionOrder
		pgID, pgUserID, pgPlan pgtype.UUID
		status                 string
	)
	err := row.Scan(&pgID, &pgUserID, &pgPlan, &order.AmountCents, &order.Currency,
		&status, &order.PreapprovalID, &order.PaymentID, &order.PaymentDetails,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	order.ID = uuid.UUID(pgID.Bytes)
	order.UserID = uuid.UUID(pgUserID.Bytes)
	order.PlanID = uuid.UUID(pgPlan.Bytes)
	order.Status = domain.OrderStatus(status)
	return &order, nil
}
