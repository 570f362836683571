package service

import (
	"testing"
	"time"

	"github.com/escriba-app/escriba/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGrantOrExtend_FirstGrant(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calc := NewEntitlementCalculatorAt(fixedClock(now))

	plan := domain.Plan{ID: uuid.New(), Name: "Pro", DurationDays: 30}
	user := domain.User{
		ID: uuid.New(),
		Usage: domain.UsageCounters{
			TranscriptionCount:   42,
			TranscriptionMinutes: 360,
			AgentUses:            7,
			AssistantUses:        3,
		},
	}

	ent := calc.GrantOrExtend(user, plan)

	require.NotNil(t, ent.PlanID)
	assert.Equal(t, plan.ID, *ent.PlanID)
	require.NotNil(t, ent.PlanExpiresAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *ent.PlanExpiresAt)
	assert.Equal(t, domain.UsageCounters{}, ent.Usage, "every grant resets usage")
}

func TestGrantOrExtend_SamePlanUnexpiredExtends(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calc := NewEntitlementCalculatorAt(fixedClock(now))

	plan := domain.Plan{ID: uuid.New(), Name: "Pro", DurationDays: 30}
	planID := plan.ID
	expires := now.Add(10 * 24 * time.Hour) // 10 days of paid time left
	user := domain.User{
		ID:            uuid.New(),
		PlanID:        &planID,
		PlanExpiresAt: &expires,
	}

	ent := calc.GrantOrExtend(user, plan)

	require.NotNil(t, ent.PlanExpiresAt)
	assert.Equal(t, expires.Add(30*24*time.Hour), *ent.PlanExpiresAt,
		"renewing early keeps the remaining paid time")
}

func TestGrantOrExtend_SamePlanExpiredAnchorsAtNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calc := NewEntitlementCalculatorAt(fixedClock(now))

	plan := domain.Plan{ID: uuid.New(), Name: "Pro", DurationDays: 30}
	planID := plan.ID
	expires := now.Add(-24 * time.Hour) // lapsed yesterday
	user := domain.User{
		ID:            uuid.New(),
		PlanID:        &planID,
		PlanExpiresAt: &expires,
	}

	ent := calc.GrantOrExtend(user, plan)

	require.NotNil(t, ent.PlanExpiresAt)
	assert.Equal(t, now.Add(30*24*time.Hour), *ent.PlanExpiresAt)
}

func TestGrantOrExtend_DifferentPlanAnchorsAtNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calc := NewEntitlementCalculatorAt(fixedClock(now))

	oldPlanID := uuid.New()
	expires := now.Add(20 * 24 * time.Hour) // 20 unexpired days on the old plan
	user := domain.User{
		ID:            uuid.New(),
		PlanID:        &oldPlanID,
		PlanExpiresAt: &expires,
	}

	newPlan := domain.Plan{ID: uuid.New(), Name: "Business", DurationDays: 365}
	ent := calc.GrantOrExtend(user, newPlan)

	require.NotNil(t, ent.PlanID)
	assert.Equal(t, newPlan.ID, *ent.PlanID)
	require.NotNil(t, ent.PlanExpiresAt)
	assert.Equal(t, now.Add(365*24*time.Hour), *ent.PlanExpiresAt,
		"unused time from a different plan does not carry over")
}

func TestRevoke(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calc := NewEntitlementCalculatorAt(fixedClock(now))

	planID := uuid.New()
	expires := now.Add(15 * 24 * time.Hour)
	user := domain.User{
		ID:            uuid.New(),
		PlanID:        &planID,
		PlanExpiresAt: &expires,
		Usage: domain.UsageCounters{
			TranscriptionCount:   10,
			TranscriptionMinutes: 90,
		},
	}

	ent := calc.Revoke(user)

	assert.Nil(t, ent.PlanID)
	require.NotNil(t, ent.PlanExpiresAt)
	assert.Equal(t, now, *ent.PlanExpiresAt, "revocation expires the plan immediately")
	assert.Equal(t, user.Usage, ent.Usage, "revocation preserves counters")
}

func TestHasActiveEntitlement(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	planID := uuid.New()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		user domain.User
		want bool
	}{
		{"never subscribed", domain.User{}, false},
		{"active plan", domain.User{PlanID: &planID, PlanExpiresAt: &future}, true},
		{"stale plan id past expiry", domain.User{PlanID: &planID, PlanExpiresAt: &past}, false},
		{"expiry exactly now", domain.User{PlanID: &planID, PlanExpiresAt: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.HasActiveEntitlement(now))
		})
	}
}
