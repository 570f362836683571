package service

import (
	"time"

	"github.com/escriba-app/escriba/internal/domain"
)

// EntitlementCalculator computes entitlement changes for grants and
// revocations. Pure logic; callers persist the result. The clock is
// injectable for tests.
type EntitlementCalculator struct {
	now func() time.Time
}

// NewEntitlementCalculator creates a calculator using the wall clock.
func NewEntitlementCalculator() *EntitlementCalculator {
	return &EntitlementCalculator{now: time.Now}
}

// NewEntitlementCalculatorAt creates a calculator with a custom clock.
func NewEntitlementCalculatorAt(now func() time.Time) *EntitlementCalculator {
	return &EntitlementCalculator{now: now}
}

// GrantOrExtend returns the entitlement resulting from granting plan to user.
//
// Renewing the same plan before it expires extends the current expiration by
// the plan duration, so users who pay early keep their remaining paid time.
// Switching plans, or renewing after expiry, anchors the new period at now;
// unused time from a different plan does not carry over.
//
// Every grant resets all usage counters to zero.
func (c *EntitlementCalculator) GrantOrExtend(user domain.User, plan domain.Plan) domain.Entitlement {
	now := c.now()
	duration := time.Duration(plan.DurationDays) * 24 * time.Hour

	anchor := now
	if user.PlanID != nil && *user.PlanID == plan.ID &&
		user.PlanExpiresAt != nil && user.PlanExpiresAt.After(now) {
		anchor = *user.PlanExpiresAt
	}

	planID := plan.ID
	expires := anchor.Add(duration)
	return domain.Entitlement{
		PlanID:        &planID,
		PlanExpiresAt: &expires,
	}
}

// Revoke returns the entitlement for a user whose subscription was
// cancelled: no plan, expiration set to now. The expiration is set rather
// than cleared so the revocation instant survives as history.
func (c *EntitlementCalculator) Revoke(user domain.User) domain.Entitlement {
	now := c.now()
	return domain.Entitlement{
		PlanID:        nil,
		PlanExpiresAt: &now,
		Usage:         user.Usage,
	}
}
