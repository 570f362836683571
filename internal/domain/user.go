package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageCounters tracks per-feature consumption within the current
// entitlement period. All counters are zeroed whenever a plan is granted.
type UsageCounters struct {
	TranscriptionCount   int64 `json:"transcription_count"`
	TranscriptionMinutes int64 `json:"transcription_minutes"`
	AgentUses            int64 `json:"agent_uses"`
	AssistantUses        int64 `json:"assistant_uses"`
}

// User represents a platform user and their entitlement state.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string

	// PlanID references the plan the user last paid for. It may be stale:
	// once PlanExpiresAt has passed the user has no active entitlement
	// regardless of this value (lazy expiration).
	PlanID *uuid.UUID

	// PlanExpiresAt is the end of the paid period. Nil means the user never
	// held an entitlement.
	PlanExpiresAt *time.Time

	Usage UsageCounters

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveEntitlement reports whether the user holds an unexpired plan at
// the given instant. A stale PlanID with a past expiration counts as no plan.
func (u *User) HasActiveEntitlement(now time.Time) bool {
	return u.PlanID != nil && u.PlanExpiresAt != nil && u.PlanExpiresAt.After(now)
}

// Entitlement is the plan-derived state written back to a user after a
// grant or revocation: the plan reference, the expiration, and the reset
// usage counters. Persisted atomically in a single update.
type Entitlement struct {
	PlanID        *uuid.UUID
	PlanExpiresAt *time.Time
	Usage         UsageCounters
}
