package domain

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a catalog entry users can subscribe to. Read-only from the
// billing core's perspective.
type Plan struct {
	ID           uuid.UUID
	Name         string
	PriceCents   int64
	Currency     string
	DurationDays int32
	Active       bool
	CreatedAt    time.Time
}

// Price returns the plan price in major currency units, as expected by the
// payment gateway's recurring-amount field.
func (p *Plan) Price() float64 {
	return float64(p.PriceCents) / 100
}
