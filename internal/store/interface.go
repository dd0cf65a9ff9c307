package store

import (
	"context"
	"errors"

	"quorum/internal/plan"
)

// ErrPlanNotFound is returned when a lookup misses. Callers branch on it
// with errors.Is; the HTTP layer maps it to 404.
var ErrPlanNotFound = errors.New("plan not found")

// PlanStore persists position plans. One plan row per position: drafting a
// replacement deletes the retired row first, then saves the fresh one.
type PlanStore interface {
	SavePlan(ctx context.Context, p *plan.Plan) error
	GetPlan(ctx context.Context, planID string) (*plan.Plan, error)
	GetPlanByPosition(ctx context.Context, positionID string) (*plan.Plan, error)
	DeletePlan(ctx context.Context, positionID string) error
	ListPlans(ctx context.Context) ([]*plan.Plan, error)
	Close() error
}
