package desk

import (
	"context"
	"fmt"
	"strings"

	"quorum/internal/council"
	"quorum/internal/delta"
	"quorum/internal/market"
	"quorum/internal/plan"
	"quorum/internal/risk"
	"quorum/internal/store"

	"github.com/shopspring/decimal"
)

// RequestPlan drafts (or returns the existing live) plan for a position.
func (d *Desk) RequestPlan(ctx context.Context, positionID string) (*plan.Plan, error) {
	positionID = strings.TrimSpace(positionID)
	if positionID == "" {
		return nil, fmt.Errorf("position id is required")
	}
	evt, err := newEnvelope(EventRequestPlan, requestPlanPayload{PositionID: positionID})
	if err != nil {
		return nil, err
	}
	if err := d.SendSync(ctx, evt); err != nil {
		return nil, err
	}
	snap := d.Snapshot()
	ps, ok := snap.Positions[positionID]
	if !ok || ps.Plan == nil {
		return nil, fmt.Errorf("%w for position %s", store.ErrPlanNotFound, positionID)
	}
	return ps.Plan, nil
}

// RefreshDecision re-runs the full evaluation pass for a symbol and returns
// the fused decision.
func (d *Desk) RefreshDecision(ctx context.Context, symbol string) (council.Decision, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return council.Decision{}, fmt.Errorf("symbol is required")
	}
	evt, err := newEnvelope(EventRefreshDecision, refreshDecisionPayload{Symbol: symbol})
	if err != nil {
		return council.Decision{}, err
	}
	if err := d.SendSync(ctx, evt); err != nil {
		return council.Decision{}, err
	}
	if dec, ok := d.Snapshot().Decisions[symbol]; ok {
		return *dec, nil
	}
	return council.Decision{}, fmt.Errorf("no decision produced for %s", symbol)
}

// MarkStepDone records a confirmed step execution on the position's plan.
func (d *Desk) MarkStepDone(ctx context.Context, positionID, stepID string) error {
	evt, err := newEnvelope(EventMarkStepDone, markStepDonePayload{
		PositionID: strings.TrimSpace(positionID),
		StepID:     strings.TrimSpace(stepID),
	})
	if err != nil {
		return err
	}
	return d.SendSync(ctx, evt)
}

// OnPrice feeds a quote into the desk asynchronously.
func (d *Desk) OnPrice(symbol string, price float64) error {
	evt, err := newEnvelope(EventPriceTick, priceTickPayload{Symbol: symbol, Price: price})
	if err != nil {
		return err
	}
	return d.Send(evt)
}

// SyncPortfolio reconciles desk state with the portfolio provider.
func (d *Desk) SyncPortfolio(ctx context.Context) error {
	evt, err := newEnvelope(EventSyncPortfolio, struct{}{})
	if err != nil {
		return err
	}
	return d.SendSync(ctx, evt)
}

// Health scores the current book. A pure read off the latest snapshot; cash
// comes from the portfolio provider when one is wired.
func (d *Desk) Health(ctx context.Context) (risk.Health, error) {
	snap := d.Snapshot()
	cash := decimal.Zero
	if d.portfolio != nil {
		c, err := d.portfolio.Cash(ctx)
		if err != nil {
			return risk.Health{}, fmt.Errorf("portfolio cash: %w", err)
		}
		cash = c
	}
	pf := risk.Portfolio{Cash: cash}
	for _, ps := range snap.Positions {
		covered := ps.Plan != nil &&
			(ps.Plan.Status == plan.StatusActive || ps.Plan.Status == plan.StatusPartiallyExecuted)
		band := delta.Low
		if ps.LastDelta != nil {
			band = ps.LastDelta.Significance
		}
		pf.Holdings = append(pf.Holdings, risk.Holding{
			PositionID:  ps.Position.ID,
			Symbol:      ps.Position.Symbol,
			MarketValue: ps.Position.MarketValue,
			Covered:     covered,
			DriftBand:   band,
		})
	}
	return risk.CheckHealth(pf, d.tuningReg.Params().Risk, d.clock.Now()), nil
}

// PlanByPosition reads a plan straight from the snapshot, falling back to
// the store for positions the desk has not touched yet.
func (d *Desk) PlanByPosition(ctx context.Context, positionID string) (*plan.Plan, error) {
	if ps, ok := d.Snapshot().Positions[positionID]; ok && ps.Plan != nil {
		return ps.Plan, nil
	}
	return d.planStore.GetPlanByPosition(ctx, positionID)
}

// Decision returns the cached decision for a symbol, if any.
func (d *Desk) Decision(symbol string) (council.Decision, bool) {
	dec, ok := d.Snapshot().Decisions[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return council.Decision{}, false
	}
	return *dec, true
}

// FetchQuote pulls the current price from the market source. Read-only, no
// desk state involved.
func (d *Desk) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	if d.marketSrc == nil {
		return market.Quote{}, fmt.Errorf("no market source configured")
	}
	return d.marketSrc.FetchQuote(ctx, symbol)
}

// Evaluate runs the pure plan read-out for a position at the given price.
func (d *Desk) Evaluate(ctx context.Context, positionID string, price float64) (plan.Evaluation, error) {
	p, err := d.PlanByPosition(ctx, positionID)
	if err != nil {
		return plan.Evaluation{}, err
	}
	return plan.Evaluate(p, price, d.clock.Now()), nil
}
