package desk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"quorum/internal/council"
	"quorum/internal/delta"
	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/pattern"
	"quorum/internal/plan"
	"quorum/internal/signal"
	"quorum/internal/store"
	"quorum/internal/store/decisionlog"

	"golang.org/x/sync/errgroup"
)

// ErrPositionNotFound marks an unknown position ID.
var ErrPositionNotFound = errors.New("position not found")

const (
	voteTimeout     = 20 * time.Second
	refreshLookback = 120
)

func (d *Desk) handleRefreshDecision(evt EventEnvelope) error {
	var req refreshDecisionPayload
	if err := json.Unmarshal(evt.Payload, &req); err != nil {
		return fmt.Errorf("decode refresh payload: %w", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return fmt.Errorf("refresh requires a symbol")
	}
	_, err := d.refreshSymbol(symbol)
	return err
}

// refreshSymbol runs one full evaluation pass for a symbol: votes, stance,
// fusion, pattern, drift. Runs inside the event loop.
func (d *Desk) refreshSymbol(symbol string) (*council.Decision, error) {
	ctx, cancel := context.WithTimeout(context.Background(), voteTimeout)
	defer cancel()
	now := d.clock.Now()
	params := d.tuningReg.Params()

	stance := signal.StanceCautious
	if d.stance != nil {
		s, err := d.stance.Stance(ctx)
		if err != nil {
			logger.Warnf("Desk: stance fetch degraded, using last known: %v", err)
		}
		if s != "" {
			stance = s
		}
	}

	votes := d.gatherVotes(ctx, symbol)
	dec := council.Fuse(symbol, votes, stance, params.Council, now)

	var candles []market.Candle
	var priceCtx market.PriceContext
	if d.marketSrc != nil {
		var err error
		candles, err = d.marketSrc.FetchHistory(ctx, symbol, d.interval, refreshLookback)
		if err != nil {
			logger.Warnf("Desk: candle fetch for %s failed, pattern pass degraded: %v", symbol, err)
		}
		priceCtx = market.BuildPriceContext(candles)
	}
	pat := pattern.Classify(votes, priceCtx, stance, params.Pattern, now)

	d.state.Decisions[symbol] = &dec
	if d.audit != nil {
		if err := d.audit.AppendDecision(context.Background(), dec); err != nil {
			logger.Errorf("Desk: decision audit append failed: %v", err)
		}
	}

	if posID, ok := d.state.BySymbol[symbol]; ok {
		ps := d.state.Positions[posID]
		ps.LastDecision = &dec
		ps.LastPattern = pat
		d.trackDrift(ps, symbol, candles, dec, now)
	}
	logger.Infof("Desk: %s fused to %s (score=%.2f conf=%.2f vetoes=%d)",
		symbol, dec.Action, dec.Score, dec.Confidence, len(dec.VetoReasons))
	return &dec, nil
}

// gatherVotes queries every signal module concurrently. A failed module is
// logged and skipped; the council handles the shrunken vote set.
func (d *Desk) gatherVotes(ctx context.Context, symbol string) []signal.Vote {
	results := make([]*signal.Vote, len(d.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range d.sources {
		i, src := i, src
		g.Go(func() error {
			vote, err := src.GetVote(gctx, symbol)
			if err != nil {
				logger.Warnf("Desk: %s vote for %s failed: %v", src.Name(), symbol, err)
				return nil
			}
			results[i] = vote
			return nil
		})
	}
	_ = g.Wait()
	votes := make([]signal.Vote, 0, len(results))
	for _, v := range results {
		if v != nil {
			votes = append(votes, *v)
		}
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].Source < votes[j].Source })
	return votes
}

// trackDrift measures the fresh observation against the plan's entry
// snapshot. The snapshot is the fixed anchor: every pass compares to the
// state the plan was drafted under, not to the previous pass. Drift of High
// or worse raises an alert.
func (d *Desk) trackDrift(ps *PositionState, symbol string, candles []market.Candle, dec council.Decision, now time.Time) {
	obs := delta.Observation{Action: dec.Action, At: now}
	if len(candles) > 0 {
		obs.Price = candles[len(candles)-1].Close
		score, _ := signal.ScoreCandles(candles)
		obs.Technical = score
		obs.Momentum = signal.MomentumScore(candles)
	} else if ps.Quote.Price > 0 {
		obs.Price = ps.Quote.Price
	}
	ps.LastObservation = &obs

	p := ps.Plan
	if p == nil || p.Status == plan.StatusClosed {
		ps.LastDelta = nil
		return
	}
	anchor := delta.Observation{
		Price:     p.Entry.Price,
		Technical: p.Entry.Technical,
		Momentum:  p.Entry.Momentum,
		Action:    p.Entry.Action,
		At:        p.CreatedAt,
	}
	rep := delta.Compute(ps.Position.ID, anchor, obs, d.tuningReg.Params().Delta)
	ps.LastDelta = &rep
	if rep.Significance >= delta.High && d.audit != nil {
		if err := d.audit.AppendAlert(context.Background(), decisionlog.DriftAlert(symbol, rep)); err != nil {
			logger.Errorf("Desk: drift alert append failed: %v", err)
		}
	}
}

func (d *Desk) handleRequestPlan(evt EventEnvelope) error {
	var req requestPlanPayload
	if err := json.Unmarshal(evt.Payload, &req); err != nil {
		return fmt.Errorf("decode request plan payload: %w", err)
	}
	positionID := strings.TrimSpace(req.PositionID)
	ps, ok := d.state.Positions[positionID]
	if !ok {
		if err := d.lookupPosition(positionID); err != nil {
			return err
		}
		ps = d.state.Positions[positionID]
	}

	if ps.Plan != nil && ps.Plan.Status != plan.StatusClosed {
		// Existing live plan wins; a fresh draft needs an explicit close first.
		return nil
	}

	dec := ps.LastDecision
	if dec == nil {
		fresh, err := d.refreshSymbol(ps.Position.Symbol)
		if err != nil {
			return err
		}
		dec = fresh
	}

	entry := plan.EntrySnapshot{
		Price:    ps.Position.EntryPrice,
		Quantity: ps.Position.Quantity,
		Date:     ps.Position.EntryDate,
	}
	if obs := ps.LastObservation; obs != nil {
		entry.Technical = obs.Technical
		entry.Momentum = obs.Momentum
	}
	snap := d.tuningReg.Snapshot()
	now := d.clock.Now()
	newPlan, err := plan.Draft(plan.DraftInput{
		PositionID: positionID,
		Symbol:     ps.Position.Symbol,
		Entry:      entry,
		Decision:   *dec,
		Pattern:    ps.LastPattern,
		Params:     snap.Params.Plan,
		TuningVer:  snap.Version,
	}, now)
	if err != nil {
		return err
	}
	newPlan.Activate(now)
	// Any earlier plan row for the position gives way to the fresh draft.
	if err := d.planStore.DeletePlan(context.Background(), positionID); err != nil {
		return fmt.Errorf("retire previous plan: %w", err)
	}
	if err := d.planStore.SavePlan(context.Background(), newPlan); err != nil {
		return fmt.Errorf("persist plan: %w", err)
	}
	ps.Plan = newPlan
	logger.Infof("Desk: drafted plan %s for %s (%s)", newPlan.ID, positionID, ps.Position.Symbol)
	return nil
}

// lookupPosition pulls a single position from the portfolio provider into
// state.
func (d *Desk) lookupPosition(positionID string) error {
	if d.portfolio == nil {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	positions, err := d.portfolio.Positions(ctx)
	if err != nil {
		return fmt.Errorf("portfolio lookup: %w", err)
	}
	for _, pos := range positions {
		if pos.ID == positionID {
			d.mergePositions([]Position{pos})
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
}

func (d *Desk) handleMarkStepDone(evt EventEnvelope) error {
	var req markStepDonePayload
	if err := json.Unmarshal(evt.Payload, &req); err != nil {
		return fmt.Errorf("decode mark step payload: %w", err)
	}
	ps, ok := d.state.Positions[strings.TrimSpace(req.PositionID)]
	if !ok || ps.Plan == nil {
		return fmt.Errorf("%w for position %s", store.ErrPlanNotFound, req.PositionID)
	}
	now := d.clock.Now()
	if err := ps.Plan.MarkDone(req.StepID, now); err != nil {
		return err
	}
	if err := d.planStore.SavePlan(context.Background(), ps.Plan); err != nil {
		return fmt.Errorf("persist step execution: %w", err)
	}
	logger.Infof("Desk: step %s done on plan %s (completion %.0f%%)",
		req.StepID, ps.Plan.ID, ps.Plan.CompletionRatio()*100)
	return nil
}

func (d *Desk) handlePriceTick(evt EventEnvelope) error {
	var req priceTickPayload
	if err := json.Unmarshal(evt.Payload, &req); err != nil {
		return fmt.Errorf("decode price tick payload: %w", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	posID, ok := d.state.BySymbol[symbol]
	if !ok {
		return nil
	}
	ps := d.state.Positions[posID]
	now := d.clock.Now()
	ps.Quote = market.Quote{Symbol: symbol, Price: req.Price, UpdatedAt: now}
	if ps.Plan == nil || ps.Plan.Status == plan.StatusClosed {
		return nil
	}
	if ps.Plan.ObservePrice(req.Price, now) {
		if err := d.planStore.SavePlan(context.Background(), ps.Plan); err != nil {
			logger.Errorf("Desk: high-water persist failed: %v", err)
		}
	}
	eval := plan.Evaluate(ps.Plan, req.Price, now)
	for _, ready := range eval.Ready {
		d.raiseStepAlert(ps, symbol, ready)
	}
	return nil
}

func (d *Desk) raiseStepAlert(ps *PositionState, symbol string, ready plan.ReadyStep) {
	if d.audit == nil {
		return
	}
	rec := decisionlog.AlertRecord{
		Timestamp:  d.clock.Now().Unix(),
		PositionID: ps.Position.ID,
		Symbol:     symbol,
		Kind:       decisionlog.AlertStepReady,
		Message: fmt.Sprintf("%s scenario: %s (%s)",
			ready.Scenario, ready.Step.Instruction, ready.Step.Trigger.Describe()),
	}
	if err := d.audit.AppendAlert(context.Background(), rec); err != nil {
		logger.Errorf("Desk: step alert append failed: %v", err)
	}
}

func (d *Desk) handleSyncPortfolio(evt EventEnvelope) error {
	if d.portfolio == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	positions, err := d.portfolio.Positions(ctx)
	if err != nil {
		return fmt.Errorf("portfolio sync: %w", err)
	}
	d.mergePositions(positions)

	// Close plans whose positions are gone.
	live := make(map[string]bool, len(positions))
	for _, pos := range positions {
		live[pos.ID] = true
	}
	now := d.clock.Now()
	for id, ps := range d.state.Positions {
		if live[id] || ps.Plan == nil || ps.Plan.Status == plan.StatusClosed {
			continue
		}
		ps.Plan.Close(now, "position no longer held")
		if err := d.planStore.SavePlan(context.Background(), ps.Plan); err != nil {
			logger.Errorf("Desk: plan close persist failed: %v", err)
		}
		logger.Infof("Desk: closed plan %s, position %s left the book", ps.Plan.ID, id)
	}
	logger.Infof("Desk: portfolio sync merged %d positions", len(positions))
	return nil
}

// mergePositions upserts provider positions into state without disturbing
// plans or decisions already attached.
func (d *Desk) mergePositions(positions []Position) {
	for _, pos := range positions {
		sym := strings.ToUpper(strings.TrimSpace(pos.Symbol))
		if pos.ID == "" || sym == "" {
			continue
		}
		pos.Symbol = sym
		if existing, ok := d.state.Positions[pos.ID]; ok {
			existing.Position = pos
		} else {
			d.state.Positions[pos.ID] = &PositionState{Position: pos}
		}
		d.state.BySymbol[sym] = pos.ID
	}
}
