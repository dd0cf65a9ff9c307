// Package desk hosts the decision desk actor. A single event loop owns all
// position state, so every mutation for a given position is serialized by
// construction; readers work off atomic snapshots and never touch the live
// maps.
package desk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"quorum/internal/logger"
	"quorum/internal/market"
	"quorum/internal/signal"
	"quorum/internal/store"
	"quorum/internal/store/decisionlog"
	"quorum/internal/tuning"

	"github.com/google/uuid"
)

// ErrStopped is returned for sends against a stopped desk.
var ErrStopped = errors.New("desk is stopped")

const slowEventWarn = 100 * time.Millisecond

// Desk wires the analysis modules, plan engine and stores behind one actor.
type Desk struct {
	sources   []signal.Source
	stance    signal.StanceProvider
	marketSrc market.Source
	planStore store.PlanStore
	audit     *decisionlog.Store
	portfolio PortfolioProvider
	tuningReg *tuning.Registry
	clock     market.Clock

	interval string // candle interval for refreshes

	msgCh  chan EventEnvelope
	stopCh chan struct{}
	wg     sync.WaitGroup

	state *State

	stateSnapshot    atomic.Value
	snapshotThrottle time.Duration
	lastSnapshot     time.Time

	handlers map[EventType]handlerFunc
}

type handlerFunc func(d *Desk, evt EventEnvelope) error

// Options collects the desk's dependencies.
type Options struct {
	Sources   []signal.Source
	Stance    signal.StanceProvider
	Market    market.Source
	PlanStore store.PlanStore
	Audit     *decisionlog.Store
	Portfolio PortfolioProvider
	Tuning    *tuning.Registry
	Clock     market.Clock
	Interval  string
}

func New(opts Options) (*Desk, error) {
	if opts.PlanStore == nil {
		return nil, fmt.Errorf("desk requires a plan store")
	}
	if opts.Tuning == nil {
		return nil, fmt.Errorf("desk requires a tuning registry")
	}
	if opts.Clock == nil {
		opts.Clock = market.SystemClock{}
	}
	if opts.Interval == "" {
		opts.Interval = "1d"
	}
	d := &Desk{
		sources:          opts.Sources,
		stance:           opts.Stance,
		marketSrc:        opts.Market,
		planStore:        opts.PlanStore,
		audit:            opts.Audit,
		portfolio:        opts.Portfolio,
		tuningReg:        opts.Tuning,
		clock:            opts.Clock,
		interval:         opts.Interval,
		msgCh:            make(chan EventEnvelope, 100),
		stopCh:           make(chan struct{}),
		state:            NewState(),
		snapshotThrottle: 50 * time.Millisecond,
	}
	d.handlers = map[EventType]handlerFunc{
		EventRequestPlan:     (*Desk).handleRequestPlan,
		EventRefreshDecision: (*Desk).handleRefreshDecision,
		EventMarkStepDone:    (*Desk).handleMarkStepDone,
		EventPriceTick:       (*Desk).handlePriceTick,
		EventSyncPortfolio:   (*Desk).handleSyncPortfolio,
	}
	d.refreshSnapshot(true)
	return d, nil
}

// Hydrate rebuilds in-memory state from the plan store and portfolio
// provider. Called once before Start.
func (d *Desk) Hydrate(ctx context.Context) error {
	plans, err := d.planStore.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("hydrate plans: %w", err)
	}
	for _, p := range plans {
		ps := &PositionState{
			Position: Position{
				ID:         p.PositionID,
				Symbol:     p.Symbol,
				EntryPrice: p.Entry.Price,
				Quantity:   p.Entry.Quantity,
				EntryDate:  p.Entry.Date,
			},
			Plan: p,
		}
		d.state.Positions[p.PositionID] = ps
		d.state.BySymbol[p.Symbol] = p.PositionID
	}
	if d.portfolio != nil {
		positions, err := d.portfolio.Positions(ctx)
		if err != nil {
			logger.Warnf("Desk: portfolio hydrate failed, plans only: %v", err)
		} else {
			d.mergePositions(positions)
		}
	}
	d.refreshSnapshot(true)
	logger.Infof("Desk: hydrated %d positions from store", len(d.state.Positions))
	return nil
}

func (d *Desk) Start() {
	d.wg.Add(1)
	go d.runLoop()
}

func (d *Desk) Stop() {
	close(d.stopCh)
	d.wg.Wait()
	if d.audit != nil {
		if err := d.audit.Close(); err != nil {
			logger.Warnf("Desk: audit store close failed: %v", err)
		}
	}
	if err := d.planStore.Close(); err != nil {
		logger.Warnf("Desk: plan store close failed: %v", err)
	}
}

func (d *Desk) Send(evt EventEnvelope) error {
	select {
	case d.msgCh <- evt:
		return nil
	case <-d.stopCh:
		return ErrStopped
	}
}

// SendSync submits an event and waits for the handler to finish.
func (d *Desk) SendSync(ctx context.Context, evt EventEnvelope) error {
	if evt.ReplyCh == nil {
		evt.ReplyCh = make(chan error, 1)
	}
	if err := d.Send(evt); err != nil {
		return err
	}
	select {
	case err := <-evt.ReplyCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopCh:
		return ErrStopped
	}
}

// Snapshot returns the latest published state copy.
func (d *Desk) Snapshot() *State {
	val := d.stateSnapshot.Load()
	if val == nil {
		return NewState()
	}
	return val.(*State)
}

func (d *Desk) refreshSnapshot(force bool) {
	now := d.clock.Now()
	if !force && d.snapshotThrottle > 0 && !d.lastSnapshot.IsZero() {
		if now.Sub(d.lastSnapshot) < d.snapshotThrottle {
			return
		}
	}
	d.stateSnapshot.Store(d.state.clone())
	d.lastSnapshot = now
}

func (d *Desk) runLoop() {
	defer d.wg.Done()
	logger.Infof("Desk actor started")
	for {
		select {
		case evt := <-d.msgCh:
			d.handleEvent(evt)
		case <-d.stopCh:
			logger.Infof("Desk actor stopping")
			return
		}
	}
}

// handleEvent dispatches one envelope. Panics are contained per event, slow
// handlers get logged, and the reply channel always unblocks the caller.
func (d *Desk) handleEvent(evt EventEnvelope) {
	var err error
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Desk panic handling event %s: %v", evt.Type, r)
			debug.PrintStack()
			err = fmt.Errorf("panic: %v", r)
		}
		if evt.ReplyCh != nil {
			evt.ReplyCh <- err
			close(evt.ReplyCh)
		}
		if dur := time.Since(start); dur > slowEventWarn {
			logger.Warnf("Slow desk event %s took %v", evt.Type, dur)
		}
	}()

	handler, ok := d.handlers[evt.Type]
	if !ok {
		logger.Warnf("No handler registered for desk event type: %s", evt.Type)
		return
	}
	err = handler(d, evt)
	if err != nil {
		logger.Errorf("Desk failed to handle %s: %v", evt.Type, err)
	}
	// A waiting caller reads the snapshot the moment the reply lands, so the
	// throttle must not apply to synchronous events.
	d.refreshSnapshot(evt.ReplyCh != nil)
}

func newEnvelope(t EventType, payload any) (EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   raw,
		CreatedAt: time.Now(),
	}, nil
}
