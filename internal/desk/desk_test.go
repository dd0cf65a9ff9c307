package desk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quorum/internal/council"
	"quorum/internal/delta"
	"quorum/internal/plan"
	"quorum/internal/signal"
	"quorum/internal/store"
	"quorum/internal/tuning"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type memPlanStore struct {
	mu    sync.Mutex
	plans map[string]*plan.Plan
}

func newMemPlanStore() *memPlanStore {
	return &memPlanStore{plans: make(map[string]*plan.Plan)}
}

func (s *memPlanStore) SavePlan(ctx context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.plans[p.ID] = &cp
	return nil
}

func (s *memPlanStore) GetPlan(ctx context.Context, planID string) (*plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.plans[planID]; ok {
		return p, nil
	}
	return nil, store.ErrPlanNotFound
}

func (s *memPlanStore) GetPlanByPosition(ctx context.Context, positionID string) (*plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.PositionID == positionID {
			return p, nil
		}
	}
	return nil, store.ErrPlanNotFound
}

func (s *memPlanStore) DeletePlan(ctx context.Context, positionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.plans {
		if p.PositionID == positionID {
			delete(s.plans, id)
		}
	}
	return nil
}

func (s *memPlanStore) ListPlans(ctx context.Context) ([]*plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*plan.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	return out, nil
}

func (s *memPlanStore) Close() error { return nil }

func (s *memPlanStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plans)
}

type stubSource struct {
	name string
	vote *signal.Vote
	err  error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) GetVote(ctx context.Context, symbol string) (*signal.Vote, error) {
	return s.vote, s.err
}

// swapSource lets a test move the module's opinion between refreshes.
type swapSource struct {
	mu   sync.Mutex
	name string
	vote signal.Vote
}

func (s *swapSource) Name() string { return s.name }

func (s *swapSource) GetVote(ctx context.Context, symbol string) (*signal.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vote
	return &v, nil
}

func (s *swapSource) set(v signal.Vote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vote = v
}

type stubPortfolio struct {
	mu        sync.Mutex
	positions []Position
	cash      decimal.Decimal
}

func (p *stubPortfolio) Positions(ctx context.Context) ([]Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Position(nil), p.positions...), nil
}

func (p *stubPortfolio) Cash(ctx context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash, nil
}

func (p *stubPortfolio) set(positions []Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions = positions
}

var testEntryDate = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func btcPosition() Position {
	return Position{
		ID:          "pos-1",
		Symbol:      "BTCUSDT",
		Quantity:    0.5,
		EntryPrice:  60000,
		EntryDate:   testEntryDate,
		MarketValue: decimal.NewFromInt(31000),
	}
}

func newTestDesk(t *testing.T, opts Options) *Desk {
	t.Helper()
	if opts.PlanStore == nil {
		opts.PlanStore = newMemPlanStore()
	}
	if opts.Tuning == nil {
		opts.Tuning = tuning.Static(tuning.Defaults())
	}
	if opts.Clock == nil {
		opts.Clock = fixedClock{at: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	}
	d, err := New(opts)
	require.NoError(t, err)
	d.Start()
	t.Cleanup(d.Stop)
	return d
}

func TestNew_RequiredDependencies(t *testing.T) {
	_, err := New(Options{Tuning: tuning.Static(tuning.Defaults())})
	assert.Error(t, err, "plan store is mandatory")

	_, err = New(Options{PlanStore: newMemPlanStore()})
	assert.Error(t, err, "tuning registry is mandatory")
}

func TestDesk_RefreshDecision(t *testing.T) {
	bull := &signal.Vote{Source: signal.SourceTechnical, Direction: 0.8, Confidence: 1, Coverage: 1}
	d := newTestDesk(t, Options{
		Sources: []signal.Source{
			stubSource{name: signal.SourceTechnical, vote: bull},
			stubSource{name: signal.SourceFundamental, vote: nil}, // no opinion
			stubSource{name: signal.SourceSentiment, err: errors.New("feed down")},
		},
	})

	dec, err := d.RefreshDecision(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", dec.Symbol)
	assert.Equal(t, council.AggressiveBuy, dec.Action)
	require.Len(t, dec.Votes, 1, "failed and silent modules drop out")

	cached, ok := d.Decision("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, dec.Action, cached.Action)
}

func TestDesk_RequestPlan(t *testing.T) {
	planStore := newMemPlanStore()
	pf := &stubPortfolio{positions: []Position{btcPosition()}, cash: decimal.NewFromInt(20000)}
	d := newTestDesk(t, Options{PlanStore: planStore, Portfolio: pf})
	ctx := context.Background()

	p, err := d.RequestPlan(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, "pos-1", p.PositionID)
	assert.Equal(t, plan.StatusActive, p.Status, "drafted plans go live immediately")
	assert.Equal(t, 60000.0, p.Entry.Price)
	assert.Equal(t, 1, planStore.count())

	t.Run("existing live plan wins", func(t *testing.T) {
		again, err := d.RequestPlan(ctx, "pos-1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, again.ID)
		assert.Equal(t, 1, planStore.count())
	})

	t.Run("unknown position", func(t *testing.T) {
		_, err := d.RequestPlan(ctx, "pos-404")
		assert.ErrorIs(t, err, ErrPositionNotFound)
	})

	t.Run("closed plan gives way to a fresh draft", func(t *testing.T) {
		pf.set(nil) // position leaves the book, the plan closes
		require.NoError(t, d.SyncPortfolio(ctx))
		pf.set([]Position{btcPosition()}) // re-entry
		require.NoError(t, d.SyncPortfolio(ctx))

		fresh, err := d.RequestPlan(ctx, "pos-1")
		require.NoError(t, err)
		assert.NotEqual(t, p.ID, fresh.ID)
		assert.Equal(t, plan.StatusActive, fresh.Status)
		assert.Equal(t, 1, planStore.count(), "the retired row is gone")
	})
}

func TestDesk_MarkStepDone(t *testing.T) {
	planStore := newMemPlanStore()
	pf := &stubPortfolio{positions: []Position{btcPosition()}}
	d := newTestDesk(t, Options{PlanStore: planStore, Portfolio: pf})
	ctx := context.Background()

	p, err := d.RequestPlan(ctx, "pos-1")
	require.NoError(t, err)
	bullish, ok := p.Scenario(plan.ScenarioBullish)
	require.True(t, ok)
	stepID := bullish.Steps[0].ID

	require.NoError(t, d.MarkStepDone(ctx, "pos-1", stepID))

	stored, err := planStore.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusPartiallyExecuted, stored.Status)
	assert.Contains(t, stored.ExecutedSteps, stepID)

	t.Run("unknown step", func(t *testing.T) {
		assert.ErrorIs(t, d.MarkStepDone(ctx, "pos-1", "nope"), plan.ErrStepNotFound)
	})

	t.Run("no plan", func(t *testing.T) {
		assert.Error(t, d.MarkStepDone(ctx, "pos-404", stepID))
	})
}

func TestDesk_PriceTick(t *testing.T) {
	planStore := newMemPlanStore()
	pf := &stubPortfolio{positions: []Position{btcPosition()}}
	d := newTestDesk(t, Options{PlanStore: planStore, Portfolio: pf})
	ctx := context.Background()

	_, err := d.RequestPlan(ctx, "pos-1")
	require.NoError(t, err)

	require.NoError(t, d.OnPrice("BTCUSDT", 66000))
	// the loop works envelopes in order, so a sync barrier flushes the tick
	require.NoError(t, d.SyncPortfolio(ctx))

	ps, ok := d.Snapshot().Positions["pos-1"]
	require.True(t, ok)
	assert.Equal(t, 66000.0, ps.Quote.Price)
	assert.Equal(t, 66000.0, ps.Plan.HighWaterMark, "new high is tracked")

	// ticks for unknown symbols are dropped quietly
	require.NoError(t, d.OnPrice("DOGEUSDT", 1))
	require.NoError(t, d.SyncPortfolio(ctx))
}

func TestDesk_SyncPortfolio_ClosesDepartedPlans(t *testing.T) {
	planStore := newMemPlanStore()
	pf := &stubPortfolio{positions: []Position{btcPosition()}}
	d := newTestDesk(t, Options{PlanStore: planStore, Portfolio: pf})
	ctx := context.Background()

	p, err := d.RequestPlan(ctx, "pos-1")
	require.NoError(t, err)

	pf.set(nil) // position exits the book
	require.NoError(t, d.SyncPortfolio(ctx))

	stored, err := planStore.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusClosed, stored.Status)
}

func TestDesk_Health(t *testing.T) {
	pf := &stubPortfolio{positions: []Position{btcPosition()}, cash: decimal.NewFromInt(20000)}
	d := newTestDesk(t, Options{Portfolio: pf})
	ctx := context.Background()
	require.NoError(t, d.SyncPortfolio(ctx))

	h, err := d.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Positions)
	// one uncovered position at 61% of the book with healthy cash
	codes := make([]string, 0, len(h.Findings))
	for _, f := range h.Findings {
		codes = append(codes, f.Code)
	}
	assert.ElementsMatch(t, []string{"concentration", "uncovered"}, codes)
}

func TestDesk_SnapshotIsolation(t *testing.T) {
	pf := &stubPortfolio{positions: []Position{btcPosition()}}
	d := newTestDesk(t, Options{Portfolio: pf})
	require.NoError(t, d.SyncPortfolio(context.Background()))

	snap := d.Snapshot()
	delete(snap.Positions, "pos-1")
	snap.Decisions["HACKUSDT"] = &council.Decision{}

	// a reader mauling its copy never leaks back into the loop's state
	require.NoError(t, d.SyncPortfolio(context.Background()))
	fresh := d.Snapshot()
	assert.Contains(t, fresh.Positions, "pos-1")
	assert.NotContains(t, fresh.Decisions, "HACKUSDT")
}

func TestDesk_SnapshotPlanIsolation(t *testing.T) {
	pf := &stubPortfolio{positions: []Position{btcPosition()}}
	d := newTestDesk(t, Options{Portfolio: pf})
	ctx := context.Background()

	p, err := d.RequestPlan(ctx, "pos-1")
	require.NoError(t, err)
	bullish, ok := p.Scenario(plan.ScenarioBullish)
	require.True(t, ok)

	before := d.Snapshot().Positions["pos-1"].Plan
	assert.Zero(t, before.CompletionRatio())

	require.NoError(t, d.MarkStepDone(ctx, "pos-1", bullish.Steps[0].ID))

	// the snapshot taken before the mutation never moves under its reader
	assert.Zero(t, before.CompletionRatio())
	assert.Equal(t, plan.StatusActive, before.Status)

	after := d.Snapshot().Positions["pos-1"].Plan
	assert.InDelta(t, 1.0/6.0, after.CompletionRatio(), 1e-9)
}

func TestDesk_DriftAnchoredAtPlanEntry(t *testing.T) {
	src := &swapSource{
		name: signal.SourceTechnical,
		vote: signal.Vote{Source: signal.SourceTechnical, Direction: 0.4, Confidence: 1, Coverage: 1},
	}
	pf := &stubPortfolio{positions: []Position{btcPosition()}}
	d := newTestDesk(t, Options{Sources: []signal.Source{src}, Portfolio: pf})
	ctx := context.Background()

	p, err := d.RequestPlan(ctx, "pos-1")
	require.NoError(t, err)
	require.Equal(t, council.Accumulate, p.Entry.Action, "the drafting decision is the anchor")

	// walk the live decision down one band per refresh; a pass-over-pass
	// comparison would never leave Medium
	for _, dir := range []float64{0.0, -0.4, -0.9} {
		src.set(signal.Vote{Source: signal.SourceTechnical, Direction: dir, Confidence: 1, Coverage: 1})
		_, err := d.RefreshDecision(ctx, "BTCUSDT")
		require.NoError(t, err)
	}

	ps, ok := d.Snapshot().Positions["pos-1"]
	require.True(t, ok)
	require.NotNil(t, ps.LastDelta)
	assert.Equal(t, delta.Critical, ps.LastDelta.Significance,
		"accumulate at entry to liquidate now is a three-band move")
}

func TestDesk_Hydrate(t *testing.T) {
	planStore := newMemPlanStore()
	seed, err := plan.Draft(plan.DraftInput{
		PositionID: "pos-1",
		Symbol:     "BTCUSDT",
		Entry:      plan.EntrySnapshot{Price: 60000, Quantity: 0.5, Date: testEntryDate},
		Decision:   council.Decision{Symbol: "BTCUSDT", Action: council.Accumulate},
		Params:     tuning.Defaults().Plan,
	}, testEntryDate)
	require.NoError(t, err)
	require.NoError(t, planStore.SavePlan(context.Background(), seed))

	d, err := New(Options{
		PlanStore: planStore,
		Tuning:    tuning.Static(tuning.Defaults()),
		Clock:     fixedClock{at: testEntryDate},
	})
	require.NoError(t, err)
	require.NoError(t, d.Hydrate(context.Background()))

	ps, ok := d.Snapshot().Positions["pos-1"]
	require.True(t, ok)
	require.NotNil(t, ps.Plan)
	assert.Equal(t, seed.ID, ps.Plan.ID)
	assert.Equal(t, "BTCUSDT", ps.Position.Symbol)
}

func TestFilePortfolio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	doc := `{
		"cash": 20000,
		"positions": [
			{"id": "pos-1", "symbol": "btcusdt", "quantity": 0.5,
			 "entry_price": 60000, "entry_date": "2026-05-01T00:00:00Z",
			 "market_value": 31000},
			{"id": "pos-2", "symbol": "ETHUSDT", "quantity": 8, "entry_price": 2400}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	pf := NewFilePortfolio(path)
	ctx := context.Background()

	cash, err := pf.Cash(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(decimal.NewFromInt(20000)))

	positions, err := pf.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, "BTCUSDT", positions[0].Symbol, "symbols are uppercased")
	assert.True(t, positions[0].MarketValue.Equal(decimal.NewFromInt(31000)))
	assert.Equal(t, testEntryDate, positions[0].EntryDate)
	// market value defaults to quantity x entry price
	assert.True(t, positions[1].MarketValue.Equal(decimal.NewFromInt(19200)))

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFilePortfolio(filepath.Join(t.TempDir(), "gone.json")).Positions(ctx)
		assert.Error(t, err)
	})
}
