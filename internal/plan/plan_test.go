package plan

import (
	"testing"

	"quorum/internal/council"
	"quorum/internal/signal"
	"quorum/internal/tuning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftTestPlan(t *testing.T) *Plan {
	t.Helper()
	p, err := Draft(DraftInput{
		PositionID: "pos-1",
		Symbol:     "BTCUSDT",
		Entry:      EntrySnapshot{Price: 100, Quantity: 2, Date: entryDate},
		Decision: council.Decision{
			Symbol:     "BTCUSDT",
			Action:     council.Accumulate,
			Score:      0.35,
			Confidence: 0.7,
			Stance:     signal.StanceRiskOn,
			Votes: []signal.Vote{
				{Source: signal.SourceTechnical, Direction: 0.5, Rationale: "trend above both EMAs"},
			},
		},
		Params:    tuning.Defaults().Plan,
		TuningVer: 3,
	}, entryDate)
	require.NoError(t, err)
	return p
}

func TestDraft(t *testing.T) {
	p := draftTestPlan(t)

	assert.Equal(t, StatusDrafted, p.Status)
	assert.Equal(t, 6, p.StepCount())
	assert.Equal(t, 100.0, p.HighWaterMark, "seeded from entry")
	assert.Equal(t, int64(3), p.TuningVersion)
	require.Len(t, p.Journal, 1)
	assert.Equal(t, "drafted", p.Journal[0].Event)

	for _, name := range []ScenarioName{ScenarioBullish, ScenarioNeutral, ScenarioBearish} {
		sc, ok := p.Scenario(name)
		require.Truef(t, ok, "missing scenario %s", name)
		assert.Len(t, sc.Steps, 2)
		assert.Less(t, sc.Steps[0].Priority, sc.Steps[1].Priority)
		for _, st := range sc.Steps {
			assert.NotEmpty(t, st.ID)
			assert.NoError(t, st.Trigger.Validate())
		}
	}

	assert.Contains(t, p.Thesis, "accumulate")
	assert.Contains(t, p.Thesis, "Technical: trend above both EMAs")
	assert.Contains(t, p.Invalidation, "16%")
	assert.Contains(t, p.Invalidation, "45 days")

	// the drafting decision is frozen into the entry snapshot
	assert.Equal(t, council.Accumulate, p.Entry.Action)
	assert.Equal(t, 0.7, p.Entry.Confidence)
	assert.Equal(t, signal.StanceRiskOn, p.Entry.Stance)
}

func TestDraft_RejectsBadEntry(t *testing.T) {
	in := DraftInput{
		PositionID: "pos-1",
		Symbol:     "BTCUSDT",
		Params:     tuning.Defaults().Plan,
	}

	in.Entry = EntrySnapshot{Price: 0, Date: entryDate}
	_, err := Draft(in, entryDate)
	assert.ErrorIs(t, err, ErrInvalidEntryContext)

	in.Entry = EntrySnapshot{Price: 100}
	_, err = Draft(in, entryDate)
	assert.ErrorIs(t, err, ErrInvalidEntryContext)
}

func TestPlan_MarkDone(t *testing.T) {
	p := draftTestPlan(t)
	p.Activate(entryDate)
	bull, _ := p.Scenario(ScenarioBullish)
	first := bull.Steps[0].ID
	now := entryDate.AddDate(0, 0, 5)

	t.Run("records execution", func(t *testing.T) {
		require.NoError(t, p.MarkDone(first, now))
		assert.Equal(t, StatusPartiallyExecuted, p.Status)
		assert.Equal(t, now, p.ExecutedSteps[first])
		assert.InDelta(t, 1.0/6.0, p.CompletionRatio(), 1e-9)
	})

	t.Run("idempotent re-mark keeps the first timestamp", func(t *testing.T) {
		later := now.AddDate(0, 0, 1)
		require.NoError(t, p.MarkDone(first, later))
		assert.Equal(t, now, p.ExecutedSteps[first])
		assert.InDelta(t, 1.0/6.0, p.CompletionRatio(), 1e-9)
	})

	t.Run("unknown step", func(t *testing.T) {
		assert.ErrorIs(t, p.MarkDone("nope", now), ErrStepNotFound)
	})

	t.Run("full completion keeps the plan open", func(t *testing.T) {
		for _, sc := range p.Scenarios {
			for _, st := range sc.Steps {
				require.NoError(t, p.MarkDone(st.ID, now))
			}
		}
		assert.Equal(t, StatusPartiallyExecuted, p.Status, "only position closure retires a plan")
		assert.InDelta(t, 1.0, p.CompletionRatio(), 1e-9)
	})

	t.Run("closed plan rejects mutation", func(t *testing.T) {
		p.Close(now, "position exited")
		assert.ErrorIs(t, p.MarkDone(first, now), ErrPlanClosed)
	})
}

func TestPlan_Lifecycle(t *testing.T) {
	p := draftTestPlan(t)
	now := entryDate.AddDate(0, 0, 1)

	p.Activate(now)
	assert.Equal(t, StatusActive, p.Status)

	// activate is a no-op off the drafted state
	p.Activate(now.AddDate(0, 0, 1))
	assert.Len(t, p.Journal, 2)

	p.Close(now.AddDate(0, 0, 2), "position exited")
	assert.Equal(t, StatusClosed, p.Status)
	last := p.Journal[len(p.Journal)-1]
	assert.Equal(t, "closed", last.Event)
	assert.Equal(t, "position exited", last.Detail)
}

func TestPlan_Clone(t *testing.T) {
	p := draftTestPlan(t)
	p.Activate(entryDate)
	bull, _ := p.Scenario(ScenarioBullish)

	cp := p.Clone()
	require.NoError(t, cp.MarkDone(bull.Steps[0].ID, entryDate.AddDate(0, 0, 3)))
	cp.Scenarios[0].Steps[0].Priority = 99
	cp.Journal = append(cp.Journal, Revision{Event: "extra"})

	assert.Empty(t, p.ExecutedSteps, "the original never sees the copy's execution")
	assert.Equal(t, 1, p.Scenarios[0].Steps[0].Priority)
	assert.Len(t, p.Journal, 2)
}

func TestPlan_ObservePrice(t *testing.T) {
	p := draftTestPlan(t)
	now := entryDate.AddDate(0, 0, 2)

	assert.True(t, p.ObservePrice(105, now))
	assert.Equal(t, 105.0, p.HighWaterMark)
	assert.False(t, p.ObservePrice(103, now), "lower print keeps the mark")
	assert.Equal(t, 105.0, p.HighWaterMark)
}

func TestEvaluate(t *testing.T) {
	t.Run("nothing fired early in the hold", func(t *testing.T) {
		p := draftTestPlan(t)
		now := entryDate.AddDate(0, 0, 2)
		ev := Evaluate(p, 101, now)

		assert.Empty(t, ev.Ready)
		require.NotNil(t, ev.NextPending)
		assert.Zero(t, ev.CompletionRatio)
	})

	t.Run("gain target fires the bullish branch", func(t *testing.T) {
		p := draftTestPlan(t)
		now := entryDate.AddDate(0, 0, 2)
		ev := Evaluate(p, 110, now)

		require.NotEmpty(t, ev.Ready)
		assert.Equal(t, ScenarioBullish, ev.ActiveScenario)
		assert.Equal(t, ScenarioBullish, ev.Ready[0].Scenario)
	})

	t.Run("drawdown fires the bearish branch", func(t *testing.T) {
		p := draftTestPlan(t)
		now := entryDate.AddDate(0, 0, 2)
		ev := Evaluate(p, 88, now)

		require.NotEmpty(t, ev.Ready)
		assert.Equal(t, ScenarioBearish, ev.ActiveScenario)
	})

	t.Run("executed steps never re-fire", func(t *testing.T) {
		p := draftTestPlan(t)
		now := entryDate.AddDate(0, 0, 2)
		ev := Evaluate(p, 110, now)
		require.Len(t, ev.Ready, 1)

		require.NoError(t, p.MarkDone(ev.Ready[0].Step.ID, now))
		again := Evaluate(p, 110, now)
		assert.Empty(t, again.Ready)
	})

	t.Run("pure and idempotent", func(t *testing.T) {
		p := draftTestPlan(t)
		now := entryDate.AddDate(0, 0, 2)
		first := Evaluate(p, 110, now)
		second := Evaluate(p, 110, now)

		assert.Equal(t, first, second)
		assert.Empty(t, p.ExecutedSteps, "evaluation must not execute")
		assert.Equal(t, StatusDrafted, p.Status)
	})

	t.Run("next pending follows global priority", func(t *testing.T) {
		p := draftTestPlan(t)
		p.Scenarios = []Scenario{
			{Name: ScenarioBullish, Steps: []Step{
				{ID: "s-gain", Trigger: GainPercent(8), Priority: 2},
			}},
			{Name: ScenarioBearish, Steps: []Step{
				{ID: "s-days", Trigger: DaysElapsed(14), Priority: 1},
			}},
		}
		// both triggers are true; the priority-1 step wins regardless of
		// scenario order
		now := entryDate.AddDate(0, 0, 20)
		ev := Evaluate(p, 110, now)

		require.Len(t, ev.Ready, 2)
		assert.Equal(t, "s-days", ev.Ready[0].Step.ID)
		require.NotNil(t, ev.NextPending)
		assert.Equal(t, "s-days", ev.NextPending.Step.ID)
		assert.Equal(t, ScenarioBearish, ev.ActiveScenario)
	})

	t.Run("deep hold leans on the time branch", func(t *testing.T) {
		p := draftTestPlan(t)
		now := entryDate.AddDate(0, 0, 13)
		ev := Evaluate(p, 100.5, now)

		assert.Empty(t, ev.Ready)
		assert.Equal(t, ScenarioNeutral, ev.ActiveScenario)
	})
}
