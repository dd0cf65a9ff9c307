package plan

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"quorum/internal/council"
	"quorum/internal/signal"
)

var (
	// ErrInvalidEntryContext rejects plan creation when the position lacks a
	// usable entry price or date.
	ErrInvalidEntryContext = errors.New("invalid entry context")

	// ErrStepNotFound marks an unknown step ID on MarkDone.
	ErrStepNotFound = errors.New("step not found")

	// ErrPlanClosed rejects mutations on a closed plan.
	ErrPlanClosed = errors.New("plan is closed")
)

// ScenarioName identifies one of the three fixed branches.
type ScenarioName string

const (
	ScenarioBullish ScenarioName = "bullish"
	ScenarioNeutral ScenarioName = "neutral"
	ScenarioBearish ScenarioName = "bearish"
)

// Status is the plan lifecycle. Drafted plans exist but have no confirmed
// steps; Closed plans accept no further mutation.
type Status string

const (
	StatusDrafted           Status = "drafted"
	StatusActive            Status = "active"
	StatusPartiallyExecuted Status = "partially_executed"
	StatusClosed            Status = "closed"
)

// EntrySnapshot freezes the position's entry facts plus the analysis state
// the plan was drafted under. Never mutated afterwards; it is the fixed
// anchor drift is measured against, and a re-entry means a new plan.
type EntrySnapshot struct {
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Date     time.Time `json:"date"`

	Technical  float64            `json:"technical"`
	Momentum   float64            `json:"momentum"`
	Action     council.Action     `json:"action"`
	Confidence float64            `json:"confidence"`
	Stance     signal.MacroStance `json:"stance"`
}

func (e EntrySnapshot) Validate() error {
	if e.Price <= 0 {
		return fmt.Errorf("%w: entry price must be positive", ErrInvalidEntryContext)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: entry date is required", ErrInvalidEntryContext)
	}
	return nil
}

// Step is one planned action inside a scenario. Priority orders steps within
// a scenario; lower fires first.
type Step struct {
	ID          string  `json:"id"`
	Trigger     Trigger `json:"trigger"`
	Instruction string  `json:"instruction"`
	SizePct     float64 `json:"size_pct"` // share of the position this step moves
	Priority    int     `json:"priority"`
}

// Scenario is an ordered list of steps under one market-path assumption.
type Scenario struct {
	Name  ScenarioName `json:"name"`
	Steps []Step       `json:"steps"`
}

// Revision is one journal entry. The journal is append-only history of how
// the plan changed hands.
type Revision struct {
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Detail string    `json:"detail,omitempty"`
}

// Plan is the full position plan. ExecutedSteps only grows; a step done stays
// done even if a later revision drops the step from its scenario.
type Plan struct {
	ID         string        `json:"id"`
	PositionID string        `json:"position_id"`
	Symbol     string        `json:"symbol"`
	Entry      EntrySnapshot `json:"entry"`
	Scenarios  []Scenario    `json:"scenarios"`

	ExecutedSteps map[string]time.Time `json:"executed_steps"`

	Status        Status     `json:"status"`
	Thesis        string     `json:"thesis"`
	Invalidation  string     `json:"invalidation"`
	HighWaterMark float64    `json:"high_water_mark"`
	TuningVersion int64      `json:"tuning_version"`
	Journal       []Revision `json:"journal"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StepCount is the total number of steps across all scenarios.
func (p *Plan) StepCount() int {
	n := 0
	for _, sc := range p.Scenarios {
		n += len(sc.Steps)
	}
	return n
}

// CompletionRatio is executed steps over total steps, 0 on an empty plan.
func (p *Plan) CompletionRatio() float64 {
	total := p.StepCount()
	if total == 0 {
		return 0
	}
	done := 0
	for _, sc := range p.Scenarios {
		for _, st := range sc.Steps {
			if _, ok := p.ExecutedSteps[st.ID]; ok {
				done++
			}
		}
	}
	return float64(done) / float64(total)
}

// FindStep locates a step by ID across all scenarios.
func (p *Plan) FindStep(stepID string) (Step, ScenarioName, bool) {
	for _, sc := range p.Scenarios {
		for _, st := range sc.Steps {
			if st.ID == stepID {
				return st, sc.Name, true
			}
		}
	}
	return Step{}, "", false
}

// MarkDone records a step execution. Idempotent: re-marking an executed step
// keeps the original timestamp and returns the plan unchanged. The status
// derives from the new completion state.
func (p *Plan) MarkDone(stepID string, now time.Time) error {
	if p.Status == StatusClosed {
		return ErrPlanClosed
	}
	stepID = strings.TrimSpace(stepID)
	if _, _, ok := p.FindStep(stepID); !ok {
		return fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	if _, done := p.ExecutedSteps[stepID]; done {
		return nil
	}
	if p.ExecutedSteps == nil {
		p.ExecutedSteps = make(map[string]time.Time)
	}
	p.ExecutedSteps[stepID] = now
	p.UpdatedAt = now
	// Even a fully executed plan stays open; only position closure retires it.
	p.Status = StatusPartiallyExecuted
	return nil
}

// Activate moves a drafted plan into play.
func (p *Plan) Activate(now time.Time) {
	if p.Status != StatusDrafted {
		return
	}
	p.Status = StatusActive
	p.UpdatedAt = now
	p.appendJournal(now, "activated", "")
}

// Close retires the plan regardless of completion.
func (p *Plan) Close(now time.Time, reason string) {
	if p.Status == StatusClosed {
		return
	}
	p.Status = StatusClosed
	p.UpdatedAt = now
	p.appendJournal(now, "closed", reason)
}

// ObservePrice updates the high-water mark. Returns true when a new high was
// set.
func (p *Plan) ObservePrice(price float64, now time.Time) bool {
	if price <= p.HighWaterMark {
		return false
	}
	p.HighWaterMark = price
	p.UpdatedAt = now
	return true
}

func (p *Plan) appendJournal(at time.Time, event, detail string) {
	p.Journal = append(p.Journal, Revision{At: at, Event: event, Detail: detail})
}

// Clone deep-copies the plan so a reader's copy never shares the maps and
// slices the owner keeps mutating.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Scenarios = make([]Scenario, len(p.Scenarios))
	for i, sc := range p.Scenarios {
		sc.Steps = append([]Step(nil), sc.Steps...)
		cp.Scenarios[i] = sc
	}
	cp.ExecutedSteps = make(map[string]time.Time, len(p.ExecutedSteps))
	for id, at := range p.ExecutedSteps {
		cp.ExecutedSteps[id] = at
	}
	cp.Journal = append([]Revision(nil), p.Journal...)
	return &cp
}

// Scenario returns the named branch and whether it exists.
func (p *Plan) Scenario(name ScenarioName) (Scenario, bool) {
	for _, sc := range p.Scenarios {
		if sc.Name == name {
			return sc, true
		}
	}
	return Scenario{}, false
}

// sortSteps orders a scenario's steps by priority, then ID for stability.
func sortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Priority != steps[j].Priority {
			return steps[i].Priority < steps[j].Priority
		}
		return steps[i].ID < steps[j].ID
	})
}
