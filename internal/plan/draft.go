package plan

import (
	"fmt"
	"strings"
	"time"

	"quorum/internal/council"
	"quorum/internal/pattern"
	"quorum/internal/tuning"

	"github.com/google/uuid"
)

// DraftInput carries everything Draft needs. The decision and pattern are
// advisory context; entry facts are the hard requirement.
type DraftInput struct {
	PositionID string
	Symbol     string
	Entry      EntrySnapshot
	Decision   council.Decision
	Pattern    *pattern.Signal
	Params     tuning.PlanParams
	TuningVer  int64
}

// Draft builds a fresh three-scenario plan from the current decision. Pure
// except for step ID generation. Returns ErrInvalidEntryContext when the
// entry snapshot is unusable.
func Draft(in DraftInput, now time.Time) (*Plan, error) {
	if err := in.Entry.Validate(); err != nil {
		return nil, err
	}
	// Freeze the drafting decision into the snapshot; drift is measured
	// against these values for the plan's whole life.
	in.Entry.Action = in.Decision.Action
	in.Entry.Confidence = in.Decision.Confidence
	in.Entry.Stance = in.Decision.Stance
	p := in.Params
	entry := in.Entry.Price

	bullish := Scenario{Name: ScenarioBullish, Steps: []Step{
		{
			ID:          newStepID(),
			Trigger:     GainPercent(p.FirstTargetPct),
			Instruction: fmt.Sprintf("Trim a third into strength near %.4g", entry*(1+p.FirstTargetPct/100)),
			SizePct:     33,
			Priority:    1,
		},
		{
			ID:          newStepID(),
			Trigger:     GainPercent(p.StretchTargetPct),
			Instruction: "Take the position to a core holding, let the rest run",
			SizePct:     33,
			Priority:    2,
		},
	}}
	neutral := Scenario{Name: ScenarioNeutral, Steps: []Step{
		{
			ID:          newStepID(),
			Trigger:     DaysElapsed(p.ReviewDays),
			Instruction: "Re-check the thesis against fresh signals",
			SizePct:     0,
			Priority:    1,
		},
		{
			ID:          newStepID(),
			Trigger:     DaysElapsed(p.ThesisDays),
			Instruction: "Exit if the thesis has not confirmed by now",
			SizePct:     100,
			Priority:    2,
		},
	}}
	bearish := Scenario{Name: ScenarioBearish, Steps: []Step{
		{
			ID:          newStepID(),
			Trigger:     LossPercent(p.StopLossPct),
			Instruction: "Cut half, reassess the remainder",
			SizePct:     50,
			Priority:    1,
		},
		{
			ID:          newStepID(),
			Trigger:     LossPercent(p.HardFloorPct),
			Instruction: "Liquidate, thesis is broken",
			SizePct:     100,
			Priority:    2,
		},
	}}
	for _, sc := range []Scenario{bullish, neutral, bearish} {
		sortSteps(sc.Steps)
	}

	plan := &Plan{
		ID:            uuid.NewString(),
		PositionID:    in.PositionID,
		Symbol:        in.Symbol,
		Entry:         in.Entry,
		Scenarios:     []Scenario{bullish, neutral, bearish},
		ExecutedSteps: make(map[string]time.Time),
		Status:        StatusDrafted,
		Thesis:        buildThesis(in.Decision, in.Pattern),
		Invalidation:  buildInvalidation(in.Decision, p),
		HighWaterMark: entry,
		TuningVersion: in.TuningVer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	plan.appendJournal(now, "drafted", fmt.Sprintf("action=%s score=%.2f", in.Decision.Action, in.Decision.Score))
	return plan, nil
}

// buildThesis turns the decision into a one-paragraph holding rationale.
func buildThesis(dec council.Decision, pat *pattern.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Council reads %s at %.2f confidence.", dec.Action, dec.Confidence)
	for _, v := range dec.Votes {
		if v.Direction > 0.3 && v.Rationale != "" {
			fmt.Fprintf(&b, " %s: %s.", capitalize(v.Source), strings.TrimSuffix(v.Rationale, "."))
		}
	}
	if pat != nil {
		fmt.Fprintf(&b, " Active setup: %s (%.0f%% severity), %s.", pat.Kind, pat.Severity*100, pat.Note)
	}
	return b.String()
}

// buildInvalidation names the conditions that would void the thesis.
func buildInvalidation(dec council.Decision, p tuning.PlanParams) string {
	parts := []string{
		fmt.Sprintf("Price loss beyond %.0f%% from entry", p.HardFloorPct),
		fmt.Sprintf("No thesis confirmation within %d days", p.ThesisDays),
	}
	for _, reason := range dec.VetoReasons {
		parts = append(parts, "Standing veto: "+reason)
	}
	return strings.Join(parts, "; ") + "."
}

func newStepID() string { return uuid.NewString() }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
