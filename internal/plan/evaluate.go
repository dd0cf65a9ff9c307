package plan

import (
	"sort"
	"time"
)

// ReadyStep pairs a fired step with the scenario it belongs to.
type ReadyStep struct {
	Scenario ScenarioName `json:"scenario"`
	Step     Step         `json:"step"`
}

// Evaluation is the pure read-out of a plan against current market state.
type Evaluation struct {
	// Ready lists unexecuted steps whose triggers are satisfied, ordered by
	// priority ascending across all scenarios.
	Ready []ReadyStep `json:"ready"`

	// NextPending is the closest-to-firing unexecuted step, nil when the
	// plan is fully executed.
	NextPending *ReadyStep `json:"next_pending,omitempty"`

	// ActiveScenario is the branch the market is currently walking: the
	// scenario holding the best-priority satisfied trigger, else the one
	// with the nearest pending trigger, else Neutral.
	ActiveScenario ScenarioName `json:"active_scenario"`

	CompletionRatio float64 `json:"completion_ratio"`
}

// Evaluate inspects every unexecuted step. Pure and idempotent: it never
// mutates the plan, and evaluating twice with the same inputs gives the same
// answer. Execution is the caller's explicit MarkDone.
func Evaluate(p *Plan, currentPrice float64, now time.Time) Evaluation {
	out := Evaluation{
		ActiveScenario:  ScenarioNeutral,
		CompletionRatio: p.CompletionRatio(),
	}
	entry := p.Entry.Price
	entryDate := p.Entry.Date

	bestReadyPriority := int(^uint(0) >> 1)
	var nearest *ReadyStep
	var nearestProximity float64

	for _, sc := range p.Scenarios {
		for _, st := range sc.Steps {
			if _, done := p.ExecutedSteps[st.ID]; done {
				continue
			}
			rs := ReadyStep{Scenario: sc.Name, Step: st}
			if st.Trigger.Satisfied(currentPrice, entry, now, entryDate) {
				out.Ready = append(out.Ready, rs)
				if st.Priority < bestReadyPriority {
					bestReadyPriority = st.Priority
					out.ActiveScenario = sc.Name
				}
				continue
			}
			prox := st.Trigger.Proximity(currentPrice, entry, now, entryDate)
			if nearest == nil || prox > nearestProximity {
				rsCopy := rs
				nearest = &rsCopy
				nearestProximity = prox
			}
		}
	}

	sort.SliceStable(out.Ready, func(i, j int) bool {
		return out.Ready[i].Step.Priority < out.Ready[j].Step.Priority
	})

	switch {
	case len(out.Ready) > 0:
		out.NextPending = &out.Ready[0]
	case nearest != nil:
		out.NextPending = nearest
		if nearestProximity > 0 {
			out.ActiveScenario = nearest.Scenario
		}
	}
	return out
}
