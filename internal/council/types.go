package council

import (
	"time"

	"quorum/internal/signal"
)

// Action is the five-point recommendation scale. Ordinal values make drift
// distance a plain subtraction.
type Action int

const (
	Liquidate Action = iota
	Trim
	Neutral
	Accumulate
	AggressiveBuy
)

var actionNames = map[Action]string{
	Liquidate:     "liquidate",
	Trim:          "trim",
	Neutral:       "neutral",
	Accumulate:    "accumulate",
	AggressiveBuy: "aggressive_buy",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "neutral"
}

// ParseAction maps a stored name back to the ordinal; unknown input reads as
// Neutral so old rows never poison drift math.
func ParseAction(raw string) Action {
	for a, name := range actionNames {
		if name == raw {
			return a
		}
	}
	return Neutral
}

// Distance is the absolute ordinal gap between two actions.
func (a Action) Distance(b Action) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Action) UnmarshalText(text []byte) error {
	*a = ParseAction(string(text))
	return nil
}

// Weights records how the vote mass split. Invariant: the three buckets sum
// to 1 whenever at least one vote arrived, and Neutral alone is 1 otherwise.
type Weights struct {
	Approve float64 `json:"approve"`
	Veto    float64 `json:"veto"`
	Neutral float64 `json:"neutral"`
}

// Decision is the fused verdict for one symbol at one instant.
type Decision struct {
	Symbol      string             `json:"symbol"`
	Action      Action             `json:"action"`
	Score       float64            `json:"score"`      // fused -1..1
	Confidence  float64            `json:"confidence"` // 0..1
	Weights     Weights            `json:"weights"`
	VetoReasons []string           `json:"veto_reasons,omitempty"`
	Votes       []signal.Vote      `json:"votes"`
	Stance      signal.MacroStance `json:"stance"`
	Degraded    bool               `json:"degraded"` // true when votes were missing or stale
	CreatedAt   time.Time          `json:"created_at"`

	// DominantRationale is the highest-weight non-veto vote's rationale, the
	// one-line answer to "why this action".
	DominantRationale string `json:"dominant_rationale,omitempty"`
}

// Vetoed reports whether any module hard-blocked the buy side.
func (d Decision) Vetoed() bool { return len(d.VetoReasons) > 0 }

// Age is the decision's staleness against the given clock reading. Staleness
// policy belongs to the caller; the core only reports the number.
func (d Decision) Age(now time.Time) time.Duration { return now.Sub(d.CreatedAt) }
