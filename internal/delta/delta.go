// Package delta measures how far a position has drifted from the snapshot
// its plan was drafted under. Significance is the maximum band any single
// dimension crossed, never an average: one broken dimension is enough to
// demand attention.
package delta

import (
	"fmt"
	"math"
	"strings"
	"time"

	"quorum/internal/council"
	"quorum/internal/tuning"
)

// Significance is the four-band drift scale.
type Significance int

const (
	Low Significance = iota
	Medium
	High
	Critical
)

func (s Significance) String() string {
	switch s {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

func (s Significance) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Dimension names one measured axis.
type Dimension string

const (
	DimPrice     Dimension = "price"
	DimTechnical Dimension = "technical"
	DimAction    Dimension = "action"
	DimMomentum  Dimension = "momentum"
)

// Observation is the comparable state of a position at one instant. Scores
// are on the 0-100 scale the signal modules report before normalization.
type Observation struct {
	Price     float64        `json:"price"`
	Technical float64        `json:"technical"`
	Momentum  float64        `json:"momentum"`
	Action    council.Action `json:"action"`
	At        time.Time      `json:"at"`
}

// Drift is one dimension's movement between two observations.
type Drift struct {
	Dimension Dimension    `json:"dimension"`
	Delta     float64      `json:"delta"` // absolute movement in the dimension's own unit
	Band      Significance `json:"band"`
}

// Delta is the full drift report.
type Delta struct {
	PositionID   string       `json:"position_id"`
	Significance Significance `json:"significance"`
	Drifts       []Drift      `json:"drifts"`
	Summary      string       `json:"summary"`
	From         time.Time    `json:"from"`
	To           time.Time    `json:"to"`
}

// Compute compares two observations. Monotonic in every dimension: a larger
// movement never yields a lower band.
func Compute(positionID string, prior, current Observation, p tuning.DeltaParams) Delta {
	drifts := []Drift{
		measure(DimPrice, priceDeltaPct(prior.Price, current.Price), p.PricePct),
		measure(DimTechnical, math.Abs(current.Technical-prior.Technical), p.Technical),
		measure(DimAction, float64(current.Action.Distance(prior.Action)), p.Action),
		measure(DimMomentum, math.Abs(current.Momentum-prior.Momentum), p.Momentum),
	}
	sig := Low
	for _, d := range drifts {
		if d.Band > sig {
			sig = d.Band
		}
	}
	return Delta{
		PositionID:   positionID,
		Significance: sig,
		Drifts:       drifts,
		Summary:      summarize(sig, drifts, prior, current),
		From:         prior.At,
		To:           current.At,
	}
}

func measure(dim Dimension, delta float64, e tuning.DriftEdges) Drift {
	band := Low
	switch {
	case delta >= e.Critical:
		band = Critical
	case delta >= e.High:
		band = High
	case delta >= e.Medium:
		band = Medium
	}
	return Drift{Dimension: dim, Delta: delta, Band: band}
}

func priceDeltaPct(prior, current float64) float64 {
	if prior <= 0 || current <= 0 {
		return 0
	}
	return math.Abs(current-prior) / prior * 100
}

func summarize(sig Significance, drifts []Drift, prior, current Observation) string {
	var loud []string
	for _, d := range drifts {
		if d.Band >= Medium {
			loud = append(loud, fmt.Sprintf("%s %s (%.1f)", d.Dimension, d.Band, d.Delta))
		}
	}
	if len(loud) == 0 {
		return "position tracking its plan"
	}
	msg := strings.Join(loud, ", ")
	if prior.Action != current.Action {
		msg += fmt.Sprintf("; stance moved %s -> %s", prior.Action, current.Action)
	}
	return msg
}
