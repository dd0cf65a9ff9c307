package council

import (
	"fmt"
	"math"
	"sort"
	"time"

	"quorum/internal/signal"
	"quorum/internal/tuning"
)

// Fuse folds the vote set into one Decision. The algorithm, in order:
//
//  1. weight each vote: confidence x base weight, discounted when the
//     module reports coverage under the availability floor
//  2. boost the single vote that agrees with the macro stance when every
//     other vote disagrees
//  3. split weight into veto / approve / neutral buckets and normalize so
//     the buckets sum to 1
//  4. score = weighted mean of non-veto directions; any veto caps the
//     action at Accumulate and shows up in VetoReasons
//
// Zero votes yields a neutral decision with confidence 0, never an error.
func Fuse(symbol string, votes []signal.Vote, stance signal.MacroStance, p tuning.CouncilParams, now time.Time) Decision {
	dec := Decision{
		Symbol:    symbol,
		Action:    Neutral,
		Stance:    stance,
		Votes:     votes,
		CreatedAt: now,
	}
	if len(votes) == 0 {
		dec.Weights = Weights{Neutral: 1}
		dec.Degraded = true
		return dec
	}

	weights := make([]float64, len(votes))
	for i, v := range votes {
		w := signal.Clamp01(v.Confidence) * p.BaseWeight(v.Source)
		if v.Coverage < p.AvailabilityFloor {
			w *= p.AvailabilityPenalty
			dec.Degraded = true
		}
		weights[i] = w
	}
	applyAlignmentBoost(votes, weights, stance, p.AlignmentBoost)

	var (
		total      float64
		approveW   float64
		vetoW      float64
		neutralW   float64
		scoreSum   float64
		scoreBasis float64
		confSum    float64
		domWeight  float64
	)
	for i, v := range votes {
		w := weights[i]
		total += w
		if th, ok := p.VetoThreshold(v.Source); ok && v.Direction <= th {
			vetoW += w
			dec.VetoReasons = append(dec.VetoReasons, vetoReason(v))
			continue
		}
		scoreSum += v.Direction * w
		scoreBasis += w
		confSum += signal.Clamp01(v.Confidence) * w
		if v.Rationale != "" && w > domWeight {
			domWeight = w
			dec.DominantRationale = v.Rationale
		}
		switch {
		case v.Direction > p.Deadband:
			approveW += w
		default:
			neutralW += w
		}
	}

	if total <= 0 {
		dec.Weights = Weights{Neutral: 1}
		dec.Degraded = true
		return dec
	}
	dec.Weights = Weights{
		Approve: approveW / total,
		Veto:    vetoW / total,
		Neutral: neutralW / total,
	}
	if scoreBasis > 0 {
		dec.Score = scoreSum / scoreBasis
		dec.Confidence = signal.Clamp01(confSum / scoreBasis * (1 - dec.Weights.Veto))
	}
	dec.Score = clampScore(dec.Score)
	dec.Action = Classify(dec.Score, p.Bands)
	if dec.Vetoed() && dec.Action > Accumulate {
		dec.Action = Accumulate
	}
	sort.Strings(dec.VetoReasons)
	return dec
}

// Classify maps a fused score onto the action scale.
func Classify(score float64, b tuning.ActionBands) Action {
	switch {
	case score >= b.AggressiveBuy:
		return AggressiveBuy
	case score >= b.Accumulate:
		return Accumulate
	case score > b.NeutralFloor:
		return Neutral
	case score > b.TrimFloor:
		return Trim
	default:
		return Liquidate
	}
}

// applyAlignmentBoost multiplies the weight of the lone vote pointing the
// same way as the macro stance. A split vote set gets no boost.
func applyAlignmentBoost(votes []signal.Vote, weights []float64, stance signal.MacroStance, boost float64) {
	if boost <= 1 {
		return
	}
	wantBull := stance.Bullish()
	aligned := -1
	for i, v := range votes {
		if math.Abs(v.Direction) < 1e-9 {
			continue
		}
		if (v.Direction > 0) == wantBull {
			if aligned >= 0 {
				return
			}
			aligned = i
		}
	}
	if aligned >= 0 {
		weights[aligned] *= boost
	}
}

func vetoReason(v signal.Vote) string {
	if v.Rationale != "" {
		return fmt.Sprintf("%s: %s", v.Source, v.Rationale)
	}
	return fmt.Sprintf("%s vote %.2f below veto threshold", v.Source, v.Direction)
}

func clampScore(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
