package signal

import (
	"context"
	"time"
)

// Source identifiers used across the fusion layer. Adapters must report one
// of these so base weights and veto thresholds can be looked up.
const (
	SourceTechnical   = "technical"
	SourceFundamental = "fundamental"
	SourceMacro       = "macro"
	SourceSentiment   = "sentiment"
)

// MacroStance is the macro-regime module's published posture. It feeds the
// council both as fusion context and as a field of the fused decision.
type MacroStance string

const (
	StanceRiskOn    MacroStance = "risk_on"
	StanceCautious  MacroStance = "cautious"
	StanceDefensive MacroStance = "defensive"
	StanceRiskOff   MacroStance = "risk_off"
)

// Bullish reports whether the stance leans toward taking risk.
func (s MacroStance) Bullish() bool {
	return s == StanceRiskOn || s == StanceCautious
}

// Vote is one analysis module's opinion on one symbol. Votes are ephemeral:
// recomputed on every evaluation pass and never persisted standalone.
type Vote struct {
	Source     string    `json:"source"`
	Direction  float64   `json:"direction"`  // normalized -1..1
	Confidence float64   `json:"confidence"` // 0..1
	Coverage   float64   `json:"coverage"`   // 0..1 data availability behind the opinion
	Rationale  string    `json:"rationale"`
	Timestamp  time.Time `json:"timestamp"`
}

// Normalize maps a 0..100 score onto the shared -1..1 direction scale.
func Normalize(score float64) float64 {
	d := (score - 50) / 50
	if d > 1 {
		return 1
	}
	if d < -1 {
		return -1
	}
	return d
}

// Clamp01 bounds confidence-like values into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Source is the boundary contract for one analysis module. GetVote returns
// (nil, nil) when the module has no opinion for the symbol; absence is not
// an error and simply shrinks the fusion input set.
type Source interface {
	Name() string
	GetVote(ctx context.Context, symbol string) (*Vote, error)
}

// StanceProvider publishes the prevailing macro stance. Implemented by the
// macro adapter; consumed once per evaluation pass so every downstream
// component sees the same stance value.
type StanceProvider interface {
	Stance(ctx context.Context) (MacroStance, error)
}
