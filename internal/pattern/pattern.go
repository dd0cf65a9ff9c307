package pattern

import (
	"time"

	"quorum/internal/market"
	"quorum/internal/signal"
	"quorum/internal/tuning"
)

// Kind enumerates the fixed pattern catalogue. Detection conditions are code;
// only their thresholds come from tuning.
type Kind string

const (
	DeepValueBuy    Kind = "deep_value_buy"
	BullTrap        Kind = "bull_trap"
	MomentumRun     Kind = "momentum_run"
	Capitulation    Kind = "capitulation"
	DistributionTop Kind = "distribution_top"
	MacroDivergence Kind = "macro_divergence"
)

// Signal is one detected setup. At most one is active per symbol at a time;
// Classify keeps the highest-severity match.
type Signal struct {
	Kind       Kind      `json:"kind"`
	Severity   float64   `json:"severity"` // 0..1
	Note       string    `json:"note"`
	DetectedAt time.Time `json:"detected_at"`
}

type inputs struct {
	technical   float64
	fundamental float64
	sentiment   float64
	hasTech     bool
	hasFund     bool
	hasSent     bool
	price       market.PriceContext
	stance      signal.MacroStance
}

// Classify scans the catalogue and returns the strongest match, or nil when
// nothing clears the severity floor. Pure; same inputs, same answer.
func Classify(votes []signal.Vote, price market.PriceContext, stance signal.MacroStance, p tuning.PatternParams, now time.Time) *Signal {
	in := inputs{price: price, stance: stance}
	for _, v := range votes {
		switch v.Source {
		case signal.SourceTechnical:
			in.technical, in.hasTech = v.Direction, true
		case signal.SourceFundamental:
			in.fundamental, in.hasFund = v.Direction, true
		case signal.SourceSentiment:
			in.sentiment, in.hasSent = v.Direction, true
		}
	}

	var best *Signal
	consider := func(s *Signal) {
		if s == nil || s.Severity < p.MinSeverity {
			return
		}
		if best == nil || s.Severity > best.Severity {
			best = s
		}
	}
	consider(detectDeepValue(in, p))
	consider(detectBullTrap(in, p))
	consider(detectMomentumRun(in, p))
	consider(detectCapitulation(in, p))
	consider(detectDistributionTop(in, p))
	consider(detectMacroDivergence(in, p))
	if best != nil {
		best.DetectedAt = now
	}
	return best
}

// Strong fundamentals while the tape is washed out.
func detectDeepValue(in inputs, p tuning.PatternParams) *Signal {
	c := p.DeepValue
	if !in.hasFund || !in.hasTech {
		return nil
	}
	if in.fundamental < c.FundamentalMin || in.technical > c.TechnicalMax {
		return nil
	}
	sev := avg(
		ratio(in.fundamental-c.FundamentalMin, 1-c.FundamentalMin),
		ratio(c.TechnicalMax-in.technical, 1+c.TechnicalMax),
	)
	return &Signal{Kind: DeepValueBuy, Severity: sev,
		Note: "fundamentals strong while price action is washed out"}
}

// Tape and crowd euphoric, fundamentals not following.
func detectBullTrap(in inputs, p tuning.PatternParams) *Signal {
	c := p.BullTrap
	if !in.hasTech || !in.hasSent || !in.hasFund {
		return nil
	}
	if in.technical < c.TechnicalMin || in.sentiment < c.SentimentMin || in.fundamental > c.FundamentalMax {
		return nil
	}
	sev := avg(
		ratio(in.technical-c.TechnicalMin, 1-c.TechnicalMin),
		ratio(in.sentiment-c.SentimentMin, 1-c.SentimentMin),
	)
	return &Signal{Kind: BullTrap, Severity: sev,
		Note: "rally lacks fundamental support"}
}

// Everything pointing the same way on expanding volume.
func detectMomentumRun(in inputs, p tuning.PatternParams) *Signal {
	c := p.MomentumRun
	if !in.hasTech || !in.hasFund || !in.hasSent {
		return nil
	}
	if in.technical < c.DirectionMin || in.fundamental < c.DirectionMin || in.sentiment < c.DirectionMin {
		return nil
	}
	if in.price.VolumeRatio < c.VolumeRatioMin {
		return nil
	}
	low := min3(in.technical, in.fundamental, in.sentiment)
	sev := ratio(low-c.DirectionMin, 1-c.DirectionMin)
	return &Signal{Kind: MomentumRun, Severity: sev,
		Note: "all signals aligned bullish with volume expansion"}
}

// Panic selling on heavy volume; crowd max bearish.
func detectCapitulation(in inputs, p tuning.PatternParams) *Signal {
	c := p.Capitulation
	if !in.hasTech || !in.hasSent {
		return nil
	}
	if in.technical > c.TechnicalMax || in.sentiment > c.SentimentMax {
		return nil
	}
	if in.price.VolumeRatio < c.VolumeRatioMin {
		return nil
	}
	sev := avg(
		ratio(c.TechnicalMax-in.technical, 1+c.TechnicalMax),
		ratio(c.SentimentMax-in.sentiment, 1+c.SentimentMax),
	)
	return &Signal{Kind: Capitulation, Severity: sev,
		Note: "high-volume flush with sentiment washed out"}
}

// Price pinned at the top of its range while fundamentals soften.
func detectDistributionTop(in inputs, p tuning.PatternParams) *Signal {
	c := p.DistributionTop
	if !in.hasTech || !in.hasFund {
		return nil
	}
	pos := in.price.RangePosition()
	if pos < c.RangePositionMin || in.technical < c.TechnicalMin || in.fundamental > c.FundamentalMax {
		return nil
	}
	sev := avg(
		ratio(pos-c.RangePositionMin, 1-c.RangePositionMin),
		ratio(in.technical-c.TechnicalMin, 1-c.TechnicalMin),
	)
	return &Signal{Kind: DistributionTop, Severity: sev,
		Note: "price at range highs with fundamentals rolling over"}
}

// Single name running hot against a defensive macro backdrop.
func detectMacroDivergence(in inputs, p tuning.PatternParams) *Signal {
	c := p.MacroDivergence
	if !in.hasTech || in.stance.Bullish() {
		return nil
	}
	if in.technical < c.TechnicalMin {
		return nil
	}
	sev := ratio(in.technical-c.TechnicalMin, 1-c.TechnicalMin)
	if in.stance == signal.StanceRiskOff {
		sev = clamp01(sev * 1.2)
	}
	return &Signal{Kind: MacroDivergence, Severity: sev,
		Note: "strength diverging from a defensive macro regime"}
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 1
	}
	return clamp01(num / den)
}

func avg(a, b float64) float64 { return (a + b) / 2 }

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
