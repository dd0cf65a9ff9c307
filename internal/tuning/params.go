package tuning

import "quorum/internal/signal"

// Params bundles every numeric threshold the engines consume. All band edges
// live here rather than in code so they can be tuned without a rebuild; the
// registry hot-reloads them from configs/tuning.yaml.
type Params struct {
	Council CouncilParams `mapstructure:"council" yaml:"council"`
	Pattern PatternParams `mapstructure:"pattern" yaml:"pattern"`
	Plan    PlanParams    `mapstructure:"plan" yaml:"plan"`
	Delta   DeltaParams   `mapstructure:"delta" yaml:"delta"`
	Risk    RiskParams    `mapstructure:"risk" yaml:"risk"`
}

// ActionBands are the score cutoffs mapping the fused -1..1 score onto the
// five-point action scale. Edges are inclusive on the buy side and exclusive
// on the sell side so an exact edge resolves to the more conservative action.
type ActionBands struct {
	AggressiveBuy float64 `mapstructure:"aggressive_buy" yaml:"aggressive_buy"`
	Accumulate    float64 `mapstructure:"accumulate" yaml:"accumulate"`
	NeutralFloor  float64 `mapstructure:"neutral_floor" yaml:"neutral_floor"`
	TrimFloor     float64 `mapstructure:"trim_floor" yaml:"trim_floor"`
}

type CouncilParams struct {
	// BaseWeights keys are signal source names; missing sources fall back to
	// DefaultWeight.
	BaseWeights   map[string]float64 `mapstructure:"base_weights" yaml:"base_weights"`
	DefaultWeight float64            `mapstructure:"default_weight" yaml:"default_weight"`

	// VetoThresholds: a vote with direction at or below the source's
	// threshold becomes a hard veto instead of averaging in.
	VetoThresholds map[string]float64 `mapstructure:"veto_thresholds" yaml:"veto_thresholds"`

	// AvailabilityFloor is the minimum coverage a module must report before
	// its base weight is discounted by AvailabilityPenalty.
	AvailabilityFloor   float64 `mapstructure:"availability_floor" yaml:"availability_floor"`
	AvailabilityPenalty float64 `mapstructure:"availability_penalty" yaml:"availability_penalty"`

	// AlignmentBoost multiplies the weight of the only vote agreeing with
	// the prevailing macro stance.
	AlignmentBoost float64 `mapstructure:"alignment_boost" yaml:"alignment_boost"`

	// Deadband is the |direction| below which a vote counts as neutral.
	Deadband float64 `mapstructure:"deadband" yaml:"deadband"`

	Bands ActionBands `mapstructure:"bands" yaml:"bands"`
}

func (c CouncilParams) BaseWeight(source string) float64 {
	if w, ok := c.BaseWeights[source]; ok && w > 0 {
		return w
	}
	if c.DefaultWeight > 0 {
		return c.DefaultWeight
	}
	return 1
}

func (c CouncilParams) VetoThreshold(source string) (float64, bool) {
	th, ok := c.VetoThresholds[source]
	return th, ok
}

// PatternParams holds the per-pattern condition thresholds. The catalogue
// itself is fixed; only the numbers move.
type PatternParams struct {
	MinSeverity float64 `mapstructure:"min_severity" yaml:"min_severity"`

	DeepValue struct {
		FundamentalMin float64 `mapstructure:"fundamental_min" yaml:"fundamental_min"`
		TechnicalMax   float64 `mapstructure:"technical_max" yaml:"technical_max"`
	} `mapstructure:"deep_value" yaml:"deep_value"`

	BullTrap struct {
		TechnicalMin   float64 `mapstructure:"technical_min" yaml:"technical_min"`
		SentimentMin   float64 `mapstructure:"sentiment_min" yaml:"sentiment_min"`
		FundamentalMax float64 `mapstructure:"fundamental_max" yaml:"fundamental_max"`
	} `mapstructure:"bull_trap" yaml:"bull_trap"`

	MomentumRun struct {
		DirectionMin   float64 `mapstructure:"direction_min" yaml:"direction_min"`
		VolumeRatioMin float64 `mapstructure:"volume_ratio_min" yaml:"volume_ratio_min"`
	} `mapstructure:"momentum_run" yaml:"momentum_run"`

	Capitulation struct {
		TechnicalMax   float64 `mapstructure:"technical_max" yaml:"technical_max"`
		SentimentMax   float64 `mapstructure:"sentiment_max" yaml:"sentiment_max"`
		VolumeRatioMin float64 `mapstructure:"volume_ratio_min" yaml:"volume_ratio_min"`
	} `mapstructure:"capitulation" yaml:"capitulation"`

	DistributionTop struct {
		RangePositionMin float64 `mapstructure:"range_position_min" yaml:"range_position_min"`
		TechnicalMin     float64 `mapstructure:"technical_min" yaml:"technical_min"`
		FundamentalMax   float64 `mapstructure:"fundamental_max" yaml:"fundamental_max"`
	} `mapstructure:"distribution_top" yaml:"distribution_top"`

	MacroDivergence struct {
		TechnicalMin float64 `mapstructure:"technical_min" yaml:"technical_min"`
	} `mapstructure:"macro_divergence" yaml:"macro_divergence"`
}

// PlanParams shape the scenario steps Draft derives from a decision.
type PlanParams struct {
	FirstTargetPct   float64 `mapstructure:"first_target_pct" yaml:"first_target_pct"`
	StretchTargetPct float64 `mapstructure:"stretch_target_pct" yaml:"stretch_target_pct"`
	StopLossPct      float64 `mapstructure:"stop_loss_pct" yaml:"stop_loss_pct"`
	HardFloorPct     float64 `mapstructure:"hard_floor_pct" yaml:"hard_floor_pct"`
	ThesisDays       int     `mapstructure:"thesis_days" yaml:"thesis_days"`
	ReviewDays       int     `mapstructure:"review_days" yaml:"review_days"`
}

// DriftEdges are the Medium/High/Critical cutoffs for one drift dimension.
// Values at or above an edge fall into that band; below Medium is Low.
type DriftEdges struct {
	Medium   float64 `mapstructure:"medium" yaml:"medium"`
	High     float64 `mapstructure:"high" yaml:"high"`
	Critical float64 `mapstructure:"critical" yaml:"critical"`
}

// DeltaParams: per-dimension edges. Price edges are deliberately wider than
// action edges; an action swing signals a broken thesis, a price wiggle does
// not.
type DeltaParams struct {
	PricePct  DriftEdges `mapstructure:"price_pct" yaml:"price_pct"`
	Technical DriftEdges `mapstructure:"technical" yaml:"technical"`
	Action    DriftEdges `mapstructure:"action" yaml:"action"`
	Momentum  DriftEdges `mapstructure:"momentum" yaml:"momentum"`
}

type RiskParams struct {
	ConcentrationLimit   float64 `mapstructure:"concentration_limit" yaml:"concentration_limit"`
	CashFloor            float64 `mapstructure:"cash_floor" yaml:"cash_floor"`
	ConcentrationPenalty float64 `mapstructure:"concentration_penalty" yaml:"concentration_penalty"`
	CashPenalty          float64 `mapstructure:"cash_penalty" yaml:"cash_penalty"`
	CriticalDeltaPenalty float64 `mapstructure:"critical_delta_penalty" yaml:"critical_delta_penalty"`
	UncoveredPenalty     float64 `mapstructure:"uncovered_penalty" yaml:"uncovered_penalty"`
	HealthyFloor         float64 `mapstructure:"healthy_floor" yaml:"healthy_floor"`
	WarningFloor         float64 `mapstructure:"warning_floor" yaml:"warning_floor"`
}

// Defaults returns the baked-in parameter set. The tuning file overrides
// individual keys; a missing file means these values run as-is.
func Defaults() Params {
	p := Params{
		Council: CouncilParams{
			BaseWeights: map[string]float64{
				signal.SourceTechnical:   1.0,
				signal.SourceFundamental: 1.1,
				signal.SourceMacro:       0.8,
				signal.SourceSentiment:   0.6,
			},
			DefaultWeight: 1.0,
			VetoThresholds: map[string]float64{
				signal.SourceFundamental: -0.75,
				signal.SourceMacro:       -0.85,
			},
			AvailabilityFloor:   0.4,
			AvailabilityPenalty: 0.5,
			AlignmentBoost:      1.25,
			Deadband:            0.1,
			Bands: ActionBands{
				AggressiveBuy: 0.6,
				Accumulate:    0.2,
				NeutralFloor:  -0.2,
				TrimFloor:     -0.6,
			},
		},
		Plan: PlanParams{
			FirstTargetPct:   8,
			StretchTargetPct: 18,
			StopLossPct:      10,
			HardFloorPct:     16,
			ThesisDays:       45,
			ReviewDays:       14,
		},
		Delta: DeltaParams{
			PricePct:  DriftEdges{Medium: 3, High: 7, Critical: 15},
			Technical: DriftEdges{Medium: 8, High: 15, Critical: 25},
			Action:    DriftEdges{Medium: 1, High: 2, Critical: 3},
			Momentum:  DriftEdges{Medium: 10, High: 20, Critical: 30},
		},
		Risk: RiskParams{
			ConcentrationLimit:   0.35,
			CashFloor:            0.05,
			ConcentrationPenalty: 20,
			CashPenalty:          15,
			CriticalDeltaPenalty: 15,
			UncoveredPenalty:     10,
			HealthyFloor:         70,
			WarningFloor:         40,
		},
	}
	p.Pattern.MinSeverity = 0.25
	p.Pattern.DeepValue.FundamentalMin = 0.5
	p.Pattern.DeepValue.TechnicalMax = -0.4
	p.Pattern.BullTrap.TechnicalMin = 0.5
	p.Pattern.BullTrap.SentimentMin = 0.6
	p.Pattern.BullTrap.FundamentalMax = -0.2
	p.Pattern.MomentumRun.DirectionMin = 0.35
	p.Pattern.MomentumRun.VolumeRatioMin = 1.2
	p.Pattern.Capitulation.TechnicalMax = -0.6
	p.Pattern.Capitulation.SentimentMax = -0.5
	p.Pattern.Capitulation.VolumeRatioMin = 1.5
	p.Pattern.DistributionTop.RangePositionMin = 0.85
	p.Pattern.DistributionTop.TechnicalMin = 0.5
	p.Pattern.DistributionTop.FundamentalMax = -0.1
	p.Pattern.MacroDivergence.TechnicalMin = 0.4
	return p
}
