package plan

import (
	"fmt"
	"math"
	"time"
)

// TriggerKind closes the set of trigger shapes. Anything else in stored data
// is a corruption, not an extension point.
type TriggerKind string

const (
	TriggerPriceAbove  TriggerKind = "price_above"
	TriggerPriceBelow  TriggerKind = "price_below"
	TriggerGainPercent TriggerKind = "gain_percent"
	TriggerLossPercent TriggerKind = "loss_percent"
	TriggerDaysElapsed TriggerKind = "days_elapsed"
)

// Trigger is one firing condition. Exactly one payload field is meaningful
// per kind: Level for the price kinds, Percent for the gain/loss kinds, Days
// for the time kind. Constructors below keep callers out of the raw struct.
type Trigger struct {
	Kind    TriggerKind `json:"kind"`
	Level   float64     `json:"level,omitempty"`
	Percent float64     `json:"percent,omitempty"`
	Days    int         `json:"days,omitempty"`
}

func PriceAbove(level float64) Trigger { return Trigger{Kind: TriggerPriceAbove, Level: level} }
func PriceBelow(level float64) Trigger { return Trigger{Kind: TriggerPriceBelow, Level: level} }
func GainPercent(pct float64) Trigger  { return Trigger{Kind: TriggerGainPercent, Percent: pct} }
func LossPercent(pct float64) Trigger  { return Trigger{Kind: TriggerLossPercent, Percent: pct} }
func DaysElapsed(days int) Trigger     { return Trigger{Kind: TriggerDaysElapsed, Days: days} }

// Satisfied evaluates the trigger against current state. Pure: no clock
// reads, the caller supplies now.
func (t Trigger) Satisfied(currentPrice, entryPrice float64, now, entryDate time.Time) bool {
	switch t.Kind {
	case TriggerPriceAbove:
		return currentPrice > 0 && currentPrice >= t.Level
	case TriggerPriceBelow:
		return currentPrice > 0 && currentPrice <= t.Level
	case TriggerGainPercent:
		return entryPrice > 0 && currentPrice > 0 &&
			(currentPrice-entryPrice)/entryPrice*100 >= t.Percent
	case TriggerLossPercent:
		return entryPrice > 0 && currentPrice > 0 &&
			(entryPrice-currentPrice)/entryPrice*100 >= t.Percent
	case TriggerDaysElapsed:
		return !entryDate.IsZero() && now.Sub(entryDate) >= time.Duration(t.Days)*24*time.Hour
	default:
		return false
	}
}

// Proximity reports how close the trigger is to firing on a 0..1 scale,
// 1 meaning satisfied. Used to pick the active scenario when nothing has
// fired yet. Time triggers measure elapsed share; price triggers measure
// distance from entry toward the level.
func (t Trigger) Proximity(currentPrice, entryPrice float64, now, entryDate time.Time) float64 {
	if t.Satisfied(currentPrice, entryPrice, now, entryDate) {
		return 1
	}
	switch t.Kind {
	case TriggerPriceAbove, TriggerPriceBelow:
		if entryPrice <= 0 || currentPrice <= 0 || t.Level <= 0 {
			return 0
		}
		span := math.Abs(t.Level - entryPrice)
		if span == 0 {
			return 1
		}
		traveled := span - math.Abs(t.Level-currentPrice)
		return clamp01(traveled / span)
	case TriggerGainPercent:
		if entryPrice <= 0 || currentPrice <= 0 || t.Percent <= 0 {
			return 0
		}
		gain := (currentPrice - entryPrice) / entryPrice * 100
		return clamp01(gain / t.Percent)
	case TriggerLossPercent:
		if entryPrice <= 0 || currentPrice <= 0 || t.Percent <= 0 {
			return 0
		}
		loss := (entryPrice - currentPrice) / entryPrice * 100
		return clamp01(loss / t.Percent)
	case TriggerDaysElapsed:
		if entryDate.IsZero() || t.Days <= 0 {
			return 0
		}
		elapsed := now.Sub(entryDate).Hours() / 24
		return clamp01(elapsed / float64(t.Days))
	default:
		return 0
	}
}

// Describe renders the trigger for journals and the read API.
func (t Trigger) Describe() string {
	switch t.Kind {
	case TriggerPriceAbove:
		return fmt.Sprintf("price >= %.4g", t.Level)
	case TriggerPriceBelow:
		return fmt.Sprintf("price <= %.4g", t.Level)
	case TriggerGainPercent:
		return fmt.Sprintf("gain >= %.1f%%", t.Percent)
	case TriggerLossPercent:
		return fmt.Sprintf("loss >= %.1f%%", t.Percent)
	case TriggerDaysElapsed:
		return fmt.Sprintf("%d days held", t.Days)
	default:
		return string(t.Kind)
	}
}

// Validate rejects malformed payloads before they reach storage.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerPriceAbove, TriggerPriceBelow:
		if t.Level <= 0 {
			return fmt.Errorf("trigger %s requires a positive level", t.Kind)
		}
	case TriggerGainPercent, TriggerLossPercent:
		if t.Percent <= 0 {
			return fmt.Errorf("trigger %s requires a positive percent", t.Kind)
		}
	case TriggerDaysElapsed:
		if t.Days <= 0 {
			return fmt.Errorf("trigger %s requires positive days", t.Kind)
		}
	default:
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
	return nil
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
