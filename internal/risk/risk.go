// Package risk scores the whole book. The score starts at 100 and loses
// points for each structural weakness; it never goes below zero.
package risk

import (
	"fmt"
	"time"

	"quorum/internal/delta"
	"quorum/internal/tuning"

	"github.com/shopspring/decimal"
)

// Band is the coarse health classification.
type Band string

const (
	BandHealthy Band = "healthy"
	BandWarning Band = "warning"
	BandAtRisk  Band = "at_risk"
)

// Holding is one position as the aggregator sees it. MarketValue is in the
// book's base currency.
type Holding struct {
	PositionID  string             `json:"position_id"`
	Symbol      string             `json:"symbol"`
	MarketValue decimal.Decimal    `json:"market_value"`
	Covered     bool               `json:"covered"` // an active plan exists
	DriftBand   delta.Significance `json:"drift_band"`
}

// Portfolio is the aggregator's input snapshot.
type Portfolio struct {
	Holdings []Holding       `json:"holdings"`
	Cash     decimal.Decimal `json:"cash"`
}

// TotalValue is holdings plus cash.
func (p Portfolio) TotalValue() decimal.Decimal {
	total := p.Cash
	for _, h := range p.Holdings {
		total = total.Add(h.MarketValue)
	}
	return total
}

// Finding is one scored deduction.
type Finding struct {
	Code    string  `json:"code"`
	Detail  string  `json:"detail"`
	Penalty float64 `json:"penalty"`
}

// Health is the portfolio-wide verdict.
type Health struct {
	Score     float64   `json:"score"` // 0..100
	Band      Band      `json:"band"`
	Findings  []Finding `json:"findings"`
	Positions int       `json:"positions"`
	At        time.Time `json:"at"`
}

// CheckHealth scores the book. Pure; an empty portfolio is a perfect score.
func CheckHealth(pf Portfolio, p tuning.RiskParams, now time.Time) Health {
	h := Health{Score: 100, Positions: len(pf.Holdings), At: now}
	total := pf.TotalValue()
	if total.IsPositive() {
		limit := decimal.NewFromFloat(p.ConcentrationLimit)
		for _, hold := range pf.Holdings {
			share := hold.MarketValue.Div(total)
			if share.GreaterThan(limit) {
				h.deduct(Finding{
					Code:    "concentration",
					Detail:  fmt.Sprintf("%s is %s%% of the book (limit %s%%)", hold.Symbol, pct(share), pct(limit)),
					Penalty: p.ConcentrationPenalty,
				})
			}
		}
		cashShare := pf.Cash.Div(total)
		if cashShare.LessThan(decimal.NewFromFloat(p.CashFloor)) {
			h.deduct(Finding{
				Code:    "cash_floor",
				Detail:  fmt.Sprintf("cash at %s%% of the book, floor is %s%%", pct(cashShare), pct(decimal.NewFromFloat(p.CashFloor))),
				Penalty: p.CashPenalty,
			})
		}
	}
	for _, hold := range pf.Holdings {
		if hold.DriftBand >= delta.Critical {
			h.deduct(Finding{
				Code:    "critical_drift",
				Detail:  fmt.Sprintf("%s has drifted critically from its plan", hold.Symbol),
				Penalty: p.CriticalDeltaPenalty,
			})
		}
		if !hold.Covered {
			h.deduct(Finding{
				Code:    "uncovered",
				Detail:  fmt.Sprintf("%s has no active plan", hold.Symbol),
				Penalty: p.UncoveredPenalty,
			})
		}
	}
	if h.Score < 0 {
		h.Score = 0
	}
	switch {
	case h.Score >= p.HealthyFloor:
		h.Band = BandHealthy
	case h.Score >= p.WarningFloor:
		h.Band = BandWarning
	default:
		h.Band = BandAtRisk
	}
	return h
}

func (h *Health) deduct(f Finding) {
	h.Findings = append(h.Findings, f)
	h.Score -= f.Penalty
}

func pct(share decimal.Decimal) string {
	return share.Mul(decimal.NewFromInt(100)).Round(1).String()
}
