package signal

import (
	"context"
	"fmt"

	"quorum/internal/market"

	talib "github.com/markcheno/go-talib"
)

const (
	defaultLookback = 120
	minCandles      = 60
)

// TechnicalSource scores a symbol's tape: RSI regime, EMA trend stack and
// MACD histogram, folded into a 0-100 score. Emits no opinion when the
// candle window is too short to trust the indicators.
type TechnicalSource struct {
	source   market.Source
	interval string
	lookback int
	clock    market.Clock
}

func NewTechnicalSource(src market.Source, interval string, clock market.Clock) *TechnicalSource {
	if interval == "" {
		interval = "1d"
	}
	if clock == nil {
		clock = market.SystemClock{}
	}
	return &TechnicalSource{source: src, interval: interval, lookback: defaultLookback, clock: clock}
}

func (t *TechnicalSource) Name() string { return SourceTechnical }

func (t *TechnicalSource) GetVote(ctx context.Context, symbol string) (*Vote, error) {
	candles, err := t.source.FetchHistory(ctx, symbol, t.interval, t.lookback)
	if err != nil {
		return nil, fmt.Errorf("technical history fetch: %w", err)
	}
	if len(candles) < minCandles {
		return nil, nil
	}
	score, rationale := ScoreCandles(candles)
	coverage := float64(len(candles)) / float64(t.lookback)
	if coverage > 1 {
		coverage = 1
	}
	return &Vote{
		Source:     SourceTechnical,
		Direction:  Normalize(score),
		Confidence: 0.5 + 0.5*coverage,
		Coverage:   coverage,
		Rationale:  rationale,
		Timestamp:  t.clock.Now(),
	}, nil
}

// ScoreCandles condenses the indicator set into one 0-100 tape score.
// Exported so the refresh path can reuse the raw score for drift tracking.
func ScoreCandles(candles []market.Candle) (float64, string) {
	closes := market.Closes(candles)
	last := closes[len(closes)-1]

	score := 50.0
	var notes []string

	rsiSeries := talib.Rsi(closes, 14)
	rsi := lastValue(rsiSeries)
	switch {
	case rsi >= 70:
		score += 10
		notes = append(notes, fmt.Sprintf("RSI overbought at %.0f", rsi))
	case rsi >= 55:
		score += 8
		notes = append(notes, fmt.Sprintf("RSI constructive at %.0f", rsi))
	case rsi <= 30:
		score -= 18
		notes = append(notes, fmt.Sprintf("RSI oversold at %.0f", rsi))
	case rsi <= 45:
		score -= 8
		notes = append(notes, fmt.Sprintf("RSI soft at %.0f", rsi))
	}

	ema20 := lastValue(talib.Ema(closes, 20))
	ema50 := lastValue(talib.Ema(closes, 50))
	switch {
	case ema20 > ema50 && last > ema20:
		score += 20
		notes = append(notes, "price above a rising EMA stack")
	case ema20 > ema50:
		score += 8
		notes = append(notes, "EMA stack bullish, price consolidating")
	case last < ema20 && ema20 < ema50:
		score -= 20
		notes = append(notes, "price below a falling EMA stack")
	default:
		score -= 5
	}

	_, _, hist := talib.Macd(closes, 12, 26, 9)
	h := lastValue(hist)
	prev := 0.0
	if len(hist) >= 2 {
		prev = hist[len(hist)-2]
	}
	switch {
	case h > 0 && h > prev:
		score += 12
		notes = append(notes, "MACD momentum expanding")
	case h > 0:
		score += 5
	case h < 0 && h < prev:
		score -= 12
		notes = append(notes, "MACD momentum deteriorating")
	default:
		score -= 5
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	rationale := "tape neutral"
	if len(notes) > 0 {
		rationale = notes[0]
		for _, n := range notes[1:] {
			rationale += "; " + n
		}
	}
	return score, rationale
}

// MomentumScore isolates the momentum leg for drift tracking: RSI blended
// with histogram direction on the 0-100 scale.
func MomentumScore(candles []market.Candle) float64 {
	if len(candles) < minCandles {
		return 50
	}
	closes := market.Closes(candles)
	rsi := lastValue(talib.Rsi(closes, 14))
	_, _, hist := talib.Macd(closes, 12, 26, 9)
	h := lastValue(hist)
	score := rsi
	if h > 0 {
		score += 10
	} else if h < 0 {
		score -= 10
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func lastValue(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] != 0 {
			return series[i]
		}
	}
	return 0
}
