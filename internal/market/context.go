package market

// PriceContext is the raw price/volume shape the pattern classifier reads
// alongside the vote set. Built from recent candles; zero-valued fields mean
// "unknown" and degrade the specific pattern condition rather than failing.
type PriceContext struct {
	LastPrice   float64 `json:"last_price"`
	RangeHigh   float64 `json:"range_high"`
	RangeLow    float64 `json:"range_low"`
	VolumeRatio float64 `json:"volume_ratio"` // last volume vs lookback average
	Change5     float64 `json:"change_5"`     // 5-bar percent change
}

// RangePosition locates the last price inside the observed range: 0 at the
// low, 1 at the high. Returns 0.5 when the range is degenerate.
func (p PriceContext) RangePosition() float64 {
	span := p.RangeHigh - p.RangeLow
	if span <= 0 {
		return 0.5
	}
	pos := (p.LastPrice - p.RangeLow) / span
	if pos < 0 {
		return 0
	}
	if pos > 1 {
		return 1
	}
	return pos
}

// BuildPriceContext condenses a candle window into the classifier's input.
// Needs at least two candles; fewer yields a context with only LastPrice set.
func BuildPriceContext(candles []Candle) PriceContext {
	var ctx PriceContext
	n := len(candles)
	if n == 0 {
		return ctx
	}
	ctx.LastPrice = candles[n-1].Close
	if n < 2 {
		return ctx
	}
	high := candles[0].High
	low := candles[0].Low
	var volSum float64
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
		volSum += c.Volume
	}
	ctx.RangeHigh = high
	ctx.RangeLow = low
	if avg := volSum / float64(n); avg > 0 {
		ctx.VolumeRatio = candles[n-1].Volume / avg
	}
	if n > 5 {
		base := candles[n-6].Close
		if base > 0 {
			ctx.Change5 = (ctx.LastPrice - base) / base * 100
		}
	}
	return ctx
}
