package market

import (
	"context"
	"time"
)

// Source supplies the candles and quotes this core consumes. The core never
// fetches network data outside a Source implementation.
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	FetchQuote(ctx context.Context, symbol string) (Quote, error)

	Close() error
}

// Clock abstracts "now" so trigger evaluation and plan aging are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
