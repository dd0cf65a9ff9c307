package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quorum/internal/market"
	"quorum/internal/pkg/circuit"
	symbolpkg "quorum/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

const maxHistoryLimit = 1500

// Source implements market.Source on top of the go-binance futures SDK.
// Read-only: klines and mark quotes, no account endpoints. A circuit
// breaker guards the REST path so a flapping upstream degrades votes
// instead of stalling every refresh on timeouts.
type Source struct {
	cfg     Config
	client  *futures.Client
	breaker *circuit.Breaker
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{
		cfg:     final,
		client:  client,
		breaker: circuit.NewBreaker("binance-rest", 5, 30*time.Second),
	}, nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	// Binance requires symbols without slashes (e.g., ETHUSDT)
	cleanSymbol := symbolpkg.Binance.ToExchange(symbol)

	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if !s.breaker.Allow() {
		return nil, fmt.Errorf("binance REST circuit open, skipping %s history fetch", symbol)
	}
	svc := s.client.NewKlinesService().Symbol(cleanSymbol).Interval(interval).Limit(limit)
	kls, err := svc.Do(ctx)
	if err != nil {
		s.breaker.RecordFailure()
		return nil, err
	}
	s.breaker.RecordSuccess()
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *Source) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return market.Quote{}, fmt.Errorf("symbol is required")
	}
	cleanSymbol := symbolpkg.Binance.ToExchange(symbol)
	if !s.breaker.Allow() {
		return market.Quote{}, fmt.Errorf("binance REST circuit open, skipping %s quote", symbol)
	}
	prices, err := s.client.NewListPricesService().Symbol(cleanSymbol).Do(ctx)
	if err != nil {
		s.breaker.RecordFailure()
		return market.Quote{}, err
	}
	s.breaker.RecordSuccess()
	if len(prices) == 0 || prices[0] == nil {
		return market.Quote{}, fmt.Errorf("no price returned for %s", symbol)
	}
	return market.Quote{
		Symbol:    symbolpkg.Normalize(symbol),
		Price:     parseFloat(prices[0].Price),
		UpdatedAt: time.Now(),
	}, nil
}

func (s *Source) Close() error { return nil }

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
