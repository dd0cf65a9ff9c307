package signal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"quorum/internal/market"

	"github.com/tidwall/gjson"
)

const (
	fearGreedEndpoint = "https://api.alternative.me/fng/?limit=1"
	sentimentTTL      = 30 * time.Minute
	sentimentBackoff  = 2 * time.Minute
)

// SentimentSource votes off the crowd's fear/greed reading. The index is
// market-wide, so Coverage stays modest: it says nothing about the specific
// symbol.
type SentimentSource struct {
	endpoint string
	client   *http.Client
	clock    market.Clock

	mu        sync.Mutex
	value     float64
	label     string
	fetchedAt time.Time
	failedAt  time.Time
}

func NewSentimentSource(clock market.Clock) *SentimentSource {
	if clock == nil {
		clock = market.SystemClock{}
	}
	return &SentimentSource{
		endpoint: fearGreedEndpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		clock:    clock,
	}
}

func (s *SentimentSource) Name() string { return SourceSentiment }

func (s *SentimentSource) GetVote(ctx context.Context, symbol string) (*Vote, error) {
	value, label, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return &Vote{
		Source:     SourceSentiment,
		Direction:  Normalize(value),
		Confidence: 0.6,
		Coverage:   0.5,
		Rationale:  fmt.Sprintf("crowd index %.0f (%s)", value, label),
		Timestamp:  s.clock.Now(),
	}, nil
}

func (s *SentimentSource) current(ctx context.Context) (float64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if !s.fetchedAt.IsZero() && now.Sub(s.fetchedAt) < sentimentTTL {
		return s.value, s.label, nil
	}
	if !s.failedAt.IsZero() && now.Sub(s.failedAt) < sentimentBackoff {
		if s.fetchedAt.IsZero() {
			return 0, "", fmt.Errorf("sentiment feed unavailable, backing off")
		}
		return s.value, s.label, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.failedAt = now
		return s.stale(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.failedAt = now
		return s.stale(fmt.Errorf("sentiment feed status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.failedAt = now
		return s.stale(err)
	}
	point := gjson.GetBytes(body, "data.0")
	if !point.Exists() {
		s.failedAt = now
		return s.stale(fmt.Errorf("sentiment feed returned no data"))
	}
	s.value = point.Get("value").Float()
	s.label = point.Get("value_classification").String()
	s.fetchedAt = now
	s.failedAt = time.Time{}
	return s.value, s.label, nil
}

// stale serves the last good reading if one exists, else the error.
func (s *SentimentSource) stale(err error) (float64, string, error) {
	if s.fetchedAt.IsZero() {
		return 0, "", err
	}
	return s.value, s.label, nil
}
