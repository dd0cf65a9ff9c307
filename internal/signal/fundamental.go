package signal

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"quorum/internal/market"

	"github.com/tidwall/gjson"
)

// FundamentalSource reads a vendor research document, a JSON file keyed by
// symbol with a 0-100 quality score plus optional sub-scores. The file is
// re-read when its modification time changes, so a refreshed vendor drop is
// picked up without a restart.
//
// Document shape:
//
//	{
//	  "BTC": {"score": 72, "valuation": 60, "moat": 80, "notes": "..."},
//	  ...
//	}
type FundamentalSource struct {
	path  string
	clock market.Clock

	mu      sync.Mutex
	loaded  gjson.Result
	modTime time.Time
}

func NewFundamentalSource(path string, clock market.Clock) *FundamentalSource {
	if clock == nil {
		clock = market.SystemClock{}
	}
	return &FundamentalSource{path: strings.TrimSpace(path), clock: clock}
}

func (f *FundamentalSource) Name() string { return SourceFundamental }

func (f *FundamentalSource) GetVote(ctx context.Context, symbol string) (*Vote, error) {
	doc, err := f.document()
	if err != nil {
		return nil, err
	}
	entry := doc.Get(strings.ToUpper(strings.TrimSpace(symbol)))
	if !entry.Exists() {
		return nil, nil
	}
	score := entry.Get("score")
	if !score.Exists() {
		return nil, fmt.Errorf("fundamental entry for %s has no score", symbol)
	}

	// Coverage counts how many sub-scores the vendor filled in.
	fields := []string{"valuation", "moat", "growth", "balance_sheet"}
	present := 0
	for _, fld := range fields {
		if entry.Get(fld).Exists() {
			present++
		}
	}
	coverage := 0.5 + 0.5*float64(present)/float64(len(fields))

	rationale := entry.Get("notes").String()
	if rationale == "" {
		rationale = fmt.Sprintf("vendor quality score %.0f", score.Float())
	}
	return &Vote{
		Source:     SourceFundamental,
		Direction:  Normalize(score.Float()),
		Confidence: Clamp01(entry.Get("conviction").Float()/100 + 0.5),
		Coverage:   coverage,
		Rationale:  rationale,
		Timestamp:  f.clock.Now(),
	}, nil
}

func (f *FundamentalSource) document() (gjson.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.path == "" {
		return gjson.Result{}, fmt.Errorf("fundamental source has no document path")
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("fundamental document stat: %w", err)
	}
	if info.ModTime().Equal(f.modTime) && f.loaded.Exists() {
		return f.loaded, nil
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("fundamental document read: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("fundamental document is not valid JSON")
	}
	f.loaded = gjson.ParseBytes(raw)
	f.modTime = info.ModTime()
	return f.loaded, nil
}
