package desk

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// FilePortfolio reads the book from a JSON file maintained outside this
// service. Re-read on modification, same as the fundamental document.
//
// File shape:
//
//	{
//	  "cash": 20000,
//	  "positions": [
//	    {"id": "pos-1", "symbol": "BTCUSDT", "quantity": 0.5,
//	     "entry_price": 60000, "entry_date": "2026-05-01T00:00:00Z",
//	     "market_value": 31000}
//	  ]
//	}
type FilePortfolio struct {
	path string

	mu      sync.Mutex
	doc     gjson.Result
	modTime time.Time
}

var _ PortfolioProvider = (*FilePortfolio)(nil)

func NewFilePortfolio(path string) *FilePortfolio {
	return &FilePortfolio{path: strings.TrimSpace(path)}
}

func (f *FilePortfolio) Positions(ctx context.Context) ([]Position, error) {
	doc, err := f.document()
	if err != nil {
		return nil, err
	}
	var out []Position
	doc.Get("positions").ForEach(func(_, entry gjson.Result) bool {
		pos := Position{
			ID:         entry.Get("id").String(),
			Symbol:     strings.ToUpper(entry.Get("symbol").String()),
			Quantity:   entry.Get("quantity").Float(),
			EntryPrice: entry.Get("entry_price").Float(),
		}
		if raw := entry.Get("entry_date").String(); raw != "" {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				pos.EntryDate = ts
			}
		}
		if mv := entry.Get("market_value"); mv.Exists() {
			pos.MarketValue = decimal.NewFromFloat(mv.Float())
		} else {
			pos.MarketValue = decimal.NewFromFloat(pos.Quantity * pos.EntryPrice)
		}
		if pos.ID != "" && pos.Symbol != "" {
			out = append(out, pos)
		}
		return true
	})
	return out, nil
}

func (f *FilePortfolio) Cash(ctx context.Context) (decimal.Decimal, error) {
	doc, err := f.document()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(doc.Get("cash").Float()), nil
}

func (f *FilePortfolio) document() (gjson.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.path == "" {
		return gjson.Result{}, fmt.Errorf("portfolio file path is required")
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("portfolio file stat: %w", err)
	}
	if info.ModTime().Equal(f.modTime) && f.doc.Exists() {
		return f.doc, nil
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("portfolio file read: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("portfolio file is not valid JSON")
	}
	f.doc = gjson.ParseBytes(raw)
	f.modTime = info.ModTime()
	return f.doc, nil
}
