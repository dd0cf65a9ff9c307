package desk

import (
	"context"
	"encoding/json"
	"time"

	"quorum/internal/council"
	"quorum/internal/delta"
	"quorum/internal/market"
	"quorum/internal/pattern"
	"quorum/internal/plan"

	"github.com/shopspring/decimal"
)

// EventType tags desk events.
type EventType string

const (
	EventRequestPlan     EventType = "request_plan"
	EventRefreshDecision EventType = "refresh_decision"
	EventMarkStepDone    EventType = "mark_step_done"
	EventPriceTick       EventType = "price_tick"
	EventSyncPortfolio   EventType = "sync_portfolio"
)

// EventEnvelope is the unit of work the desk loop consumes. Payload is the
// JSON-encoded request; ReplyCh, when set, unblocks a synchronous caller
// with the handler's error.
type EventEnvelope struct {
	ID        string
	Type      EventType
	Payload   json.RawMessage
	CreatedAt time.Time

	ReplyCh chan error `json:"-"`
}

type requestPlanPayload struct {
	PositionID string `json:"position_id"`
}

type refreshDecisionPayload struct {
	Symbol string `json:"symbol"`
}

type markStepDonePayload struct {
	PositionID string `json:"position_id"`
	StepID     string `json:"step_id"`
}

type priceTickPayload struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// Position is one holding as the portfolio provider reports it.
type Position struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Quantity    float64         `json:"quantity"`
	EntryPrice  float64         `json:"entry_price"`
	EntryDate   time.Time       `json:"entry_date"`
	MarketValue decimal.Decimal `json:"market_value"`
}

// PortfolioProvider is the desk's view of the book. Implementations must be
// safe for concurrent use; the desk calls them from its loop and health
// reads call them from request goroutines.
type PortfolioProvider interface {
	Positions(ctx context.Context) ([]Position, error)
	Cash(ctx context.Context) (decimal.Decimal, error)
}

// PositionState is the desk's in-memory record for one position. Accessed
// only from the event loop; snapshots hand out copies.
type PositionState struct {
	Position Position
	Plan     *plan.Plan

	LastDecision    *council.Decision
	LastPattern     *pattern.Signal
	LastObservation *delta.Observation
	LastDelta       *delta.Delta
	Quote           market.Quote
}

// State is the full in-memory desk state. No locks: the event loop is the
// only writer, readers get atomic snapshots.
type State struct {
	Positions map[string]*PositionState // keyed by position ID
	BySymbol  map[string]string         // symbol -> position ID

	// Decisions caches the latest fused decision per symbol, including
	// symbols with no open position.
	Decisions map[string]*council.Decision
}

func NewState() *State {
	return &State{
		Positions: make(map[string]*PositionState),
		BySymbol:  make(map[string]string),
		Decisions: make(map[string]*council.Decision),
	}
}

// clone deep-copies everything the event loop keeps mutating, so a published
// snapshot never changes under a reader.
func (s *State) clone() *State {
	out := NewState()
	for id, ps := range s.Positions {
		cp := *ps
		cp.Plan = ps.Plan.Clone()
		if ps.LastDecision != nil {
			dec := *ps.LastDecision
			cp.LastDecision = &dec
		}
		if ps.LastPattern != nil {
			pat := *ps.LastPattern
			cp.LastPattern = &pat
		}
		if ps.LastObservation != nil {
			obs := *ps.LastObservation
			cp.LastObservation = &obs
		}
		if ps.LastDelta != nil {
			dl := *ps.LastDelta
			dl.Drifts = append([]delta.Drift(nil), dl.Drifts...)
			cp.LastDelta = &dl
		}
		out.Positions[id] = &cp
	}
	for sym, id := range s.BySymbol {
		out.BySymbol[sym] = id
	}
	for sym, dec := range s.Decisions {
		cp := *dec
		out.Decisions[sym] = &cp
	}
	return out
}
