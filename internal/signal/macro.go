package signal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"quorum/internal/market"
)

// MacroSource derives a regime stance and a matching vote. The stance comes
// from a configured override when set, otherwise from the benchmark tape:
// the benchmark symbol's candles are scored the same way single names are,
// and the score maps onto the four regimes.
type MacroSource struct {
	source    market.Source
	benchmark string
	interval  string
	override  MacroStance
	clock     market.Clock

	mu     sync.RWMutex
	stance MacroStance
}

func NewMacroSource(src market.Source, benchmark, interval string, override MacroStance, clock market.Clock) *MacroSource {
	if benchmark == "" {
		benchmark = "BTCUSDT"
	}
	if interval == "" {
		interval = "1d"
	}
	if clock == nil {
		clock = market.SystemClock{}
	}
	return &MacroSource{
		source:    src,
		benchmark: benchmark,
		interval:  interval,
		override:  override,
		clock:     clock,
		stance:    StanceCautious,
	}
}

func (m *MacroSource) Name() string { return SourceMacro }

// Stance implements StanceProvider. Refreshes off the benchmark tape unless
// an override pins the regime.
func (m *MacroSource) Stance(ctx context.Context) (MacroStance, error) {
	if m.override != "" {
		return m.override, nil
	}
	candles, err := m.source.FetchHistory(ctx, m.benchmark, m.interval, defaultLookback)
	if err != nil {
		return m.lastStance(), fmt.Errorf("macro benchmark fetch: %w", err)
	}
	if len(candles) < minCandles {
		return m.lastStance(), nil
	}
	score, _ := ScoreCandles(candles)
	stance := stanceFromScore(score)
	m.mu.Lock()
	m.stance = stance
	m.mu.Unlock()
	return stance, nil
}

func (m *MacroSource) GetVote(ctx context.Context, symbol string) (*Vote, error) {
	stance, err := m.Stance(ctx)
	if err != nil {
		return nil, err
	}
	var direction float64
	switch stance {
	case StanceRiskOn:
		direction = 0.6
	case StanceCautious:
		direction = 0.1
	case StanceDefensive:
		direction = -0.4
	case StanceRiskOff:
		direction = -0.9
	}
	return &Vote{
		Source:     SourceMacro,
		Direction:  direction,
		Confidence: 0.7,
		Coverage:   0.8,
		Rationale:  fmt.Sprintf("regime reads %s off the %s benchmark", stance, m.benchmark),
		Timestamp:  m.clock.Now(),
	}, nil
}

func (m *MacroSource) lastStance() MacroStance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stance
}

func stanceFromScore(score float64) MacroStance {
	switch {
	case score >= 65:
		return StanceRiskOn
	case score >= 45:
		return StanceCautious
	case score >= 30:
		return StanceDefensive
	default:
		return StanceRiskOff
	}
}

// ParseStance reads a configured stance override; empty means "derive".
func ParseStance(raw string) (MacroStance, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case string(StanceRiskOn):
		return StanceRiskOn, nil
	case string(StanceCautious):
		return StanceCautious, nil
	case string(StanceDefensive):
		return StanceDefensive, nil
	case string(StanceRiskOff):
		return StanceRiskOff, nil
	default:
		return "", fmt.Errorf("unknown macro stance %q", raw)
	}
}
