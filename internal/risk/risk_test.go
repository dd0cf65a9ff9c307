package risk

import (
	"testing"
	"time"

	"quorum/internal/delta"
	"quorum/internal/tuning"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func holding(id, symbol string, value float64, covered bool, band delta.Significance) Holding {
	return Holding{
		PositionID:  id,
		Symbol:      symbol,
		MarketValue: decimal.NewFromFloat(value),
		Covered:     covered,
		DriftBand:   band,
	}
}

func TestCheckHealth_EmptyBook(t *testing.T) {
	h := CheckHealth(Portfolio{}, tuning.Defaults().Risk, time.Now())
	assert.Equal(t, 100.0, h.Score)
	assert.Equal(t, BandHealthy, h.Band)
	assert.Empty(t, h.Findings)
	assert.Zero(t, h.Positions)
}

func TestCheckHealth_BalancedBook(t *testing.T) {
	pf := Portfolio{
		Cash: decimal.NewFromInt(30000),
		Holdings: []Holding{
			holding("pos-1", "BTCUSDT", 30000, true, delta.Low),
			holding("pos-2", "ETHUSDT", 25000, true, delta.Medium),
			holding("pos-3", "SOLUSDT", 15000, true, delta.Low),
		},
	}
	h := CheckHealth(pf, tuning.Defaults().Risk, time.Now())
	assert.Equal(t, 100.0, h.Score)
	assert.Equal(t, BandHealthy, h.Band)
	assert.Equal(t, 3, h.Positions)
}

func TestCheckHealth_Concentration(t *testing.T) {
	pf := Portfolio{
		Cash: decimal.NewFromInt(10000),
		Holdings: []Holding{
			holding("pos-1", "BTCUSDT", 60000, true, delta.Low),
			holding("pos-2", "ETHUSDT", 30000, true, delta.Low),
		},
	}
	h := CheckHealth(pf, tuning.Defaults().Risk, time.Now())
	assert.Equal(t, 80.0, h.Score)
	require.Len(t, h.Findings, 1)
	assert.Equal(t, "concentration", h.Findings[0].Code)
	assert.Contains(t, h.Findings[0].Detail, "BTCUSDT")
}

func TestCheckHealth_CashFloor(t *testing.T) {
	pf := Portfolio{
		Cash: decimal.NewFromInt(1000),
		Holdings: []Holding{
			holding("pos-1", "BTCUSDT", 33000, true, delta.Low),
			holding("pos-2", "ETHUSDT", 33000, true, delta.Low),
			holding("pos-3", "SOLUSDT", 33000, true, delta.Low),
		},
	}
	h := CheckHealth(pf, tuning.Defaults().Risk, time.Now())
	require.Len(t, h.Findings, 1)
	assert.Equal(t, "cash_floor", h.Findings[0].Code)
	assert.Equal(t, 85.0, h.Score)
}

func TestCheckHealth_DriftAndCoverage(t *testing.T) {
	pf := Portfolio{
		Cash: decimal.NewFromInt(20000),
		Holdings: []Holding{
			holding("pos-1", "BTCUSDT", 20000, false, delta.Critical),
			holding("pos-2", "ETHUSDT", 20000, true, delta.High),
		},
	}
	h := CheckHealth(pf, tuning.Defaults().Risk, time.Now())

	codes := make([]string, 0, len(h.Findings))
	for _, f := range h.Findings {
		codes = append(codes, f.Code)
	}
	assert.ElementsMatch(t, []string{"critical_drift", "uncovered"}, codes)
	assert.Equal(t, 75.0, h.Score, "critical drift 15 plus uncovered 10")
	assert.Equal(t, BandHealthy, h.Band)
}

func TestCheckHealth_Bands(t *testing.T) {
	p := tuning.Defaults().Risk

	t.Run("warning band", func(t *testing.T) {
		pf := Portfolio{
			Holdings: []Holding{
				holding("pos-1", "BTCUSDT", 100000, false, delta.Critical), // concentration + drift + uncovered + no cash
			},
		}
		h := CheckHealth(pf, p, time.Now())
		assert.Equal(t, 40.0, h.Score)
		assert.Equal(t, BandWarning, h.Band)
	})

	t.Run("score never goes negative", func(t *testing.T) {
		var holds []Holding
		for i := 0; i < 6; i++ {
			holds = append(holds, holding("pos", "SYM", 1000, false, delta.Critical))
		}
		h := CheckHealth(Portfolio{Holdings: holds}, p, time.Now())
		assert.Equal(t, 0.0, h.Score)
		assert.Equal(t, BandAtRisk, h.Band)
	})
}
