package decisionlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quorum/internal/council"
	"quorum/internal/delta"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func auditDecision(symbol string, action council.Action, at time.Time) council.Decision {
	return council.Decision{
		Symbol:     symbol,
		Action:     action,
		Score:      0.4,
		Confidence: 0.7,
		CreatedAt:  at,
	}
}

func TestStore_DecisionTrail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendDecision(ctx, auditDecision("BTCUSDT", council.Accumulate, base)))
	require.NoError(t, s.AppendDecision(ctx, auditDecision("ETHUSDT", council.Neutral, base.Add(time.Minute))))
	require.NoError(t, s.AppendDecision(ctx, auditDecision("BTCUSDT", council.Trim, base.Add(2*time.Minute))))

	t.Run("newest first across symbols", func(t *testing.T) {
		recs, err := s.RecentDecisions(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "trim", recs[0].Action)
		assert.Equal(t, "accumulate", recs[2].Action)
	})

	t.Run("symbol filter", func(t *testing.T) {
		recs, err := s.RecentDecisions(ctx, "BTCUSDT", 10)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.Equal(t, "BTCUSDT", r.Symbol)
		}
	})

	t.Run("limit applies", func(t *testing.T) {
		recs, err := s.RecentDecisions(ctx, "", 1)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("payload replays the decision", func(t *testing.T) {
		recs, err := s.RecentDecisions(ctx, "ETHUSDT", 1)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Contains(t, recs[0].Payload, `"symbol":"ETHUSDT"`)
	})
}

func TestStore_Alerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	drift := DriftAlert("BTCUSDT", delta.Delta{
		PositionID:   "pos-1",
		Significance: delta.High,
		Summary:      "price high (8.0)",
		To:           at,
	})
	require.NoError(t, s.AppendAlert(ctx, drift))
	require.NoError(t, s.AppendAlert(ctx, AlertRecord{
		Timestamp:  at.Add(time.Minute).Unix(),
		PositionID: "pos-1",
		Symbol:     "BTCUSDT",
		Kind:       AlertStepReady,
		Message:    "bullish step ready",
	}))

	alerts, err := s.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertStepReady, alerts[0].Kind)
	assert.Equal(t, AlertDrift, alerts[1].Kind)
	assert.Equal(t, "high", alerts[1].Significance)
	assert.Equal(t, "price high (8.0)", alerts[1].Message)
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore("  ")
	assert.Error(t, err)
}
