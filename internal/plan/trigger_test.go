package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var entryDate = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func TestTrigger_Satisfied(t *testing.T) {
	now := entryDate.AddDate(0, 0, 20)

	t.Run("price above", func(t *testing.T) {
		tr := PriceAbove(110)
		assert.True(t, tr.Satisfied(110, 100, now, entryDate))
		assert.True(t, tr.Satisfied(115, 100, now, entryDate))
		assert.False(t, tr.Satisfied(109, 100, now, entryDate))
		assert.False(t, tr.Satisfied(0, 100, now, entryDate), "no quote means no fire")
	})

	t.Run("price below", func(t *testing.T) {
		tr := PriceBelow(90)
		assert.True(t, tr.Satisfied(90, 100, now, entryDate))
		assert.False(t, tr.Satisfied(91, 100, now, entryDate))
		assert.False(t, tr.Satisfied(0, 100, now, entryDate))
	})

	t.Run("gain percent", func(t *testing.T) {
		tr := GainPercent(8)
		assert.True(t, tr.Satisfied(108, 100, now, entryDate))
		assert.False(t, tr.Satisfied(107.9, 100, now, entryDate))
		assert.False(t, tr.Satisfied(108, 0, now, entryDate), "needs an entry price")
	})

	t.Run("loss percent", func(t *testing.T) {
		tr := LossPercent(10)
		assert.True(t, tr.Satisfied(90, 100, now, entryDate))
		assert.True(t, tr.Satisfied(80, 100, now, entryDate))
		assert.False(t, tr.Satisfied(90.1, 100, now, entryDate))
	})

	t.Run("days elapsed", func(t *testing.T) {
		tr := DaysElapsed(14)
		assert.True(t, tr.Satisfied(100, 100, entryDate.AddDate(0, 0, 14), entryDate))
		assert.False(t, tr.Satisfied(100, 100, entryDate.AddDate(0, 0, 13), entryDate))
		assert.False(t, tr.Satisfied(100, 100, now, time.Time{}), "needs an entry date")
	})
}

func TestTrigger_Proximity(t *testing.T) {
	now := entryDate.AddDate(0, 0, 7)

	t.Run("satisfied is one", func(t *testing.T) {
		assert.Equal(t, 1.0, GainPercent(8).Proximity(110, 100, now, entryDate))
	})

	t.Run("gain percent is linear", func(t *testing.T) {
		tr := GainPercent(8)
		assert.InDelta(t, 0.5, tr.Proximity(104, 100, now, entryDate), 1e-9)
		assert.Zero(t, tr.Proximity(95, 100, now, entryDate), "moving away clamps at zero")
	})

	t.Run("loss percent is linear", func(t *testing.T) {
		tr := LossPercent(10)
		assert.InDelta(t, 0.5, tr.Proximity(95, 100, now, entryDate), 1e-9)
		assert.Zero(t, tr.Proximity(105, 100, now, entryDate))
	})

	t.Run("price level measures travel from entry", func(t *testing.T) {
		tr := PriceAbove(120)
		assert.InDelta(t, 0.5, tr.Proximity(110, 100, now, entryDate), 1e-9)
		assert.Zero(t, tr.Proximity(100, 100, now, entryDate))
	})

	t.Run("days elapsed measures share held", func(t *testing.T) {
		tr := DaysElapsed(14)
		assert.InDelta(t, 0.5, tr.Proximity(100, 100, entryDate.AddDate(0, 0, 7), entryDate), 1e-9)
	})
}

func TestTrigger_Validate(t *testing.T) {
	assert.NoError(t, PriceAbove(50).Validate())
	assert.NoError(t, GainPercent(8).Validate())
	assert.NoError(t, DaysElapsed(14).Validate())

	assert.Error(t, PriceAbove(0).Validate())
	assert.Error(t, PriceBelow(-1).Validate())
	assert.Error(t, GainPercent(0).Validate())
	assert.Error(t, LossPercent(-5).Validate())
	assert.Error(t, DaysElapsed(0).Validate())
	assert.Error(t, Trigger{Kind: "moon_phase"}.Validate())
}

func TestTrigger_Describe(t *testing.T) {
	assert.Equal(t, "gain >= 8.0%", GainPercent(8).Describe())
	assert.Equal(t, "14 days held", DaysElapsed(14).Describe())
}
