package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.True(t, b.Allow())
	}
	b.RecordFailure()
	assert.False(t, b.Allow(), "third consecutive failure trips the breaker")
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "the streak restarted after a success")
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond)

	b.RecordFailure()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow(), "cool-off admits one probe")

	t.Run("probe failure reopens", func(t *testing.T) {
		b.RecordFailure()
		assert.False(t, b.Allow())
	})

	t.Run("probe success closes", func(t *testing.T) {
		time.Sleep(20 * time.Millisecond)
		assert.True(t, b.Allow())
		b.RecordSuccess()
		assert.True(t, b.Allow())
	})
}
