package generation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Due(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("size threshold", func(t *testing.T) {
		p := NewPolicy(10, time.Minute, start)
		_, due := p.Due(9, start)
		assert.False(t, due)

		reason, due := p.Due(10, start)
		assert.True(t, due)
		assert.Equal(t, FlushReasonSize, reason)
	})

	t.Run("time threshold", func(t *testing.T) {
		p := NewPolicy(1000, time.Second, start)
		_, due := p.Due(3, start.Add(999*time.Millisecond))
		assert.False(t, due)

		reason, due := p.Due(3, start.Add(time.Second))
		assert.True(t, due)
		assert.Equal(t, FlushReasonTime, reason)
	})

	t.Run("no growth means no flush", func(t *testing.T) {
		p := NewPolicy(1, time.Millisecond, start)
		p.Reset(5, start)
		_, due := p.Due(5, start.Add(time.Hour))
		assert.False(t, due)
	})

	t.Run("reset moves baseline", func(t *testing.T) {
		p := NewPolicy(5, time.Second, start)
		p.Reset(7, start.Add(time.Second))

		length, at := p.Baseline()
		assert.Equal(t, 7, length)
		assert.Equal(t, start.Add(time.Second), at)

		_, due := p.Due(11, start.Add(1500*time.Millisecond))
		assert.False(t, due)
		_, due = p.Due(12, start.Add(1500*time.Millisecond))
		assert.True(t, due)
	})

	t.Run("zero thresholds disable the check", func(t *testing.T) {
		p := NewPolicy(0, 0, start)
		_, due := p.Due(1_000_000, start.Add(time.Hour))
		assert.False(t, due)
	})
}
