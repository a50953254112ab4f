package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBreakerStartsClosed(t *testing.T) {
	b := New("catalog-source")
	assert.Equal(t, "catalog-source", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())
}

func TestBreakerTransitions(t *testing.T) {
	type step struct {
		fail         bool
		wantOpen     bool
		wantFallback bool
		wantOpened   bool
		wantClosed   bool
	}
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens on the threshold failure only",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{fail: true},
				{fail: true},
				{fail: true, wantOpen: true, wantFallback: true, wantOpened: true},
				{fail: true, wantOpen: true, wantFallback: true},
			},
		},
		{
			name: "a success in between resets the failure streak",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true},
				{fail: false, wantFallback: false},
				{fail: true},
				{fail: true, wantOpen: true, wantFallback: true, wantOpened: true},
			},
		},
		{
			name: "closes after consecutive successes while open",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantOpen: true, wantFallback: true, wantOpened: true},
				{fail: false, wantOpen: true, wantFallback: true},
				{fail: true, wantOpen: true, wantFallback: true},
				{fail: false, wantOpen: true, wantFallback: true},
				{fail: false, wantClosed: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("catalog-source", tt.opts...)
			for i, s := range tt.steps {
				var fallback bool
				var change Change
				if s.fail {
					fallback, change = b.RecordFailure()
				} else {
					var primary bool
					primary, change = b.RecordSuccess()
					fallback = !primary
				}
				require.Equal(t, s.wantFallback, fallback, "step %d fallback", i)
				require.Equal(t, s.wantOpened, change.Opened, "step %d opened", i)
				require.Equal(t, s.wantClosed, change.Closed, "step %d closed", i)
				require.Equal(t, s.wantOpen, b.IsOpen(), "step %d open", i)
			}
		})
	}
}

func TestBreakerReset(t *testing.T) {
	b := New("catalog-source", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerAllowsOneProbePerCooldown(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("catalog-source", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(func() time.Time { return now }))

	b.RecordFailure()
	assert.False(t, b.Allow(), "cooldown has not elapsed")

	now = now.Add(time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, StateOpen, b.State(), "a probe does not close the breaker")
}
