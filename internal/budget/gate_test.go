package budget

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel/internal/common"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNew_RejectsInvalidLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int64
	}{
		{name: "zero", limit: 0},
		{name: "negative", limit: -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.limit)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestTryReserve(t *testing.T) {
	gate, err := New(1000)
	require.NoError(t, err)

	assert.True(t, gate.TryReserve(400))
	assert.True(t, gate.TryReserve(600))
	assert.False(t, gate.TryReserve(1), "limit reached, reservation must be denied")
	assert.Equal(t, int64(1000), gate.Status().Consumed)
}

func TestTryReserve_NearLimit(t *testing.T) {
	gate, err := New(1000)
	require.NoError(t, err)

	require.True(t, gate.TryReserve(999))
	assert.False(t, gate.TryReserve(50), "999 consumed of 1000, a 50-token reservation must be denied")
	assert.Equal(t, int64(999), gate.Status().Consumed, "denied reservation must not mutate state")
}

func TestCommit_ReconcilesActualCost(t *testing.T) {
	gate, err := New(1000)
	require.NoError(t, err)

	require.True(t, gate.TryReserve(300))
	gate.Commit(300, 120)
	assert.Equal(t, int64(120), gate.Status().Consumed)

	// Actual above estimate.
	require.True(t, gate.TryReserve(100))
	gate.Commit(100, 150)
	assert.Equal(t, int64(270), gate.Status().Consumed)
}

func TestCommit_NeverNegative(t *testing.T) {
	gate, err := New(1000)
	require.NoError(t, err)

	require.True(t, gate.TryReserve(50))
	gate.Commit(500, 0)
	assert.Equal(t, int64(0), gate.Status().Consumed)
}

func TestRelease_ReturnsReservation(t *testing.T) {
	gate, err := New(1000)
	require.NoError(t, err)

	require.True(t, gate.TryReserve(800))
	gate.Release(800)
	assert.Equal(t, int64(0), gate.Status().Consumed)
	assert.True(t, gate.TryReserve(1000))
}

func TestPeriodRollover(t *testing.T) {
	now := time.Date(2026, time.March, 28, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	gate, err := New(1000, WithClock(clock))
	require.NoError(t, err)

	require.True(t, gate.TryReserve(1000))
	assert.False(t, gate.TryReserve(1))

	// Cross the month boundary: the window resets.
	mu.Lock()
	now = time.Date(2026, time.April, 1, 0, 0, 1, 0, time.UTC)
	mu.Unlock()

	assert.True(t, gate.TryReserve(1))
	status := gate.Status()
	assert.Equal(t, int64(1), status.Consumed)
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), status.PeriodStart)
}

// Under any interleaving of concurrent reserve/commit/release calls the gate
// must never let consumed exceed the limit.
func TestGate_ConcurrentNeverExceedsLimit(t *testing.T) {
	const limit = 1000
	gate, err := New(limit)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cost := int64(10 + n%17)
			if !gate.TryReserve(cost) {
				return
			}
			switch n % 3 {
			case 0:
				gate.Commit(cost, cost)
			case 1:
				gate.Commit(cost, cost/2)
			case 2:
				gate.Release(cost)
			}
		}(i)
	}
	wg.Wait()

	status := gate.Status()
	assert.LessOrEqual(t, status.Consumed, int64(limit))
	assert.GreaterOrEqual(t, status.Consumed, int64(0))
}
