// Package budget enforces a hard inference-spend quota over calendar-month
// accounting periods. The gate is the single shared mutable resource in the
// detection pipeline; every reserve, commit, release, and period rollover
// happens under one lock.
package budget

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/caravelhq/caravel/internal/common"
)

// Gate tracks consumed resource units against a configured limit for the
// current accounting period. Construct with New; the zero value is not
// usable.
type Gate struct {
	now         func() time.Time
	periodStart time.Time
	limit       int64
	consumed    int64
	mu          sync.Mutex
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// New creates a gate with the given per-period token limit. A non-positive
// limit is a configuration error and aborts startup.
func New(limit int64, opts ...Option) (*Gate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: budget limit must be positive, got %d", common.ErrInvalidConfig, limit)
	}

	g := &Gate{
		limit: limit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.periodStart = startOfMonth(g.now())

	return g, nil
}

// TryReserve atomically checks whether estimated units fit in the current
// period and, if so, consumes them. Returns false without mutating state
// when the reservation would exceed the limit. A denial is a routing
// decision, not an error.
func (g *Gate) TryReserve(estimated int64) bool {
	if estimated < 0 {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()

	if g.consumed+estimated > g.limit {
		return false
	}
	g.consumed += estimated
	return true
}

// Commit reconciles a prior reservation with the actual cost once the call
// completes. Actual may be less or more than the estimate; consumed never
// goes negative and never exceeds the limit.
func (g *Gate) Commit(reserved, actual int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()

	g.consumed += actual - reserved
	if g.consumed < 0 {
		g.consumed = 0
	}
	if g.consumed > g.limit {
		slog.Warn("budget overrun on commit, clamping to limit",
			"reserved", reserved,
			"actual", actual,
			"limit", g.limit)
		g.consumed = g.limit
	}
}

// Release returns a full reservation when escalation was aborted before any
// cost was incurred.
func (g *Gate) Release(reserved int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()

	g.consumed -= reserved
	if g.consumed < 0 {
		g.consumed = 0
	}
}

// Status is a point-in-time snapshot of the gate.
type Status struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Limit       int64
	Consumed    int64
	Remaining   int64
}

// Status returns the current window state.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollLocked()

	return Status{
		PeriodStart: g.periodStart,
		PeriodEnd:   g.periodStart.AddDate(0, 1, 0),
		Limit:       g.limit,
		Consumed:    g.consumed,
		Remaining:   g.limit - g.consumed,
	}
}

// rollLocked resets the window when the wall clock has crossed into a new
// calendar month. Callers must hold g.mu.
func (g *Gate) rollLocked() {
	current := startOfMonth(g.now())
	if current.After(g.periodStart) {
		slog.Info("budget period rollover",
			"previous_period", g.periodStart.Format("2006-01"),
			"new_period", current.Format("2006-01"),
			"consumed", g.consumed)
		g.periodStart = current
		g.consumed = 0
	}
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
