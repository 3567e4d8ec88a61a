package httpapi

import (
	"sync"

	"github.com/sawpanic/confluence/internal/backtest"
)

// backtestRegistry holds completed backtest reports in memory, keyed by an
// opaque id handed back from the POST endpoint, so GET /api/backtest/results/{id}
// can retrieve them later in the same process lifetime. Spec §6.1 describes
// no durable backtest-result store, and results are reproducible from their
// input parameters, so an in-memory map is sufficient rather than a new table.
type backtestRegistry struct {
	mu      sync.RWMutex
	signals map[string]backtest.SignalBacktestReport
	cycles  map[string]backtest.CycleBacktestReport
}

func newBacktestRegistry() *backtestRegistry {
	return &backtestRegistry{
		signals: make(map[string]backtest.SignalBacktestReport),
		cycles:  make(map[string]backtest.CycleBacktestReport),
	}
}

func (b *backtestRegistry) putSignal(id string, report backtest.SignalBacktestReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals[id] = report
}

func (b *backtestRegistry) putCycle(id string, report backtest.CycleBacktestReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycles[id] = report
}

func (b *backtestRegistry) get(id string) (interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if r, ok := b.signals[id]; ok {
		return r, true
	}
	if r, ok := b.cycles[id]; ok {
		return r, true
	}
	return nil, false
}

// NewBacktestRegistry is exported so cmd/confluence can construct one shared
// registry for the httpapi server's lifetime.
func NewBacktestRegistry() *backtestRegistry { return newBacktestRegistry() }
