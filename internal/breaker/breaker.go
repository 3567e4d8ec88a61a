// Package breaker wraps each external collaborator call in a circuit
// breaker, adapted from the teacher's infra/breakers package and generalized
// to any ingestor rather than one hardcoded for exchange data.
package breaker

import (
	"time"

	gobreaker "github.com/sony/gobreaker"
)

// Breaker trips after three consecutive failures, or after a 5% failure
// rate over a 20+ request window, matching the teacher's thresholds.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

func New(name string) *Breaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st), name: name}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Execute runs fn through the breaker, returning gobreaker.ErrOpenState
// immediately when the circuit is open.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}
