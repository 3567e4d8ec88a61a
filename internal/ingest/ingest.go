// Package ingest pulls data from external collaborators into the store. Each
// source gets its own file; none of them embed a real vendor client — every
// ingestor takes an injectable fetch function, since wiring a specific
// vendor API is out of scope (spec Non-goals). What's implemented is the
// surrounding discipline the teacher applies to every provider call: a
// circuit breaker, a token-bucket rate limiter, and bounded retries with
// exponential backoff.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sawpanic/confluence/internal/breaker"
)

// Ingestor is one pollable external source.
type Ingestor interface {
	Name() string
	Pull(ctx context.Context) (rows int, err error)
}

// guard bundles the breaker+limiter+retry discipline shared by every
// ingestor so each source file only has to describe what it fetches and
// where it writes, not how to call out safely.
type guard struct {
	name    string
	breaker *breaker.Breaker
	limiter *rate.Limiter
}

func newGuard(name string, rps float64, burst int) *guard {
	return &guard{
		name:    name,
		breaker: breaker.New(name),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// call runs fn under the rate limiter and circuit breaker, making at most 3
// attempts; the backoff between attempts starts at 1s and doubles, capped at
// 8s, so the waits are 1s and then 2s.
func (g *guard) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	const maxAttempts = 3
	backoff := time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("ingest %s: rate limiter: %w", g.name, err)
		}

		result, err := g.breaker.Execute(fn)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("source", g.name).Int("attempt", attempt).Msg("ingest fetch failed")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > 8*time.Second {
			backoff = 8 * time.Second
		}
	}
	return nil, fmt.Errorf("ingest %s: exhausted retries: %w", g.name, lastErr)
}
