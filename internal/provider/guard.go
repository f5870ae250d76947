package provider

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// startGuard protects against restart storms when an agent binary
// keeps dying at spawn. It never retries on its own; restart stays an
// explicit caller action. It does make repeated failing starts fail
// fast: a circuit breaker opens after consecutive spawn failures, and
// an exponential cool-down enforces a minimum delay between attempts.
type startGuard struct {
	breaker *gobreaker.TwoStepCircuitBreaker

	mu        sync.Mutex
	cooldown  *backoff.ExponentialBackOff
	notBefore time.Time
}

func newStartGuard(name string) *startGuard {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0 // the schedule never expires; success resets it

	return &startGuard{
		breaker: gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		cooldown: bo,
	}
}

// allow reports whether a spawn attempt may proceed now. On success it
// returns a completion callback that must be invoked with the attempt
// outcome.
func (g *startGuard) allow() (func(success bool), error) {
	g.mu.Lock()
	notBefore := g.notBefore
	g.mu.Unlock()

	if wait := time.Until(notBefore); wait > 0 {
		return nil, fmt.Errorf("agent restarted too recently, retry in %s", wait.Round(time.Millisecond))
	}

	done, err := g.breaker.Allow()
	if err != nil {
		return nil, fmt.Errorf("agent keeps failing to start, cooling off: %w", err)
	}

	return func(success bool) {
		done(success)
		g.mu.Lock()
		defer g.mu.Unlock()
		if success {
			g.cooldown.Reset()
			g.notBefore = time.Time{}
			return
		}
		g.notBefore = time.Now().Add(g.cooldown.NextBackOff())
	}, nil
}
