package provider

import (
	"testing"
	"time"
)

// TestStartGuard_AllowsFirstAttempt verifies a fresh guard lets the
// first spawn through.
func TestStartGuard_AllowsFirstAttempt(t *testing.T) {
	g := newStartGuard("test")
	done, err := g.allow()
	if err != nil {
		t.Fatalf("First attempt should be allowed: %v", err)
	}
	done(true)
}

// TestStartGuard_SuccessKeepsAllowing verifies successful starts never
// enter a cool-down.
func TestStartGuard_SuccessKeepsAllowing(t *testing.T) {
	g := newStartGuard("test")
	for i := 0; i < 10; i++ {
		done, err := g.allow()
		if err != nil {
			t.Fatalf("Attempt %d should be allowed: %v", i, err)
		}
		done(true)
	}
}

// TestStartGuard_CooldownAfterFailure verifies a failed spawn blocks
// an immediate retry.
func TestStartGuard_CooldownAfterFailure(t *testing.T) {
	g := newStartGuard("test")
	done, err := g.allow()
	if err != nil {
		t.Fatalf("First attempt should be allowed: %v", err)
	}
	done(false)

	if _, err := g.allow(); err == nil {
		t.Error("Retry inside the cool-down window should be refused")
	}
}

// TestStartGuard_SuccessResetsCooldown verifies a success clears the
// failure schedule.
func TestStartGuard_SuccessResetsCooldown(t *testing.T) {
	g := newStartGuard("test")
	done, err := g.allow()
	if err != nil {
		t.Fatalf("First attempt should be allowed: %v", err)
	}
	done(false)

	// Skip past the cool-down rather than sleeping through it.
	g.mu.Lock()
	g.notBefore = time.Time{}
	g.mu.Unlock()

	done, err = g.allow()
	if err != nil {
		t.Fatalf("Attempt after cool-down should be allowed: %v", err)
	}
	done(true)

	done, err = g.allow()
	if err != nil {
		t.Fatalf("Attempt after success should be allowed: %v", err)
	}
	done(true)
}

// TestStartGuard_BreakerOpensOnRepeatedFailures verifies the circuit
// opens after enough consecutive spawn failures.
func TestStartGuard_BreakerOpensOnRepeatedFailures(t *testing.T) {
	g := newStartGuard("test")
	for i := 0; i < 5; i++ {
		g.mu.Lock()
		g.notBefore = time.Time{}
		g.mu.Unlock()

		done, err := g.allow()
		if err != nil {
			t.Fatalf("Attempt %d should still be allowed: %v", i, err)
		}
		done(false)
	}

	g.mu.Lock()
	g.notBefore = time.Time{}
	g.mu.Unlock()

	if _, err := g.allow(); err == nil {
		t.Error("Breaker should be open after 5 consecutive failures")
	}
}
