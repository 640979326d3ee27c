/*
File: breaker.go
Description: Three-state circuit breaker guarding the Reasoning Client.
             Generalized from upstream.go's atomic-field, two-state
             (closed/open) breaker into three states with a rolling
             failure window and exponential backoff doubling, per spec
             §4.7. Transitions are guarded by a single mutex as the spec
             requires, rather than the teacher's lock-free CAS fields,
             because Half-Open's single-probe gate and the rolling
             window need to change together atomically.
*/

package main

import (
	"sync"
	"time"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "Open"
	case BreakerHalfOpen:
		return "Half-Open"
	default:
		return "Closed"
	}
}

const (
	breakerWindowSize     = 20
	breakerFailureLimit   = 5
	breakerBaseBackoff    = 30 * time.Second
	breakerMaxBackoff     = 300 * time.Second
)

// CircuitBreaker implements spec §4.7's three-state machine.
type CircuitBreaker struct {
	mu sync.Mutex

	state        BreakerState
	outcomes     []bool // true = success, ring buffer of last N outcomes
	openCycles   int
	nextProbeAt  time.Time
	probeInFlight bool
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{state: BreakerClosed}
}

// Allow reports whether a call may proceed and, if so, whether this call
// is the single Half-Open probe.
func (b *CircuitBreaker) Allow() (allowed bool, isProbe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true, false
	case BreakerOpen:
		if time.Now().Before(b.nextProbeAt) {
			return false, false
		}
		b.state = BreakerHalfOpen
		b.probeInFlight = true
		LogInfo("[BREAKER] cooldown elapsed, entering Half-Open for a single probe")
		return true, true
	case BreakerHalfOpen:
		// Exactly one probe is in flight at a time; concurrent callers
		// during Half-Open fail fast like Open.
		return false, false
	default:
		return false, false
	}
}

// RecordSuccess reports a successful call outcome.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		LogInfo("[BREAKER] probe succeeded, closing circuit")
		b.state = BreakerClosed
		b.outcomes = nil
		b.openCycles = 0
		b.probeInFlight = false
	case BreakerClosed:
		b.pushOutcomeLocked(true)
	}
}

// RecordFailure reports a failed call outcome (429, 5xx, timeout >10s,
// or schema violation).
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.openCycles++
		b.tripLocked()
		b.probeInFlight = false
	case BreakerClosed:
		b.pushOutcomeLocked(false)
		if b.countFailuresLocked() >= breakerFailureLimit {
			b.tripLocked()
		}
	}
}

func (b *CircuitBreaker) pushOutcomeLocked(success bool) {
	b.outcomes = append(b.outcomes, success)
	if len(b.outcomes) > breakerWindowSize {
		b.outcomes = b.outcomes[len(b.outcomes)-breakerWindowSize:]
	}
}

func (b *CircuitBreaker) countFailuresLocked() int {
	n := 0
	for _, ok := range b.outcomes {
		if !ok {
			n++
		}
	}
	return n
}

func (b *CircuitBreaker) tripLocked() {
	backoff := breakerBaseBackoff * time.Duration(1<<uint(b.openCycles))
	if backoff > breakerMaxBackoff {
		backoff = breakerMaxBackoff
	}
	b.state = BreakerOpen
	b.nextProbeAt = time.Now().Add(backoff)
	b.outcomes = nil
	LogWarn("[BREAKER] circuit OPEN for %v (cycle %d)", backoff, b.openCycles)
}

func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
