// Copyright 2025 James Ross
// Package breaker implements a sliding-window circuit breaker used to
// shed load on the search API client when its failure rate climbs, instead
// of retrying into an outage.
package breaker

import (
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half_open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

type result struct {
	t  time.Time
	ok bool
}

// CircuitBreaker tracks a sliding window of call outcomes and flips between
// Closed, Open and HalfOpen based on a failure-rate threshold.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	window           time.Duration
	cooldown         time.Duration
	failureThresh    float64
	minSamples       int
	lastTransition   time.Time
	results          []result
	halfOpenInFlight bool
}

// New returns a breaker that opens once at least minSamples calls have
// landed within window and the failure rate reaches failureThresh. Once
// open it waits cooldown before allowing a single half-open probe.
func New(window, cooldown time.Duration, failureThresh float64, minSamples int) *CircuitBreaker {
	return &CircuitBreaker{
		state:          Closed,
		window:         window,
		cooldown:       cooldown,
		failureThresh:  failureThresh,
		minSamples:     minSamples,
		lastTransition: time.Now(),
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call may proceed. In HalfOpen it admits exactly
// one probe at a time.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case Open:
		if time.Since(cb.lastTransition) >= cb.cooldown {
			cb.state = HalfOpen
			cb.lastTransition = time.Now()
			cb.halfOpenInFlight = true
			return true
		}
		return false
	case HalfOpen:
		if cb.halfOpenInFlight {
			return false
		}
		cb.halfOpenInFlight = true
		return true
	default:
		return true
	}
}

// Record reports the outcome of a call admitted by Allow.
func (cb *CircuitBreaker) Record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()

	cutoff := now.Add(-cb.window)
	filtered := cb.results[:0]
	for _, r := range cb.results {
		if r.t.After(cutoff) {
			filtered = append(filtered, r)
		}
	}
	cb.results = append(filtered, result{t: now, ok: ok})

	total := len(cb.results)
	if total < cb.minSamples {
		if cb.state == HalfOpen {
			if ok {
				cb.state = Closed
			} else {
				cb.state = Open
			}
			cb.lastTransition = now
			cb.halfOpenInFlight = false
		}
		return
	}

	fails := 0
	for _, r := range cb.results {
		if !r.ok {
			fails++
		}
	}
	rate := float64(fails) / float64(total)

	switch cb.state {
	case Closed:
		if rate >= cb.failureThresh {
			cb.state = Open
			cb.lastTransition = now
		}
	case HalfOpen:
		if ok {
			cb.state = Closed
		} else {
			cb.state = Open
		}
		cb.halfOpenInFlight = false
		cb.lastTransition = now
	case Open:
		// transitions out of Open are decided in Allow.
	}
}
