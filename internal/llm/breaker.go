package llm

import (
	"sync"
	"time"
)

// BreakerState mirrors the classic three-state circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// BreakerConfig configures the connector's circuit breaker (supplemental
// feature: the LLM endpoint is an external dependency the arbiter must not
// hammer once it's clearly down).
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before tripping open
	OpenDuration     time.Duration // how long to stay open before probing
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, OpenDuration: 30 * time.Second}
}

// breaker is a minimal circuit breaker guarding calls to the LLM endpoint.
// Grounded on the gateway-proxy pattern of gating an outbound call behind a
// per-destination state machine rather than retrying blindly forever.
type breaker struct {
	mu            sync.Mutex
	cfg           BreakerConfig
	state         BreakerState
	failures      int
	openedAt      time.Time
	probeInFlight bool

	// onTransition, when set, is called (still under mu) whenever state
	// actually changes, not on every Allow/RecordSuccess/RecordFailure call.
	onTransition func(BreakerState)
}

func newBreaker(cfg BreakerConfig, onTransition func(BreakerState)) *breaker {
	return &breaker{cfg: cfg, state: BreakerClosed, onTransition: onTransition}
}

// String renders a BreakerState the way telemetry tags it.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

func (b *breaker) notify(state BreakerState) {
	if b.onTransition != nil {
		b.onTransition(state)
	}
}

// Allow reports whether a call should proceed. Closed and half-open (one
// probe at a time) allow; open before OpenDuration elapses rejects.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cfg.OpenDuration {
			return false
		}
		if b.probeInFlight {
			return false
		}
		b.state = BreakerHalfOpen
		b.probeInFlight = true
		b.notify(BreakerHalfOpen)
		return true
	case BreakerHalfOpen:
		return false // only the probe initiated above is in flight
	}
	return true
}

// RecordSuccess resets the breaker to closed.
func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.state
	b.failures = 0
	b.state = BreakerClosed
	b.probeInFlight = false
	if prev != BreakerClosed {
		b.notify(BreakerClosed)
	}
}

// RecordFailure counts a failure, tripping the breaker open once the
// threshold is reached (or immediately, if the failure was the half-open
// probe itself).
func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.probeInFlight = false
		b.notify(BreakerOpen)
		return
	}

	b.failures++
	if b.failures >= b.cfg.FailureThreshold && b.state != BreakerOpen {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.notify(BreakerOpen)
	}
}

// State reports the current breaker state, for telemetry export.
func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
