// Package breaker implements a per-provider circuit breaker that fails
// fast while an upstream is unhealthy and probes for recovery.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen indicates the breaker rejected the request. Use
// RetryAfter on the breaker to surface the recommended wait.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State is the breaker's position in the CLOSED/OPEN/HALF_OPEN machine.
type State string

// Breaker states.
const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config tunes the breaker thresholds.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold int

	// SuccessThreshold is the half-open success count that closes it.
	SuccessThreshold int

	// HalfOpenTimeout is how long an open breaker waits before probing.
	HalfOpenTimeout time.Duration
}

// DefaultConfig returns the standard thresholds: open after 5 failures,
// close after 3 half-open successes, probe after 30 seconds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		HalfOpenTimeout:  30 * time.Second,
	}
}

// Breaker is a thread-safe circuit breaker for a single provider.
//
// Transitions: CLOSED→OPEN on FailureThreshold failures; OPEN→HALF_OPEN
// after HalfOpenTimeout; HALF_OPEN→CLOSED on SuccessThreshold successes;
// HALF_OPEN→OPEN on any failure. Counters reset on every transition.
type Breaker struct {
	mu              sync.Mutex
	name            string
	cfg             Config
	state           State
	failureCount    int
	successCount    int
	lastFailure     time.Time
	lastStateChange time.Time
	now             func() time.Time
}

// New creates a closed breaker with the given config.
func New(name string, cfg Config) *Breaker {
	b := &Breaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
	b.lastStateChange = b.now()

	return b
}

func (b *Breaker) transitionLocked(next State) {
	if b.state == next {
		return
	}

	b.state = next
	b.lastStateChange = b.now()

	switch next {
	case StateClosed:
		b.failureCount = 0
		b.successCount = 0
	case StateHalfOpen:
		b.successCount = 0
	case StateOpen:
	}
}

// Allow reports whether a request may proceed. An open breaker whose
// half-open timeout has elapsed transitions to HALF_OPEN and admits the
// call as a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if !b.lastFailure.IsZero() && b.now().Sub(b.lastFailure) >= b.cfg.HalfOpenTimeout {
			b.transitionLocked(StateHalfOpen)

			return true
		}

		return false
	}

	return false
}

// RecordSuccess notes a successful request. In CLOSED it decrements the
// failure count toward zero; in HALF_OPEN enough successes re-close.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	case StateClosed:
		b.failureCount = max(0, b.failureCount-1)
	case StateOpen:
	}
}

// RecordFailure notes a failed request. Reaching the failure threshold in
// CLOSED opens the breaker; any failure in HALF_OPEN re-opens it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.transitionLocked(StateOpen)
	case StateOpen:
	}
}

// ForceOpen opens the breaker immediately.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transitionLocked(StateOpen)
	b.lastFailure = b.now()
}

// ForceClose closes the breaker immediately.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transitionLocked(StateClosed)
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// RetryAfter returns the remaining wait before an open breaker will probe.
// Zero when the breaker is not open.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen || b.lastFailure.IsZero() {
		return 0
	}

	remaining := b.cfg.HalfOpenTimeout - b.now().Sub(b.lastFailure)

	return max(0, remaining)
}

// Status is a diagnostic snapshot of one breaker.
type Status struct {
	Name         string  `json:"name"`
	State        State   `json:"state"`
	FailureCount int     `json:"failure_count"`
	SuccessCount int     `json:"success_count"`
	TimeInState  float64 `json:"time_in_state_seconds"`
}

// Status returns a snapshot of the breaker's counters.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Status{
		Name:         b.name,
		State:        b.state,
		FailureCount: b.failureCount,
		SuccessCount: b.successCount,
		TimeInState:  b.now().Sub(b.lastStateChange).Seconds(),
	}
}

// Registry manages one breaker per provider, created on demand.
type Registry struct {
	mu        sync.Mutex
	cfg       Config
	overrides map[string]Config
	breakers  map[string]*Breaker
}

// NewRegistry creates a registry whose breakers use cfg unless a
// per-provider override is registered.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:       cfg,
		overrides: make(map[string]Config),
		breakers:  make(map[string]*Breaker),
	}
}

// Override installs a per-provider config used when that breaker is created.
func (r *Registry) Override(provider string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.overrides[provider] = cfg
}

// Get returns the breaker for a provider, creating it on first use.
func (r *Registry) Get(provider string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[provider]
	if !ok {
		cfg := r.cfg
		if override, has := r.overrides[provider]; has {
			cfg = override
		}

		b = New(provider, cfg)
		r.breakers[provider] = b
	}

	return b
}

// Allow reports whether a request to the provider may proceed.
func (r *Registry) Allow(provider string) bool {
	return r.Get(provider).Allow()
}

// RecordSuccess notes a success for the provider.
func (r *Registry) RecordSuccess(provider string) {
	r.Get(provider).RecordSuccess()
}

// RecordFailure notes a failure for the provider.
func (r *Registry) RecordFailure(provider string) {
	r.Get(provider).RecordFailure()
}

// CheckOpen returns a wrapped ErrCircuitOpen carrying the retry-after
// hint when the provider's breaker rejects the request, nil otherwise.
func (r *Registry) CheckOpen(provider string) error {
	b := r.Get(provider)
	if b.Allow() {
		return nil
	}

	return fmt.Errorf("%w: %s (retry after %s)", ErrCircuitOpen, provider, b.RetryAfter().Round(time.Second))
}

// OpenBreakers lists providers whose breakers are currently open.
func (r *Registry) OpenBreakers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var open []string

	for name, b := range r.breakers {
		if b.State() == StateOpen {
			open = append(open, name)
		}
	}

	return open
}

// ResetAll force-closes every breaker.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.breakers {
		b.ForceClose()
	}
}

// Status snapshots every breaker keyed by provider.
func (r *Registry) Status() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Status, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Status()
	}

	return out
}
