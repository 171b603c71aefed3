package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBreakerOpen marks calls rejected without an attempt because the guarded
// operation's circuit breaker is open.
var ErrBreakerOpen = errors.New("circuit breaker open")

// BreakerPolicy configures when a circuit breaker opens and when it allows a
// trial call again.
type BreakerPolicy struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Breaker tracks consecutive failures for one guarded operation. All call
// sites guarding the same operation share one Breaker, so every caller
// observes the same open/closed state.
type Breaker struct {
	name   string
	policy BreakerPolicy

	mu          sync.Mutex
	failures    int
	open        bool
	lastFailure time.Time
	now         func() time.Time
}

// NewBreaker constructs a closed breaker for the named operation.
func NewBreaker(name string, policy BreakerPolicy) *Breaker {
	if policy.FailureThreshold <= 0 {
		policy.FailureThreshold = 5
	}
	if policy.ResetTimeout <= 0 {
		policy.ResetTimeout = time.Minute
	}
	return &Breaker{
		name:   name,
		policy: policy,
		now:    time.Now,
	}
}

// WithClock overrides the breaker's time source. Used in tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

// Name returns the guarded operation's name.
func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// allow reports whether a call may proceed. When the breaker is open and the
// reset timeout has elapsed since the last failure, the breaker closes and the
// call proceeds as a trial: a trial failure reopens the breaker immediately.
func (b *Breaker) allow() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false, nil
	}
	if b.now().Sub(b.lastFailure) <= b.policy.ResetTimeout {
		return false, fmt.Errorf("%w: %s", ErrBreakerOpen, b.name)
	}
	b.open = false
	b.failures = 0
	return true, nil
}

func (b *Breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

func (b *Breaker) failure(trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if trial || b.failures >= b.policy.FailureThreshold {
		b.open = true
	}
}

// State returns a snapshot of the breaker for observability output.
func (b *Breaker) State() (open bool, failures int, lastFailure time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open, b.failures, b.lastFailure
}

// Registry owns the process-wide breakers, keyed by operation name. It is
// built once at startup and handed to every call site so shared breaker state
// stays explicit instead of hiding behind function identity.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry constructs an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for the named operation, creating it with the
// supplied policy on first use. Later calls ignore the policy argument.
func (r *Registry) Get(name string, policy BreakerPolicy) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if breaker, ok := r.breakers[name]; ok {
		return breaker
	}
	breaker := NewBreaker(name, policy)
	r.breakers[name] = breaker
	return breaker
}

// Names returns the registered operation names in no particular order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}
