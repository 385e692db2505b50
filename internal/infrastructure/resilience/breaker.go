package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before allowing a trial call.
	Cooldown time.Duration
	// OnStateChange is called, outside the lock, whenever the state changes.
	OnStateChange func(name string, from, to State)
}

// Breaker stops calling a dependency that keeps failing, then lets a single
// trial call through after the cooldown.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	trialActive bool
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 10 * time.Second
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      time.Now,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, promoting open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	state, change := b.refresh()
	b.mu.Unlock()
	b.notify(change)
	return state
}

// Failures returns the current consecutive failure count
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Execute runs fn through the breaker.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}

	result, err := fn()
	b.record(err == nil)
	return result, err
}

type transition struct {
	from, to State
	changed  bool
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	state, change := b.refresh()
	var err error
	switch state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.trialActive {
			err = ErrCircuitOpen
		} else {
			b.trialActive = true
		}
	}
	b.mu.Unlock()
	b.notify(change)
	return err
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	var change transition
	switch {
	case success:
		b.failures = 0
		if b.state != StateClosed {
			change = b.setState(StateClosed)
		}
	case b.state == StateHalfOpen:
		change = b.setState(StateOpen)
	default:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			change = b.setState(StateOpen)
		}
	}
	b.trialActive = false
	b.mu.Unlock()
	b.notify(change)
}

// refresh must be called with mu held.
func (b *Breaker) refresh() (State, transition) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		return StateHalfOpen, b.setState(StateHalfOpen)
	}
	return b.state, transition{}
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) transition {
	from := b.state
	if from == to {
		return transition{}
	}
	b.state = to
	switch to {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.failures = 0
	}
	return transition{from: from, to: to, changed: true}
}

func (b *Breaker) notify(t transition) {
	if t.changed && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, t.from, t.to)
	}
}
