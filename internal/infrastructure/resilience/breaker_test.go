package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, cooldown time.Duration, onChange func(string, State, State)) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := New("test", Settings{FailureThreshold: threshold, Cooldown: cooldown, OnStateChange: onChange})
	b.now = clock.Now
	return b, clock
}

func fail() (string, error)    { return "", errors.New("failed") }
func succeed() (string, error) { return "ok", nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		threshold     int
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			threshold:     3,
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			threshold:     3,
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "success resets the failure streak",
			threshold:     3,
			requests:      []bool{false, false, true, false, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(tt.threshold, time.Minute, nil)

			for _, ok := range tt.requests {
				if ok {
					_, _ = Execute(b, succeed)
				} else {
					_, _ = Execute(b, fail)
				}
			}

			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute, nil)

	_, _ = Execute(b, fail)
	_, _ = Execute(b, fail)
	require.Equal(t, StateOpen, b.State())

	called := false
	_, err := Execute(b, func() (string, error) {
		called = true
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	b, clock := newTestBreaker(2, 10*time.Second, nil)

	_, _ = Execute(b, fail)
	_, _ = Execute(b, fail)
	clock.Advance(10 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	got, err := Execute(b, succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(1, 10*time.Second, nil)

	_, _ = Execute(b, fail)
	clock.Advance(10 * time.Second)

	_, err := Execute(b, fail)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StateOpen, b.State())

	clock.Advance(5 * time.Second)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerSingleTrial(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second, nil)
	_, _ = Execute(b, fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = Execute(b, func() (string, error) {
			close(started)
			<-release
			return "ok", nil
		})
	}()
	<-started

	_, err := Execute(b, succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	close(release)
}

func TestBreakerCallbacks(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
	)
	b, clock := newTestBreaker(2, time.Second, func(name string, from, to State) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	_, _ = Execute(b, fail)
	_, _ = Execute(b, fail)
	clock.Advance(time.Second)
	_, _ = Execute(b, succeed)

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestNewDefaults(t *testing.T) {
	b := New("defaults", Settings{})
	assert.Equal(t, "defaults", b.Name())
	assert.Equal(t, 5, b.settings.FailureThreshold)
	assert.Equal(t, 10*time.Second, b.settings.Cooldown)
}
