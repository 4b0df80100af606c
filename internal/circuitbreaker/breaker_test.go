package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failed")

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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New(cfg)
	b.now = clock.Now
	return b, clock
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestNew_Defaults(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, 5, b.maxFailures)
	assert.Equal(t, 30*time.Second, b.timeout)
	assert.Equal(t, 1, b.halfOpenSuccess)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Call(fail), errUpstream)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not invoke the call")
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 2})

	_ = b.Call(fail)
	require.NoError(t, b.Call(succeed))
	_ = b.Call(fail)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 1, b.Metrics().FailureCount)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(Config{MaxFailures: 1, Timeout: 10 * time.Second, HalfOpenSuccess: 2})

	_ = b.Call(fail)
	require.Equal(t, StateOpen, b.State())

	clock.Advance(10 * time.Second)
	require.NoError(t, b.Call(succeed))
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Call(succeed))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Metrics().FailureCount)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Config{MaxFailures: 1, Timeout: 10 * time.Second})

	_ = b.Call(fail)
	clock.Advance(11 * time.Second)

	assert.ErrorIs(t, b.Call(fail), errUpstream)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Call(succeed), ErrCircuitOpen)
}

func TestBreaker_IsFailureFiltersErrors(t *testing.T) {
	b, _ := newTestBreaker(Config{
		MaxFailures: 1,
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	})

	assert.ErrorIs(t, b.Call(func() error { return context.Canceled }), context.Canceled)
	assert.Equal(t, StateClosed, b.State())

	_ = b.Call(fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_OnStateChange(t *testing.T) {
	var transitions [][2]State
	b, clock := newTestBreaker(Config{
		MaxFailures: 1,
		Timeout:     time.Second,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, [2]State{from, to})
		},
	})

	_ = b.Call(fail)
	clock.Advance(2 * time.Second)
	_ = b.Call(succeed)
	_ = b.Call(fail)
	b.Reset()

	assert.Equal(t, [][2]State{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
		{StateClosed, StateOpen},
		{StateOpen, StateClosed},
	}, transitions)
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 1})
	_ = b.Call(fail)
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	m := b.Metrics()
	assert.Equal(t, StateClosed, m.State)
	assert.Zero(t, m.FailureCount)
	assert.NoError(t, b.Call(succeed))
}

func TestBreaker_ConcurrentCalls(t *testing.T) {
	b := New(Config{MaxFailures: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = b.Call(fail)
			} else {
				_ = b.Call(succeed)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, StateClosed, b.State())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
