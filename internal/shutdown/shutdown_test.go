package shutdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	mu    sync.Mutex
	count int64
	err   error
}

func (f *fakeCounter) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.err
}

func (f *fakeCounter) set(count int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count = count
}

type fakeCloser struct {
	mu     sync.Mutex
	calls  int
	closed int
}

func (f *fakeCloser) CloseAll() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.closed
}

func (f *fakeCloser) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "drained", StateDrained.String())
	assert.Equal(t, "forced", StateForced.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestDrain_EmptyFleetDrainsImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	closer := &fakeCloser{}
	c := New(&fakeCounter{count: 0}, closer, 30*time.Second, time.Second, clock, 1, nil)

	assert.True(t, c.Accepting())
	state := c.Drain(context.Background())

	assert.Equal(t, StateDrained, state)
	assert.Equal(t, StateDrained, c.State())
	assert.False(t, c.Accepting())
	assert.Equal(t, 0, closer.callCount())
}

func TestDrain_ForcesAtDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	closer := &fakeCloser{closed: 2}
	c := New(&fakeCounter{count: 2}, closer, 5*time.Second, time.Second, clock, 1, nil)

	result := make(chan State, 1)
	go func() { result <- c.Drain(context.Background()) }()

	// Five one-second polls bring the clock to the deadline; the count never
	// reaches zero, so the residual connections are force-closed.
	for range 5 {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
	}

	state := <-result
	assert.Equal(t, StateForced, state)
	assert.Equal(t, StateForced, c.State())
	assert.Equal(t, 1, closer.callCount())
}

func TestDrain_DrainsWhenFleetEmptiesBeforeDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	counter := &fakeCounter{count: 1}
	closer := &fakeCloser{}
	c := New(counter, closer, 30*time.Second, time.Second, clock, 1, nil)

	result := make(chan State, 1)
	go func() { result <- c.Drain(context.Background()) }()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)

	// The last client disconnects before the next poll fires.
	counter.set(0)
	clock.Advance(time.Second)

	state := <-result
	assert.Equal(t, StateDrained, state)
	assert.Equal(t, 0, closer.callCount())
}

func TestDrain_CountErrorsDoNotBlockProgress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	closer := &fakeCloser{}
	counter := &fakeCounter{err: context.DeadlineExceeded}
	c := New(counter, closer, 3*time.Second, time.Second, clock, 1, nil)

	result := make(chan State, 1)
	go func() { result <- c.Drain(context.Background()) }()

	// The count is never known; the deadline still fires.
	for range 3 {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
	}

	assert.Equal(t, StateForced, <-result)
	assert.Equal(t, 1, closer.callCount())
}

func TestDrain_ContextCancelForcesImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	closer := &fakeCloser{closed: 1}
	c := New(&fakeCounter{count: 1}, closer, time.Hour, time.Second, clock, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan State, 1)
	go func() { result <- c.Drain(ctx) }()

	clock.BlockUntil(1)
	cancel()

	assert.Equal(t, StateForced, <-result)
	assert.Equal(t, 1, closer.callCount())
}

func TestDrain_SecondCallReturnsTerminalState(t *testing.T) {
	clock := clockwork.NewFakeClock()
	closer := &fakeCloser{}
	c := New(&fakeCounter{count: 0}, closer, 30*time.Second, time.Second, clock, 1, nil)

	require.Equal(t, StateDrained, c.Drain(context.Background()))

	// The state machine never restarts; a repeated Drain reports the outcome.
	assert.Equal(t, StateDrained, c.Drain(context.Background()))
	assert.Equal(t, 0, closer.callCount())
}

func TestDrain_RejectsWhileWaiting(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(&fakeCounter{count: 1}, &fakeCloser{}, 5*time.Second, time.Second, clock, 1, nil)

	result := make(chan State, 1)
	go func() { result <- c.Drain(context.Background()) }()

	clock.BlockUntil(1)
	assert.Equal(t, StateWaiting, c.State())
	assert.False(t, c.Accepting())

	for range 5 {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
	}
	assert.Equal(t, StateForced, <-result)
}
