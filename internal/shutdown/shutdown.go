package shutdown

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/metrics"
)

// State is the per-process shutdown state. No global shutdown state is
// stored; workers coordinate implicitly through the shared connection count.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateWaiting
	StateDrained
	StateForced
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateWaiting:
		return "waiting"
	case StateDrained:
		return "drained"
	case StateForced:
		return "forced"
	default:
		return "unknown"
	}
}

// globalCounter reports the fleet-wide connection count.
type globalCounter interface {
	Count(ctx context.Context) (int64, error)
}

// localCloser force-closes the connections held by this worker.
type localCloser interface {
	CloseAll() int
}

// Coordinator drives the drain state machine for one worker process:
// RUNNING -> DRAINING -> WAITING -> DRAINED or FORCED.
type Coordinator struct {
	counts    globalCounter
	local     localCloser
	timeout   time.Duration
	poll      time.Duration
	clock     clockwork.Clock
	workerID  int
	wsMetrics *metrics.WebSocketMetrics

	state atomic.Int32
}

// New creates a coordinator in StateRunning. wsMetrics may be nil.
func New(counts globalCounter, local localCloser, timeout, poll time.Duration, clock clockwork.Clock, workerID int, wsMetrics *metrics.WebSocketMetrics) *Coordinator {
	c := &Coordinator{
		counts:    counts,
		local:     local,
		timeout:   timeout,
		poll:      poll,
		clock:     clock,
		workerID:  workerID,
		wsMetrics: wsMetrics,
	}
	c.state.Store(int32(StateRunning))
	return c
}

// State returns the current shutdown state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Accepting reports whether new connections may still be admitted. It is a
// non-blocking flag check suitable for the accept hook's hot path.
func (c *Coordinator) Accepting() bool {
	return c.State() == StateRunning
}

// Drain runs the shutdown state machine to a terminal state and returns it.
// New connections are rejected from the moment Drain is called. The drain
// deadline is a single wall-clock instant fixed on entry; it is not refreshed
// by partial progress. In-flight connections are never cancelled — they run
// to natural completion or to forced termination at the deadline.
//
// Cancelling ctx forces immediate termination of the remaining local
// connections. Both terminal states are normal outcomes: the process exits 0
// after FORCED as well.
func (c *Coordinator) Drain(ctx context.Context) State {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return c.State()
	}

	start := c.clock.Now()
	deadline := start.Add(c.timeout)
	slog.Info("Shutdown initiated, waiting for global disconnect",
		"worker", c.workerID, "timeout", c.timeout)

	c.state.Store(int32(StateWaiting))

	for {
		count, err := c.counts.Count(ctx)
		if err != nil {
			// A store outage never blocks shutdown progress; treat the
			// count as unknown and keep polling until the deadline.
			slog.Warn("Global count unavailable during drain",
				"worker", c.workerID, "error", err)
			count = -1
		}

		if count == 0 {
			c.state.Store(int32(StateDrained))
			slog.Info("All global connections closed, shutdown complete", "worker", c.workerID)
			return StateDrained
		}

		now := c.clock.Now()
		if !now.Before(deadline) {
			return c.force(count)
		}

		slog.Info("Shutdown progress",
			"worker", c.workerID,
			"global", count,
			"elapsed", now.Sub(start).Round(time.Second),
			"remaining", deadline.Sub(now).Round(time.Second))

		select {
		case <-c.clock.After(c.poll):
		case <-ctx.Done():
			return c.force(count)
		}
	}
}

func (c *Coordinator) force(residual int64) State {
	closed := c.local.CloseAll()
	if c.wsMetrics != nil {
		c.wsMetrics.ForcedClosures.Add(float64(closed))
	}
	c.state.Store(int32(StateForced))
	slog.Warn("Forced shutdown, clients still connected globally",
		"worker", c.workerID, "global", residual, "closed_locally", closed)
	return StateForced
}
