package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
)

const workersKey = "ws:workers"

// workerStaleAfter is how long a worker may miss heartbeats before it is
// considered gone.
const workerStaleAfter = 60 * time.Second

// WorkerRegistry tracks live worker processes in a shared hash via periodic
// heartbeats. Purely diagnostic: the connection-count invariant never depends
// on it.
type WorkerRegistry struct {
	rdb       *Client
	workerID  string
	heartbeat time.Duration
	version   string
	clock     clockwork.Clock
}

// WorkerInfo holds metadata about a live worker.
type WorkerInfo struct {
	WorkerID  string `json:"worker_id"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

// NewWorkerRegistry creates a worker registry. workerID should be unique per
// process (the pid-based id used for connections works fine).
func NewWorkerRegistry(client *Client, workerID string, heartbeat time.Duration, version string, clock clockwork.Clock) *WorkerRegistry {
	return &WorkerRegistry{
		rdb:       client,
		workerID:  workerID,
		heartbeat: heartbeat,
		version:   version,
		clock:     clock,
	}
}

// Start registers immediately, then re-registers on every heartbeat tick.
// Blocks until ctx is cancelled, then removes this worker's entry.
func (r *WorkerRegistry) Start(ctx context.Context) {
	r.register(ctx)

	ticker := r.clock.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.register(ctx)
		case <-ctx.Done():
			r.unregister()
			return
		}
	}
}

func (r *WorkerRegistry) register(ctx context.Context) {
	info := WorkerInfo{
		WorkerID:  r.workerID,
		Timestamp: r.clock.Now().Unix(),
		Version:   r.version,
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	r.rdb.rdb.HSet(ctx, workersKey, r.workerID, data)
}

func (r *WorkerRegistry) unregister() {
	r.rdb.rdb.HDel(context.Background(), workersKey, r.workerID)
}

// ActiveWorkers returns ids of workers with a heartbeat newer than the
// staleness cutoff.
func (r *WorkerRegistry) ActiveWorkers(ctx context.Context) ([]string, error) {
	entries, err := r.rdb.rdb.HGetAll(ctx, workersKey).Result()
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().Unix()
	active := make([]string, 0, len(entries))
	for workerID, data := range entries {
		var info WorkerInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		if now-info.Timestamp < int64(workerStaleAfter/time.Second) {
			active = append(active, workerID)
		}
	}
	return active, nil
}
