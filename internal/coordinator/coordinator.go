package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/retry"
)

// leave failures are retried briefly; a stranded entry is preferable to a
// blocked disconnect path.
var leavePolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
}

func classifyStoreErr(err error) retry.Action {
	if domain.IsStoreUnavailable(err) {
		return retry.Retry
	}
	return retry.Stop
}

// Coordinator makes this worker's connections visible in the shared global
// set and answers how many connections exist fleet-wide.
type Coordinator struct {
	members  domain.Membership
	workerID int
}

func New(members domain.Membership, workerID int) *Coordinator {
	return &Coordinator{members: members, workerID: workerID}
}

// Join atomically adds the connection id to the global set. Called strictly
// after local registration succeeds, so a globally-visible id always has a
// live local owner. A failure here aborts the accept.
func (c *Coordinator) Join(ctx context.Context, globalID string) error {
	if err := c.members.SetAdd(ctx, globalID); err != nil {
		return err
	}
	slog.Info("Connection joined global registry", "worker", c.workerID, "conn_id", globalID)
	return nil
}

// Leave atomically removes the connection id from the global set. Safe to
// call on every teardown path; removal of an absent member is a no-op on the
// store side, so Leave is idempotent. Transient store failures are retried a
// bounded number of times; if the entry still cannot be removed it is logged
// as a stranding event and the error is returned for the caller to ignore.
func (c *Coordinator) Leave(ctx context.Context, globalID string) error {
	err := retry.DoVoid(ctx, leavePolicy, classifyStoreErr, func() error {
		return c.members.SetRemove(ctx, globalID)
	})
	if err != nil {
		slog.Error("Failed to remove global registry entry, entry may be stranded",
			"worker", c.workerID, "conn_id", globalID, "error", err)
		return err
	}
	slog.Info("Connection left global registry", "worker", c.workerID, "conn_id", globalID)
	return nil
}

// Count returns the global number of open connections across all workers.
// Advisory only: used for shutdown draining and diagnostics, never as a
// correctness gate.
func (c *Coordinator) Count(ctx context.Context) (int64, error) {
	return c.members.SetCard(ctx)
}
