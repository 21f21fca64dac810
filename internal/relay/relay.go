package relay

import (
	"context"
	"log/slog"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/metrics"
)

// localFanout is the slice of the local registry the relay needs.
type localFanout interface {
	FanOut(payload []byte)
}

// Relay connects this worker to the shared broadcast channel: it publishes
// outbound messages once, and its subscriber loop forwards every inbound
// message to the local registry.
type Relay struct {
	broker    domain.Broker
	local     localFanout
	workerID  int
	wsMetrics *metrics.WebSocketMetrics
}

// New creates a relay. wsMetrics may be nil.
func New(broker domain.Broker, local localFanout, workerID int, wsMetrics *metrics.WebSocketMetrics) *Relay {
	return &Relay{broker: broker, local: local, workerID: workerID, wsMetrics: wsMetrics}
}

// Publish sends payload to the shared channel. Fire-and-forget: it returns
// once the store accepts the publish, without waiting for any subscriber.
func (r *Relay) Publish(ctx context.Context, payload []byte) error {
	if err := r.broker.Publish(ctx, payload); err != nil {
		return err
	}
	if r.wsMetrics != nil {
		r.wsMetrics.BroadcastsPublished.Inc()
	}
	return nil
}

// Run subscribes to the shared channel and forwards each received message to
// the local registry, in arrival order, until ctx is cancelled or the
// subscription ends. One Run loop per worker, started at process startup; it
// keeps running through draining so attached clients receive broadcasts until
// they actually disconnect.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.broker.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	slog.Info("Broadcast listener started", "worker", r.workerID)

	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				slog.Info("Broadcast listener stopped: subscription closed", "worker", r.workerID)
				return nil
			}
			if r.wsMetrics != nil {
				r.wsMetrics.BroadcastsReceived.Inc()
			}
			r.local.FanOut(payload)
		case <-ctx.Done():
			slog.Info("Broadcast listener stopped", "worker", r.workerID)
			return nil
		}
	}
}
