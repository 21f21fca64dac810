package redis

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
)

// Broker implements the publish/subscribe half of the shared-store contract
// on Redis Pub/Sub. Delivery is at-most-once: messages published while no
// subscriber is attached are lost, and there is no replay.
type Broker struct {
	rdb     *Client
	channel string
}

var _ domain.Broker = (*Broker)(nil)

// NewBroker creates a broker over the given channel name.
func NewBroker(client *Client, channel string) *Broker {
	return &Broker{rdb: client, channel: channel}
}

// Publish sends payload to the broadcast channel. Returns once Redis accepts
// the publish; no subscriber acknowledgment is awaited.
func (b *Broker) Publish(ctx context.Context, payload []byte) error {
	if err := b.rdb.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return &domain.StoreUnavailableError{Op: "publish", Err: err}
	}
	return nil
}

// Subscribe opens a subscription on the broadcast channel. The returned
// subscription's channel carries raw payloads in arrival order; a slow
// consumer drops messages rather than blocking the pump.
func (b *Broker) Subscribe(ctx context.Context) (domain.Subscription, error) {
	sub := b.rdb.rdb.Subscribe(ctx, b.channel)

	// Wait for the subscribe confirmation so no message published after
	// Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, &domain.StoreUnavailableError{Op: "subscribe", Err: err}
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan []byte, 16)

	go func() {
		defer close(ch)
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				select {
				case ch <- []byte(msg.Payload):
				default:
					slog.Warn("Dropping broadcast: local receiver is slow", "channel", b.channel)
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &subscription{sub: sub, ch: ch, cancel: cancel}, nil
}

type subscription struct {
	sub    *goredis.PubSub
	ch     chan []byte
	cancel context.CancelFunc
}

func (s *subscription) C() <-chan []byte { return s.ch }

func (s *subscription) Close() error {
	s.cancel()
	return s.sub.Close()
}
