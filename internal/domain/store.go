package domain

import "context"

// Membership is the atomic-set half of the shared-store contract. Add and
// remove must be atomic and idempotent on the store side; SetCard must never
// return a fabricated value when the store is unreachable.
type Membership interface {
	SetAdd(ctx context.Context, member string) error
	SetRemove(ctx context.Context, member string) error
	SetCard(ctx context.Context) (int64, error)
}

// Broker is the publish/subscribe half of the shared-store contract.
// Delivery is at-most-once with no replay: a message published while a
// worker has no attached subscription is lost to that worker.
type Broker interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is one attached listener on the broadcast channel. C is
// closed when the subscription ends; Close is idempotent.
type Subscription interface {
	C() <-chan []byte
	Close() error
}
