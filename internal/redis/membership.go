package redis

import (
	"context"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
)

// Membership implements the atomic-set half of the shared-store contract on
// a Redis set. SADD, SREM and SCARD are atomic on the Redis side, which is
// all the global registry relies on.
type Membership struct {
	rdb *Client
	key string
}

var _ domain.Membership = (*Membership)(nil)

// NewMembership creates a membership registry over the given set key.
func NewMembership(client *Client, key string) *Membership {
	return &Membership{rdb: client, key: key}
}

func (m *Membership) SetAdd(ctx context.Context, member string) error {
	if err := m.rdb.rdb.SAdd(ctx, m.key, member).Err(); err != nil {
		return &domain.StoreUnavailableError{Op: "set add", Err: err}
	}
	return nil
}

// SetRemove removes member from the set. Removing an absent member is a
// no-op on the Redis side, which makes leave idempotent.
func (m *Membership) SetRemove(ctx context.Context, member string) error {
	if err := m.rdb.rdb.SRem(ctx, m.key, member).Err(); err != nil {
		return &domain.StoreUnavailableError{Op: "set remove", Err: err}
	}
	return nil
}

func (m *Membership) SetCard(ctx context.Context) (int64, error) {
	n, err := m.rdb.rdb.SCard(ctx, m.key).Result()
	if err != nil {
		return 0, &domain.StoreUnavailableError{Op: "set cardinality", Err: err}
	}
	return n, nil
}
