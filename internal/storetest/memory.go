// Package storetest provides an in-memory implementation of the shared-store
// contract (atomic set + publish/subscribe) so tests can simulate several
// worker processes sharing one store without Redis.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
)

var errStoreDown = errors.New("store down")

// MemoryStore implements domain.Membership and domain.Broker in memory.
// Safe for concurrent use. SetFailing(true) makes every operation return a
// StoreUnavailableError, simulating an outage.
type MemoryStore struct {
	mu      sync.Mutex
	members map[string]struct{}
	subs    []*memorySub
	failing bool
}

var (
	_ domain.Membership = (*MemoryStore)(nil)
	_ domain.Broker     = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{members: make(map[string]struct{})}
}

// SetFailing toggles simulated store outage.
func (s *MemoryStore) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func (s *MemoryStore) SetAdd(_ context.Context, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return &domain.StoreUnavailableError{Op: "set add", Err: errStoreDown}
	}
	s.members[member] = struct{}{}
	return nil
}

func (s *MemoryStore) SetRemove(_ context.Context, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return &domain.StoreUnavailableError{Op: "set remove", Err: errStoreDown}
	}
	delete(s.members, member)
	return nil
}

func (s *MemoryStore) SetCard(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, &domain.StoreUnavailableError{Op: "set cardinality", Err: errStoreDown}
	}
	return int64(len(s.members)), nil
}

func (s *MemoryStore) Publish(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return &domain.StoreUnavailableError{Op: "publish", Err: errStoreDown}
	}
	for _, sub := range s.subs {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case sub.ch <- msg:
		default:
			// At-most-once: a full subscriber buffer drops the message.
		}
	}
	return nil
}

func (s *MemoryStore) Subscribe(_ context.Context) (domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, &domain.StoreUnavailableError{Op: "subscribe", Err: errStoreDown}
	}
	sub := &memorySub{store: s, ch: make(chan []byte, 64)}
	s.subs = append(s.subs, sub)
	return sub, nil
}

// SubscriberCount reports the number of live subscriptions. Tests use it to
// wait for a listener to attach before publishing.
func (s *MemoryStore) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *MemoryStore) dropSub(target *memorySub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub == target {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

type memorySub struct {
	store *MemoryStore
	ch    chan []byte
	once  sync.Once
}

func (m *memorySub) C() <-chan []byte { return m.ch }

func (m *memorySub) Close() error {
	m.once.Do(func() { m.store.dropSub(m) })
	return nil
}
