package redis

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
)

var (
	testRedisURL string
	redContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	// Parse flags to check for -short
	flag.Parse()

	// Skip container setup if running in short mode
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	redContainer, err = rediscontainer.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := redContainer.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	code := m.Run()

	_ = redContainer.Terminate(ctx)
	os.Exit(code)
}

func setupTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, testRedisURL)
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}

	// Flush all keys before each test
	if err := client.rdb.FlushAll(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestMembership_AddRemoveCard(t *testing.T) {
	client := setupTestClient(t)
	members := NewMembership(client, "test:connections")
	ctx := context.Background()

	count, err := members.SetCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, members.SetAdd(ctx, "1:conn-a"))
	require.NoError(t, members.SetAdd(ctx, "2:conn-b"))

	count, err = members.SetCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, members.SetRemove(ctx, "1:conn-a"))

	count, err = members.SetCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMembership_AddIsIdempotent(t *testing.T) {
	client := setupTestClient(t)
	members := NewMembership(client, "test:connections")
	ctx := context.Background()

	require.NoError(t, members.SetAdd(ctx, "1:conn-a"))
	require.NoError(t, members.SetAdd(ctx, "1:conn-a"))

	count, err := members.SetCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMembership_RemoveAbsentIsNoop(t *testing.T) {
	client := setupTestClient(t)
	members := NewMembership(client, "test:connections")
	ctx := context.Background()

	require.NoError(t, members.SetAdd(ctx, "1:conn-a"))
	require.NoError(t, members.SetRemove(ctx, "2:never-joined"))

	count, err := members.SetCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBroker_PublishSubscribe(t *testing.T) {
	client := setupTestClient(t)
	broker := NewBroker(client, "test:broadcast")
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	require.NoError(t, broker.Publish(ctx, []byte("hello fleet")))

	select {
	case payload := <-sub.C():
		assert.Equal(t, []byte("hello fleet"), payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestBroker_FanOutToMultipleSubscribers(t *testing.T) {
	client := setupTestClient(t)
	broker := NewBroker(client, "test:broadcast")
	ctx := context.Background()

	subA, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = subA.Close() })

	subB, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = subB.Close() })

	require.NoError(t, broker.Publish(ctx, []byte("hi")))

	for _, sub := range []domain.Subscription{subA, subB} {
		select {
		case payload := <-sub.C():
			assert.Equal(t, []byte("hi"), payload)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestBroker_CloseEndsSubscription(t *testing.T) {
	client := setupTestClient(t)
	broker := NewBroker(client, "test:broadcast")

	sub, err := broker.Subscribe(context.Background())
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel not closed")
	}
}

func TestWorkerRegistry_HeartbeatLifecycle(t *testing.T) {
	client := setupTestClient(t)
	workers := NewWorkerRegistry(client, "worker-1", 50*time.Millisecond, "test", clockwork.NewRealClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		workers.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		active, err := workers.ActiveWorkers(context.Background())
		return err == nil && len(active) == 1 && active[0] == "worker-1"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	active, err := workers.ActiveWorkers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}
