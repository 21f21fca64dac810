package coordinator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/storetest"
)

func TestCoordinator_JoinLeaveCount(t *testing.T) {
	store := storetest.NewMemoryStore()
	coord := New(store, 100)
	ctx := context.Background()

	id := domain.NewGlobalID(100)
	require.NoError(t, coord.Join(ctx, id))

	count, err := coord.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, coord.Leave(ctx, id))

	count, err = coord.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCoordinator_JoinFailsOnOutage(t *testing.T) {
	store := storetest.NewMemoryStore()
	store.SetFailing(true)
	coord := New(store, 100)

	err := coord.Join(context.Background(), domain.NewGlobalID(100))
	require.Error(t, err)
	assert.True(t, domain.IsStoreUnavailable(err))
}

func TestCoordinator_LeaveIdempotent(t *testing.T) {
	store := storetest.NewMemoryStore()
	coord := New(store, 100)
	ctx := context.Background()

	id := domain.NewGlobalID(100)
	require.NoError(t, coord.Join(ctx, id))
	require.NoError(t, coord.Leave(ctx, id))

	// A repeated leave must not error and must not drive the count negative.
	require.NoError(t, coord.Leave(ctx, id))

	count, err := coord.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCoordinator_LeaveNeverRemovesOthers(t *testing.T) {
	store := storetest.NewMemoryStore()
	coordA := New(store, 1)
	coordB := New(store, 2)
	ctx := context.Background()

	idA := domain.NewGlobalID(1)
	idB := domain.NewGlobalID(2)
	require.NoError(t, coordA.Join(ctx, idA))
	require.NoError(t, coordB.Join(ctx, idB))

	require.NoError(t, coordA.Leave(ctx, idA))

	count, err := coordA.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCoordinator_LeaveReturnsErrorAfterRetries(t *testing.T) {
	store := storetest.NewMemoryStore()
	coord := New(store, 100)
	ctx := context.Background()

	id := domain.NewGlobalID(100)
	require.NoError(t, coord.Join(ctx, id))

	store.SetFailing(true)
	err := coord.Leave(ctx, id)
	require.Error(t, err)
	assert.True(t, domain.IsStoreUnavailable(err))

	// The entry is stranded until the store comes back; a later leave clears it.
	store.SetFailing(false)
	require.NoError(t, coord.Leave(ctx, id))

	count, err := coord.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// The fleet-wide count must always equal the sum of per-worker open
// connections, through an arbitrary interleaving of accepts and disconnects
// across workers.
func TestCoordinator_GlobalCountMatchesSumOfLocals(t *testing.T) {
	store := storetest.NewMemoryStore()
	ctx := context.Background()

	const workers = 3
	coords := make([]*Coordinator, workers)
	locals := make([]map[string]struct{}, workers)
	for w := range workers {
		coords[w] = New(store, w+1)
		locals[w] = make(map[string]struct{})
	}

	check := func() {
		t.Helper()
		sum := 0
		for _, l := range locals {
			sum += len(l)
		}
		count, err := coords[0].Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(sum), count)
	}

	// Staggered accepts.
	for w := range workers {
		for i := range w + 2 {
			id := fmt.Sprintf("%d:conn-%d", w+1, i)
			require.NoError(t, coords[w].Join(ctx, id))
			locals[w][id] = struct{}{}
			check()
		}
	}

	// Staggered disconnects, one per worker per round.
	for len(locals[0])+len(locals[1])+len(locals[2]) > 0 {
		for w := range workers {
			for id := range locals[w] {
				require.NoError(t, coords[w].Leave(ctx, id))
				delete(locals[w], id)
				break
			}
			check()
		}
	}
}
