package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGlobalID(t *testing.T) {
	id := NewGlobalID(1234)

	worker, rest, found := strings.Cut(id, ":")
	require.True(t, found)
	assert.Equal(t, "1234", worker)
	assert.Len(t, rest, 36)

	// Fleet-unique even within one worker.
	assert.NotEqual(t, id, NewGlobalID(1234))
}

func TestConnState_String(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", ConnState(42).String())
}

func TestIsStoreUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := &StoreUnavailableError{Op: "set add", Err: cause}

	assert.True(t, IsStoreUnavailable(err))
	assert.True(t, IsStoreUnavailable(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "set add")

	assert.False(t, IsStoreUnavailable(cause))
	assert.False(t, IsStoreUnavailable(nil))
}
