package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ConnState is the local lifecycle state of one connection.
type ConnState int

const (
	StateOpen ConnState = iota
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sender is the send capability of one client connection. Implementations
// must be safe for concurrent use; a returned error means the connection is
// dead and should be torn down.
type Sender interface {
	Send(payload []byte) error
	Close() error
}

// Connection is one client held by this worker process. LocalID is unique
// within the process; GlobalID is unique across the fleet and is the member
// stored in the shared global registry.
type Connection struct {
	LocalID  uint64
	GlobalID string
	Sender   Sender
	State    ConnState
}

// NewGlobalID returns a fleet-unique connection id of the form
// "<worker>:<uuid>". The worker prefix makes stranded entries attributable
// to the process that created them.
func NewGlobalID(workerID int) string {
	return fmt.Sprintf("%d:%s", workerID, uuid.New())
}
