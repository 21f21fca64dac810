package domain

import "errors"

var (
	// ErrAlreadyRegistered indicates a double-accept bug: the same local id
	// was registered twice.
	ErrAlreadyRegistered = errors.New("connection already registered")
	// ErrNotFound indicates a teardown for a connection this registry does
	// not hold (double-teardown, or already force-closed).
	ErrNotFound = errors.New("connection not found")
)

// StoreUnavailableError marks a transient failure of the shared store. It is
// the only error class the coordination components retry.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return "store unavailable during " + e.Op + ": " + e.Err.Error()
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsStoreUnavailable reports whether err is (or wraps) a store outage.
func IsStoreUnavailable(err error) bool {
	var se *StoreUnavailableError
	return errors.As(err, &se)
}
