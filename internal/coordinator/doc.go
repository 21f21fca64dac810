// Package coordinator implements the global state coordinator: membership of
// this worker's connections in the fleet-wide connection set held by the
// shared store, and the fleet-wide connection count derived from it.
package coordinator
