// Package shutdown implements the per-process graceful-shutdown state
// machine: stop admitting connections, poll the global connection count, and
// release the process when the fleet is drained or the deadline elapses.
package shutdown
