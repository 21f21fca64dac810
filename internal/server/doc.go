// Package server is the HTTP/WebSocket transport surface: connection
// accept/disconnect hooks, the broadcast trigger, and the diagnostic
// endpoints. The coordination core lives in registry, coordinator, relay and
// shutdown; this package only drives it.
package server
