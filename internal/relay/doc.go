// Package relay implements the broadcast relay: publish-once to the shared
// channel and a per-process subscriber loop that fans received messages out
// to the local connection registry.
package relay
