// Package registry implements the local connection registry: the per-process
// owner of live client connections and the fan-out target for broadcasts.
package registry
