// Package redis adapts the shared-store contract to Redis: the global
// connection set (SADD/SREM/SCARD), the broadcast channel (PUBLISH/SUBSCRIBE),
// the worker heartbeat registry, and the circuit breaker hook protecting all
// of it.
package redis
