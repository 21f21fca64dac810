// Package domain holds the shared data model for the worker fleet: the
// connection identity, the two-primitive shared-store contract (atomic set
// membership and publish/subscribe), and the error taxonomy used across the
// coordination components.
package domain
