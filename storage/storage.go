// Package storage defines the durable client-side slot store the console
// keeps its session state in.
package storage

import "errors"

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("key not found")

// Store is a small durable key/value store. The bbolt implementation
// persists across process restarts; the memory implementation is for
// tests. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is a no-op.
	Delete(key string) error
	Close() error
}
