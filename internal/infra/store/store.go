// Package store provides the namespaced key-value persistence used by the
// tracking journal. Each key holds one independent JSON blob, so a corrupt
// key degrades to its zero value without corrupting the rest of the store.
package store

import "errors"

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("store: key not found")

// KeyValueStore persists string blobs under namespaced keys.
// Implementations must be safe for concurrent use.
type KeyValueStore interface {
	// Get returns the blob stored under key, or ErrNotFound.
	Get(key string) (string, error)

	// Set stores blob under key, replacing any previous value.
	Set(key, blob string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}
