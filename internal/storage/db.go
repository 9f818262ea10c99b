// Package storage provides the key-value database abstraction backing the
// wallet's local state (account records, client settings).
package storage

import "errors"

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("storage: key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}
