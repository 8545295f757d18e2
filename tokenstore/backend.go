// Package tokenstore provides the client-side key/value persistence layer
// for session tokens. A Store wraps a durable Backend and degrades to an
// in-process map when the backend proves unusable, so callers never see a
// storage error.
package tokenstore

import "errors"

// ErrNotFound is returned by a Backend when a key has no value.
var ErrNotFound = errors.New("tokenstore: key not found")

// Backend is a durable key/value storage mechanism. Implementations may fail
// on any call; the Store above them is responsible for containing those
// failures.
type Backend interface {
	Read(key string) (string, error)
	Write(key, value string) error
	Delete(key string) error
}
