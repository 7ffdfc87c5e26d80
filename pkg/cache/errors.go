package cache

import "errors"

var (
	// ErrNotFound indicates the key is absent or expired.
	ErrNotFound = errors.New("cache: key not found")

	// ErrClosed indicates the cache has been closed.
	ErrClosed = errors.New("cache: closed")
)
