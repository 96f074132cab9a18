package cache

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no usable cached value exists for a key
var ErrNotFound = errors.New("cache: entry not found")

// NetworkError wraps a transport or remote API failure. It is the only
// failure class eligible for stale-cache fallback.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StorageError wraps a local-store failure. Not eligible for stale
// fallback: a broken store cannot be trusted to serve stale data either.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is or wraps a NetworkError
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
