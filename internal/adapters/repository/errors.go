package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	// ErrStoreUnavailable wraps every backend failure (connection, timeout,
	// closed store). Read paths degrade on it; write paths surface it.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnknownDriver    = errors.New("unknown store driver")
	ErrClosed           = errors.New("store closed")
)
