package opendata

import "errors"

// Sentinel kinds for feed errors.
var (
	// ErrUnavailable means the feed could not be read and nothing is cached.
	ErrUnavailable = errors.New("open data unavailable")
	ErrBadStatus   = errors.New("unexpected feed status")
)
