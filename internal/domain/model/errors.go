package model

import "errors"

// Sentinel kinds for domain errors.
var (
	// ErrValidation marks input that is missing or out of range.
	ErrValidation = errors.New("validation failed")
)
