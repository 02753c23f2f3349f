package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrRateLimited      = errors.New("rate limited")
	ErrInternal         = errors.New("internal error")
)

// opError ties an operation name to a sentinel kind and the underlying cause.
type opError struct {
	Op   string
	Kind error
	Err  error
}

func (e *opError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *opError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of the given kind for op.
func NewKind(op string, kind error) error {
	return &opError{Op: op, Kind: kind}
}

// WrapKind wraps err with op and kind. Both remain visible to errors.Is.
func WrapKind(op string, kind, err error) error {
	return &opError{Op: op, Kind: kind, Err: err}
}
