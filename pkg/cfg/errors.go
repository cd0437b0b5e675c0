package cfg

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned for statement kinds that cannot be placed
	// in a chunk graph (try, with, match, ...).
	ErrUnsupported = errors.New("unsupported statement")

	// ErrDepthExceeded is returned when statements nest deeper than the
	// configured limit.
	ErrDepthExceeded = errors.New("maximum nesting depth exceeded")

	// ErrOrderingPrecondition is returned when a nested function is used
	// before its captures were computed.
	ErrOrderingPrecondition = errors.New("nested function analyzed out of order")

	// ErrInternal reports a broken graph invariant.
	ErrInternal = errors.New("internal invariant violated")
)

// UnsupportedError identifies the offending statement.
type UnsupportedError struct {
	Kind string
	Line int
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported statement %q at line %d", e.Kind, e.Line)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }
