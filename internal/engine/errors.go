package engine

import "errors"

// ErrInvalidState is wrapped by errors returned when an operation is
// attempted in the wrong lifecycle state (e.g. Search before Populated).
var ErrInvalidState = errors.New("engine: invalid state for operation")

// ErrInvalidArgument is wrapped by errors returned for shape mismatches and
// out-of-range parameters.
var ErrInvalidArgument = errors.New("engine: invalid argument")
