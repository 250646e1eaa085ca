package app

import "errors"

// ErrCountFormat is returned when the requested count is not a
// non-negative integer.
var ErrCountFormat = errors.New("count must be a non-negative integer")
