package era

import "errors"

// Sentinel kinds for date validation errors.
var (
	ErrDateFormat = errors.New("invalid date format")
	ErrDateOrder  = errors.New("start date must be before end date")
)
