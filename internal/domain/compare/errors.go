package compare

import "errors"

// Sentinel kinds for comparison errors.
var (
	ErrInvalidLimit = errors.New("invalid limit")
)
