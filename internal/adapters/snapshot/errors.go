package snapshot

import "errors"

// Sentinel kinds for snapshot parsing errors.
var (
	ErrDataFormat          = errors.New("malformed EPSS table")
	ErrDuplicateIdentifier = errors.New("duplicate CVE in snapshot")
)
