package report

import "errors"

// ErrUnknownFormat is returned for an output format other than text or json.
var ErrUnknownFormat = errors.New("unknown output format")
