package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds for fetch errors.
var (
	ErrFetch      = errors.New("fetch failed")
	ErrDecompress = errors.New("decompress failed")
)

// StatusError reports a non-2xx response. It matches ErrFetch with errors.Is.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned HTTP %d", ErrFetch, e.URL, e.Code)
}

// Is makes errors.Is(err, ErrFetch) hold for status errors.
func (e *StatusError) Is(target error) bool {
	return target == ErrFetch
}

// Retryable reports whether another attempt could succeed. Client errors
// other than 408 and 429 are final.
func (e *StatusError) Retryable() bool {
	switch {
	case e.Code == http.StatusRequestTimeout, e.Code == http.StatusTooManyRequests:
		return true
	case e.Code >= 400 && e.Code < 500:
		return false
	default:
		return true
	}
}
