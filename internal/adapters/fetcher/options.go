package fetcher

import (
	"io"
	"net/http"
	"time"

	"github.com/okian/epsshift/pkg/logger"
	"github.com/okian/epsshift/pkg/metrics"
)

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithBaseURL sets the host serving the snapshot files.
func WithBaseURL(u string) Option {
	return func(f *Fetcher) {
		if u != "" {
			f.baseURL = u
		}
	}
}

// WithDataDir sets the directory receiving downloaded files.
func WithDataDir(dir string) Option {
	return func(f *Fetcher) {
		if dir != "" {
			f.dataDir = dir
		}
	}
}

// WithTimeout bounds each download attempt.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its timeout is kept as is.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithRetry enables up to maxRetries extra attempts with exponential
// backoff capped at maxInterval.
func WithRetry(maxRetries int, maxInterval time.Duration) Option {
	return func(f *Fetcher) {
		if maxRetries >= 0 {
			f.maxRetries = maxRetries
		}
		if maxInterval > 0 {
			f.retryMaxInterval = maxInterval
		}
	}
}

// WithKeepArchive keeps the compressed file after extraction.
func WithKeepArchive(keep bool) Option {
	return func(f *Fetcher) {
		f.keepArchive = keep
	}
}

// WithProgress sets where human-readable progress lines are written.
func WithProgress(w io.Writer) Option {
	return func(f *Fetcher) {
		if w != nil {
			f.progress = w
		}
	}
}

// WithLogger sets a custom logger for the fetcher.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}
