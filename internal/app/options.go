package app

import (
	"io"

	"github.com/okian/epsshift/internal/adapters/report"
	"github.com/okian/epsshift/pkg/logger"
	"github.com/okian/epsshift/pkg/metrics"
)

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithFetcher sets the snapshot source.
func WithFetcher(f Fetcher) Option {
	return func(r *Runner) {
		if f != nil {
			r.fetcher = f
		}
	}
}

// WithLoader sets the table parser.
func WithLoader(l Loader) Option {
	return func(r *Runner) {
		if l != nil {
			r.loader = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOutput sets where the report is written.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithNotices sets where warnings for the user are written. Defaults to the
// report output.
func WithNotices(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.notices = w
		}
	}
}

// WithFormat sets the report format.
func WithFormat(f report.Format) Option {
	return func(r *Runner) {
		if f != "" {
			r.format = f
		}
	}
}
