package snapshot

import (
	"github.com/okian/epsshift/internal/domain/dedupe"
	"github.com/okian/epsshift/pkg/logger"
)

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithDuplicatePolicy sets how repeated CVE rows are handled.
func WithDuplicatePolicy(p dedupe.Policy) Option {
	return func(l *Loader) {
		if p != "" {
			l.policy = p
		}
	}
}

// WithLogger sets a custom logger for the loader.
func WithLogger(lg logger.Logger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}
