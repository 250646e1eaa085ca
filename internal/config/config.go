// Package config defines process configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// Default values.
const (
	DefaultBaseURL          = "https://epss.empiricalsecurity.com"
	DefaultHTTPTimeout      = 60 * time.Second
	DefaultRetryMaxInterval = 10 * time.Second
	DefaultCount            = 10
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// BaseURL is the host serving epss_scores-YYYY-MM-DD.csv.gz files.
	BaseURL string `koanf:"base_url"`

	// DataDir receives the downloaded and extracted tables.
	DataDir string `koanf:"data_dir"`

	// HTTPTimeout bounds a single download attempt.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// MaxRetries is the number of extra attempts after a failed download.
	// Zero means a single attempt.
	MaxRetries int `koanf:"max_retries"`

	// RetryMaxInterval caps the exponential backoff between attempts.
	RetryMaxInterval time.Duration `koanf:"retry_max_interval"`

	// KeepArchive keeps <date>.csv.gz next to the extracted table.
	KeepArchive bool `koanf:"keep_archive"`

	// DuplicatePolicy is "first" or "reject".
	DuplicatePolicy string `koanf:"duplicate_policy"`

	// MetricsTextfile, when set, receives Prometheus metrics after the run.
	MetricsTextfile string `koanf:"metrics_textfile"`

	// DefaultCount is offered when the count prompt is left empty.
	DefaultCount int `koanf:"default_count"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		BaseURL:          DefaultBaseURL,
		DataDir:          ".",
		HTTPTimeout:      DefaultHTTPTimeout,
		MaxRetries:       0,
		RetryMaxInterval: DefaultRetryMaxInterval,
		KeepArchive:      false,
		DuplicatePolicy:  "first",
		DefaultCount:     DefaultCount,
	}
}
