package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/epsshift/internal/domain/dedupe"
)

// Environment variable names.
const (
	EnvPrefix     = "EPSSHIFT_"
	EnvConfigFile = "EPSSHIFT_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) at path, or EPSSHIFT_CONFIG when path is empty
//  3. env (prefix EPSSHIFT_)
//
// Command line flags are applied by the caller on top of the result.
func Load(_ context.Context, path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// EPSSHIFT_BASE_URL -> base_url; flat keys keep their underscores.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and formats.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if c.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base_url must be an http(s) URL, got %q", ErrInvalidConfig, c.BaseURL)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http_timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidConfig)
	}
	if c.MaxRetries > 0 && c.RetryMaxInterval <= 0 {
		return fmt.Errorf("%w: retry_max_interval must be positive when retries are enabled", ErrInvalidConfig)
	}
	if _, err := dedupe.ParsePolicy(c.DuplicatePolicy); err != nil {
		return fmt.Errorf("%w: duplicate_policy: %w", ErrInvalidConfig, err)
	}
	if c.DefaultCount < 0 {
		return fmt.Errorf("%w: default_count must not be negative", ErrInvalidConfig)
	}
	return nil
}
