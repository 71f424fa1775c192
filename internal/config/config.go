// Package config loads projector settings from a YAML file and the
// environment. Environment variables override the file; CLI flags override
// both.
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/infinity/internal/addressing"
	"github.com/roach88/infinity/internal/logging"
	"github.com/roach88/infinity/internal/store"
)

// Config is the full set of projector settings.
type Config struct {
	// DB is the SQLite database path.
	DB string `yaml:"db" env:"INFINITY_DB"`
	// Namespace overrides the address prefix that is projected.
	Namespace   string `yaml:"namespace" env:"INFINITY_NAMESPACE"`
	StopOnError bool   `yaml:"stop_on_error" env:"INFINITY_STOP_ON_ERROR"`

	Log   LogConfig   `yaml:"log" envPrefix:"INFINITY_LOG_"`
	Retry RetryConfig `yaml:"retry" envPrefix:"INFINITY_RETRY_"`
}

// LogConfig controls logging.Setup.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	Dir   string `yaml:"dir" env:"DIR"`
}

// RetryConfig controls how hard the store connection is retried.
type RetryConfig struct {
	Retries      uint64        `yaml:"retries" env:"RETRIES"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	Multiplier   float64       `yaml:"multiplier" env:"MULTIPLIER"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Namespace: addressing.Namespace,
		Log:       LogConfig{Level: "info"},
		Retry: RetryConfig{
			Retries:      store.DefaultRetryPolicy.Retries,
			InitialDelay: store.DefaultRetryPolicy.InitialDelay,
			Multiplier:   store.DefaultRetryPolicy.Multiplier,
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML rejects unknown keys so typos surface instead of silently
// falling back to defaults.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ParseEnv loads overrides from environment variables. Unset variables leave
// the current values alone.
func ParseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the settings for values the projector cannot run with.
func (c Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Namespace != "" {
		if len(c.Namespace) != addressing.NamespaceLen {
			errs = append(errs, fmt.Errorf("namespace: must be %d hex characters, got %q", addressing.NamespaceLen, c.Namespace))
		} else if _, err := hex.DecodeString(c.Namespace); err != nil {
			errs = append(errs, fmt.Errorf("namespace: not hex: %q", c.Namespace))
		}
	}
	if c.Retry.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.initial_delay: must not be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry.multiplier: must be at least 1, got %v", c.Retry.Multiplier))
	}

	return errors.Join(errs...)
}

// RetryPolicy converts the retry settings for store.OpenWithRetry.
func (c Config) RetryPolicy() store.RetryPolicy {
	return store.RetryPolicy{
		Retries:      c.Retry.Retries,
		InitialDelay: c.Retry.InitialDelay,
		Multiplier:   c.Retry.Multiplier,
	}
}

// LoggingOptions converts the log settings for logging.Setup.
func (c Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Dir: c.Log.Dir}
}
