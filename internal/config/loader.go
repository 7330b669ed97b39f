// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent, never overrides
//     the real environment).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Stage   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load loads and validates the VendHub configuration. It is called exactly
// once from main; any error is fatal.
func Load() (*Config, error) {
	// UTC everywhere. Ledger timestamps must never depend on host TZ.
	time.Local = time.UTC

	// .env is a local-development convenience only; it does not override
	// variables already present in the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Stage: "envconfig", Message: "failed to process environment", Err: err}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate applies struct tags plus the cross-field rules envconfig cannot
// express.
func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return &ConfigError{Stage: "validate", Message: "invalid configuration", Err: err}
	}

	q := cfg.Quota
	if q.MinUnits%q.UnitSize != 0 || q.MaxUnits%q.UnitSize != 0 {
		return &ConfigError{
			Stage:   "validate",
			Message: fmt.Sprintf("quota bounds [%d, %d] must be multiples of the unit size %d", q.MinUnits, q.MaxUnits, q.UnitSize),
		}
	}
	if q.MinUnits > q.MaxUnits {
		return &ConfigError{
			Stage:   "validate",
			Message: fmt.Sprintf("QUOTA_MIN_UNITS (%d) exceeds QUOTA_MAX_UNITS (%d)", q.MinUnits, q.MaxUnits),
		}
	}
	return nil
}
