package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

var validBuilderKinds = map[string]bool{"docker": true}

var validLogFormats = map[string]bool{"text": true, "json": true}

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Source string
	errs   *multierror.Error
}

func (e *ValidationError) Error() string {
	where := "config"
	if e.Source != "" {
		where = e.Source
	}
	msgs := make([]string, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: invalid configuration: %s", where, strings.Join(msgs, "; "))
}

// Problems returns the individual validation failures.
func (e *ValidationError) Problems() []error { return e.errs.Errors }

// Validate checks a loaded Config and returns a *ValidationError when
// anything is wrong.
func Validate(cfg *Config) error {
	var errs *multierror.Error

	if cfg.Parallel < 1 {
		errs = multierror.Append(errs, fmt.Errorf("parallel: must be at least 1, got %d", cfg.Parallel))
	}

	if !validBuilderKinds[cfg.Builder.Kind] {
		errs = multierror.Append(errs, fmt.Errorf("builder.kind: unknown builder %q (supported: docker)", cfg.Builder.Kind))
	}
	if cfg.Builder.Executable == "" {
		errs = multierror.Append(errs, fmt.Errorf("builder.executable: must not be empty"))
	}
	for i, p := range cfg.Builder.Platforms {
		if !strings.Contains(p, "/") {
			errs = multierror.Append(errs, fmt.Errorf("builder.platforms[%d]: %q is not os/arch", i, p))
		}
	}

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("log.level: %w", err))
	}
	if !validLogFormats[cfg.Log.Format] {
		errs = multierror.Append(errs, fmt.Errorf("log.format: %q is not text or json", cfg.Log.Format))
	}

	for k := range cfg.Variables {
		if !isVariableName(k) {
			errs = multierror.Append(errs, fmt.Errorf("variables: key %q is not a valid variable name", k))
		}
	}
	for i, f := range cfg.EnvFiles {
		if f == "" {
			errs = multierror.Append(errs, fmt.Errorf("env_files[%d]: empty path", i))
		}
	}

	if errs == nil {
		return nil
	}
	return &ValidationError{Source: cfg.Source, errs: errs}
}

func isVariableName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
