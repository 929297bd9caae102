package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MinInterval is the shortest polling interval accepted.
const MinInterval = 100 * time.Millisecond

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// A broadcaster URL or a full endpoint is required
	if cfg.URL == "" && cfg.WHEPEndpoint == "" {
		errs = append(errs, ValidationError{
			Field:   "url",
			Message: "broadcaster URL is required",
		})
	}
	if cfg.URL != "" {
		if err := validateURL(cfg.URL); err != nil {
			errs = append(errs, ValidationError{Field: "url", Message: err.Error()})
		}
	}
	if cfg.WHEPEndpoint != "" {
		if err := validateURL(cfg.WHEPEndpoint); err != nil {
			errs = append(errs, ValidationError{Field: "whep_endpoint", Message: err.Error()})
		}
	} else if cfg.InputID == "" && !cfg.Check {
		errs = append(errs, ValidationError{
			Field:   "input_id",
			Message: "required unless -whep-endpoint is set",
		})
	}

	if cfg.Interval < MinInterval {
		errs = append(errs, ValidationError{
			Field:   "interval",
			Message: fmt.Sprintf("must be at least %v (got %v)", MinInterval, cfg.Interval),
		})
	}
	if cfg.Duration < 0 {
		errs = append(errs, ValidationError{
			Field:   "duration",
			Message: "must not be negative",
		})
	}

	// Recording
	if err := validateDelimiter(cfg.Delimiter); err != nil {
		errs = append(errs, ValidationError{Field: "delimiter", Message: err.Error()})
	}
	if cfg.RecordDir == "" {
		errs = append(errs, ValidationError{Field: "record_dir", Message: "must not be empty"})
	}
	if strings.ContainsAny(cfg.Extension, `/\`) || strings.HasPrefix(cfg.Extension, ".") {
		errs = append(errs, ValidationError{
			Field:   "extension",
			Message: fmt.Sprintf("must be a bare extension like csv (got %q)", cfg.Extension),
		})
	}
	for field, label := range map[string]string{"source_label": cfg.SourceLabel, "dest_label": cfg.DestLabel} {
		if label == "" || strings.ContainsAny(label, `/\`) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("must be a non-empty name without path separators (got %q)", label),
			})
		}
	}

	// Log settings
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}
	if cfg.PionLevel != "" && cfg.PionLevel != "trace" && !validLevels[strings.ToLower(cfg.PionLevel)] {
		errs = append(errs, ValidationError{
			Field:   "pion_log_level",
			Message: fmt.Sprintf("must be one of: trace, debug, info, warn, error (got %q)", cfg.PionLevel),
		})
	}

	// Backoff settings
	if cfg.MaxReconnects < 0 {
		errs = append(errs, ValidationError{Field: "max_reconnects", Message: "must not be negative"})
	}
	if cfg.BackoffInitial <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_initial",
			Message: "must be positive",
		})
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, ValidationError{
			Field:   "backoff_max",
			Message: "must be >= backoff_initial",
		})
	}
	if cfg.BackoffMultiply < 1.0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_multiply",
			Message: "must be >= 1.0",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validateURL checks if the URL is valid and uses http or https.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}

// validateDelimiter accepts exactly one character that encoding/csv can use.
func validateDelimiter(d string) error {
	if utf8.RuneCountInString(d) != 1 {
		return fmt.Errorf("must be a single character (got %q)", d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return fmt.Errorf("%q cannot be used as a field separator", d)
	}
	return nil
}

// ApplyCheckMode modifies config for -check mode.
func ApplyCheckMode(cfg *Config) {
	cfg.TUIEnabled = false
	cfg.Record = false
	cfg.Verbose = true
}
