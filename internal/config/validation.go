package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"inputguard/internal/security"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every ValidationError found by Validate, so a
// single Load surfaces all problems instead of just the first.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, ve := range e {
		parts[i] = ve.Error()
	}
	return "config: invalid configuration: " + strings.Join(parts, "; ")
}

// Validate checks the configuration for internally-consistent values,
// returning every violation found rather than failing on the first.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.QueueCapacity <= 0 {
		errs = append(errs, ValidationError{"queue_capacity", "must be positive"})
	}
	if c.Segment.MaxEvents <= 0 {
		errs = append(errs, ValidationError{"segment.max_events", "must be positive"})
	}
	if c.Segment.FlushSec <= 0 {
		errs = append(errs, ValidationError{"segment.flush_sec", "must be positive"})
	}
	pathv := security.DefaultPathValidator()
	checkPath := func(field, path string, required bool) {
		if path == "" {
			if required {
				errs = append(errs, ValidationError{field, "is required"})
			}
			return
		}
		if _, err := pathv.ValidatePath(path); err != nil {
			errs = append(errs, ValidationError{field, err.Error()})
		}
	}
	checkPath("store_path", c.StorePath, true)
	checkPath("secrets_dir", c.SecretsDir, true)
	checkPath("log_path", c.LogPath, false)
	checkPath("audit_log_path", c.AuditLogPath, false)
	if c.SecretsBackend != "file" && c.SecretsBackend != "tpm" {
		errs = append(errs, ValidationError{"secrets_backend", `must be "file" or "tpm"`})
	}

	if c.Classifier.ContextWindowSec <= 0 {
		errs = append(errs, ValidationError{"classifier.context_window_sec", "must be positive"})
	}
	if c.Classifier.ContextCooldownSec < 0 {
		errs = append(errs, ValidationError{"classifier.context_cooldown_sec", "must not be negative"})
	}

	if c.Anomaly.IdleThresholdS <= 0 {
		errs = append(errs, ValidationError{"anomaly.idle_threshold_s", "must be positive"})
	}
	if c.Anomaly.BurstMinLen <= 0 {
		errs = append(errs, ValidationError{"anomaly.burst_min_len", "must be positive"})
	}
	if c.Anomaly.TextInsertionMin <= 0 {
		errs = append(errs, ValidationError{"anomaly.text_insertion_min", "must be positive"})
	}
	if c.Anomaly.KeysWindowS <= 0 {
		errs = append(errs, ValidationError{"anomaly.keys_window_s", "must be positive"})
	}
	if c.Anomaly.PasteStreakN <= 0 {
		errs = append(errs, ValidationError{"anomaly.paste_streak_n", "must be positive"})
	}
	if c.Anomaly.PasteWindowS <= 0 {
		errs = append(errs, ValidationError{"anomaly.paste_window_s", "must be positive"})
	}
	if c.Anomaly.UniformCVThreshold <= 0 {
		errs = append(errs, ValidationError{"anomaly.uniform_cv_threshold", "must be positive"})
	}
	if c.Anomaly.MinInterkeySamples <= 0 {
		errs = append(errs, ValidationError{"anomaly.min_interkey_samples", "must be positive"})
	}

	if c.Metrics.CPMWindowS <= 0 {
		errs = append(errs, ValidationError{"metrics.cpm_window_s", "must be positive"})
	}
	if c.Metrics.WPMWindowS <= 0 {
		errs = append(errs, ValidationError{"metrics.wpm_window_s", "must be positive"})
	}
	if c.Metrics.EntropyWindowS <= 0 {
		errs = append(errs, ValidationError{"metrics.entropy_window_s", "must be positive"})
	}

	for i, pat := range c.Policy.Allow {
		if _, err := filepath.Match(pat, "probe"); err != nil {
			errs = append(errs, ValidationError{fmt.Sprintf("policy.allow[%d]", i), "invalid glob pattern"})
		}
	}
	for i, pat := range c.Policy.Deny {
		if _, err := filepath.Match(pat, "probe"); err != nil {
			errs = append(errs, ValidationError{fmt.Sprintf("policy.deny[%d]", i), "invalid glob pattern"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
