// Package config handles configuration loading and validation for inputguardd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"inputguard/internal/anomaly"
	"inputguard/internal/classifier"
	"inputguard/internal/inputmetrics"
	"inputguard/internal/policy"
	"inputguard/internal/segment"
)

// MetricsConfig governs the inputmetrics sliding-window sizes.
type MetricsConfig struct {
	CPMWindowS     float64 `toml:"cpm_window_s"`
	WPMWindowS     float64 `toml:"wpm_window_s"`
	EntropyWindowS float64 `toml:"entropy_window_s"`
}

// ClassifierConfig governs the paste classifier's thresholds.
type ClassifierConfig struct {
	PrimaryHint        bool    `toml:"primary_hint"`
	ContextWindowSec   float64 `toml:"context_window_sec"`
	ContextCooldownSec float64 `toml:"context_cooldown_sec"`
}

// AnomalyConfig governs the four anomaly rule thresholds.
type AnomalyConfig struct {
	IdleThresholdS     float64 `toml:"idle_threshold_s"`
	BurstMinLen        int     `toml:"burst_min_len"`
	TextInsertionMin   int     `toml:"text_insertion_min"`
	KeysWindowS        float64 `toml:"keys_window_s"`
	KeysSmallMax       int     `toml:"keys_small_max"`
	PasteStreakN       int     `toml:"paste_streak_n"`
	PasteWindowS       float64 `toml:"paste_window_s"`
	UniformCVThreshold float64 `toml:"uniform_cv_threshold"`
	MinInterkeySamples int     `toml:"min_interkey_samples"`
}

// SegmentWriterConfig governs flush thresholds for the segment writer.
type SegmentWriterConfig struct {
	MaxEvents int `toml:"max_events"`
	FlushSec  int `toml:"flush_sec"`
}

// PolicyConfig is the application allow/deny list. Deny patterns win; an
// app matching neither list is treated as denied. Decisions annotate the
// audit trail only, they never block input.
type PolicyConfig struct {
	Allow []string `toml:"allow"`
	Deny  []string `toml:"deny"`
}

// Config holds the full inputguardd configuration.
type Config struct {
	// QueueCapacity bounds the event channel between capture and the
	// dispatcher. Must be positive; Validate rejects zero or less.
	QueueCapacity int `toml:"queue_capacity"`

	Metrics    MetricsConfig       `toml:"metrics"`
	Classifier ClassifierConfig    `toml:"classifier"`
	Anomaly    AnomalyConfig       `toml:"anomaly"`
	Segment    SegmentWriterConfig `toml:"segment"`
	Policy     PolicyConfig        `toml:"policy"`

	// StorePath is the SQLite segment store database file.
	StorePath string `toml:"store_path"`
	// SecretsDir holds the master secret and signing key (file backend) or
	// the sealed blob and signing key (tpm backend).
	SecretsDir string `toml:"secrets_dir"`
	// SecretsBackend selects the SecretStore implementation: "file" (default)
	// or "tpm".
	SecretsBackend string `toml:"secrets_backend"`

	// LogPath is the structured operational log file. Empty means stderr only.
	LogPath string `toml:"log_path"`
	// AuditLogPath is the separate tamper-resistant operator audit log.
	AuditLogPath string `toml:"audit_log_path"`
	// MetricsAddr is the address the Prometheus-text scrape endpoint binds
	// to (e.g. "127.0.0.1:9090"). Empty disables the endpoint entirely.
	MetricsAddr string `toml:"metrics_addr"`
}

// DefaultConfig returns a configuration with sensible defaults, matching the
// constants used throughout the pipeline.
func DefaultConfig() *Config {
	paths := GetDefaultPaths()
	mcfg := inputmetrics.DefaultConfig()
	ccfg := classifier.DefaultConfig()
	acfg := anomaly.DefaultConfig()
	scfg := segment.DefaultConfig()

	return &Config{
		QueueCapacity: 5000,
		Metrics: MetricsConfig{
			CPMWindowS:     mcfg.CPMWindowS,
			WPMWindowS:     mcfg.WPMWindowS,
			EntropyWindowS: mcfg.EntropyWindowS,
		},
		Classifier: ClassifierConfig{
			PrimaryHint:        ccfg.PrimaryHint,
			ContextWindowSec:   ccfg.ContextWindowSec,
			ContextCooldownSec: ccfg.ContextCooldownSec,
		},
		Anomaly: AnomalyConfig{
			IdleThresholdS:     acfg.IdleThresholdS,
			BurstMinLen:        acfg.BurstMinLen,
			TextInsertionMin:   acfg.TextInsertionMin,
			KeysWindowS:        acfg.KeysWindowS,
			KeysSmallMax:       acfg.KeysSmallMax,
			PasteStreakN:       acfg.PasteStreakN,
			PasteWindowS:       acfg.PasteWindowS,
			UniformCVThreshold: acfg.UniformCVThreshold,
			MinInterkeySamples: acfg.MinInterkeySamples,
		},
		Segment: SegmentWriterConfig{
			MaxEvents: scfg.MaxEvents,
			FlushSec:  int(scfg.FlushInterval.Seconds()),
		},
		Policy: PolicyConfig{
			Allow: []string{"*"},
		},
		StorePath:      paths.StorePath,
		SecretsDir:     paths.SecretsDir,
		SecretsBackend: "file",
		LogPath:        paths.LogPath,
		AuditLogPath:   paths.AuditLogPath,
		MetricsAddr:    "",
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return GetDefaultPaths().ConfigFile
}

// Load reads configuration from path, falling back to defaults for any
// field the file doesn't set and for the whole config when path is absent.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrCreate loads the configuration at path, writing a default config
// file there first if none exists yet.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(cfg, path); err != nil {
			return nil, false, fmt.Errorf("config: write default: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err := Load(path)
	return cfg, false, err
}

// Save writes cfg to path as TOML, creating the parent directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// EnsureDirectories creates every directory the configuration depends on.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.StorePath),
		c.SecretsDir,
		filepath.Dir(c.LogPath),
		filepath.Dir(c.AuditLogPath),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MetricsConfigValue converts the TOML-shaped metrics config into the
// concrete inputmetrics.Config the tracker expects.
func (c *Config) MetricsConfigValue() inputmetrics.Config {
	return inputmetrics.Config{
		CPMWindowS:     c.Metrics.CPMWindowS,
		WPMWindowS:     c.Metrics.WPMWindowS,
		EntropyWindowS: c.Metrics.EntropyWindowS,
	}
}

// ClassifierConfigValue converts to classifier.Config.
func (c *Config) ClassifierConfigValue() classifier.Config {
	return classifier.Config{
		PrimaryHint:        c.Classifier.PrimaryHint,
		ContextWindowSec:   c.Classifier.ContextWindowSec,
		ContextCooldownSec: c.Classifier.ContextCooldownSec,
	}
}

// AnomalyConfigValue converts to anomaly.Config.
func (c *Config) AnomalyConfigValue() anomaly.Config {
	return anomaly.Config{
		IdleThresholdS:     c.Anomaly.IdleThresholdS,
		BurstMinLen:        c.Anomaly.BurstMinLen,
		TextInsertionMin:   c.Anomaly.TextInsertionMin,
		KeysWindowS:        c.Anomaly.KeysWindowS,
		KeysSmallMax:       c.Anomaly.KeysSmallMax,
		PasteStreakN:       c.Anomaly.PasteStreakN,
		PasteWindowS:       c.Anomaly.PasteWindowS,
		UniformCVThreshold: c.Anomaly.UniformCVThreshold,
		MinInterkeySamples: c.Anomaly.MinInterkeySamples,
	}
}

// PolicyValue compiles the allow/deny lists into a policy.Policy.
func (c *Config) PolicyValue() (*policy.Policy, error) {
	return policy.New(c.Policy.Allow, c.Policy.Deny)
}

// SegmentConfigValue converts to segment.Config.
func (c *Config) SegmentConfigValue() segment.Config {
	return segment.Config{
		MaxEvents:     c.Segment.MaxEvents,
		FlushInterval: time.Duration(c.Segment.FlushSec) * time.Second,
	}
}
