package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.QueueCapacity = 1234
	cfg.Anomaly.PasteStreakN = 7
	cfg.SecretsBackend = "tpm"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1234, loaded.QueueCapacity)
	require.Equal(t, 7, loaded.Anomaly.PasteStreakN)
	require.Equal(t, "tpm", loaded.SecretsBackend)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().QueueCapacity, cfg.QueueCapacity)
}

func TestLoadOrCreateWritesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.True(t, created)
	require.FileExists(t, path)

	cfg2, created2, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, cfg.QueueCapacity, cfg2.QueueCapacity)
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)

	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Greater(t, len(verrs), 5)
}

func TestValidateRejectsTraversalPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorePath = "../../../etc/segments.db"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "store_path")
}

func TestValidateRejectsBadPolicyPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.Deny = []string{"[unclosed"}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "policy.deny[0]")
}

func TestPolicyValueCompiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.Deny = []string{"*browser*"}
	p, err := cfg.PolicyValue()
	require.NoError(t, err)
	require.False(t, p.Decide("my-browser").Allowed)
	require.True(t, p.Decide("editor").Allowed)
}

func TestValidateRejectsUnknownSecretsBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecretsBackend = "nope"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "secrets_backend")
}

func TestEnsureDirectoriesCreatesAllPaths(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.StorePath = filepath.Join(base, "store", "segments.db")
	cfg.SecretsDir = filepath.Join(base, "secrets")
	cfg.LogPath = filepath.Join(base, "logs", "inputguardd.log")
	cfg.AuditLogPath = filepath.Join(base, "logs", "audit.log")

	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{
		filepath.Join(base, "store"),
		filepath.Join(base, "secrets"),
		filepath.Join(base, "logs"),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestValueConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Segment.FlushSec = 90

	require.Equal(t, cfg.Metrics.CPMWindowS, cfg.MetricsConfigValue().CPMWindowS)
	require.Equal(t, cfg.Classifier.PrimaryHint, cfg.ClassifierConfigValue().PrimaryHint)
	require.Equal(t, cfg.Anomaly.BurstMinLen, cfg.AnomalyConfigValue().BurstMinLen)
	require.Equal(t, 90*time.Second, cfg.SegmentConfigValue().FlushInterval)
}

func TestLoaderHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Anomaly.PasteStreakN = 3
	require.NoError(t, Save(cfg, path))

	loader, err := NewLoader(path)
	require.NoError(t, err)
	defer loader.Close()

	changed := make(chan *Config, 1)
	loader.OnChange(func(c *Config) { changed <- c })

	require.NoError(t, loader.Watch())

	cfg.Anomaly.PasteStreakN = 9
	require.NoError(t, Save(cfg, path))

	select {
	case c := <-changed:
		require.Equal(t, 9, c.Anomaly.PasteStreakN)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for hot-reload callback")
	}
}
