package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputguard/internal/config"
	"inputguard/internal/eventlog"
	"inputguard/internal/keymanager"
	"inputguard/internal/logging"
	"inputguard/internal/segmentstore"
	"inputguard/internal/segmentverify"
)

func newTestRuntime(t *testing.T) (*Runtime, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.StorePath = filepath.Join(dir, "segments.db")
	cfg.SecretsDir = filepath.Join(dir, "secrets")
	cfg.LogPath = ""
	cfg.AuditLogPath = filepath.Join(dir, "audit.log")
	cfg.MetricsAddr = ""
	cfg.Segment.FlushSec = 1

	logCfg := logging.DefaultConfig()
	logCfg.Output = "stderr"
	logger, err := logging.New(logCfg)
	require.NoError(t, err)

	auditCfg := logging.DefaultAuditConfig()
	auditCfg.FilePath = cfg.AuditLogPath
	audit, err := logging.NewAuditLogger(auditCfg)
	require.NoError(t, err)

	rt, err := New(cfg, logger, audit)
	require.NoError(t, err)
	return rt, cfg
}

func TestPipelineEndToEnd(t *testing.T) {
	rt, cfg := newTestRuntime(t)

	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))

	// Three ctrl+v key-downs: the classifier infers three paste commands,
	// and the third trips the paste-streak rule.
	mods := []eventlog.Mod{eventlog.ModCtrl}
	rt.Observe(eventlog.NewKey(1.0, "v", eventlog.ActionDown, mods, nil))
	rt.Observe(eventlog.NewKey(1.2, "v", eventlog.ActionDown, mods, nil))
	rt.Observe(eventlog.NewKey(1.4, "v", eventlog.ActionDown, mods, nil))

	// Give the dispatcher time to drain before stopping; Stop then forces a
	// final flush of everything buffered.
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, rt.Stop())

	assert.Equal(t, uint64(3), rt.Metrics().EventsObserved.Value())
	assert.Equal(t, uint64(1), rt.Metrics().AnomaliesDetected.Value())
	assert.GreaterOrEqual(t, rt.Metrics().SegmentsWritten.Value(), uint64(1))

	store, err := segmentstore.Open(cfg.StorePath)
	require.NoError(t, err)
	defer store.Close()

	secretStore, err := keymanager.NewFileSecretStore(cfg.SecretsDir)
	require.NoError(t, err)
	km, err := keymanager.Load(secretStore)
	require.NoError(t, err)

	report, err := segmentverify.New(store, km, segmentverify.Options{}).Run()
	require.NoError(t, err)
	assert.True(t, report.Valid())
	assert.Equal(t, report.Total, report.SigOK)
	assert.Equal(t, report.Total, report.ChainOK)
	assert.Equal(t, report.Total, report.DecryptOK)

	// 3 raw key events + 3 inferred commands + 1 streak anomaly.
	events := 0
	for _, s := range report.Segments {
		events += s.EventCount
	}
	assert.Equal(t, 7, events)
}

func TestDeniedFocusAppIsAudited(t *testing.T) {
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.StorePath = filepath.Join(dir, "segments.db")
	cfg.SecretsDir = filepath.Join(dir, "secrets")
	cfg.LogPath = ""
	cfg.AuditLogPath = filepath.Join(dir, "audit.log")
	cfg.MetricsAddr = ""
	cfg.Policy.Deny = []string{"*browser*"}

	logCfg := logging.DefaultConfig()
	logCfg.Output = "stderr"
	logger, err := logging.New(logCfg)
	require.NoError(t, err)

	auditCfg := logging.DefaultAuditConfig()
	auditCfg.FilePath = cfg.AuditLogPath
	audit, err := logging.NewAuditLogger(auditCfg)
	require.NoError(t, err)

	rt, err := New(cfg, logger, audit)
	require.NoError(t, err)

	require.NoError(t, rt.Start(context.Background()))
	rt.Observe(eventlog.NewFocus(1.0, "shady-browser", nil, "", nil))
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, rt.Stop())

	data, err := os.ReadFile(cfg.AuditLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "focus_app_denied")
	assert.Contains(t, string(data), "shady-browser")
}

func TestApplyConfigTakesEffectBetweenEvents(t *testing.T) {
	rt, _ := newTestRuntime(t)

	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))

	// Raise the streak threshold so three pastes no longer fire the rule.
	tuned := config.DefaultConfig()
	tuned.Anomaly.PasteStreakN = 10
	rt.ApplyConfig(tuned)

	mods := []eventlog.Mod{eventlog.ModCtrl}
	rt.Observe(eventlog.NewKey(1.0, "v", eventlog.ActionDown, mods, nil))
	rt.Observe(eventlog.NewKey(1.2, "v", eventlog.ActionDown, mods, nil))
	rt.Observe(eventlog.NewKey(1.4, "v", eventlog.ActionDown, mods, nil))

	time.Sleep(500 * time.Millisecond)
	require.NoError(t, rt.Stop())

	assert.Equal(t, uint64(0), rt.Metrics().AnomaliesDetected.Value())
}
