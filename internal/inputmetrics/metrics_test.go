package inputmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCPMWPMOverWindow(t *testing.T) {
	tr := New(DefaultConfig())
	for i := 0; i < 30; i++ {
		tr.ObserveKeyDown(float64(i))
	}
	snap := tr.Snapshot(29)
	assert.InDelta(t, 30.0, snap.CPM, 0.01)
	assert.InDelta(t, 6.0, snap.WPM, 0.01)
}

func TestUniformityUndefinedBelowTwoSamples(t *testing.T) {
	tr := New(DefaultConfig())
	tr.ObserveKeyDown(0)
	tr.ObserveKeyDown(0.2)
	snap := tr.Snapshot(0.2)
	assert.False(t, snap.UniformityDefined)
}

func TestUniformityDefinedWithEnoughSamples(t *testing.T) {
	tr := New(DefaultConfig())
	// Perfectly uniform 0.1s cadence.
	for i := 0; i <= 15; i++ {
		tr.ObserveKeyDown(float64(i) * 0.1)
	}
	snap := tr.Snapshot(1.5)
	require := assert.New(t)
	require.True(snap.UniformityDefined)
	require.InDelta(0, snap.UniformityCV, 1e-6)
	require.GreaterOrEqual(snap.IntervalSamples, 12)
}

func TestIdleSinceAdvancesWithNonKeyEvents(t *testing.T) {
	tr := New(DefaultConfig())
	tr.ObserveKeyDown(0)
	tr.ObserveAny(5)
	assert.InDelta(t, 2.0, tr.IdleSince(7), 1e-9)
}

func TestWindowGCBoundsMemory(t *testing.T) {
	tr := New(Config{CPMWindowS: 1, WPMWindowS: 1, EntropyWindowS: 1})
	for i := 0; i < 100; i++ {
		tr.ObserveKeyDown(float64(i) * 0.01)
	}
	assert.LessOrEqual(t, len(tr.keyDowns), 101)
	tr.Snapshot(1.0)
	assert.LessOrEqual(t, len(tr.keyDowns), 101)
	tr.Snapshot(5.0)
	assert.Empty(t, tr.keyDowns)
}
