package eventlog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyModsDeduped(t *testing.T) {
	k := NewKey(1.0, "v", ActionDown, []Mod{ModCtrl, ModCtrl, ModShift}, nil)
	assert.Equal(t, []Mod{ModCtrl, ModShift}, k.Mods)
}

func TestKeySerializationDeterministic(t *testing.T) {
	k := NewKey(1.5, "a", ActionDown, []Mod{ModShift, ModCtrl}, nil)
	b1, err := k.MarshalJSON()
	require.NoError(t, err)
	b2, err := k.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b1, &m))
	assert.Equal(t, "KEY", m["etype"])
	assert.Equal(t, 1.5, m["t_mono"])
}

func TestClipboardNeverCarriesText(t *testing.T) {
	c := NewClipboard(2.0, 42, ClipboardText, "deadbeef")
	b, err := c.MarshalJSON()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	_, hasText := m["text"]
	assert.False(t, hasText)
	assert.Equal(t, float64(42), m["length"])
}

func TestAnomalyIsOwnVariant(t *testing.T) {
	a := NewAnomaly(3.0, SeverityHigh, "idle_to_burst", "burst after idle", map[string]float64{"idle_s": 6.5})
	assert.Equal(t, TypeAnomaly, a.Type())
	b, err := a.MarshalJSON()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "ANOMALY", m["etype"])
}

func TestEncodeDecodeBatchRoundTrip(t *testing.T) {
	events := []Event{
		NewKey(1.0, "a", ActionDown, nil, nil),
		NewCommand(1.1, CommandPaste, SourceHotkey, ""),
	}
	batch, err := EncodeBatch(events)
	require.NoError(t, err)

	padded := append(append([]byte{}, batch...), make([]byte, 32)...)
	records, err := DecodeBatch(padded)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "KEY", records[0]["etype"])
	assert.Equal(t, "COMMAND", records[1]["etype"])
}
