package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputguard/internal/eventlog"
)

func TestHotkeyPaste(t *testing.T) {
	c := New(DefaultConfig())
	k := eventlog.NewKey(1.0, "v", eventlog.ActionDown, []eventlog.Mod{eventlog.ModCtrl}, nil)
	cmds := c.Observe(k, time.Now())
	require.Len(t, cmds, 1)
	assert.Equal(t, eventlog.CommandPaste, cmds[0].Command)
	assert.Equal(t, eventlog.SourceHotkey, cmds[0].Source)
}

func TestHotkeyIgnoredWithoutModifier(t *testing.T) {
	c := New(DefaultConfig())
	k := eventlog.NewKey(1.0, "v", eventlog.ActionDown, nil, nil)
	assert.Empty(t, c.Observe(k, time.Now()))
}

func TestContextPasteWithinWindow(t *testing.T) {
	c := New(DefaultConfig())
	right := eventlog.ButtonRight
	mouse := eventlog.NewMouse(10.0, &right, eventlog.MouseDown, nil, nil, nil)
	assert.Empty(t, c.Observe(mouse, time.Now()))

	clip := eventlog.NewClipboard(10.2, 42, eventlog.ClipboardText, "")
	cmds := c.Observe(clip, time.Now())
	require.Len(t, cmds, 1)
	assert.Equal(t, eventlog.CommandPasteContext, cmds[0].Command)
	assert.Equal(t, eventlog.SourceContext, cmds[0].Source)
}

func TestContextPasteOutsideWindowIgnored(t *testing.T) {
	c := New(Config{ContextWindowSec: 0.5, ContextCooldownSec: 0.3})
	right := eventlog.ButtonRight
	mouse := eventlog.NewMouse(10.0, &right, eventlog.MouseDown, nil, nil, nil)
	c.Observe(mouse, time.Now())

	clip := eventlog.NewClipboard(10.8, 10, eventlog.ClipboardText, "")
	assert.Empty(t, c.Observe(clip, time.Now()))
}

func TestContextPasteCooldownThrottlesRepeats(t *testing.T) {
	c := New(Config{ContextWindowSec: 5, ContextCooldownSec: 1 * time.Second.Seconds()})
	right := eventlog.ButtonRight
	base := time.Now()

	mouse := eventlog.NewMouse(0, &right, eventlog.MouseDown, nil, nil, nil)
	c.Observe(mouse, base)

	clip1 := eventlog.NewClipboard(0.1, 5, eventlog.ClipboardText, "")
	cmds1 := c.Observe(clip1, base)
	require.Len(t, cmds1, 1)

	clip2 := eventlog.NewClipboard(0.2, 5, eventlog.ClipboardText, "")
	cmds2 := c.Observe(clip2, base.Add(200*time.Millisecond))
	assert.Empty(t, cmds2)

	clip3 := eventlog.NewClipboard(0.3, 5, eventlog.ClipboardText, "")
	cmds3 := c.Observe(clip3, base.Add(1200*time.Millisecond))
	assert.Len(t, cmds3, 1)
}

func TestPrimaryPasteRequiresHint(t *testing.T) {
	c := New(DefaultConfig())
	middle := eventlog.ButtonMiddle
	mouse := eventlog.NewMouse(1.0, &middle, eventlog.MouseDown, nil, nil, nil)
	assert.Empty(t, c.Observe(mouse, time.Now()))

	c2 := New(Config{PrimaryHint: true})
	cmds := c2.Observe(mouse, time.Now())
	require.Len(t, cmds, 1)
	assert.Equal(t, eventlog.CommandPastePrimaryPossible, cmds[0].Command)
}
