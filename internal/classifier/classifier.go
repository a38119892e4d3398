// Package classifier turns raw key/mouse/clipboard events into normalized
// Command events (copy/cut/paste variants).
package classifier

import (
	"strings"
	"time"

	"inputguard/internal/eventlog"
)

// Config holds the classifier's tunable thresholds.
type Config struct {
	PrimaryHint        bool
	ContextWindowSec   float64
	ContextCooldownSec float64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		PrimaryHint:        false,
		ContextWindowSec:   1.0,
		ContextCooldownSec: 0.3,
	}
}

// Classifier is stateful and driven synchronously by the dispatcher; it is
// not safe for concurrent use.
type Classifier struct {
	cfg Config

	haveLastRightClick bool
	lastRightClickT    float64

	haveLastContextEmit bool
	lastContextEmitWall time.Time
}

// New creates a Classifier with the given config.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// SetConfig replaces the thresholds. Must be called from the same goroutine
// that calls Observe; correlation state carries over unchanged.
func (c *Classifier) SetConfig(cfg Config) {
	c.cfg = cfg
}

// Observe feeds one raw event and returns zero or more inferred Command
// events. now is the wall-monotonic clock used only to throttle
// paste_context emissions; event correlation itself uses e's own t_mono.
func (c *Classifier) Observe(e eventlog.Event, now time.Time) []eventlog.Command {
	switch ev := e.(type) {
	case eventlog.Key:
		return c.observeKey(ev)
	case eventlog.Mouse:
		return c.observeMouse(ev, now)
	case eventlog.Clipboard:
		return c.observeClipboard(ev, now)
	default:
		return nil
	}
}

func (c *Classifier) observeKey(k eventlog.Key) []eventlog.Command {
	if k.Action != eventlog.ActionDown {
		return nil
	}
	if !k.HasMod(eventlog.ModCtrl) && !k.HasMod(eventlog.ModCmd) {
		return nil
	}
	var kind eventlog.CommandKind
	switch strings.ToLower(k.KeyName) {
	case "c":
		kind = eventlog.CommandCopy
	case "x":
		kind = eventlog.CommandCut
	case "v":
		kind = eventlog.CommandPaste
	default:
		return nil
	}
	return []eventlog.Command{eventlog.NewCommand(k.MonoTime(), kind, eventlog.SourceHotkey, "")}
}

func (c *Classifier) observeMouse(m eventlog.Mouse, now time.Time) []eventlog.Command {
	if m.Button == nil {
		return nil
	}
	switch *m.Button {
	case eventlog.ButtonRight:
		if m.Action == eventlog.MouseDown || m.Action == eventlog.MouseUp {
			c.lastRightClickT = m.MonoTime()
			c.haveLastRightClick = true
		}
	case eventlog.ButtonMiddle:
		if m.Action == eventlog.MouseDown && c.cfg.PrimaryHint {
			return []eventlog.Command{
				eventlog.NewCommand(m.MonoTime(), eventlog.CommandPastePrimaryPossible, eventlog.SourcePrimary, ""),
			}
		}
	}
	return nil
}

func (c *Classifier) observeClipboard(cl eventlog.Clipboard, now time.Time) []eventlog.Command {
	if !c.haveLastRightClick {
		return nil
	}
	if cl.MonoTime()-c.lastRightClickT > c.cfg.ContextWindowSec {
		return nil
	}
	if c.haveLastContextEmit && now.Sub(c.lastContextEmitWall) < durationSeconds(c.cfg.ContextCooldownSec) {
		return nil
	}
	c.lastContextEmitWall = now
	c.haveLastContextEmit = true
	return []eventlog.Command{eventlog.NewCommand(cl.MonoTime(), eventlog.CommandPasteContext, eventlog.SourceContext, "")}
}

func durationSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
