// Package eventlog defines the closed tagged-variant event model shared by
// the dispatcher, the anomaly engine, and the segment writer.
package eventlog

import (
	"encoding/json"
	"sort"
)

// Type identifies which variant an Event carries on the wire.
type Type string

const (
	TypeKey       Type = "KEY"
	TypeMouse     Type = "MOUSE"
	TypeClipboard Type = "CLIPBOARD"
	TypeCommand   Type = "COMMAND"
	TypeFocus     Type = "FOCUS"
	TypeAnomaly   Type = "ANOMALY"
)

// KeyAction is the direction of a key transition.
type KeyAction string

const (
	ActionDown KeyAction = "down"
	ActionUp   KeyAction = "up"
)

// Mod is a single active modifier key.
type Mod string

const (
	ModCtrl  Mod = "ctrl"
	ModShift Mod = "shift"
	ModAlt   Mod = "alt"
	ModCmd   Mod = "cmd"
)

// Button identifies a mouse button.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// MouseAction is what happened to a mouse button or wheel.
type MouseAction string

const (
	MouseDown   MouseAction = "down"
	MouseUp     MouseAction = "up"
	MouseScroll MouseAction = "scroll"
)

// ClipboardKind classifies the clipboard payload without retaining it.
type ClipboardKind string

const (
	ClipboardText    ClipboardKind = "text"
	ClipboardUnknown ClipboardKind = "unknown"
)

// CommandKind is a normalized copy/cut/paste variant inferred by the classifier.
type CommandKind string

const (
	CommandCopy                 CommandKind = "copy"
	CommandCut                  CommandKind = "cut"
	CommandPaste                CommandKind = "paste"
	CommandPasteContext         CommandKind = "paste_context"
	CommandPastePrimaryPossible CommandKind = "paste_primary_possible"
)

// CommandSource is how a Command event was inferred.
type CommandSource string

const (
	SourceHotkey  CommandSource = "hotkey"
	SourceContext CommandSource = "context"
	SourcePrimary CommandSource = "primary"
)

// Severity is an anomaly's urgency level.
type Severity string

const (
	SeverityInfo   Severity = "info"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Event is implemented by every variant. It is immutable once constructed.
type Event interface {
	Type() Type
	MonoTime() float64
	json.Marshaler
}

// common holds the fields shared by every variant. Embedded first in each
// variant struct so it serializes ahead of variant-specific fields.
type common struct {
	Etype Type    `json:"etype"`
	TMono float64 `json:"t_mono"`
	TUTC  string  `json:"t_utc,omitempty"`
	App   string  `json:"app,omitempty"`
}

func (c common) Type() Type        { return c.Etype }
func (c common) MonoTime() float64 { return c.TMono }

// Key is a single key-down or key-up transition.
type Key struct {
	common
	KeyName  string   `json:"key"`
	Action   KeyAction `json:"action"`
	Mods     []Mod    `json:"mods"`
	ScanCode *int     `json:"scan_code,omitempty"`
}

// NewKey constructs a Key event, deduplicating and order-normalizing mods.
func NewKey(tMono float64, key string, action KeyAction, mods []Mod, scanCode *int) Key {
	return Key{
		common:   common{Etype: TypeKey, TMono: tMono},
		KeyName:  key,
		Action:   action,
		Mods:     normalizeMods(mods),
		ScanCode: scanCode,
	}
}

func (k Key) MarshalJSON() ([]byte, error) {
	type alias Key
	return json.Marshal(alias(k))
}

// HasMod reports whether m is present in the event's modifier set.
func (k Key) HasMod(m Mod) bool {
	for _, x := range k.Mods {
		if x == m {
			return true
		}
	}
	return false
}

func normalizeMods(mods []Mod) []Mod {
	seen := make(map[Mod]bool, len(mods))
	out := make([]Mod, 0, len(mods))
	for _, m := range mods {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Mouse is a button transition or scroll.
type Mouse struct {
	common
	Button *Button     `json:"button,omitempty"`
	Action MouseAction `json:"action"`
	X      *float64    `json:"x,omitempty"`
	Y      *float64    `json:"y,omitempty"`
	Clicks *int        `json:"clicks,omitempty"`
}

// NewMouse constructs a Mouse event.
func NewMouse(tMono float64, button *Button, action MouseAction, x, y *float64, clicks *int) Mouse {
	return Mouse{
		common: common{Etype: TypeMouse, TMono: tMono},
		Button: button,
		Action: action,
		X:      x,
		Y:      y,
		Clicks: clicks,
	}
}

func (m Mouse) MarshalJSON() ([]byte, error) {
	type alias Mouse
	return json.Marshal(alias(m))
}

// Clipboard is a clipboard-content-changed observation. It never carries the
// raw clipboard text — only a length, a coarse kind, and a keyed digest.
type Clipboard struct {
	common
	Action        string        `json:"action"`
	Length        int           `json:"length"`
	Kind          ClipboardKind `json:"kind"`
	SessionDigest string        `json:"session_digest,omitempty"`
}

// NewClipboard constructs a Clipboard event. Callers must never pass raw
// clipboard text here — length and digest are computed by the caller and
// the plaintext discarded before this constructor runs.
func NewClipboard(tMono float64, length int, kind ClipboardKind, sessionDigest string) Clipboard {
	return Clipboard{
		common:        common{Etype: TypeClipboard, TMono: tMono},
		Action:        "change",
		Length:        length,
		Kind:          kind,
		SessionDigest: sessionDigest,
	}
}

func (c Clipboard) MarshalJSON() ([]byte, error) {
	type alias Clipboard
	return json.Marshal(alias(c))
}

// Command is a classifier-inferred copy/cut/paste signal.
type Command struct {
	common
	Command CommandKind   `json:"command"`
	Source  CommandSource `json:"source"`
	Note    string        `json:"note,omitempty"`
}

// NewCommand constructs a Command event.
func NewCommand(tMono float64, kind CommandKind, source CommandSource, note string) Command {
	return Command{
		common:  common{Etype: TypeCommand, TMono: tMono},
		Command: kind,
		Source:  source,
		Note:    note,
	}
}

func (c Command) MarshalJSON() ([]byte, error) {
	type alias Command
	return json.Marshal(alias(c))
}

// Focus is an application-focus change.
type Focus struct {
	common
	AppName     string   `json:"app_name"`
	PID         *int     `json:"pid,omitempty"`
	Title       string   `json:"title,omitempty"`
	DwellPrevS  *float64 `json:"dwell_prev_s,omitempty"`
}

// NewFocus constructs a Focus event.
func NewFocus(tMono float64, appName string, pid *int, title string, dwellPrevS *float64) Focus {
	return Focus{
		common:     common{Etype: TypeFocus, TMono: tMono},
		AppName:    appName,
		PID:        pid,
		Title:      title,
		DwellPrevS: dwellPrevS,
	}
}

func (f Focus) MarshalJSON() ([]byte, error) {
	type alias Focus
	return json.Marshal(alias(f))
}

// Anomaly is the anomaly engine's own variant — never routed through Command.
type Anomaly struct {
	common
	Severity  Severity          `json:"severity"`
	RuleID    string            `json:"rule_id"`
	Rationale string            `json:"rationale"`
	Features  map[string]float64 `json:"features,omitempty"`
}

// NewAnomaly constructs an Anomaly event.
func NewAnomaly(tMono float64, severity Severity, ruleID, rationale string, features map[string]float64) Anomaly {
	return Anomaly{
		common:    common{Etype: TypeAnomaly, TMono: tMono},
		Severity:  severity,
		RuleID:    ruleID,
		Rationale: rationale,
		Features:  features,
	}
}

func (a Anomaly) MarshalJSON() ([]byte, error) {
	type alias Anomaly
	return json.Marshal(alias(a))
}

// WithApp returns a copy of e with its App label set, or e unchanged if the
// variant is not recognized. Used by the dispatcher to annotate events with
// the currently focused application without mutating the original.
func WithApp(e Event, app string) Event {
	switch v := e.(type) {
	case Key:
		v.App = app
		return v
	case Mouse:
		v.App = app
		return v
	case Clipboard:
		v.App = app
		return v
	case Command:
		v.App = app
		return v
	case Focus:
		v.App = app
		return v
	case Anomaly:
		v.App = app
		return v
	default:
		return e
	}
}

var (
	_ Event = Key{}
	_ Event = Mouse{}
	_ Event = Clipboard{}
	_ Event = Command{}
	_ Event = Focus{}
	_ Event = Anomaly{}
)
