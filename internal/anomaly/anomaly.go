// Package anomaly implements the four independent anomaly rules evaluated
// over the live event stream.
package anomaly

import (
	"inputguard/internal/eventlog"
	"inputguard/internal/inputmetrics"
)

// Rule ids, as they appear in the rule_id wire field.
const (
	RuleIdleToBurst      = "idle_to_burst"
	RuleTextInjection    = "text_injection"
	RuleMultiPasteStreak = "multi_paste_streak"
	RuleTimingUniformity = "timing_uniformity"
)

// Config holds the per-rule thresholds, each overridable from defaults.
type Config struct {
	IdleThresholdS      float64
	BurstMinLen         int
	TextInsertionMin    int
	KeysWindowS         float64
	KeysSmallMax        int
	PasteStreakN        int
	PasteWindowS        float64
	UniformCVThreshold  float64
	MinInterkeySamples  int
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		IdleThresholdS:     6,
		BurstMinLen:        60,
		TextInsertionMin:   40,
		KeysWindowS:        5,
		KeysSmallMax:       5,
		PasteStreakN:       3,
		PasteWindowS:       15,
		UniformCVThreshold: 0.12,
		MinInterkeySamples: 12,
	}
}

// Engine evaluates all four rules against a stream of events. It borrows a
// *inputmetrics.Tracker owned by the caller (the dispatcher) for uniformity
// statistics, and owns its own small bounded-memory windows for the other
// three rules. Not safe for concurrent use; driven synchronously.
type Engine struct {
	cfg     Config
	metrics *inputmetrics.Tracker

	recentKeyDowns  []float64
	haveLastNonIdle bool
	lastNonIdleT    float64

	pasteTimes []float64
}

// New creates an Engine with the given config, borrowing metrics for
// uniformity statistics.
func New(cfg Config, metrics *inputmetrics.Tracker) *Engine {
	return &Engine{cfg: cfg, metrics: metrics}
}

// SetConfig replaces the rule thresholds. Must be called from the same
// goroutine that calls Observe; the windows re-trim to the new sizes on the
// next event.
func (e *Engine) SetConfig(cfg Config) {
	e.cfg = cfg
}

// Observe feeds one event and returns zero or more Anomaly events. Each rule
// fires independently; there is no deduplication across rules or calls.
func (e *Engine) Observe(ev eventlog.Event, now float64) []eventlog.Anomaly {
	var out []eventlog.Anomaly

	switch v := ev.(type) {
	case eventlog.Key:
		if v.Action == eventlog.ActionDown {
			e.recentKeyDowns = append(e.recentKeyDowns, now)
			e.pruneKeyDowns(now)
			e.haveLastNonIdle = true
			e.lastNonIdleT = now
			if a, ok := e.evalTimingUniformity(now); ok {
				out = append(out, a)
			}
		}
	case eventlog.Clipboard:
		if a, ok := e.evalIdleToBurst(v, now); ok {
			out = append(out, a)
		}
		if a, ok := e.evalTextInjection(v, now); ok {
			out = append(out, a)
		}
	case eventlog.Command:
		if v.Command == eventlog.CommandPaste || v.Command == eventlog.CommandPasteContext {
			e.pasteTimes = append(e.pasteTimes, now)
			e.prunePasteTimes(now)
			if a, ok := e.evalMultiPasteStreak(now); ok {
				out = append(out, a)
			}
		}
	}
	return out
}

func (e *Engine) pruneKeyDowns(now float64) {
	edge := now - e.cfg.KeysWindowS
	i := 0
	for i < len(e.recentKeyDowns) && e.recentKeyDowns[i] < edge {
		i++
	}
	if i > 0 {
		e.recentKeyDowns = e.recentKeyDowns[i:]
	}
}

func (e *Engine) prunePasteTimes(now float64) {
	edge := now - e.cfg.PasteWindowS
	i := 0
	for i < len(e.pasteTimes) && e.pasteTimes[i] < edge {
		i++
	}
	if i > 0 {
		e.pasteTimes = e.pasteTimes[i:]
	}
}

func (e *Engine) evalIdleToBurst(cl eventlog.Clipboard, now float64) (eventlog.Anomaly, bool) {
	if !e.haveLastNonIdle {
		return eventlog.Anomaly{}, false
	}
	idle := now - e.lastNonIdleT
	if idle >= e.cfg.IdleThresholdS && cl.Length >= e.cfg.BurstMinLen {
		features := map[string]float64{"idle_s": idle, "clip_len": float64(cl.Length)}
		return eventlog.NewAnomaly(now, eventlog.SeverityHigh, RuleIdleToBurst,
			"clipboard insertion followed a quiet period", features), true
	}
	return eventlog.Anomaly{}, false
}

func (e *Engine) evalTextInjection(cl eventlog.Clipboard, now float64) (eventlog.Anomaly, bool) {
	e.pruneKeyDowns(now)
	keysRecent := len(e.recentKeyDowns)
	if cl.Length >= e.cfg.TextInsertionMin && keysRecent <= e.cfg.KeysSmallMax {
		features := map[string]float64{"keys_recent": float64(keysRecent), "clip_len": float64(cl.Length)}
		return eventlog.NewAnomaly(now, eventlog.SeverityHigh, RuleTextInjection,
			"large clipboard insertion with little recent typing", features), true
	}
	return eventlog.Anomaly{}, false
}

func (e *Engine) evalMultiPasteStreak(now float64) (eventlog.Anomaly, bool) {
	count := len(e.pasteTimes)
	if count >= e.cfg.PasteStreakN {
		features := map[string]float64{"count": float64(count)}
		return eventlog.NewAnomaly(now, eventlog.SeverityMedium, RuleMultiPasteStreak,
			"repeated paste commands in a short window", features), true
	}
	return eventlog.Anomaly{}, false
}

func (e *Engine) evalTimingUniformity(now float64) (eventlog.Anomaly, bool) {
	if e.metrics == nil {
		return eventlog.Anomaly{}, false
	}
	snap := e.metrics.Snapshot(now)
	if !snap.UniformityDefined || snap.IntervalSamples < e.cfg.MinInterkeySamples {
		return eventlog.Anomaly{}, false
	}
	if snap.UniformityCV <= e.cfg.UniformCVThreshold {
		features := map[string]float64{
			"uniformity_cv": snap.UniformityCV,
			"samples":       float64(snap.IntervalSamples),
		}
		return eventlog.NewAnomaly(now, eventlog.SeverityMedium, RuleTimingUniformity,
			"inter-keystroke timing is unusually regular", features), true
	}
	return eventlog.Anomaly{}, false
}
