// Package inputmetrics maintains sliding-window keystroke cadence
// statistics (cpm, wpm, average inter-key delay, idle time, timing
// uniformity) over bounded-memory deques.
package inputmetrics

import "math"

// Config controls the window sizes used to derive statistics. Zero values
// are replaced by the documented defaults.
type Config struct {
	CPMWindowS     float64
	WPMWindowS     float64
	EntropyWindowS float64
}

// DefaultConfig returns the default window sizes.
func DefaultConfig() Config {
	return Config{CPMWindowS: 60, WPMWindowS: 60, EntropyWindowS: 20}
}

func (c Config) keyWindow() float64 {
	return math.Max(c.WPMWindowS, c.CPMWindowS)
}

// interval is one recorded inter-key-down gap.
type interval struct {
	endT float64
	dt   float64
}

// Tracker is the sole owner of its internal deques; callers must not share
// it across goroutines. It is driven synchronously by the dispatcher.
type Tracker struct {
	cfg Config

	keyDowns     []float64 // t_mono of key-down events, within keyWindow()
	intervals    []interval
	lastDownT    float64
	haveLastDown bool
	lastEventT   float64
	haveLastEvt  bool
}

// New creates a Tracker with the given config. A zero Config uses defaults.
func New(cfg Config) *Tracker {
	if cfg.CPMWindowS == 0 {
		cfg.CPMWindowS = DefaultConfig().CPMWindowS
	}
	if cfg.WPMWindowS == 0 {
		cfg.WPMWindowS = DefaultConfig().WPMWindowS
	}
	if cfg.EntropyWindowS == 0 {
		cfg.EntropyWindowS = DefaultConfig().EntropyWindowS
	}
	return &Tracker{cfg: cfg}
}

// SetConfig replaces the window sizes. Must be called from the same
// goroutine that feeds the tracker; retained samples re-trim on the next
// observation.
func (tr *Tracker) SetConfig(cfg Config) {
	tr.cfg = New(cfg).cfg
}

// ObserveKeyDown records a key-down at t_mono and garbage-collects entries
// that have fallen out of their windows.
func (tr *Tracker) ObserveKeyDown(t float64) {
	tr.keyDowns = append(tr.keyDowns, t)
	tr.gcKeyDowns(t)

	if tr.haveLastDown {
		dt := t - tr.lastDownT
		if dt > 0 {
			tr.intervals = append(tr.intervals, interval{endT: t, dt: dt})
			tr.gcIntervals(t)
		}
	}
	tr.lastDownT = t
	tr.haveLastDown = true
	tr.observeAny(t)
}

// ObserveAny records that any event (not necessarily a key-down) occurred at
// t_mono, advancing the idle-time reference point.
func (tr *Tracker) ObserveAny(t float64) {
	tr.observeAny(t)
}

func (tr *Tracker) observeAny(t float64) {
	if !tr.haveLastEvt || t > tr.lastEventT {
		tr.lastEventT = t
		tr.haveLastEvt = true
	}
}

func (tr *Tracker) gcKeyDowns(now float64) {
	edge := now - tr.cfg.keyWindow()
	i := 0
	for i < len(tr.keyDowns) && tr.keyDowns[i] < edge {
		i++
	}
	if i > 0 {
		tr.keyDowns = tr.keyDowns[i:]
	}
}

func (tr *Tracker) gcIntervals(now float64) {
	edge := now - tr.cfg.EntropyWindowS
	i := 0
	for i < len(tr.intervals) && tr.intervals[i].endT < edge {
		i++
	}
	if i > 0 {
		tr.intervals = tr.intervals[i:]
	}
}

// Snapshot is the set of derived statistics at a point in time.
type Snapshot struct {
	CPM               float64
	WPM               float64
	AvgDelayMs        float64
	IdleS             float64
	UniformityCV      float64
	UniformityDefined bool
	IntervalSamples   int
}

// Snapshot computes the current derived statistics as of "now" (t_mono).
func (tr *Tracker) Snapshot(now float64) Snapshot {
	tr.gcKeyDowns(now)
	tr.gcIntervals(now)

	edge := now - tr.cfg.CPMWindowS
	count := 0
	for _, t := range tr.keyDowns {
		if t >= edge {
			count++
		}
	}
	cpm := float64(count) / tr.cfg.CPMWindowS * 60
	wpm := cpm / 5

	var avgDelayMs float64
	if len(tr.intervals) > 0 {
		sum := 0.0
		for _, iv := range tr.intervals {
			sum += iv.dt
		}
		avgDelayMs = (sum / float64(len(tr.intervals))) * 1000
	}

	idle := 0.0
	if tr.haveLastEvt {
		idle = now - tr.lastEventT
	}

	cv, defined := tr.uniformityCV()

	return Snapshot{
		CPM:               cpm,
		WPM:               wpm,
		AvgDelayMs:        avgDelayMs,
		IdleS:             idle,
		UniformityCV:      cv,
		UniformityDefined: defined,
		IntervalSamples:   len(tr.intervals),
	}
}

// IdleSince returns seconds since the last observed event, as of "now".
func (tr *Tracker) IdleSince(now float64) float64 {
	if !tr.haveLastEvt {
		return 0
	}
	return now - tr.lastEventT
}

func (tr *Tracker) uniformityCV() (float64, bool) {
	n := len(tr.intervals)
	if n < 2 {
		return 0, false
	}

	sum := 0.0
	for _, iv := range tr.intervals {
		sum += iv.dt
	}
	mean := sum / float64(n)
	if mean <= 0 {
		return 0, false
	}

	var sqDiff float64
	for _, iv := range tr.intervals {
		d := iv.dt - mean
		sqDiff += d * d
	}
	// Bessel-corrected sample standard deviation.
	variance := sqDiff / float64(n-1)
	stdev := math.Sqrt(variance)
	return stdev / mean, true
}
