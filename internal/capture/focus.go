package capture

import (
	"context"
	"sync"
	"time"

	"inputguard/internal/eventlog"
)

// FocusProvider is the platform focus contract, polled at ~4 Hz.
type FocusProvider interface {
	Query() (appName string, pid *int, title string, err error)
}

// FocusWatcher polls a FocusProvider and emits Focus events on change,
// annotating each with how long the previous application held focus.
type FocusWatcher struct {
	provider FocusProvider
	sink     Sink
	now      func() float64

	lastApp     string
	lastFocusAt float64
	haveLast    bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewFocusWatcher creates a watcher feeding sink.
func NewFocusWatcher(provider FocusProvider, sink Sink, now func() float64) *FocusWatcher {
	return &FocusWatcher{
		provider: provider,
		sink:     sink,
		now:      now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the poll loop.
func (w *FocusWatcher) Start(ctx context.Context) {
	go w.pollLoop(ctx)
}

// Stop signals the loop and waits for it with a bounded timeout. Idempotent.
func (w *FocusWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	select {
	case <-w.doneCh:
	case <-time.After(stopJoinTimeout):
	}
}

func (w *FocusWatcher) pollLoop(ctx context.Context) {
	defer close(w.doneCh)
	interval := focusBasePoll
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-time.After(jittered(interval)):
		}

		if w.poll() {
			interval = focusBasePoll
		} else {
			interval = backoff(interval)
		}
	}
}

// poll queries focus once, reporting whether the focused app changed. A
// query failure counts as no change, so polling backs off.
func (w *FocusWatcher) poll() bool {
	app, pid, title, err := w.provider.Query()
	if err != nil {
		return false
	}
	if w.haveLast && app == w.lastApp {
		return false
	}

	t := w.now()
	var dwell *float64
	if w.haveLast {
		d := t - w.lastFocusAt
		dwell = &d
	}
	w.lastApp = app
	w.lastFocusAt = t
	w.haveLast = true

	w.sink(eventlog.NewFocus(t, app, pid, title, dwell))
	return true
}
