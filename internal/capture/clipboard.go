// Package capture drives the platform input providers: it polls the
// clipboard and focus contracts, digests clipboard text without retaining
// it, and feeds normalized events into the pipeline. The providers
// themselves are platform code supplied by the caller.
package capture

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"sync"
	"time"
	"unicode/utf8"

	"inputguard/internal/eventlog"
)

// ClipboardProvider is the platform clipboard contract. Read is idempotent;
// ok is false when no text is available or the read transiently failed.
type ClipboardProvider interface {
	Read() (text string, ok bool)
}

// Sink receives captured events; in the daemon this is Runtime.Observe.
type Sink func(eventlog.Event)

// Poll intervals per the adaptive schedule: base interval with ±10% jitter,
// backing off ×1.5 after each unchanged poll up to the max, resetting to the
// base on any change.
const (
	clipboardBasePoll = 250 * time.Millisecond
	focusBasePoll     = 200 * time.Millisecond
	maxPoll           = time.Second
	pollBackoff       = 1.5
	stopJoinTimeout   = time.Second
)

// ClipboardWatcher polls a ClipboardProvider and emits Clipboard events.
// The clipboard text itself is dropped immediately after a keyed digest is
// taken; the digest salt is generated fresh per watcher and never persisted
// or shared across sessions.
type ClipboardWatcher struct {
	provider ClipboardProvider
	sink     Sink
	now      func() float64

	salt [16]byte

	lastDigest string
	haveLast   bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewClipboardWatcher creates a watcher feeding sink. now supplies the
// pipeline's monotonic clock in seconds.
func NewClipboardWatcher(provider ClipboardProvider, sink Sink, now func() float64) (*ClipboardWatcher, error) {
	w := &ClipboardWatcher{
		provider: provider,
		sink:     sink,
		now:      now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if _, err := rand.Read(w.salt[:]); err != nil {
		return nil, fmt.Errorf("capture: generate digest salt: %w", err)
	}
	return w, nil
}

// Start launches the poll loop.
func (w *ClipboardWatcher) Start(ctx context.Context) {
	go w.pollLoop(ctx)
}

// Stop signals the loop and waits for it with a bounded timeout. Idempotent.
func (w *ClipboardWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	select {
	case <-w.doneCh:
	case <-time.After(stopJoinTimeout):
	}
}

func (w *ClipboardWatcher) pollLoop(ctx context.Context) {
	defer close(w.doneCh)
	interval := clipboardBasePoll
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-time.After(jittered(interval)):
		}

		if w.poll() {
			interval = clipboardBasePoll
		} else {
			interval = backoff(interval)
		}
	}
}

// poll reads the clipboard once, reporting whether its content changed. A
// transient read failure counts as no change, so polling backs off.
func (w *ClipboardWatcher) poll() bool {
	text, ok := w.provider.Read()
	if !ok {
		return false
	}

	digest := w.digest(text)
	length := utf8.RuneCountInString(text)
	text = "" // plaintext is never referenced past this point

	if w.haveLast && digest == w.lastDigest {
		return false
	}
	w.lastDigest = digest
	w.haveLast = true

	w.sink(eventlog.NewClipboard(w.now(), length, eventlog.ClipboardText, digest))
	return true
}

// digest is a keyed hash of the clipboard text under the per-watcher salt,
// so two sessions seeing the same text produce unrelated digests.
func (w *ClipboardWatcher) digest(text string) string {
	mac := hmac.New(sha256.New, w.salt[:])
	mac.Write([]byte(text))
	return hex.EncodeToString(mac.Sum(nil))
}

func jittered(d time.Duration) time.Duration {
	f := 0.9 + 0.2*mrand.Float64()
	return time.Duration(float64(d) * f)
}

func backoff(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * pollBackoff)
	if next > maxPoll {
		next = maxPoll
	}
	return next
}
