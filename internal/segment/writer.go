// Package segment implements the tamper-evident segment writer: it buffers
// events, and on flush produces an encrypted, chained, signed segment.
package segment

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inputguard/internal/aead"
	"inputguard/internal/eventlog"
	"inputguard/internal/keymanager"
)

// Config controls flush timing.
type Config struct {
	MaxEvents     int
	FlushInterval time.Duration
	// DisableAESSIV forces the fair coin flip to always land on CHACHA20P,
	// exercising the SuiteUnavailable fallback path without building a
	// second binary.
	DisableAESSIV bool
}

// DefaultConfig returns the default flush thresholds.
func DefaultConfig() Config {
	return Config{MaxEvents: 500, FlushInterval: 60 * time.Second}
}

const paddingBlock = 256
const pollInterval = 500 * time.Millisecond

// Store is the append-only persistence contract the writer needs. See
// internal/segmentstore for the concrete SQLite-backed implementation.
type Store interface {
	Append(tsUTCMs int64, header, body []byte, count int) (seq int64, err error)
}

// FlushObserver receives flush outcomes, e.g. for a metrics registry. All
// methods are called from the flushing goroutine with flushMu held.
type FlushObserver interface {
	SegmentWritten(events int, elapsed time.Duration)
	FlushFailed()
}

// Writer buffers events and flushes them into chained, encrypted, signed
// segments. Exactly one flush is in flight at a time; the ratchet state is
// advanced only after a successful persist.
type Writer struct {
	cfg     Config
	store   Store
	session keymanager.SessionKeys
	logger  *slog.Logger
	obs     FlushObserver

	bufMu sync.Mutex
	buf   []eventlog.Event

	flushMu      sync.Mutex
	currentKey   []byte
	prevTag      [16]byte
	lastChainTag [32]byte
	lastFlushAt  time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Writer for a single session, flushing into store.
func New(cfg Config, store Store, session keymanager.SessionKeys, logger *slog.Logger) *Writer {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultConfig().MaxEvents
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	currentKey := make([]byte, len(session.SessionKey))
	copy(currentKey, session.SessionKey[:])
	return &Writer{
		cfg:         cfg,
		store:       store,
		session:     session,
		logger:      logger,
		currentKey:  currentKey,
		lastFlushAt: time.Now(),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// SetObserver installs a FlushObserver. Must be called before Start.
func (w *Writer) SetObserver(obs FlushObserver) {
	w.obs = obs
}

// Enqueue buffers an event for the next flush.
func (w *Writer) Enqueue(e eventlog.Event) {
	w.bufMu.Lock()
	w.buf = append(w.buf, e)
	w.bufMu.Unlock()
}

// Start launches the 2Hz flush poller. It returns once the poller goroutine
// has been started; call Stop to terminate it.
func (w *Writer) Start(ctx context.Context) {
	go w.pollLoop(ctx)
}

func (w *Writer) pollLoop(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.maybeFlush(false); err != nil {
				w.logger.Error("segment flush failed", "error", err)
			}
		}
	}
}

// Stop signals the poller to exit, performs a final forced flush, and
// blocks until both complete. Idempotent. Only valid after Start.
func (w *Writer) Stop() error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
	return w.maybeFlush(true)
}

// Flush forces an immediate flush of any buffered events, independent of
// the poller. Safe to call whether or not Start has been invoked.
func (w *Writer) Flush() error {
	return w.maybeFlush(true)
}

// maybeFlush swaps the buffer out under the buffer lock (fast), then flushes
// the swapped-out batch outside that lock. Only one flush runs at a time,
// enforced by flushMu.
func (w *Writer) maybeFlush(force bool) error {
	w.bufMu.Lock()
	elapsed := time.Since(w.lastFlushAt) >= w.cfg.FlushInterval
	shouldFlush := force || elapsed || len(w.buf) >= w.cfg.MaxEvents
	if !shouldFlush || len(w.buf) == 0 {
		w.bufMu.Unlock()
		return nil
	}
	batch := w.buf
	w.buf = nil
	w.lastFlushAt = time.Now()
	w.bufMu.Unlock()

	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	start := time.Now()
	err := w.flushBatch(batch)
	if w.obs != nil {
		if err != nil {
			w.obs.FlushFailed()
		} else {
			w.obs.SegmentWritten(len(batch), time.Since(start))
		}
	}
	return err
}

// flushBatch runs the nine-step flush procedure. On any failure before
// persist, the writer's ratchet state is left untouched.
func (w *Writer) flushBatch(batch []eventlog.Event) error {
	plaintext, err := eventlog.EncodeBatch(batch)
	if err != nil {
		return fmt.Errorf("segment: encode batch: %w", err)
	}
	padded, paddedLen := padTo256(plaintext)

	suite, err := w.pickSuite()
	if err != nil {
		return fmt.Errorf("segment: pick suite: %w", err)
	}

	hkdfInfo := "segment-key:" + suite.ID()
	segKey, err := keymanager.RatchetSegmentKey(w.currentKey, w.prevTag[:], suite.ID(), suite.KeyLen())
	if err != nil {
		return fmt.Errorf("segment: derive segment key: %w", err)
	}

	signPub := w.session.SigningKey.Public().(ed25519.PublicKey)
	header := Header{
		Ver:       HeaderVersion,
		Suite:     suite.ID(),
		Session:   w.session.SessionID,
		PaddedLen: paddedLen,
		HKDFInfo:  hkdfInfo,
		PrevTag:   hex.EncodeToString(w.prevTag[:]),
		SignPub:   hex.EncodeToString(signPub),
	}

	stem, err := header.StemBytes()
	if err != nil {
		return fmt.Errorf("segment: build AAD stem: %w", err)
	}

	ciphertext, params, err := suite.Encrypt(segKey, padded, stem)
	if err != nil {
		return fmt.Errorf("segment: encrypt: %w", err)
	}
	if nonce, ok := params["nonce"]; ok {
		header.Nonce = nonce
	}

	tag := chainTag(w.session.ChainHMACKey[:], stem, ciphertext, w.lastChainTag[:])
	header.ChainTag = hex.EncodeToString(tag)

	if err := header.Sign(w.session.SigningKey); err != nil {
		return fmt.Errorf("segment: sign header: %w", err)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("segment: marshal header: %w", err)
	}

	if _, err := w.store.Append(time.Now().UnixMilli(), headerJSON, ciphertext, len(batch)); err != nil {
		return fmt.Errorf("segment: persist: %w", err)
	}

	w.currentKey = segKey
	copy(w.prevTag[:], tag[:16])
	copy(w.lastChainTag[:], tag)
	return nil
}

func padTo256(b []byte) ([]byte, int) {
	total := ((len(b) + paddingBlock - 1) / paddingBlock) * paddingBlock
	if total == 0 {
		total = paddingBlock
	}
	out := make([]byte, total)
	copy(out, b)
	return out, total
}

func (w *Writer) pickSuite() (aead.Suite, error) {
	coin := make([]byte, 1)
	if _, err := rand.Read(coin); err != nil {
		return nil, err
	}
	if w.cfg.DisableAESSIV || coin[0]&1 == 0 {
		return aead.ChaCha20Suite{}, nil
	}
	s, ok := aead.ByID(aead.IDAESSIV)
	if !ok {
		return aead.ChaCha20Suite{}, nil
	}
	return s, nil
}

func chainTag(chainKey, stem, ciphertext, prevChainTag []byte) []byte {
	mac := hmac.New(sha256.New, chainKey)
	mac.Write(stem)
	mac.Write(ciphertext)
	mac.Write(prevChainTag)
	return mac.Sum(nil)
}
