// Package runtime is the composition root: it wires the queue, metrics
// tracker, classifier, anomaly engine, key manager and segment writer into
// a single capture pipeline with an explicit construct/Start/Stop
// lifecycle. There is no ambient global state — every dependency is built
// here and handed down.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"inputguard/internal/anomaly"
	"inputguard/internal/capture"
	"inputguard/internal/classifier"
	"inputguard/internal/config"
	"inputguard/internal/eventlog"
	"inputguard/internal/eventqueue"
	"inputguard/internal/inputmetrics"
	"inputguard/internal/keymanager"
	"inputguard/internal/keymanager/tpmstore"
	"inputguard/internal/logging"
	"inputguard/internal/policy"
	"inputguard/internal/segment"
	"inputguard/internal/segmentstore"
	"inputguard/internal/telemetry"
)

// Runtime owns every long-lived component of the capture pipeline.
type Runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	audit  *logging.AuditLogger

	metrics *telemetry.Metrics

	queue      *eventqueue.Queue
	tracker    *inputmetrics.Tracker
	classifier *classifier.Classifier
	anomalyEng *anomaly.Engine
	policy     *policy.Policy

	startedAt    time.Time
	clipWatcher  *capture.ClipboardWatcher
	focusWatcher *capture.FocusWatcher

	focusMu  sync.RWMutex
	focusApp string

	keyManager *keymanager.KeyManager
	session    keymanager.SessionKeys

	store  *segmentstore.Store
	writer *segment.Writer

	metricsSrv *http.Server

	pendingCfg  atomic.Pointer[config.Config]
	lastDropped uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// flushObserver adapts the telemetry registry and audit log to the segment
// writer's FlushObserver contract.
type flushObserver struct {
	m     *telemetry.Metrics
	audit *logging.AuditLogger
}

func (f flushObserver) SegmentWritten(events int, elapsed time.Duration) {
	f.m.SegmentsWritten.Inc()
	f.m.FlushDuration.Observe(elapsed.Seconds())
	f.audit.LogFlush(context.Background(), events, nil)
}

func (f flushObserver) FlushFailed() {
	f.m.SegmentFlushErrors.Inc()
}

// New builds a Runtime from cfg, opening the segment store and key manager
// eagerly so construction fails fast on a bad config or locked store.
func New(cfg *config.Config, logger *logging.Logger, audit *logging.AuditLogger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	secretStore, err := newSecretStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("runtime: open secret store: %w", err)
	}

	km, err := keymanager.Load(secretStore)
	if err != nil {
		return nil, fmt.Errorf("runtime: load key manager: %w", err)
	}

	session, err := km.NewSession()
	if err != nil {
		return nil, fmt.Errorf("runtime: derive session keys: %w", err)
	}

	store, err := segmentstore.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("runtime: open segment store: %w", err)
	}

	pol, err := cfg.PolicyValue()
	if err != nil {
		return nil, fmt.Errorf("runtime: compile policy: %w", err)
	}

	metrics := telemetry.NewMetrics()
	tracker := inputmetrics.New(cfg.MetricsConfigValue())
	anomalyEng := anomaly.New(cfg.AnomalyConfigValue(), tracker)
	clsf := classifier.New(cfg.ClassifierConfigValue())

	writer := segment.New(cfg.SegmentConfigValue(), store, session, logger.Logger)
	writer.SetObserver(flushObserver{m: metrics, audit: audit})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Registry.HTTPHandler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		audit:      audit,
		startedAt:  time.Now(),
		metrics:    metrics,
		queue:      eventqueue.New(cfg.QueueCapacity),
		tracker:    tracker,
		classifier: clsf,
		anomalyEng: anomalyEng,
		policy:     pol,
		keyManager: km,
		session:    session,
		store:      store,
		writer:     writer,
		metricsSrv: metricsSrv,
	}, nil
}

func newSecretStore(cfg *config.Config) (keymanager.SecretStore, error) {
	switch cfg.SecretsBackend {
	case "tpm":
		return tpmstore.New(cfg.SecretsDir)
	default:
		return keymanager.NewFileSecretStore(cfg.SecretsDir)
	}
}

// Observe enqueues a captured event for asynchronous processing. Never
// blocks: the underlying queue drops the oldest buffered event when full.
func (r *Runtime) Observe(e eventlog.Event) {
	r.metrics.EventsObserved.Inc()
	r.queue.Offer(e)
}

// Now returns seconds elapsed on the runtime's monotonic clock — the t_mono
// domain every event in this process uses. Go's time.Since reads the
// monotonic reading embedded in startedAt, so wall-clock jumps don't move it.
func (r *Runtime) Now() float64 {
	return time.Since(r.startedAt).Seconds()
}

// AttachClipboardProvider arranges for the platform clipboard provider to
// be polled once Start is called, with change events digested and fed into
// the pipeline. Must be called before Start.
func (r *Runtime) AttachClipboardProvider(p capture.ClipboardProvider) error {
	w, err := capture.NewClipboardWatcher(p, r.Observe, r.Now)
	if err != nil {
		return err
	}
	r.clipWatcher = w
	return nil
}

// AttachFocusProvider arranges for the platform focus provider to be polled
// once Start is called. Must be called before Start.
func (r *Runtime) AttachFocusProvider(p capture.FocusProvider) {
	r.focusWatcher = capture.NewFocusWatcher(p, r.Observe, r.Now)
}

// SetFocusedApp records the currently focused application, as reported by
// the platform focus provider on its own thread. The dispatcher reads it to
// annotate every event it processes.
func (r *Runtime) SetFocusedApp(app string) {
	r.focusMu.Lock()
	r.focusApp = app
	r.focusMu.Unlock()
}

func (r *Runtime) focusedApp() string {
	r.focusMu.RLock()
	defer r.focusMu.RUnlock()
	return r.focusApp
}

// Start launches the writer's flush loop and the dispatcher goroutine that
// drains the queue. Returns once both are running; actual work happens in
// background goroutines until ctx is cancelled or Stop is called.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.writer.Start(ctx)

	if r.clipWatcher != nil {
		r.clipWatcher.Start(ctx)
	}
	if r.focusWatcher != nil {
		r.focusWatcher.Start(ctx)
	}

	r.wg.Add(1)
	go r.dispatchLoop(ctx)

	if r.metricsSrv != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	r.audit.SetSessionID(r.session.SessionID)
	r.audit.LogSessionStart(ctx, r.session.SessionID, nil)

	return nil
}

// ApplyConfig hands reloaded thresholds to the dispatcher, which applies
// them between events. Only the live-tunable fields (metrics windows,
// classifier and anomaly thresholds) take effect; everything else needs a
// restart.
func (r *Runtime) ApplyConfig(cfg *config.Config) {
	r.pendingCfg.Store(cfg)
}

func (r *Runtime) dispatchLoop(ctx context.Context) {
	defer r.wg.Done()
	for {
		if cfg := r.pendingCfg.Swap(nil); cfg != nil {
			r.tracker.SetConfig(cfg.MetricsConfigValue())
			r.classifier.SetConfig(cfg.ClassifierConfigValue())
			r.anomalyEng.SetConfig(cfg.AnomalyConfigValue())
			r.audit.LogConfigChange(ctx, "thresholds", "", "reloaded")
		}

		r.metrics.QueueDepth.Set(int64(r.queue.Len()))
		if dropped := r.queue.Dropped(); dropped > r.lastDropped {
			r.metrics.EventsDropped.Add(dropped - r.lastDropped)
			r.lastDropped = dropped
		}

		ev, ok := r.queue.Poll(ctx)
		if !ok {
			return
		}

		r.processEvent(ctx, ev)
	}
}

// processEvent runs one event through annotation, metrics, anomaly rules,
// the classifier, and the writer. A panic in any of them is logged and the
// event abandoned; the dispatcher itself stays alive.
func (r *Runtime) processEvent(ctx context.Context, ev eventlog.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event processing panicked", "panic", rec, "etype", string(ev.Type()))
		}
	}()

	now := ev.MonoTime()
	wallNow := time.Now()

	if f, isFocus := ev.(eventlog.Focus); isFocus {
		r.SetFocusedApp(f.AppName)
		d := r.policy.Decide(f.AppName)
		r.logger.Debug("focus change", "app", f.AppName, "allowed", d.Allowed, "reason", d.Reason)
		if !d.Allowed {
			r.audit.Log(ctx, logging.AuditEvent{
				EventType: logging.AuditEventPermission,
				Action:    "focus_app_denied",
				Resource:  f.AppName,
				Result:    "denied",
			})
		}
	}

	app := r.focusedApp()
	ev = eventlog.WithApp(ev, app)

	r.tracker.ObserveAny(now)
	if k, isKey := ev.(eventlog.Key); isKey && k.Action == eventlog.ActionDown {
		r.tracker.ObserveKeyDown(now)
	}

	r.writer.Enqueue(ev)

	for _, anomalyEv := range r.anomalyEng.Observe(ev, now) {
		r.metrics.AnomaliesDetected.Inc()
		r.writer.Enqueue(eventlog.WithApp(anomalyEv, app))
	}

	for _, cmd := range r.classifier.Observe(ev, wallNow) {
		cmdEv := eventlog.WithApp(cmd, app)
		r.writer.Enqueue(cmdEv)
		for _, anomalyEv := range r.anomalyEng.Observe(cmd, now) {
			r.metrics.AnomaliesDetected.Inc()
			r.writer.Enqueue(eventlog.WithApp(anomalyEv, app))
		}
	}
}

// Stop drains in-flight work, forces a final segment flush, and releases
// the store and any metrics listener. Safe to call once after Start.
func (r *Runtime) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}

	if r.clipWatcher != nil {
		r.clipWatcher.Stop()
	}
	if r.focusWatcher != nil {
		r.focusWatcher.Stop()
	}

	var firstErr error
	if err := r.writer.Stop(); err != nil {
		firstErr = fmt.Errorf("stop writer: %w", err)
	}

	if r.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.metricsSrv.Shutdown(shutdownCtx)
	}

	r.wg.Wait()

	ctx := context.Background()
	r.audit.LogSessionEnd(ctx, nil)

	if err := r.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}

	return firstErr
}

// Metrics exposes the runtime's metric registry, e.g. for tests.
func (r *Runtime) Metrics() *telemetry.Metrics { return r.metrics }

// QueueDropped reports how many events the bounded queue has discarded.
func (r *Runtime) QueueDropped() uint64 { return r.queue.Dropped() }
