package telemetry

// Metrics bundles the concrete counters and gauges the daemon exposes,
// wired once at startup and handed to every component that needs to record
// something. No component reaches for a global registry, so a Runtime can
// be built and torn down repeatedly in tests without metrics leaking across
// instances.
type Metrics struct {
	Registry *Registry

	EventsObserved     *Counter
	EventsDropped      *Counter
	AnomaliesDetected  *Counter
	SegmentsWritten    *Counter
	SegmentFlushErrors *Counter
	QueueDepth         *Gauge
	FlushDuration      *Histogram
}

// NewMetrics registers the full inputguardd metric set on a fresh registry
// under the "inputguard" namespace.
func NewMetrics() *Metrics {
	reg := NewRegistry("inputguard", "daemon")

	return &Metrics{
		Registry: reg,
		EventsObserved: reg.RegisterCounter(
			"events_observed_total",
			"Total input events observed.",
		),
		EventsDropped: reg.RegisterCounter(
			"events_dropped_total",
			"Total input events dropped by the bounded queue.",
		),
		AnomaliesDetected: reg.RegisterCounter(
			"anomalies_detected_total",
			"Total anomaly events raised.",
		),
		SegmentsWritten: reg.RegisterCounter(
			"segments_written_total",
			"Total segments successfully persisted to the store.",
		),
		SegmentFlushErrors: reg.RegisterCounter(
			"segment_flush_errors_total",
			"Total segment flush attempts that failed.",
		),
		QueueDepth: reg.RegisterGauge(
			"queue_depth",
			"Current number of events buffered in the event queue.",
		),
		FlushDuration: reg.RegisterHistogram(
			"flush_duration_seconds",
			"Segment flush latency in seconds, including encrypt, sign and store append.",
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		),
	}
}
