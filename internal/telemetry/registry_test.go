package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := NewRegistry("test", "")

	c1 := reg.RegisterCounter("hits_total", "hits")
	c2 := reg.RegisterCounter("hits_total", "hits")
	if c1 != c2 {
		t.Error("re-registering the same counter should return the existing one")
	}

	c1.Inc()
	if c2.Value() != 1 {
		t.Errorf("counter value = %d, want 1", c2.Value())
	}
}

func TestGaugeArithmetic(t *testing.T) {
	reg := NewRegistry("", "")
	g := reg.RegisterGauge("depth", "queue depth")

	g.Set(10)
	g.Inc()
	g.Dec()
	g.Add(5)
	if g.Value() != 15 {
		t.Errorf("gauge value = %d, want 15", g.Value())
	}
}

func TestHistogramBucketsCumulative(t *testing.T) {
	reg := NewRegistry("", "")
	h := reg.RegisterHistogram("latency_seconds", "latency", []float64{0.1, 1, 10})

	// Binary-exact values, so the sum comparison is safe.
	h.Observe(0.0625)
	h.Observe(0.5)
	h.Observe(5)
	h.Observe(50)

	if h.Count() != 4 {
		t.Errorf("count = %d, want 4", h.Count())
	}
	if h.Sum() != 55.5625 {
		t.Errorf("sum = %g, want 55.5625", h.Sum())
	}

	var buf bytes.Buffer
	if err := reg.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="1"} 2`,
		`latency_seconds_bucket{le="10"} 3`,
		`latency_seconds_bucket{le="+Inf"} 4`,
		"latency_seconds_count 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prometheus output missing %q:\n%s", want, out)
		}
	}
}

func TestPrometheusOutputSortedAndPrefixed(t *testing.T) {
	reg := NewRegistry("app", "daemon")
	reg.RegisterCounter("zebra_total", "z").Inc()
	reg.RegisterCounter("alpha_total", "a").Inc()

	var buf bytes.Buffer
	if err := reg.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus failed: %v", err)
	}
	out := buf.String()

	alpha := strings.Index(out, "app_daemon_alpha_total")
	zebra := strings.Index(out, "app_daemon_zebra_total")
	if alpha < 0 || zebra < 0 {
		t.Fatalf("expected prefixed metric names in output:\n%s", out)
	}
	if alpha > zebra {
		t.Error("metric names should be sorted")
	}
}

func TestHTTPHandlerContentNegotiation(t *testing.T) {
	reg := NewRegistry("", "")
	reg.RegisterCounter("hits_total", "hits").Add(3)
	handler := reg.HTTPHandler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("default Content-Type = %q, want text/plain", ct)
	}
	if !strings.Contains(rec.Body.String(), "hits_total 3") {
		t.Errorf("prometheus body missing counter:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Accept", "application/json")
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON body did not parse: %v", err)
	}
	if decoded["hits_total"] != float64(3) {
		t.Errorf("hits_total = %v, want 3", decoded["hits_total"])
	}
}
