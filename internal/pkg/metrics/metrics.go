// Package metrics counts what a pipeline run built, dropped and substituted.
package metrics

import (
	"bytes"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// SnapshotPath is where a run stores its metrics next to the dataset.
const SnapshotPath = "resources/metrics.prom"

type Metrics struct {
	registry     *prometheus.Registry
	components   *prometheus.GaugeVec
	dropped      *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	profiles     *prometheus.GaugeVec
	stages       *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

// New registers the run metrics on a registry of their own.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		components: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fuchur_components",
			Help: "Components written per element resource.",
		}, []string{"resource"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuchur_rows_dropped_total",
			Help: "Components filtered for a non-positive capacity or potential.",
		}, []string{"resource"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuchur_fallbacks_applied_total",
			Help: "Missing-data substitutions applied by rule.",
		}, []string{"rule"}),
		profiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fuchur_profiles",
			Help: "Profile columns written per sequence resource.",
		}, []string{"resource"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fuchur_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuchur_http_requests_total",
			Help: "Dataset browser requests by route and status.",
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(m.components, m.dropped, m.fallbacks, m.profiles, m.stages, m.httpRequests)
	return m
}

func (m *Metrics) Components(resource string, n int) {
	if m == nil {
		return
	}
	m.components.WithLabelValues(resource).Set(float64(n))
}

func (m *Metrics) Dropped(resource string, n int) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(resource).Add(float64(n))
}

func (m *Metrics) Fallback(rule string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(rule).Inc()
}

func (m *Metrics) Profiles(resource string, n int) {
	if m == nil {
		return
	}
	m.profiles.WithLabelValues(resource).Set(float64(n))
}

// Stage times one pipeline stage. Call the returned func when it ends.
func (m *Metrics) Stage(stage string) func() {
	start := time.Now()
	return func() {
		if m == nil {
			return
		}
		m.stages.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts the requests served by next.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		}
	})
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteSnapshot encodes every metric family in the text exposition format,
// sorted by name.
func (m *Metrics) WriteSnapshot(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns WriteSnapshot as bytes.
func (m *Metrics) Snapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.WriteSnapshot(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sample is one labelled value read back from a snapshot.
type Sample struct {
	Name  string
	Label string
	Value float64
}

// ParseSnapshot reads the gauges and counters of a text snapshot. Histograms
// are skipped.
func ParseSnapshot(r io.Reader) ([]Sample, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(families))
	for n := range families {
		names = append(names, n)
	}
	sort.Strings(names)
	var out []Sample
	for _, n := range names {
		for _, metric := range families[n].GetMetric() {
			v, ok := value(metric)
			if !ok {
				continue
			}
			s := Sample{Name: n, Value: v}
			if labels := metric.GetLabel(); len(labels) > 0 {
				s.Label = labels[0].GetValue()
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func value(m *dto.Metric) (float64, bool) {
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue(), true
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue(), true
	}
	return 0, false
}
