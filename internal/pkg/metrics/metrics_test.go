package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestSnapshotRoundTrip(t *testing.T) {
	m := New()
	m.Components("volatile", 3)
	m.Dropped("volatile", 2)
	m.Dropped("volatile", 1)
	m.Fallback("inflow-dk-zero")
	m.Profiles("volatile_profile", 3)
	m.Stage("assemble")()

	data, err := m.Snapshot()
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(data), `fuchur_rows_dropped_total{resource="volatile"} 3`))

	samples, err := ParseSnapshot(bytes.NewReader(data))
	assert.NilError(t, err)
	assert.DeepEqual(t, samples, []Sample{
		{Name: "fuchur_components", Label: "volatile", Value: 3},
		{Name: "fuchur_fallbacks_applied_total", Label: "inflow-dk-zero", Value: 1},
		{Name: "fuchur_profiles", Label: "volatile_profile", Value: 3},
		{Name: "fuchur_rows_dropped_total", Label: "volatile", Value: 3},
	})
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Components("bus", 1)
	m.Dropped("bus", 1)
	m.Fallback("x")
	m.Stage("x")()
}

func TestWrapHandler(t *testing.T) {
	m := New()
	h := m.WrapHandler("/elements/{name}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/elements/x", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Assert(t, strings.Contains(rec.Body.String(), `fuchur_http_requests_total{route="/elements/{name}",status="404"} 1`))
}
