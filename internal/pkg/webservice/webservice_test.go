package webservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/metrics"
	"gotest.tools/v3/assert"
)

func newApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()
	store := datapackage.NewDirStore(t.TempDir())
	assert.NilError(t, datapackage.WriteTable(ctx, store, datapackage.ElementPath("bus"), &datapackage.Table{
		Columns: []string{"name", "type", "balanced"},
		Rows:    [][]string{{"DE-electricity", "bus", "true"}},
	}))
	assert.NilError(t, datapackage.WriteDescriptor(ctx, store, &datapackage.Package{Name: "test", Profile: "tabular-data-package"}))
	return &App{Store: store, Metrics: metrics.New()}
}

func get(t *testing.T, app *App, target, accept string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://example.com"+target, nil)
	if accept != "" {
		r.Header.Set("Accept", accept)
	}
	app.Router().ServeHTTP(w, r)
	return w
}

func TestBase(t *testing.T) {
	w := get(t, newApp(t), "/", "")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, w.Header().Get("Content-Type"), contentJSON)
}

func TestElementsJSON(t *testing.T) {
	w := get(t, newApp(t), "/elements/bus", "")
	assert.Equal(t, w.Code, http.StatusOK)

	var recs []map[string]string
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	assert.Equal(t, len(recs), 1)
	assert.Equal(t, recs[0]["name"], "DE-electricity")
}

func TestElementsCSV(t *testing.T) {
	app := newApp(t)
	for _, w := range []*httptest.ResponseRecorder{
		get(t, app, "/elements/bus?format=csv", ""),
		get(t, app, "/elements/bus", "text/csv"),
	} {
		assert.Equal(t, w.Code, http.StatusOK)
		assert.Equal(t, w.Header().Get("Content-Type"), contentCSV)
		assert.Assert(t, strings.HasPrefix(w.Body.String(), "name,type,balanced\n"))
	}
}

func TestNotFound(t *testing.T) {
	app := newApp(t)
	assert.Equal(t, get(t, app, "/sequences/load_profile", "").Code, http.StatusNotFound)
	assert.Equal(t, get(t, app, "/geometries/bus.geojson", "").Code, http.StatusNotFound)
}

func TestDescriptorAndMetrics(t *testing.T) {
	app := newApp(t)
	w := get(t, app, "/datapackage", "")
	assert.Equal(t, w.Code, http.StatusOK)
	var pkg datapackage.Package
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &pkg))
	assert.Equal(t, pkg.Name, "test")

	w = get(t, app, "/metrics", "")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Assert(t, strings.Contains(w.Body.String(), `fuchur_http_requests_total{route="datapackage",status="200"} 1`))
}

func TestAddr(t *testing.T) {
	assert.Equal(t, Config{}.Addr(), ":8080")
	assert.Equal(t, Config{URL: "localhost", Port: "9000"}.Addr(), "localhost:9000")
}
