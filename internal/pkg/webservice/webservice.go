// Package webservice serves an assembled dataset read-only over HTTP.
package webservice

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/metrics"
)

const (
	contentJSON    = "application/json; charset=UTF-8"
	contentCSV     = "text/csv; charset=UTF-8"
	contentGeoJSON = "application/geo+json"
)

// Config is the listen address of the service.
type Config struct {
	URL  string `json:"URL"`
	Port string `json:"Port"`
}

// Addr joins URL and Port, defaulting to :8080.
func (c Config) Addr() string {
	port := c.Port
	if port == "" {
		port = "8080"
	}
	return c.URL + ":" + port
}

// App serves the dataset held by Store.
type App struct {
	Store   datapackage.Store
	Metrics *metrics.Metrics
	Logger  log.Logger
}

// Router registers every route. Each one is counted by Metrics.
func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", app.wrap("base", app.BaseHandler)).Methods("GET")
	r.Handle("/datapackage", app.wrap("datapackage", app.DescriptorHandler)).Methods("GET")
	r.Handle("/elements/{name}", app.wrap("elements", app.ElementsHandler)).Methods("GET")
	r.Handle("/sequences/{name}", app.wrap("sequences", app.SequencesHandler)).Methods("GET")
	r.Handle("/geometries/{name}", app.wrap("geometries", app.GeometryHandler)).Methods("GET")
	if app.Metrics != nil {
		r.Handle("/metrics", app.Metrics.Handler()).Methods("GET")
	}
	return r
}

// Handler is the router behind an access log in combined format.
func (app *App) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(os.Stdout, app.Router())
}

func (app *App) wrap(route string, handler func(w http.ResponseWriter, r *http.Request)) http.Handler {
	return app.Metrics.WrapHandler(route, http.HandlerFunc(handler))
}

func (app *App) logger() log.Logger {
	if app.Logger == nil {
		return log.NewNopLogger()
	}
	return app.Logger
}

func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentJSON)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (app *App) DescriptorHandler(w http.ResponseWriter, r *http.Request) {
	app.serveFile(w, r, datapackage.Descriptor, contentJSON)
}

// ElementsHandler serves an element table as JSON records, or as CSV when
// asked for with ?format=csv or an Accept of text/csv.
func (app *App) ElementsHandler(w http.ResponseWriter, r *http.Request) {
	app.serveTable(w, r, datapackage.ElementPath(mux.Vars(r)["name"]))
}

func (app *App) SequencesHandler(w http.ResponseWriter, r *http.Request) {
	app.serveTable(w, r, datapackage.SequencePath(mux.Vars(r)["name"]))
}

func (app *App) GeometryHandler(w http.ResponseWriter, r *http.Request) {
	app.serveFile(w, r, datapackage.GeometryPath(mux.Vars(r)["name"]), contentGeoJSON)
}

func (app *App) serveFile(w http.ResponseWriter, r *http.Request, p, contentType string) {
	data, err := app.Store.Get(r.Context(), p)
	if err != nil {
		app.fail(w, p, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (app *App) serveTable(w http.ResponseWriter, r *http.Request, p string) {
	if wantsCSV(r) {
		app.serveFile(w, r, p, contentCSV)
		return
	}
	t, err := datapackage.ReadTable(r.Context(), app.Store, p)
	if err != nil {
		app.fail(w, p, err)
		return
	}
	body, err := json.Marshal(Records(t))
	if err != nil {
		app.fail(w, p, err)
		return
	}
	w.Header().Set("Content-Type", contentJSON)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (app *App) fail(w http.ResponseWriter, p string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, datapackage.ErrNotFound) {
		status = http.StatusNotFound
	} else {
		level.Error(app.logger()).Log("msg", "serve failed", "path", p, "err", err)
	}
	http.Error(w, http.StatusText(status), status)
}

func wantsCSV(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == "csv"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

// Records maps each row to an object keyed by column name.
func Records(t *datapackage.Table) []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for c, name := range t.Columns {
			if c < len(row) {
				rec[name] = row[c]
			}
		}
		out = append(out, rec)
	}
	return out
}
