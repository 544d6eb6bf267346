package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/xuri/excelize/v2"
	"gotest.tools/v3/assert"
)

func TestNewTable(t *testing.T) {
	records := [][]string{
		{"title"},
		{"units"},
		{"Links", " Length ", "100% RES"},
		{"01_PT-02_ES", "120"},
		{"total", "", "5"},
	}
	tbl := NewTable("t", records, 0, 1)
	assert.DeepEqual(t, tbl.Columns, []string{"Links", "Length", "100% RES"})
	assert.Equal(t, tbl.Len(), 2)
	assert.Equal(t, tbl.Value(0, "100% RES"), "")
	assert.Assert(t, math.IsNaN(tbl.Float(0, 2)))
	assert.Equal(t, tbl.FloatOr(0, 2, 0), 0.0)

	tbl.DropLastRow()
	tbl.DropEmptyColumns()
	assert.DeepEqual(t, tbl.Columns, []string{"Links", "Length"})
	assert.ErrorContains(t, tbl.Require("Links", "100% RES"), "missing column")
}

func TestReadCSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "thermal.csv")
	assert.NilError(t, os.WriteFile(p, []byte("\xef\xbb\xbfhour;thermal_load\n1;0.5\n2;0.25\n"), 0o644))

	tbl, err := ReadCSV(p, CSVOptions{Comma: ';', Required: []string{"thermal_load"}})
	assert.NilError(t, err)
	assert.Equal(t, tbl.Column("hour"), 0)
	assert.Equal(t, tbl.Float(1, 1), 0.25)

	_, err = ReadCSV(filepath.Join(dir, "absent.csv"), CSVOptions{})
	var missing *MissingRawDataError
	assert.Assert(t, errors.As(err, &missing))
	assert.Equal(t, missing.Name, "absent.csv")
}

func TestReadSheet(t *testing.T) {
	p := filepath.Join(t.TempDir(), "book.xlsx")
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "Demand")
	f.SetCellValue("Demand", "A1", "node")
	f.SetCellValue("Demand", "B1", "Best Estimate")
	f.SetCellValue("Demand", "A2", "DE00")
	f.SetCellValue("Demand", "B2", 550.5)
	assert.NilError(t, f.SaveAs(p))

	tbl, err := ReadSheet(p, "Demand", SheetOptions{Required: []string{"Best Estimate"}})
	assert.NilError(t, err)
	assert.Equal(t, tbl.Value(0, "node"), "DE00")
	assert.Equal(t, tbl.Float(0, 1), 550.5)

	_, err = ReadSheet(p, "Demand", SheetOptions{Required: []string{"Vision 1"}})
	assert.ErrorContains(t, err, "Vision 1")
}

func TestReadTimeSeries(t *testing.T) {
	data := "utc_timestamp,DE,FR,GB_OFF\n" +
		"2015-01-01 00:00:00,0.1,0.2,\n" +
		"2015-01-01 01:00:00,0.3,0.4,0.5\n"
	ts, err := DecodeTimeSeries(strings.NewReader(data), "ninja", []string{"DE", "GB_OFF", "PL"})
	assert.NilError(t, err)
	assert.Equal(t, len(ts.Index), 2)

	de, ok := ts.Series("DE")
	assert.Assert(t, ok)
	assert.DeepEqual(t, de, []float64{0.1, 0.3})

	off, _ := ts.Series("GB_OFF")
	assert.Assert(t, math.IsNaN(off[0]))

	_, ok = ts.Series("FR")
	assert.Assert(t, !ok)
	_, ok = ts.Series("PL")
	assert.Assert(t, !ok)

	picked, _ := ts.Pick("DE", []int{1})
	assert.DeepEqual(t, picked, []float64{0.3})
}

func TestOpenPackage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pkg/datapackage.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"technology-cost","resources":[
			{"name":"electricity","path":"data/electricity.csv"},
			{"name":"carrier","data":[{"year":2030,"carrier":"gas","parameter":"cost","value":25.5}]}]}`)
	})
	mux.HandleFunc("/pkg/data/electricity.csv", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "year,carrier,tech,parameter,value\n2030,solar,pv,lifetime,25\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	p, err := OpenPackage(ctx, srv.Client(), srv.URL+"/pkg/datapackage.json")
	assert.NilError(t, err)
	assert.Equal(t, p.Name, "technology-cost")

	el, err := p.Resource(ctx, "electricity")
	assert.NilError(t, err)
	assert.Equal(t, el.Value(0, "tech"), "pv")

	ca, err := p.Resource(ctx, "carrier")
	assert.NilError(t, err)
	assert.DeepEqual(t, ca.Columns, []string{"carrier", "parameter", "value", "year"})
	assert.Equal(t, ca.Value(0, "value"), "25.5")
	assert.Equal(t, ca.Value(0, "year"), "2030")

	_, err = p.Resource(ctx, "heat")
	assert.ErrorContains(t, err, "no resource")
}

func TestArchiveRequire(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	offline := NewArchive(dir, true, nil)
	_, err := offline.Require(ctx, HydroCapacities)
	var missing *MissingRawDataError
	assert.Assert(t, errors.As(err, &missing))

	_, err = NewArchive(dir, false, nil).Require(ctx, ThermalLoad)
	assert.Assert(t, errors.As(err, &missing), "bundle-only files have no download location")

	assert.NilError(t, os.WriteFile(filepath.Join(dir, HydroCapacities), []byte("ctrcode\n"), 0o644))
	p, err := offline.Require(ctx, HydroCapacities)
	assert.NilError(t, err)
	assert.Equal(t, p, filepath.Join(dir, HydroCapacities))
}

func TestArchiveDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hydropower.csv" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "ctrcode,value\nAT,1\n")
	}))
	defer srv.Close()

	dir := t.TempDir()
	a := NewArchive(dir, false, nil)
	a.Client = srv.Client()
	var progress strings.Builder
	a.Progress = &progress

	dst := filepath.Join(dir, "raw", "hydropower.csv")
	assert.NilError(t, a.Download(context.Background(), srv.URL+"/hydropower.csv", dst))
	data, err := os.ReadFile(dst)
	assert.NilError(t, err)
	assert.Equal(t, string(data), "ctrcode,value\nAT,1\n")

	err = a.Download(context.Background(), srv.URL+"/absent.csv", filepath.Join(dir, "absent.csv"))
	assert.ErrorContains(t, err, "404")
}

func TestReadShapes(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nuts.shp")
	w, err := shp.Create(p, shp.POLYGON)
	assert.NilError(t, err)
	w.SetFields([]shp.Field{shp.StringField("NUTS_ID", 10), shp.StringField("STAT_LEVL_", 2)})

	ring := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
	n := w.Write(&poly)
	w.WriteAttribute(int(n), 0, "UK")
	w.WriteAttribute(int(n), 1, "0")
	w.Close()

	shapes, err := ReadShapes(p)
	assert.NilError(t, err)
	assert.Equal(t, len(shapes), 1)
	assert.Equal(t, shapes[0].Attributes["NUTS_ID"], "UK")
	assert.Equal(t, len(shapes[0].Geometry), 1)
	assert.Equal(t, len(shapes[0].Geometry[0][0]), 5)
}
