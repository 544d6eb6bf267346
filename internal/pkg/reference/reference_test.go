package reference

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"gotest.tools/v3/assert"
)

func table(records ...[]string) *source.Table {
	return source.NewTable("test", records)
}

func TestTechnologies(t *testing.T) {
	techs, err := NewTechnologies(table(
		[]string{"year", "carrier", "tech", "parameter", "value"},
		[]string{"2030", "solar", "pv", "capacity_cost", "500"},
		[]string{"2030", "solar", "pv", "lifetime", "25"},
		[]string{"2030.0", "wind", "onshore", "lifetime", "25"},
		[]string{"2050", "solar", "pv", "capacity_cost", "350"},
		[]string{"2030", "solar", "pv", "efficiency", ""},
	))
	assert.NilError(t, err)

	pv, ok := techs.Lookup(2030, "solar", "pv")
	assert.Assert(t, ok)
	assert.Equal(t, pv.Get("capacity_cost"), 500.0)
	assert.Assert(t, math.IsNaN(pv.Get("efficiency")))
	assert.ErrorContains(t, pv.Require("lifetime", "efficiency"), "efficiency")

	on, ok := techs.ByTech(2030, "onshore")
	assert.Assert(t, ok)
	assert.Equal(t, on.Carrier, "wind")

	year := techs.Year(2030)
	assert.Equal(t, len(year), 2)
	assert.Equal(t, year[0].Tech, "onshore")

	_, err = NewTechnologies(table([]string{"year", "carrier"}))
	assert.ErrorContains(t, err, "missing column")

	_, err = NewTechnologies(table(
		[]string{"year", "carrier", "tech", "parameter", "value"},
		[]string{"soon", "solar", "pv", "lifetime", "25"},
	))
	assert.ErrorContains(t, err, "invalid year")
}

func TestCarriers(t *testing.T) {
	c, err := NewCarriers(table(
		[]string{"year", "carrier", "parameter", "unit", "value"},
		[]string{"2030", "gas", "cost", "EUR/MWh", "25.5"},
		[]string{"2030", "gas", "emission-factor", "t/MWh", "0.2"},
		[]string{"2030", "co2", "cost", "EUR/t", "30"},
	))
	assert.NilError(t, err)

	cost, err := c.Cost(2030, "gas")
	assert.NilError(t, err)
	assert.Equal(t, cost, 25.5)

	ef, err := c.Emission(2030, "gas")
	assert.NilError(t, err)
	assert.Equal(t, ef, 0.2)

	co2, err := c.Cost(2030, CO2)
	assert.NilError(t, err)
	assert.Equal(t, co2, 30.0)

	_, err = c.Cost(2050, "gas")
	assert.ErrorContains(t, err, "no cost for 2050")
}

func TestPotentials(t *testing.T) {
	p, err := NewPotentials(
		table(
			[]string{"country", "tech", "source", "capacity_potential"},
			[]string{"UK", "pv", "nrel", "100000"},
			[]string{"DE", "onshore", "nrel", "200000"},
		),
		table(
			[]string{"country", "carrier", "source", "value"},
			[]string{"DE", "biomass", "hotmaps", "300"},
		),
	)
	assert.NilError(t, err)

	v, ok := p.Capacity("nrel", "GB", "pv")
	assert.Assert(t, ok)
	assert.Equal(t, v, 100000.0)

	_, ok = p.Capacity("nrel", "UK", "pv")
	assert.Assert(t, !ok)

	v, ok = p.Carrier("hotmaps", "DE", "biomass")
	assert.Assert(t, ok)
	assert.Equal(t, v, 300.0)
}

func TestCacheFetchesOnce(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/cost/datapackage.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, `{"name":"technology-cost","resources":[
			{"name":"electricity","path":"data/electricity.csv"},
			{"name":"carrier","path":"data/carrier.csv"}]}`)
	})
	mux.HandleFunc("/cost/data/electricity.csv", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, "year,carrier,tech,parameter,value\n2030,solar,pv,lifetime,25\n")
	})
	mux.HandleFunc("/cost/data/carrier.csv", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, "year,carrier,parameter,value\n2030,gas,cost,25\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCache(Locations{TechnologyCost: srv.URL + "/cost/datapackage.json"}, srv.Client(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			techs, err := c.Technologies(ctx, Electricity)
			assert.Check(t, err)
			if err == nil {
				_, ok := techs.Lookup(2030, "solar", "pv")
				assert.Check(t, ok)
			}
		}()
	}
	wg.Wait()

	carriers, err := c.Carriers(ctx)
	assert.NilError(t, err)
	cost, err := carriers.Cost(2030, "gas")
	assert.NilError(t, err)
	assert.Equal(t, cost, 25.0)

	assert.Equal(t, atomic.LoadInt32(&hits), int32(3))
}

func TestCacheLocalPackage(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "datapackage.json"), []byte(`{"name":"technology-potential","resources":[
		{"name":"renewable","path":"data/renewable.csv"},
		{"name":"carrier","data":[{"country":"PL","carrier":"biomass","source":"hotmaps","value":12}]}]}`), 0o644))
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "data", "renewable.csv"),
		[]byte("country,tech,source,capacity_potential\nPL,pv,nrel,42\n"), 0o644))

	c := NewCache(Locations{TechnologyPotential: filepath.Join(dir, "datapackage.json")}, nil, nil)
	p, err := c.Potentials(context.Background())
	assert.NilError(t, err)

	v, ok := p.Capacity("nrel", "PL", "pv")
	assert.Assert(t, ok)
	assert.Equal(t, v, 42.0)
	v, ok = p.Carrier("hotmaps", "PL", "biomass")
	assert.Assert(t, ok)
	assert.Equal(t, v, 12.0)

	_, err = c.Technologies(context.Background(), Electricity)
	assert.Assert(t, err != nil)
}
