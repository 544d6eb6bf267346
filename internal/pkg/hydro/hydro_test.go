package hydro

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ohowland/fuchur_core/internal/pkg/calendar"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"gonum.org/v1/gonum/floats"
	"gotest.tools/v3/assert"
)

func days(year int) []time.Time {
	var out []time.Time
	for d := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func writeInflow(t *testing.T, dir, label string, year int, value func(day int) float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("year,month,day,Inflow [GWh]\n")
	for i, d := range days(year) {
		fmt.Fprintf(&b, "%d,%d,%d,%g\n", d.Year(), int(d.Month()), d.Day(), value(i))
	}
	assert.NilError(t, os.WriteFile(filepath.Join(dir, InflowFile(label)), []byte(b.String()), 0o644))
}

func TestResampleConstant(t *testing.T) {
	d := days(2011)
	daily := make([]float64, len(d))
	for i := range daily {
		daily[i] = 24
	}
	index, hourly, err := Resample(d, daily)
	assert.NilError(t, err)
	assert.Equal(t, len(hourly), calendar.HoursPerYear)
	assert.Assert(t, index[len(index)-1].Equal(time.Date(2011, 12, 31, 23, 0, 0, 0, time.UTC)))
	for _, v := range hourly {
		assert.Assert(t, math.Abs(v-1) < 1e-9, "got %v", v)
	}
	assert.Assert(t, math.Abs(floats.Sum(hourly)-floats.Sum(daily)) < 1e-6)
}

func TestResampleReproducesCubic(t *testing.T) {
	f := func(day float64) float64 { return 10 + 2*day - 0.5*day*day + 0.1*day*day*day }
	d := days(2011)[:6]
	daily := make([]float64, len(d))
	for i := range daily {
		daily[i] = f(float64(i))
	}
	_, hourly, err := Resample(d, daily)
	assert.NilError(t, err)
	assert.Equal(t, len(hourly), 6*24)
	for h := 0; h < 5*24; h++ {
		want := f(float64(h) / 24)
		assert.Assert(t, math.Abs(hourly[h]*24-want) < 1e-8, "hour %d: got %v, want %v", h, hourly[h]*24, want)
	}

	_, _, err = Resample(d[:2], daily[:2])
	assert.ErrorContains(t, err, "need at least 3")
}

func TestResampleLeapYear(t *testing.T) {
	d := days(2012)
	daily := make([]float64, len(d))
	for i := range daily {
		daily[i] = 10 + float64(i%7)
	}
	index, hourly, err := Resample(d, daily)
	assert.NilError(t, err)
	assert.Equal(t, len(hourly), calendar.HoursPerYear)
	for _, ts := range index {
		assert.Assert(t, !calendar.IsLeapDay(ts))
	}
	// The final day is held flat.
	last := hourly[len(hourly)-24:]
	for _, v := range last {
		assert.Equal(t, v, last[0])
	}
}

func TestInflows(t *testing.T) {
	dir := t.TempDir()
	writeInflow(t, dir, "BE", 2011, func(int) float64 { return 48 })
	writeInflow(t, dir, "UK", 2011, func(int) float64 { return 24 })

	fallbacks := normalize.NewFallbacks(normalize.DefaultRules(), nil, nil)
	var applied []string
	fallbacks.OnApply(func(r normalize.Rule) { applied = append(applied, r.Name) })
	in := NewInflows(dir, 2011, fallbacks)

	gb, err := in.Region("GB")
	assert.NilError(t, err)
	assert.Equal(t, len(gb), calendar.HoursPerYear)
	assert.Assert(t, math.Abs(gb[0]-1) < 1e-9)

	lu, err := in.Region("LU")
	assert.NilError(t, err)
	be, err := in.Region("BE")
	assert.NilError(t, err)
	assert.DeepEqual(t, lu, be)

	dk, err := in.Region("DK")
	assert.NilError(t, err)
	assert.Equal(t, floats.Sum(dk), 0.0)
	assert.DeepEqual(t, applied, []string{"inflow-lu-from-be", "inflow-dk-zero"})

	_, err = in.Region("FR")
	var missing *source.MissingRawDataError
	assert.Assert(t, errors.As(err, &missing))

	_, err = NewInflows(dir, 2015, nil).Region("BE")
	assert.ErrorContains(t, err, "hourly rows")
}

func techs(t *testing.T) *reference.Technologies {
	t.Helper()
	records := [][]string{{"year", "carrier", "tech", "parameter", "value"}}
	for _, r := range [][]string{
		{"ror", "capacity_cost", "3000"}, {"ror", "lifetime", "60"},
		{"phs", "capacity_cost", "1500"}, {"phs", "lifetime", "50"}, {"phs", "efficiency", "0.81"},
		{"rsv", "capacity_cost", "2000"}, {"rsv", "lifetime", "60"},
	} {
		records = append(records, []string{"2050", "hydro", r[0], r[1], r[2]})
	}
	techs, err := reference.NewTechnologies(source.NewTable("electricity", records))
	assert.NilError(t, err)
	return techs
}

func flatInflow(v float64) InflowFunc {
	return func(string) ([]float64, error) {
		out := make([]float64, calendar.HoursPerYear)
		for i := range out {
			out[i] = v
		}
		return out, nil
	}
}

func TestBuildConservation(t *testing.T) {
	in := Inputs{
		Capacities: map[string]Capacity{
			"AT": {Hydro: 13.2, Pumped: 4.7, Reservoir: 3.2},
			"NO": {Hydro: 31, Pumped: 1.4, Reservoir: 82},
			"NL": {Hydro: 0.04, Pumped: 0, Reservoir: 0},
		},
		Shares:       map[string]float64{"AT": 0.7, "NO": 0.1},
		Technologies: techs(t),
		Inflow:       flatInflow(2),
	}
	res, err := Build(in, Options{Regions: []string{"AT", "NO", "NL"}, ScenarioYear: 2050, WACC: 0.07}, nil)
	assert.NilError(t, err)

	byName := map[string]element.Component{}
	for _, c := range res.Components {
		byName[c.ID().Name] = c
	}
	assert.Equal(t, len(byName), 6)
	_, ok := byName["NL-hydro-ror"]
	assert.Assert(t, !ok, "regions without a share are skipped")

	for r, c := range in.Capacities {
		if _, ok := in.Shares[r]; !ok {
			continue
		}
		ror := byName[r+"-hydro-ror"].(element.RunOfRiver)
		rsv := byName[r+"-hydro-reservoir"].(element.Reservoir)
		want := (c.Hydro - c.Pumped) * 1000
		assert.Assert(t, math.Abs(ror.Capacity.Value+rsv.Capacity.Value-want) < 1e-6, r)
	}

	phs := byName["AT-hydro-phs"].(element.PumpedStorage)
	assert.Equal(t, phs.Capacity.Value, 4700.0)
	assert.Equal(t, phs.StorageCapacity.Value, 4700.0*6)
	assert.Assert(t, math.Abs(phs.Efficiency.Value-0.9) < 1e-12)
	assert.Equal(t, phs.Resource(), "phs")

	ror, _ := res.Ror.Series("AT-electricity-ror-profile")
	rorCap := byName["AT-hydro-ror"].(element.RunOfRiver).Capacity.Value
	assert.Assert(t, math.Abs(ror[0]-2*0.7*1000/rorCap) < 1e-12)
	rsv, _ := res.Reservoir.Series("NO-electricity-reservoir-profile")
	assert.Assert(t, math.Abs(rsv[0]-2*0.9*1000) < 1e-9)
	assert.Equal(t, byName["NO-hydro-reservoir"].(element.Reservoir).StorageCapacity.Value, 82e6)
}

func TestBuildPumpedStorageWithoutShare(t *testing.T) {
	in := Inputs{
		Capacities:   map[string]Capacity{"XX": {Hydro: 5, Pumped: 2, Reservoir: 1}},
		Shares:       map[string]float64{},
		Technologies: techs(t),
		Inflow:       flatInflow(2),
	}
	res, err := Build(in, Options{Regions: []string{"XX"}, ScenarioYear: 2050, WACC: 0.07}, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(res.Components), 1, "ror and reservoir need the share")
	phs := res.Components[0].(element.PumpedStorage)
	assert.Equal(t, phs.Name, "XX-hydro-phs")
	assert.Equal(t, phs.Capacity.Value, 2000.0)
	assert.Assert(t, res.Ror.Empty())
	assert.Assert(t, res.Reservoir.Empty())
}

func TestReadCapacities(t *testing.T) {
	tbl := source.NewTable(source.HydroCapacities, [][]string{
		{CapacityIndex, " " + ReservoirColumn, " " + HydroColumn, " " + PumpedColumn},
		{"UK", "1.2", "4.5", "2.8"},
		{"AT", "3.2", "13.2", "4.7"},
	})
	fallbacks := normalize.NewFallbacks(normalize.DefaultRules(), nil, nil)
	got, err := ReadCapacities(tbl, []string{"GB", "CH", "AT"}, fallbacks)
	assert.NilError(t, err)
	assert.Equal(t, got["GB"], Capacity{Hydro: 4.5, Pumped: 2.8, Reservoir: 1.2})
	assert.Equal(t, got["CH"], Capacity{Hydro: 12, Pumped: 1.9, Reservoir: 8.8})

	off := normalize.NewFallbacks(normalize.DefaultRules(), []string{"capacity-ch"}, nil)
	got, err = ReadCapacities(tbl, []string{"CH"}, off)
	assert.NilError(t, err)
	_, ok := got["CH"]
	assert.Assert(t, !ok)
}

func TestReadShares(t *testing.T) {
	tbl, err := source.DecodeCSV(strings.NewReader("Country Code (ISO 3166-1),\"ror ENTSO-E\n+ Restore\"\nAT,0.7\nUK,0.9\nXX,\n"), "ror.csv", source.CSVOptions{})
	assert.NilError(t, err)
	got, err := ReadShares(tbl)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, map[string]float64{"AT": 0.7, "GB": 0.9})
}
