package profile

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ohowland/fuchur_core/internal/pkg/calendar"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"gonum.org/v1/gonum/floats"
	"gotest.tools/v3/assert"
)

// hourly renders one year of hourly rows and decodes them like a raw archive.
func hourly(t *testing.T, year int, columns []string, value func(ts time.Time, col string) string) *source.TimeSeries {
	t.Helper()
	var b strings.Builder
	b.WriteString("utc_timestamp," + strings.Join(columns, ",") + "\n")
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	for ts := start; ts.Year() == year; ts = ts.Add(time.Hour) {
		b.WriteString(ts.Format(time.RFC3339))
		for _, c := range columns {
			b.WriteString("," + value(ts, c))
		}
		b.WriteString("\n")
	}
	series, err := source.DecodeTimeSeries(strings.NewReader(b.String()), "fixture.csv", nil)
	assert.NilError(t, err)
	return series
}

func constant(v string) func(time.Time, string) string {
	return func(time.Time, string) string { return v }
}

func TestPVLeapYear(t *testing.T) {
	ts := hourly(t, 2012, []string{"DE", "FR"}, func(ts time.Time, col string) string {
		if calendar.IsLeapDay(ts) {
			return "1"
		}
		return "0.25"
	})
	opts := Options{Regions: []string{"DE", "FR"}, WeatherYear: 2012, ScenarioYear: 2030}

	got, err := PV(ts, Wanted{"DE-pv-profile": true}, opts)
	assert.NilError(t, err)
	assert.DeepEqual(t, got.Names(), []string{"DE-pv-profile"})
	assert.Equal(t, got.Len(), calendar.HoursPerYear)
	assert.Equal(t, got.Index[0].Year(), 2030)

	values, _ := got.Series("DE-pv-profile")
	assert.Equal(t, len(values), calendar.HoursPerYear)
	for _, v := range values {
		assert.Equal(t, v, 0.25)
	}
}

func TestPVIdempotent(t *testing.T) {
	ts := hourly(t, 2011, []string{"DE"}, func(ts time.Time, _ string) string {
		return strconv.FormatFloat(float64(ts.Hour())/23, 'g', -1, 64)
	})
	opts := Options{Regions: []string{"DE"}, WeatherYear: 2011, ScenarioYear: 2030}
	wanted := Wanted{"DE-pv-profile": true}

	first, err := PV(ts, wanted, opts)
	assert.NilError(t, err)
	second, err := PV(ts, wanted, opts)
	assert.NilError(t, err)
	a, _ := first.Series("DE-pv-profile")
	b, _ := second.Series("DE-pv-profile")
	assert.DeepEqual(t, a, b)
	assert.DeepEqual(t, first.Index, second.Index)
}

func TestPVMissingData(t *testing.T) {
	ts := hourly(t, 2011, []string{"DE"}, func(ts time.Time, _ string) string {
		if ts.Month() == time.June && ts.Day() == 3 && ts.Hour() == 12 {
			return ""
		}
		return "0.1"
	})
	_, err := PV(ts, Wanted{"DE-pv-profile": true}, Options{Regions: []string{"DE"}, WeatherYear: 2011, ScenarioYear: 2030})
	var missing *MissingDataError
	assert.Assert(t, errors.As(err, &missing))
	assert.Equal(t, missing.Column, "DE")

	_, err = PV(ts, Wanted{"DE-pv-profile": true}, Options{Regions: []string{"DE"}, WeatherYear: 2010, ScenarioYear: 2030})
	assert.Assert(t, errors.As(err, &missing))
	assert.ErrorContains(t, err, "hourly rows")
}

func TestPVUnitedKingdomAlias(t *testing.T) {
	ts := hourly(t, 2011, []string{"UK"}, constant("0.2"))
	got, err := PV(ts, Wanted{"GB-pv-profile": true}, Options{Regions: []string{"GB"}, WeatherYear: 2011, ScenarioYear: 2030})
	assert.NilError(t, err)
	assert.DeepEqual(t, got.Names(), []string{"GB-pv-profile"})
}

func TestWindOffshoreFallback(t *testing.T) {
	onshore := hourly(t, 2011, []string{"DE", "PL"}, constant("0.3"))
	offshore := hourly(t, 2011, []string{"DE_OFF", "SE_OFF"}, func(_ time.Time, col string) string {
		if col == "SE_OFF" {
			return "0.6"
		}
		return "0.5"
	})
	fallbacks := normalize.NewFallbacks(normalize.DefaultRules(), nil, nil)
	var applied []string
	fallbacks.OnApply(func(r normalize.Rule) { applied = append(applied, r.Name) })

	opts := Options{Regions: []string{"DE", "PL"}, WeatherYear: 2011, ScenarioYear: 2030, Fallbacks: fallbacks}
	wanted := Wanted{
		"DE-wind-off-profile": true, "DE-wind-on-profile": true,
		"PL-wind-off-profile": true, "PL-wind-on-profile": true,
	}
	got, err := Wind(onshore, offshore, wanted, opts)
	assert.NilError(t, err)
	assert.DeepEqual(t, got.Names(), []string{
		"DE-wind-off-profile", "DE-wind-on-profile", "PL-wind-off-profile", "PL-wind-on-profile",
	})
	pl, _ := got.Series("PL-wind-off-profile")
	assert.Equal(t, pl[100], 0.6)
	assert.DeepEqual(t, applied, []string{"offshore-pl-from-se"})

	disabled := normalize.NewFallbacks(normalize.DefaultRules(), []string{"offshore-pl-from-se"}, nil)
	opts.Fallbacks = disabled
	_, err = Wind(onshore, offshore, wanted, opts)
	var missing *MissingDataError
	assert.Assert(t, errors.As(err, &missing))
	assert.Equal(t, missing.Column, "PL_OFF")
}

func TestElectricityLoad(t *testing.T) {
	ts := hourly(t, 2015, []string{"DE_load_old", "UK_load_old"}, func(ts time.Time, col string) string {
		return strconv.Itoa(40000 + ts.Hour()*100)
	})
	opts := Options{Regions: []string{"DE", "GB"}, DemandYear: 2015, ScenarioYear: 2030}
	got, err := ElectricityLoad(ts, Wanted{"DE-electricity-load-profile": true, "GB-electricity-load-profile": true}, opts)
	assert.NilError(t, err)
	assert.DeepEqual(t, got.Names(), []string{"DE-electricity-load-profile", "GB-electricity-load-profile"})
	for _, name := range got.Names() {
		values, _ := got.Series(name)
		assert.Assert(t, math.Abs(floats.Sum(values)-1) < 1e-9, name)
	}
}

func TestHeatLoad(t *testing.T) {
	records := [][]string{{"hour", thermalLoadColumn}}
	for i := 0; i < calendar.HoursPerYear; i++ {
		records = append(records, []string{strconv.Itoa(i), "0.0001"})
	}
	tbl := source.NewTable("thermal_load_profile.csv", records)
	opts := Options{Regions: []string{"DE", "FR"}, ScenarioYear: 2050}

	got, err := HeatLoad(tbl, Wanted{"DE-heat-load-profile": true, "FR-heat-load-profile": true}, opts)
	assert.NilError(t, err)
	assert.Equal(t, len(got.Names()), 2)
	assert.Equal(t, got.Len(), calendar.HoursPerYear)

	tbl.Rows = tbl.Rows[:100]
	_, err = HeatLoad(tbl, Wanted{"DE-heat-load-profile": true}, opts)
	var missing *MissingDataError
	assert.Assert(t, errors.As(err, &missing))
}
