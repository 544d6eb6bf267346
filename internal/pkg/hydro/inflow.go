package hydro

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ohowland/fuchur_core/internal/pkg/calendar"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/profile"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"gonum.org/v1/gonum/interp"
)

const inflowColumn = "Inflow [GWh]"

var inflowColumns = []string{"year", "month", "day", inflowColumn}

// InflowFile is the daily inflow file name of a raw country label.
func InflowFile(label string) string {
	return fmt.Sprintf("Hydro_Inflow_%s.csv", label)
}

// ReadDaily reads a daily inflow table into dates and GWh values.
func ReadDaily(t *source.Table) ([]time.Time, []float64, error) {
	if err := t.Require(inflowColumns...); err != nil {
		return nil, nil, err
	}
	cy, cm, cd, cv := t.Column("year"), t.Column("month"), t.Column("day"), t.Column(inflowColumn)
	days := make([]time.Time, 0, t.Len())
	values := make([]float64, 0, t.Len())
	for i := range t.Rows {
		y, m, d := t.Float(i, cy), t.Float(i, cm), t.Float(i, cd)
		if math.IsNaN(y) || math.IsNaN(m) || math.IsNaN(d) {
			return nil, nil, fmt.Errorf("%s row %d: incomplete date", t.Name, i+1)
		}
		v := t.Float(i, cv)
		if math.IsNaN(v) {
			return nil, nil, &profile.MissingDataError{Source: t.Name, Column: inflowColumn, Year: int(y), Reason: fmt.Sprintf("null on row %d", i+1)}
		}
		day := time.Date(int(y), time.Month(int(m)), int(d), 0, 0, 0, 0, time.UTC)
		if n := len(days); n > 0 && !day.After(days[n-1]) {
			return nil, nil, fmt.Errorf("%s row %d: dates not increasing", t.Name, i+1)
		}
		days = append(days, day)
		values = append(values, v)
	}
	if len(days) < 3 {
		return nil, nil, fmt.Errorf("%s: %d days of inflow, need at least 3", t.Name, len(days))
	}
	return days, values, nil
}

// Resample turns a daily series into an hourly one. Hours between days are
// interpolated by a not-a-knot cubic spline and the final day is held for its
// 24 hours. Leap days are removed and the result is scaled by the ratio of
// daily to hourly length.
func Resample(days []time.Time, daily []float64) ([]time.Time, []float64, error) {
	if len(days) < 3 || len(days) != len(daily) {
		return nil, nil, fmt.Errorf("resample %d days of %d values, need at least 3", len(days), len(daily))
	}
	first := days[0]
	xs := make([]float64, len(days))
	for i, d := range days {
		xs[i] = d.Sub(first).Hours()
	}
	var spline interp.NotAKnotCubic
	if err := spline.Fit(xs, daily); err != nil {
		return nil, nil, fmt.Errorf("fit inflow spline: %w", err)
	}

	last := days[len(days)-1]
	total := int(last.Sub(first).Hours())
	index := make([]time.Time, 0, total+24)
	values := make([]float64, 0, total+24)
	for h := 0; h < total; h++ {
		t := first.Add(time.Duration(h) * time.Hour)
		if calendar.IsLeapDay(t) {
			continue
		}
		index = append(index, t)
		values = append(values, spline.Predict(float64(h)))
	}
	if !calendar.IsLeapDay(last) {
		final := daily[len(daily)-1]
		for h := 0; h < 24; h++ {
			index = append(index, last.Add(time.Duration(h)*time.Hour))
			values = append(values, final)
		}
	}

	norm := float64(len(values)) / float64(len(daily))
	for i := range values {
		values[i] /= norm
	}
	return index, values, nil
}

// Inflows resolves the hourly weather-year inflow of each region in GWh,
// reading the daily country files on first use.
type Inflows struct {
	Dir         string
	WeatherYear int
	Fallbacks   *normalize.Fallbacks
	cache       map[string][]float64
}

// NewInflows returns inflows read from the files in dir.
func NewInflows(dir string, weatherYear int, fallbacks *normalize.Fallbacks) *Inflows {
	return &Inflows{Dir: dir, WeatherYear: weatherYear, Fallbacks: fallbacks, cache: map[string][]float64{}}
}

// Region returns the inflow of region, applying the inflow fallbacks when the
// region has no file.
func (in *Inflows) Region(region string) ([]float64, error) {
	if v, ok := in.cache[region]; ok {
		return v, nil
	}
	v, err := in.read(region)
	if errors.Is(err, fs.ErrNotExist) {
		rule, ok := in.Fallbacks.Lookup(normalize.HydroInflow, region)
		if !ok {
			return nil, &source.MissingRawDataError{Name: InflowFile(region), Path: filepath.Join(in.Dir, InflowFile(region)), Err: err}
		}
		if rule.Constant() {
			v = make([]float64, calendar.HoursPerYear)
			for i := range v {
				v[i] = rule.Values[0]
			}
		} else if v, err = in.Region(rule.Source); err != nil {
			return nil, fmt.Errorf("inflow fallback %s: %w", rule.Name, err)
		}
		in.Fallbacks.Applied(rule)
	} else if err != nil {
		return nil, err
	}
	in.cache[region] = v
	return v, nil
}

func (in *Inflows) read(region string) ([]float64, error) {
	var path string
	for _, label := range normalize.Alias(region) {
		p := filepath.Join(in.Dir, InflowFile(label))
		if _, err := os.Stat(p); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		return nil, fs.ErrNotExist
	}
	t, err := source.ReadCSV(path, source.CSVOptions{Required: inflowColumns})
	if err != nil {
		return nil, err
	}
	days, daily, err := ReadDaily(t)
	if err != nil {
		return nil, err
	}
	index, hourly, err := Resample(days, daily)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	pos, err := calendar.Slice(index, in.WeatherYear)
	if err != nil {
		return nil, &profile.MissingDataError{Source: t.Name, Column: inflowColumn, Year: in.WeatherYear, Reason: err.Error()}
	}
	out := make([]float64, len(pos))
	for i, p := range pos {
		out[i] = hourly[p]
	}
	return out, nil
}
