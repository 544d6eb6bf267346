package profile

import (
	"context"
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/calendar"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"gonum.org/v1/gonum/floats"
)

const (
	opsdSuffix        = "_load_old"
	thermalLoadColumn = "thermal_load"
)

// ElectricityLoad builds `<r>-electricity-load-profile` for every wanted
// region: the demand-year OPSD load normalized to sum to one.
func ElectricityLoad(ts *source.TimeSeries, wanted Wanted, opts Options) (*element.Profiles, error) {
	out := opts.table(LoadResource)
	var pos []int
	for _, r := range opts.Regions {
		name := r + "-electricity-load-profile"
		if !wanted[name] {
			continue
		}
		if pos == nil {
			var err error
			if pos, err = Positions(ts, opts.DemandYear); err != nil {
				return nil, err
			}
		}
		col, ok := resolve(ts, r, opsdSuffix)
		if !ok {
			return nil, &MissingDataError{Source: ts.Name, Column: r + opsdSuffix, Year: opts.DemandYear, Reason: "column not found"}
		}
		values, err := Column(ts, col, pos, opts.DemandYear)
		if err != nil {
			return nil, err
		}
		total := floats.Sum(values)
		if total == 0 {
			return nil, &MissingDataError{Source: ts.Name, Column: col, Year: opts.DemandYear, Reason: "load sums to zero"}
		}
		floats.Scale(1/total, values)
		if err := out.Add(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadElectricity reads the OPSD time series and builds the load profiles.
func LoadElectricity(ctx context.Context, archive *source.Archive, wanted Wanted, opts Options, logger log.Logger) (*element.Profiles, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	path, err := archive.Require(ctx, source.OPSDTimeSeries)
	if err != nil {
		return nil, err
	}
	ts, err := source.ReadTimeSeries(path, columns(opts.Regions, opsdSuffix, nil, ""))
	if err != nil {
		return nil, err
	}
	out, err := ElectricityLoad(ts, wanted, opts)
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("msg", "built load profiles", "columns", len(out.Names()), "demand_year", opts.DemandYear)
	return out, nil
}

// HeatLoad builds `<r>-heat-load-profile` for every wanted region from the
// thermal load table. The table holds one scenario year of hourly values with
// no timestamps.
func HeatLoad(t *source.Table, wanted Wanted, opts Options) (*element.Profiles, error) {
	out := opts.table(HeatLoadResource)
	var values []float64
	for _, r := range opts.Regions {
		name := r + "-heat-load-profile"
		if !wanted[name] {
			continue
		}
		if values == nil {
			var err error
			if values, err = thermalLoad(t, opts.ScenarioYear); err != nil {
				return nil, err
			}
		}
		if err := out.Add(name, append([]float64(nil), values...)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func thermalLoad(t *source.Table, year int) ([]float64, error) {
	c := t.Column(thermalLoadColumn)
	if c < 0 {
		return nil, &MissingDataError{Source: t.Name, Column: thermalLoadColumn, Year: year, Reason: "column not found"}
	}
	if t.Len() != calendar.HoursPerYear {
		return nil, &MissingDataError{Source: t.Name, Column: thermalLoadColumn, Year: year,
			Reason: fmt.Sprintf("%d rows, want %d", t.Len(), calendar.HoursPerYear)}
	}
	values := make([]float64, t.Len())
	for i := range values {
		values[i] = t.Float(i, c)
		if math.IsNaN(values[i]) {
			return nil, &MissingDataError{Source: t.Name, Column: thermalLoadColumn, Year: year, Reason: fmt.Sprintf("null at hour %d", i)}
		}
	}
	return values, nil
}

// LoadHeat reads the thermal load table and builds the heat load profiles.
func LoadHeat(ctx context.Context, archive *source.Archive, wanted Wanted, opts Options) (*element.Profiles, error) {
	path, err := archive.Require(ctx, source.ThermalLoad)
	if err != nil {
		return nil, err
	}
	t, err := source.ReadCSV(path, source.CSVOptions{Comma: ';', Required: []string{thermalLoadColumn}})
	if err != nil {
		return nil, err
	}
	return HeatLoad(t, wanted, opts)
}
