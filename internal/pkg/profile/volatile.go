package profile

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
)

const offshoreSuffix = "_OFF"

// PV builds `<r>-pv-profile` for every wanted region from the ninja PV
// capacity factors.
func PV(ts *source.TimeSeries, wanted Wanted, opts Options) (*element.Profiles, error) {
	out := opts.table(VolatileResource)
	var pos []int
	for _, r := range opts.Regions {
		name := r + "-pv-profile"
		if !wanted[name] {
			continue
		}
		if pos == nil {
			var err error
			if pos, err = Positions(ts, opts.WeatherYear); err != nil {
				return nil, err
			}
		}
		col, ok := resolve(ts, r, "")
		if !ok {
			return nil, &MissingDataError{Source: ts.Name, Column: r, Year: opts.WeatherYear, Reason: "column not found"}
		}
		values, err := Column(ts, col, pos, opts.WeatherYear)
		if err != nil {
			return nil, err
		}
		if err := out.Add(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Wind builds `<r>-wind-off-profile` from the on/offshore archive and
// `<r>-wind-on-profile` from the national near-term archive. Offshore regions
// without data use their fallback donor.
func Wind(onshore, offshore *source.TimeSeries, wanted Wanted, opts Options) (*element.Profiles, error) {
	out := opts.table(VolatileResource)
	var onPos, offPos []int
	var err error
	for _, r := range opts.Regions {
		if off := r + "-wind-off-profile"; wanted[off] {
			if offshore == nil {
				return nil, &MissingDataError{Source: source.NinjaWindOffshore, Column: r + offshoreSuffix, Year: opts.WeatherYear, Reason: "archive not read"}
			}
			if offPos == nil {
				if offPos, err = Positions(offshore, opts.WeatherYear); err != nil {
					return nil, err
				}
			}
			col, err := offshoreColumn(offshore, r, opts.Fallbacks)
			if err != nil {
				return nil, err
			}
			values, err := Column(offshore, col, offPos, opts.WeatherYear)
			if err != nil {
				return nil, err
			}
			if err := out.Add(off, values); err != nil {
				return nil, err
			}
		}

		on := r + "-wind-on-profile"
		if !wanted[on] {
			continue
		}
		if onshore == nil {
			return nil, &MissingDataError{Source: source.NinjaWindOnshore, Column: r, Year: opts.WeatherYear, Reason: "archive not read"}
		}
		if onPos == nil {
			if onPos, err = Positions(onshore, opts.WeatherYear); err != nil {
				return nil, err
			}
		}
		col, ok := resolve(onshore, r, "")
		if !ok {
			return nil, &MissingDataError{Source: onshore.Name, Column: r, Year: opts.WeatherYear, Reason: "column not found"}
		}
		values, err := Column(onshore, col, onPos, opts.WeatherYear)
		if err != nil {
			return nil, err
		}
		if err := out.Add(on, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func offshoreColumn(ts *source.TimeSeries, region string, fallbacks *normalize.Fallbacks) (string, error) {
	if col, ok := resolve(ts, region, offshoreSuffix); ok {
		return col, nil
	}
	if rule, ok := fallbacks.Lookup(normalize.OffshoreProfile, region); ok && !rule.Constant() {
		if col, ok := resolve(ts, rule.Source, offshoreSuffix); ok {
			fallbacks.Applied(rule)
			return col, nil
		}
	}
	return "", &MissingDataError{Source: ts.Name, Column: region + offshoreSuffix, Reason: "column not found and no fallback"}
}

// columns lists every raw column name the regions may appear under.
func columns(regions []string, suffix string, fallbacks *normalize.Fallbacks, family string) []string {
	var out []string
	for _, r := range regions {
		for _, a := range normalize.Alias(r) {
			out = append(out, a+suffix)
		}
		if rule, ok := fallbacks.Lookup(family, r); ok && !rule.Constant() {
			for _, a := range normalize.Alias(rule.Source) {
				out = append(out, a+suffix)
			}
		}
	}
	return out
}

// Volatile reads the raw capacity factor archives the wanted names need and
// builds the volatile profile table, pv first.
func Volatile(ctx context.Context, archive *source.Archive, wanted Wanted, opts Options, logger log.Logger) (*element.Profiles, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	out := opts.table(VolatileResource)

	var needPV, needOn, needOff bool
	for _, r := range opts.Regions {
		needPV = needPV || wanted[r+"-pv-profile"]
		needOn = needOn || wanted[r+"-wind-on-profile"]
		needOff = needOff || wanted[r+"-wind-off-profile"]
	}
	read := func(name string, cols []string) (*source.TimeSeries, error) {
		path, err := archive.Require(ctx, name)
		if err != nil {
			return nil, err
		}
		level.Debug(logger).Log("msg", "reading capacity factors", "file", name, "columns", len(cols))
		return source.ReadTimeSeries(path, cols)
	}

	if needPV {
		ts, err := read(source.NinjaPV, columns(opts.Regions, "", nil, ""))
		if err != nil {
			return nil, err
		}
		pv, err := PV(ts, wanted, opts)
		if err != nil {
			return nil, err
		}
		if err := out.Merge(pv); err != nil {
			return nil, err
		}
	}

	if needOn || needOff {
		var onshore, offshore *source.TimeSeries
		var err error
		if needOn {
			if onshore, err = read(source.NinjaWindOnshore, columns(opts.Regions, "", nil, "")); err != nil {
				return nil, err
			}
		}
		if needOff {
			cols := columns(opts.Regions, offshoreSuffix, opts.Fallbacks, normalize.OffshoreProfile)
			if offshore, err = read(source.NinjaWindOffshore, cols); err != nil {
				return nil, err
			}
		}
		wind, err := Wind(onshore, offshore, wanted, opts)
		if err != nil {
			return nil, err
		}
		if err := out.Merge(wind); err != nil {
			return nil, err
		}
	}
	level.Info(logger).Log("msg", "built volatile profiles", "columns", len(out.Names()), "weather_year", opts.WeatherYear)
	return out, nil
}
