// Package hydro builds run-of-river, pumped storage and reservoir components
// with their inflow-driven profiles.
package hydro

import (
	"context"
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/calendar"
	"github.com/ohowland/fuchur_core/internal/pkg/economics"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/profile"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
)

// Raw column names.
const (
	CapacityIndex   = "ctrcode"
	HydroColumn     = "installed hydro capacities [GW]"
	PumpedColumn    = "installed pumped hydro capacities [GW]"
	ReservoirColumn = "reservoir capacity [TWh]"
	ShareIndex      = "Country Code (ISO 3166-1)"
	ShareColumn     = "ror ENTSO-E\n+ Restore"
)

const (
	phsHours        = 6
	phsMarginalCost = 1e-7
	gwToMW          = 1000
	twhToMWh        = 1e6
	recordRor       = "ror"
	recordPHS       = "phs"
	recordReservoir = "rsv"
	techReservoir   = "reservoir"
)

// Capacity is the installed hydro fleet of one country.
type Capacity struct {
	Hydro     float64 // GW
	Pumped    float64 // GW
	Reservoir float64 // TWh
}

// ReadCapacities indexes the hydropower table by canonical country code. The
// capacity fallbacks fill regions the table does not cover.
func ReadCapacities(t *source.Table, regions []string, fallbacks *normalize.Fallbacks) (map[string]Capacity, error) {
	if err := t.Require(CapacityIndex, HydroColumn, PumpedColumn, ReservoirColumn); err != nil {
		return nil, err
	}
	ci, ch, cp, cr := t.Column(CapacityIndex), t.Column(HydroColumn), t.Column(PumpedColumn), t.Column(ReservoirColumn)
	out := map[string]Capacity{}
	for i := range t.Rows {
		out[normalize.Country(t.Cell(i, ci))] = Capacity{
			Hydro:     t.FloatOr(i, ch, 0),
			Pumped:    t.FloatOr(i, cp, 0),
			Reservoir: t.FloatOr(i, cr, 0),
		}
	}
	for _, r := range regions {
		if _, ok := out[r]; ok {
			continue
		}
		rule, ok := fallbacks.Lookup(normalize.HydroCapacity, r)
		if !ok {
			continue
		}
		if !rule.Constant() {
			donor, ok := out[rule.Source]
			if !ok {
				return nil, fmt.Errorf("capacity fallback %s: no data for %s", rule.Name, rule.Source)
			}
			out[r] = donor
		} else if len(rule.Values) == 3 {
			out[r] = Capacity{Hydro: rule.Values[0], Pumped: rule.Values[1], Reservoir: rule.Values[2]}
		} else {
			return nil, fmt.Errorf("capacity fallback %s: want 3 values, got %d", rule.Name, len(rule.Values))
		}
		fallbacks.Applied(rule)
	}
	return out, nil
}

// ReadShares returns the run-of-river share of each country's non-pumped
// capacity.
func ReadShares(t *source.Table) (map[string]float64, error) {
	if err := t.Require(ShareIndex, ShareColumn); err != nil {
		return nil, err
	}
	ci, cs := t.Column(ShareIndex), t.Column(ShareColumn)
	out := map[string]float64{}
	for i := range t.Rows {
		v := t.Float(i, cs)
		if math.IsNaN(v) {
			continue
		}
		out[normalize.Country(t.Cell(i, ci))] = v
	}
	return out, nil
}

// InflowFunc returns the hourly weather-year inflow of a region in GWh.
type InflowFunc func(region string) ([]float64, error)

// Options parameterizes the hydro builder.
type Options struct {
	Regions      []string
	ScenarioYear int
	WACC         float64
}

// Inputs are the tables the hydro builder reads.
type Inputs struct {
	Capacities   map[string]Capacity
	Shares       map[string]float64
	Technologies *reference.Technologies
	Inflow       InflowFunc
}

// Result holds the hydro components and their profile tables.
type Result struct {
	Components []element.Component
	Ror        *element.Profiles
	Reservoir  *element.Profiles
}

// Build emits ror, phs and reservoir components for every region with data.
// Regions missing a capacity, a share or a technology record are skipped.
func Build(in Inputs, opts Options, logger log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	hours := calendar.Hours(opts.ScenarioYear)
	res := &Result{
		Ror:       element.NewProfiles(profile.RorResource, hours),
		Reservoir: element.NewProfiles(profile.ReservoirResource, hours),
	}
	records := map[string]reference.Record{}
	for _, name := range []string{recordRor, recordPHS, recordReservoir} {
		rec, ok := in.Technologies.ByTech(opts.ScenarioYear, name)
		if !ok {
			return nil, fmt.Errorf("no %s technology record for %d", name, opts.ScenarioYear)
		}
		if err := rec.Require("capacity_cost", "lifetime"); err != nil {
			return nil, err
		}
		records[name] = rec
	}
	if err := records[recordPHS].Require("efficiency"); err != nil {
		return nil, err
	}

	var ror, phs, rsv []element.Component
	for _, r := range opts.Regions {
		capacity, ok := in.Capacities[r]
		if !ok {
			level.Warn(logger).Log("msg", "no hydro capacity, region skipped", "region", r)
			continue
		}
		bus := topology.ElectricityBus(r)
		turbine := (capacity.Hydro - capacity.Pumped) * gwToMW

		if c := capacity.Pumped * gwToMW; c > 0 {
			rec := records[recordPHS]
			cc, err := economics.Annuity(rec.Get("capacity_cost")*economics.KWToMW, rec.Get("lifetime"), opts.WACC)
			if err != nil {
				return nil, fmt.Errorf("%s phs: %w", r, err)
			}
			phs = append(phs, element.PumpedStorage{Storage: element.Storage{
				Identity:        element.Identity{Name: r + "-hydro-phs", Carrier: element.Hydro, Tech: recordPHS},
				Bus:             bus,
				Capacity:        element.Some(c),
				StorageCapacity: element.Some(c * phsHours),
				CapacityCost:    element.Some(cc),
				Efficiency:      element.Some(economics.OneWay(rec.Get("efficiency"))),
				Loss:            element.Some(0),
				MarginalCost:    element.Some(phsMarginalCost),
				Lifetime:        element.Some(rec.Get("lifetime")),
			}})
		}

		// ror and reservoir split the turbine capacity by the share.
		share, ok := in.Shares[r]
		if !ok {
			level.Warn(logger).Log("msg", "no run-of-river share, ror and reservoir skipped", "region", r)
			continue
		}
		if c := turbine * share; c > 0 {
			comp, err := runOfRiver(in, records[recordRor], opts, r, bus, c, share, res.Ror)
			if err != nil {
				return nil, err
			}
			ror = append(ror, comp)
		}

		if c := turbine * (1 - share); c > 0 {
			comp, err := reservoir(in, records[recordReservoir], opts, r, bus, c, share, capacity.Reservoir, res.Reservoir)
			if err != nil {
				return nil, err
			}
			rsv = append(rsv, comp)
		}
	}
	res.Components = append(append(append(res.Components, ror...), phs...), rsv...)
	level.Info(logger).Log("msg", "built hydro", "ror", len(ror), "phs", len(phs), "reservoir", len(rsv))
	return res, nil
}

func runOfRiver(in Inputs, rec reference.Record, opts Options, r, bus string, capacity, share float64, profiles *element.Profiles) (element.Component, error) {
	inflow, err := in.Inflow(r)
	if err != nil {
		return nil, err
	}
	name := bus + "-ror-profile"
	values := make([]float64, len(inflow))
	for i, v := range inflow {
		values[i] = v * share * gwToMW / capacity
	}
	if err := profiles.Add(name, values); err != nil {
		return nil, err
	}
	cc, err := economics.Annuity(rec.Get("capacity_cost")*economics.KWToMW, rec.Get("lifetime"), opts.WACC)
	if err != nil {
		return nil, fmt.Errorf("%s ror: %w", r, err)
	}
	return element.RunOfRiver{Volatile: element.Volatile{
		Identity:     element.Identity{Name: r + "-hydro-ror", Carrier: element.Hydro, Tech: recordRor},
		Bus:          bus,
		Capacity:     element.Some(capacity),
		CapacityCost: element.Some(cc),
		Lifetime:     element.Some(rec.Get("lifetime")),
		Profile:      name,
	}}, nil
}

func reservoir(in Inputs, rec reference.Record, opts Options, r, bus string, capacity, share, twh float64, profiles *element.Profiles) (element.Component, error) {
	inflow, err := in.Inflow(r)
	if err != nil {
		return nil, err
	}
	name := bus + "-" + techReservoir + "-profile"
	values := make([]float64, len(inflow))
	for i, v := range inflow {
		values[i] = v * (1 - share) * gwToMW
	}
	if err := profiles.Add(name, values); err != nil {
		return nil, err
	}
	cc, err := economics.Annuity(rec.Get("capacity_cost")*economics.KWToMW, rec.Get("lifetime"), opts.WACC)
	if err != nil {
		return nil, fmt.Errorf("%s reservoir: %w", r, err)
	}
	return element.Reservoir{
		Identity:        element.Identity{Name: r + "-hydro-" + techReservoir, Carrier: element.Hydro, Tech: techReservoir},
		Bus:             bus,
		Capacity:        element.Some(capacity),
		StorageCapacity: element.Some(twh * twhToMWh),
		CapacityCost:    element.Some(cc),
		Efficiency:      element.Some(1),
		Loss:            element.Some(0),
		Lifetime:        element.Some(rec.Get("lifetime")),
		Profile:         name,
	}, nil
}

// Load reads the hydro tables and inflows from the raw archive and builds the
// hydro components.
func Load(ctx context.Context, archive *source.Archive, techs *reference.Technologies, opts Options, weatherYear int, fallbacks *normalize.Fallbacks, logger log.Logger) (*Result, error) {
	capPath, err := archive.Require(ctx, source.HydroCapacities)
	if err != nil {
		return nil, err
	}
	capTable, err := source.ReadCSV(capPath, source.CSVOptions{})
	if err != nil {
		return nil, err
	}
	capacities, err := ReadCapacities(capTable, opts.Regions, fallbacks)
	if err != nil {
		return nil, err
	}
	sharePath, err := archive.Require(ctx, source.RorShares)
	if err != nil {
		return nil, err
	}
	shareTable, err := source.ReadCSV(sharePath, source.CSVOptions{})
	if err != nil {
		return nil, err
	}
	shares, err := ReadShares(shareTable)
	if err != nil {
		return nil, err
	}
	inflows := NewInflows(archive.Path(source.HydroInflowDir), weatherYear, fallbacks)
	return Build(Inputs{
		Capacities:   capacities,
		Shares:       shares,
		Technologies: techs,
		Inflow:       inflows.Region,
	}, opts, logger)
}
