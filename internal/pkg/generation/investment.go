// Package generation builds the electricity supply components: investment
// options, the TYNDP generation mix, the registry fleet, national plan
// renewables and biomass commodities.
package generation

import (
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/economics"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
)

// Storage investment constants.
const (
	StorageMarginalCost = 1e-7
	StorageLoss         = 0.01
)

// InvestmentOptions parameterizes the investment builder.
type InvestmentOptions struct {
	Regions      []string
	Technologies []string
	Year         int
	WACC         float64
	// CostFactor scales capacity costs per tech. Absent techs use 1.
	CostFactor map[string]float64
	// PotentialSource selects the study of the renewable potentials.
	PotentialSource string
	// Buses holds every bus of the topology, used to check conversion inputs.
	Buses map[string]element.Bus
}

func (o InvestmentOptions) factor(tech string) float64 {
	if f, ok := o.CostFactor[tech]; ok {
		return f
	}
	return 1
}

// Refs bundles the reference tables the builders read.
type Refs struct {
	Technologies *reference.Technologies
	Carriers     *reference.Carriers
	Potentials   *reference.Potentials
}

// Investment builds one expandable component per region and configured
// technology present in the technology table for the scenario year.
func Investment(refs Refs, opts InvestmentOptions, logger log.Logger) ([]element.Component, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	var out []element.Component
	for _, r := range opts.Regions {
		for _, tech := range opts.Technologies {
			rec, ok := refs.Technologies.ByTech(opts.Year, tech)
			if !ok {
				level.Debug(logger).Log("msg", "technology not in cost table", "tech", tech, "year", opts.Year)
				continue
			}
			family, ok := normalize.ComponentType(tech)
			if !ok {
				return nil, fmt.Errorf("investment technology %q has no component type", tech)
			}
			rec = scaled(rec, opts.factor(tech))
			c, err := investment(refs, opts, r, family, rec, logger)
			if err != nil {
				return nil, fmt.Errorf("investment %s-%s: %w", r, tech, err)
			}
			if c != nil {
				out = append(out, c)
			}
		}
	}
	level.Info(logger).Log("msg", "built investment options", "count", len(out))
	return out, nil
}

func scaled(rec reference.Record, factor float64) reference.Record {
	params := make(map[string]float64, len(rec.Params))
	for k, v := range rec.Params {
		params[k] = v
	}
	if v, ok := params["capacity_cost"]; ok {
		params["capacity_cost"] = v * factor
	}
	if v, ok := params["storage_capacity_cost"]; ok {
		params["storage_capacity_cost"] = v * factor
	}
	rec.Params = params
	return rec
}

func investment(refs Refs, opts InvestmentOptions, r, family string, rec reference.Record, logger log.Logger) (element.Component, error) {
	tech := rec.Tech
	id := element.Identity{Name: r + "-" + tech, Carrier: rec.Carrier, Tech: tech}
	bus := topology.ElectricityBus(r)

	switch family {
	case normalize.Dispatchable, normalize.Conversion:
		if err := rec.Require("capacity_cost", "lifetime", "efficiency"); err != nil {
			return nil, err
		}
		capex, err := annuity(rec.Get("capacity_cost"), rec.Get("lifetime"), opts.WACC)
		if err != nil {
			return nil, err
		}
		mc, ef, err := fuelCost(refs.Carriers, opts.Year, rec.Carrier, rec.Get("efficiency"))
		if err != nil {
			return nil, err
		}
		if family == normalize.Conversion {
			from := r + "-" + rec.Carrier + "-bus"
			if _, ok := opts.Buses[from]; !ok {
				level.Warn(logger).Log("msg", "conversion input bus missing, skipped", "name", id.Name, "from_bus", from)
				return nil, nil
			}
			return element.Conversion{
				Identity:     id,
				FromBus:      from,
				ToBus:        bus,
				CapacityCost: element.Some(capex),
				MarginalCost: element.Some(mc),
				Efficiency:   element.Some(rec.Get("efficiency")),
				Lifetime:     element.Some(rec.Get("lifetime")),
			}, nil
		}
		potential := element.Unlimited()
		if v, ok := refs.Potentials.Capacity(opts.PotentialSource, r, tech); ok {
			potential = element.Some(v)
		}
		return element.Dispatchable{
			Identity:          id,
			Bus:               bus,
			CapacityPotential: potential,
			CapacityCost:      element.Some(capex),
			MarginalCost:      element.Some(mc),
			Efficiency:        element.Some(rec.Get("efficiency")),
			Lifetime:          element.Some(rec.Get("lifetime")),
			OutputParameters:  element.Params{"emission_factor": ef / rec.Get("efficiency")},
		}, nil

	case normalize.Volatile:
		suffix, ok := normalize.ProfileSuffix(tech)
		if !ok {
			return nil, fmt.Errorf("no profile family for %s", tech)
		}
		if suffix == "wind-off-profile" && !normalize.Coastal(r) {
			level.Debug(logger).Log("msg", "offshore outside coastal regions, skipped", "region", r)
			return nil, nil
		}
		if err := rec.Require("capacity_cost", "lifetime"); err != nil {
			return nil, err
		}
		capex, err := annuity(rec.Get("capacity_cost"), rec.Get("lifetime"), opts.WACC)
		if err != nil {
			return nil, err
		}
		potential, _ := refs.Potentials.Capacity(opts.PotentialSource, r, tech)
		return element.Volatile{
			Identity:          id,
			Bus:               bus,
			CapacityPotential: element.Some(potential),
			CapacityCost:      element.Some(capex),
			Lifetime:          element.Some(rec.Get("lifetime")),
			Profile:           r + "-" + suffix,
		}, nil

	case normalize.Storage:
		if err := rec.Require("capacity_cost", "storage_capacity_cost", "capacity_ratio", "lifetime", "efficiency"); err != nil {
			return nil, err
		}
		ratio := rec.Get("capacity_ratio")
		if ratio <= 0 {
			return nil, fmt.Errorf("capacity_ratio must be positive, got %v", ratio)
		}
		capex, err := annuity(rec.Get("capacity_cost")+rec.Get("storage_capacity_cost")/ratio, rec.Get("lifetime"), opts.WACC)
		if err != nil {
			return nil, err
		}
		potential := element.Unlimited()
		if tech == "acaes" && r != "DE" {
			potential = element.Some(0)
		}
		return element.Storage{
			Identity:          id,
			Bus:               bus,
			CapacityPotential: potential,
			CapacityCost:      element.Some(capex),
			MarginalCost:      element.Some(StorageMarginalCost),
			Efficiency:        element.Some(economics.OneWay(rec.Get("efficiency"))),
			Loss:              element.Some(StorageLoss),
			CapacityRatio:     element.Some(ratio),
			Lifetime:          element.Some(rec.Get("lifetime")),
		}, nil
	}
	return nil, fmt.Errorf("unknown component family %q", family)
}

// annuity returns the annualized per-MW cost of a per-kW investment.
func annuity(capex, lifetime, wacc float64) (float64, error) {
	a, err := economics.Annuity(capex, lifetime, wacc)
	if err != nil {
		return 0, err
	}
	return a * economics.KWToMW, nil
}

// fuelCost returns the marginal cost of burning carrier at efficiency and the
// carrier emission factor.
func fuelCost(carriers *reference.Carriers, year int, carrier string, efficiency float64) (float64, float64, error) {
	fuel, err := carriers.Cost(year, carrier)
	if err != nil {
		return 0, 0, err
	}
	ef, err := carriers.Emission(year, carrier)
	if err != nil {
		return 0, 0, err
	}
	co2, err := carriers.Cost(year, reference.CO2)
	if err != nil {
		return 0, 0, err
	}
	mc, err := economics.MarginalCost(fuel, co2, ef, efficiency)
	if err != nil {
		return 0, 0, err
	}
	if math.IsNaN(mc) {
		return 0, 0, fmt.Errorf("marginal cost of %s is undefined", carrier)
	}
	return mc, ef, nil
}
