// Package heat builds the central and decentral heat sector: heat loads,
// boilers, heat pumps, combined heat and power units and hot water storage.
package heat

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/economics"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
)

// DefaultAmount is the annual heat demand of every heat bus in MWh.
const DefaultAmount = 200e6

// Heat bus kinds.
const (
	Central   = "central"
	Decentral = "decentral"
)

var techTypes = map[string]map[string]string{
	Decentral: {
		"backpressure":           element.TypeBackpressure,
		"boiler_decentral":       element.TypeDispatchable,
		"electricity_heatpump":   element.TypeConversion,
		"gas_heatpump":           element.TypeDispatchable,
		"hotwatertank_decentral": element.TypeStorage,
	},
	Central: {
		"extraction":           element.TypeExtraction,
		"boiler_central":       element.TypeDispatchable,
		"hotwatertank_central": element.TypeStorage,
	},
}

// Options parameterizes the heat builder.
type Options struct {
	Central   []string
	Decentral []string
	Year      int
	WACC      float64
	// Amount is the annual demand per heat bus, DefaultAmount when zero.
	Amount float64
}

// Tables are the reference tables the heat builder reads.
type Tables struct {
	Central   *reference.Technologies
	Decentral *reference.Technologies
	Carriers  *reference.Carriers
}

// Loads emits one heat load per heat bus.
func Loads(opts Options) []element.Load {
	amount := opts.Amount
	if amount == 0 {
		amount = DefaultAmount
	}
	var out []element.Load
	add := func(regions []string, kind string) {
		for _, r := range regions {
			bus := topology.HeatBus(r, kind)
			out = append(out, element.Load{
				Identity: element.Identity{Name: bus + "-load", Carrier: element.Heat},
				Bus:      bus,
				Amount:   element.Some(amount),
				Profile:  r + "-heat-load-profile",
			})
		}
	}
	add(opts.Central, Central)
	add(opts.Decentral, Decentral)
	return out
}

// Build emits the heat loads and one component per heat bus and technology
// of the matching technology table.
func Build(tables Tables, opts Options, logger log.Logger) ([]element.Component, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	var out []element.Component
	for _, l := range Loads(opts) {
		out = append(out, l)
	}
	for _, kind := range []string{Central, Decentral} {
		regions, techs := opts.Central, tables.Central
		if kind == Decentral {
			regions, techs = opts.Decentral, tables.Decentral
		}
		if len(regions) == 0 {
			continue
		}
		if techs == nil {
			return nil, fmt.Errorf("no %s heat technology table", kind)
		}
		records := techs.Year(opts.Year)
		for _, r := range regions {
			for _, rec := range records {
				typ, ok := techTypes[kind][rec.Tech]
				if !ok {
					continue
				}
				c, err := build(tables.Carriers, rec, typ, r, kind, opts)
				if err != nil {
					return nil, fmt.Errorf("heat %s-%s: %w", rec.Tech, topology.HeatBus(r, kind), err)
				}
				out = append(out, c)
			}
		}
	}
	level.Info(logger).Log("msg", "built heat sector", "central", len(opts.Central), "decentral", len(opts.Decentral), "count", len(out))
	return out, nil
}

func build(carriers *reference.Carriers, rec reference.Record, typ, r, kind string, opts Options) (element.Component, error) {
	bus := topology.HeatBus(r, kind)
	id := element.Identity{Name: rec.Tech + "-" + bus, Carrier: rec.Carrier, Tech: rec.Tech}

	if typ == element.TypeStorage {
		if err := rec.Require("storage_capacity_cost", "lifetime", "efficiency", "capacity_ratio"); err != nil {
			return nil, err
		}
		scc, err := annuity(rec.Get("storage_capacity_cost"), rec.Get("lifetime"), opts.WACC)
		if err != nil {
			return nil, err
		}
		return element.Storage{
			Identity:            id,
			Bus:                 bus,
			CapacityPotential:   element.Unlimited(),
			StorageCapacityCost: element.Some(scc),
			Efficiency:          element.Some(rec.Get("efficiency")),
			CapacityRatio:       element.Some(rec.Get("capacity_ratio")),
			Lifetime:            element.Some(rec.Get("lifetime")),
		}, nil
	}

	if err := rec.Require("capacity_cost", "lifetime"); err != nil {
		return nil, err
	}
	cc, err := annuity(rec.Get("capacity_cost"), rec.Get("lifetime"), opts.WACC)
	if err != nil {
		return nil, err
	}

	switch typ {
	case element.TypeConversion:
		eff, ok := rec.Param("efficiency")
		if !ok {
			eff, ok = rec.Param("thermal_efficiency")
		}
		if !ok {
			return nil, fmt.Errorf("technology %s has no efficiency", rec.Tech)
		}
		return element.Conversion{
			Identity:          id,
			FromBus:           topology.ElectricityBus(r),
			ToBus:             bus,
			Efficiency:        element.Some(eff),
			CapacityPotential: element.Unlimited(),
			CapacityCost:      element.Some(cc),
			Lifetime:          element.Some(rec.Get("lifetime")),
		}, nil

	case element.TypeDispatchable:
		if err := rec.Require("efficiency"); err != nil {
			return nil, err
		}
		fuel, ef, err := carrierCost(carriers, opts.Year, rec.Carrier)
		if err != nil {
			return nil, err
		}
		eff := rec.Get("efficiency")
		if eff <= 0 {
			return nil, fmt.Errorf("technology %s has efficiency %v", rec.Tech, eff)
		}
		return element.Dispatchable{
			Identity:          id,
			Bus:               bus,
			CapacityPotential: element.Unlimited(),
			CapacityCost:      element.Some(cc),
			MarginalCost:      element.Some(fuel / eff),
			Efficiency:        element.Some(eff),
			Lifetime:          element.Some(rec.Get("lifetime")),
			OutputParameters:  element.Params{"emission_factor": ef},
		}, nil

	case element.TypeBackpressure, element.TypeExtraction:
		if err := rec.Require("thermal_efficiency", "electrical_efficiency"); err != nil {
			return nil, err
		}
		fuel, ef, err := carrierCost(carriers, opts.Year, rec.Carrier)
		if err != nil {
			return nil, err
		}
		chp := element.Backpressure{
			Identity:           id,
			FuelBus:            topology.GasHub,
			ElectricityBus:     topology.ElectricityBus(r),
			HeatBus:            bus,
			CarrierCost:        element.Some(fuel),
			ThermalEfficiency:  element.Some(rec.Get("thermal_efficiency")),
			ElectricEfficiency: element.Some(rec.Get("electrical_efficiency")),
			CapacityPotential:  element.Unlimited(),
			CapacityCost:       element.Some(cc),
			Lifetime:           element.Some(rec.Get("lifetime")),
			InputParameters:    element.Params{"emission_factor": ef},
		}
		if typ == element.TypeBackpressure {
			return chp, nil
		}
		if err := rec.Require("condensing_efficiency"); err != nil {
			return nil, err
		}
		return element.Extraction{Backpressure: chp, CondensingEfficiency: element.Some(rec.Get("condensing_efficiency"))}, nil
	}
	return nil, fmt.Errorf("unsupported component type %q", typ)
}

func annuity(capex, lifetime, wacc float64) (float64, error) {
	a, err := economics.Annuity(capex, lifetime, wacc)
	if err != nil {
		return 0, err
	}
	return a * economics.KWToMW, nil
}

func carrierCost(carriers *reference.Carriers, year int, carrier string) (float64, float64, error) {
	cost, err := carriers.Cost(year, carrier)
	if err != nil {
		return 0, 0, err
	}
	ef, err := carriers.Emission(year, carrier)
	if err != nil {
		return 0, 0, err
	}
	return cost, ef, nil
}
