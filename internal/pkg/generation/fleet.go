package generation

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Fleet defaults.
const (
	DefaultBins = 2
	DefaultEAF  = 0.95
)

const (
	fleetCountry        = "DE"
	fleetEmissionYear   = 2015
	wasteSummedMax      = 2500
	planCapacityColumn  = "Nettonennleistung B2030 [MW]"
	planRegistryIDCol   = "BNetzA-ID"
	registryCapacityCol = "capacity_net_bnetza"
	registryEffCol      = "efficiency_estimate"
)

var registryColumns = []string{"id", "fuel", "technology", "country_code", registryCapacityCol, registryEffCol}

// binned carriers are split into capacity quantile buckets.
var binned = map[string]bool{"gas": true, "coal": true, "lignite": true}

// FleetOptions parameterizes the registry fleet builder.
type FleetOptions struct {
	Year int
	Bins int
	// EAF is the equivalent availability factor, written as output max.
	EAF float64
}

type plant struct {
	carrier    string
	tech       string
	capacity   float64
	efficiency float64
	bin        int
}

// Fleet builds the existing German thermal fleet: registry plants listed with
// a non-zero capacity in the national plan, grouped into capacity buckets.
func Fleet(registry, plan *source.Table, refs Refs, opts FleetOptions, logger log.Logger) ([]element.Component, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if opts.Bins <= 0 {
		opts.Bins = DefaultBins
	}
	if opts.EAF == 0 {
		opts.EAF = DefaultEAF
	}
	if err := registry.Require(registryColumns...); err != nil {
		return nil, err
	}
	if err := plan.Require(planCapacityColumn, planRegistryIDCol); err != nil {
		return nil, err
	}

	listed := map[string]bool{}
	pc, pid := plan.Column(planCapacityColumn), plan.Column(planRegistryIDCol)
	for i := range plan.Rows {
		id := plan.Cell(i, pid)
		if id == "" || plan.Float(i, pc) == 0 {
			continue
		}
		listed[id] = true
	}

	plants, err := selectPlants(registry, listed)
	if err != nil {
		return nil, err
	}
	if err := fillEfficiency(plants); err != nil {
		return nil, err
	}
	assignBins(plants, opts.Bins)

	type groupKey struct {
		carrier, tech string
		bin           int
	}
	groups := map[groupKey][]*plant{}
	var keys []groupKey
	for _, p := range plants {
		k := groupKey{p.carrier, p.tech, p.bin}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], p)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.carrier != b.carrier {
			return a.carrier < b.carrier
		}
		if a.tech != b.tech {
			return a.tech < b.tech
		}
		return a.bin < b.bin
	})

	co2, err := refs.Carriers.Cost(opts.Year, reference.CO2)
	if err != nil {
		return nil, err
	}
	var out []element.Component
	for _, k := range keys {
		members := groups[k]
		capacity := make([]float64, 0, len(members))
		eff := make([]float64, len(members))
		for i, p := range members {
			if !math.IsNaN(p.capacity) {
				capacity = append(capacity, p.capacity)
			}
			eff[i] = p.efficiency
		}
		name := fmt.Sprintf("%s-%s-%s-%d", fleetCountry, k.carrier, k.tech, k.bin)
		mc, err := fleetMarginalCost(refs, opts.Year, k.carrier, k.tech, co2, stat.Mean(eff, nil))
		if err != nil {
			return nil, fmt.Errorf("fleet %s: %w", name, err)
		}
		params := element.Params{"max": opts.EAF}
		if k.carrier == "waste" {
			params["summed_max"] = wasteSummedMax
		}
		out = append(out, element.Dispatchable{
			Identity:         element.Identity{Name: name, Carrier: k.carrier, Tech: k.tech},
			Bus:              topology.ElectricityBus(fleetCountry),
			Capacity:         element.Some(floats.Sum(capacity)),
			MarginalCost:     element.Some(mc),
			OutputParameters: params,
		})
	}
	level.Info(logger).Log("msg", "built registry fleet", "plants", len(plants), "groups", len(out))
	return out, nil
}

func selectPlants(registry *source.Table, listed map[string]bool) ([]*plant, error) {
	cid, cfuel, ctech, ccountry := registry.Column("id"), registry.Column("fuel"), registry.Column("technology"), registry.Column("country_code")
	ccap, ceff := registry.Column(registryCapacityCol), registry.Column(registryEffCol)
	seen := map[string]bool{}
	var plants []*plant
	for i := range registry.Rows {
		id := registry.Cell(i, cid)
		if !listed[id] || seen[id] {
			continue
		}
		seen[id] = true
		fuel, technology := registry.Cell(i, cfuel), registry.Cell(i, ctech)
		if registry.Cell(i, ccountry) != fleetCountry || fuel == "Hydro" {
			continue
		}
		if fuel == "Other fuels" && technology == "Storage technologies" {
			continue
		}
		m, err := normalize.Technology(fuel, technology)
		if err != nil {
			return nil, fmt.Errorf("plant %s: %w", id, err)
		}
		plants = append(plants, &plant{
			carrier:    m.Carrier,
			tech:       m.Tech,
			capacity:   registry.Float(i, ccap),
			efficiency: registry.Float(i, ceff),
		})
	}
	return plants, nil
}

// fillEfficiency replaces missing efficiencies with the mean of the plant's
// (carrier, tech) family.
func fillEfficiency(plants []*plant) error {
	known := map[[2]string][]float64{}
	for _, p := range plants {
		if !math.IsNaN(p.efficiency) {
			k := [2]string{p.carrier, p.tech}
			known[k] = append(known[k], p.efficiency)
		}
	}
	for _, p := range plants {
		if !math.IsNaN(p.efficiency) {
			continue
		}
		vals := known[[2]string{p.carrier, p.tech}]
		if len(vals) == 0 {
			return fmt.Errorf("no efficiency known for %s/%s", p.carrier, p.tech)
		}
		p.efficiency = stat.Mean(vals, nil)
	}
	return nil
}

// assignBins splits the capacity of every binned (carrier, tech) family into
// quantile buckets. Other families stay in bin 0.
func assignBins(plants []*plant, bins int) {
	families := map[[2]string][]*plant{}
	for _, p := range plants {
		if binned[p.carrier] {
			k := [2]string{p.carrier, p.tech}
			families[k] = append(families[k], p)
		}
	}
	for _, members := range families {
		values := make([]float64, 0, len(members))
		for _, p := range members {
			if !math.IsNaN(p.capacity) {
				values = append(values, p.capacity)
			}
		}
		edges := QuantileEdges(values, bins)
		for _, p := range members {
			p.bin = Bucket(edges, p.capacity)
		}
	}
}

// QuantileEdges returns the distinct bucket edges splitting values into n
// equal-frequency buckets. Quantiles interpolate linearly between order
// statistics.
func QuantileEdges(values []float64, n int) []float64 {
	if len(values) == 0 || n <= 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var edges []float64
	for i := 0; i <= n; i++ {
		q := linearQuantile(sorted, float64(i)/float64(n))
		if len(edges) == 0 || q != edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	return edges
}

func linearQuantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Bucket returns the bucket of v: the first interval (edges[i], edges[i+1]]
// holding it, with the lowest edge included. Values outside the edges, NaN
// and degenerate edge sets fall into bucket 0.
func Bucket(edges []float64, v float64) int {
	if len(edges) < 2 || math.IsNaN(v) {
		return 0
	}
	for i := 0; i+1 < len(edges); i++ {
		if v <= edges[i+1] {
			return i
		}
	}
	return 0
}

func fleetMarginalCost(refs Refs, year int, carrier, tech string, co2, efficiency float64) (float64, error) {
	rec, ok := refs.Technologies.Lookup(year, carrier, tech)
	if !ok {
		return 0, fmt.Errorf("no technology record for %s/%s in %d", carrier, tech, year)
	}
	vom, ok := rec.Param("vom")
	if !ok {
		return 0, fmt.Errorf("technology %s/%s has no vom", carrier, tech)
	}
	ef, err := refs.Carriers.Emission(fleetEmissionYear, carrier)
	if err != nil {
		return 0, err
	}
	fuel, err := refs.Carriers.Cost(year, carrier)
	if err != nil {
		return 0, err
	}
	if efficiency <= 0 || math.IsNaN(efficiency) {
		return 0, fmt.Errorf("invalid efficiency %v", efficiency)
	}
	num := decimal.NewFromFloat(fuel).
		Add(decimal.NewFromFloat(vom)).
		Add(decimal.NewFromFloat(co2).Mul(decimal.NewFromFloat(ef)))
	mc, _ := num.Div(decimal.NewFromFloat(efficiency)).Float64()
	return mc, nil
}

// LoadFleet reads the plant registry and the national plan list from the
// raw archive and builds the fleet.
func LoadFleet(ctx context.Context, archive *source.Archive, refs Refs, opts FleetOptions, logger log.Logger) ([]element.Component, error) {
	regPath, err := archive.Require(ctx, source.PlantRegistry)
	if err != nil {
		return nil, err
	}
	registry, err := source.ReadCSV(regPath, source.CSVOptions{Required: registryColumns})
	if err != nil {
		return nil, err
	}
	planPath, err := archive.Require(ctx, source.PlanList)
	if err != nil {
		return nil, err
	}
	plan, err := source.ReadSheet(planPath, "", source.SheetOptions{Required: []string{planCapacityColumn, planRegistryIDCol}})
	if err != nil {
		return nil, err
	}
	return Fleet(registry, plan, refs, opts, logger)
}
