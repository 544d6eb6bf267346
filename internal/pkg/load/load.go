// Package load builds the annual electricity demand of every region.
package load

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
	"gonum.org/v1/gonum/floats"
)

// Load variants.
const (
	EHighway = "ehighway"
	TYNDP    = "tyndp"
)

const gwhToMWh = 1000

const (
	eHighwayIndex = "Scenario"
	tyndpSheet    = "Demand"
)

// Options selects the demand source.
type Options struct {
	Variant string
	Regions []string
	// Year picks the e-Highway sheet.
	Year int
	// Scenario is the demand column of the chosen source.
	Scenario string
}

// Sheet returns the e-Highway demand sheet of year.
func Sheet(year int) (string, error) {
	switch year {
	case 2050:
		return "T40", nil
	case 2040:
		return "T39", nil
	}
	return "", fmt.Errorf("e-Highway demand exists for 2040 and 2050 only, got %d", year)
}

// EHighwayDemand reads the per-country demand in GWh from an e-Highway demand
// sheet, whose first row after the header holds units.
func EHighwayDemand(t *source.Table, scenario string) (map[string]float64, error) {
	if err := t.Require(eHighwayIndex, scenario); err != nil {
		return nil, err
	}
	if len(t.Rows) > 0 {
		t.Rows = t.Rows[1:]
	}
	ci, cv := t.Column(eHighwayIndex), t.Column(scenario)
	out := map[string]float64{}
	for i := range t.Rows {
		label := t.Cell(i, ci)
		if label == "" {
			continue
		}
		out[normalize.Country(label)] = t.Float(i, cv)
	}
	return out, nil
}

// TYNDPDemand sums the demand of every market node into its country, the
// first two characters of the node label.
func TYNDPDemand(t *source.Table, scenario string) (map[string]float64, error) {
	if err := t.Require(scenario); err != nil {
		return nil, err
	}
	cv := t.Column(scenario)
	nodes := map[string][]float64{}
	for i := range t.Rows {
		label := t.Cell(i, 0)
		if len(label) < 2 {
			continue
		}
		c := normalize.Country(label[:2])
		if v := t.Float(i, cv); !math.IsNaN(v) {
			nodes[c] = append(nodes[c], v)
		}
	}
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		out[k] = floats.Sum(nodes[k])
	}
	return out, nil
}

// Build emits one electricity load per region from demand in GWh.
func Build(demand map[string]float64, regions []string) ([]element.Load, error) {
	out := make([]element.Load, 0, len(regions))
	for _, r := range regions {
		gwh, ok := demand[r]
		if !ok || math.IsNaN(gwh) {
			return nil, fmt.Errorf("no electricity demand for region %s", r)
		}
		bus := topology.ElectricityBus(r)
		out = append(out, element.Load{
			Identity: element.Identity{Name: bus + "-load", Carrier: element.Electricity},
			Bus:      bus,
			Amount:   element.Some(gwh * gwhToMWh),
			Profile:  bus + "-load-profile",
		})
	}
	return out, nil
}

// Read loads the configured demand source from the raw archive.
func Read(ctx context.Context, archive *source.Archive, opts Options, logger log.Logger) ([]element.Load, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	var demand map[string]float64
	switch opts.Variant {
	case EHighway, "":
		sheet, err := Sheet(opts.Year)
		if err != nil {
			return nil, err
		}
		path, err := archive.Require(ctx, source.EHighwayWorkbook)
		if err != nil {
			return nil, err
		}
		t, err := source.ReadSheet(path, sheet, source.SheetOptions{Skip: []int{0, 1}, Required: []string{eHighwayIndex}})
		if err != nil {
			return nil, err
		}
		if demand, err = EHighwayDemand(t, opts.Scenario); err != nil {
			return nil, err
		}
	case TYNDP:
		path, err := archive.Require(ctx, source.TYNDPInput)
		if err != nil {
			return nil, err
		}
		t, err := source.ReadSheet(path, tyndpSheet, source.SheetOptions{})
		if err != nil {
			return nil, err
		}
		if demand, err = TYNDPDemand(t, opts.Scenario); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown load variant %q", opts.Variant)
	}
	loads, err := Build(demand, opts.Regions)
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("msg", "built electricity loads", "variant", opts.Variant, "count", len(loads))
	return loads, nil
}
