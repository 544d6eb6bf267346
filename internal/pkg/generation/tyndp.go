package generation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
)

// Visions maps each TYNDP 2016 vision onto the first row of its block in the
// NGC sheet.
var Visions = map[string]int{
	"vision1": 41,
	"vision2": 80,
	"vision3": 119,
	"vision4": 158,
}

const visionRows = 36

// Thermal efficiencies assumed for the TYNDP mix.
var tyndpEfficiency = map[string]float64{
	"biomass": 0.45,
	"coal":    0.45,
	"gas":     0.5,
	"uranium": 0.35,
	"oil":     0.35,
	"lignite": 0.4,
}

const (
	tyndpMax             = 0.85
	othersSummedMax      = 2000
	emissionFactorYear   = 2014
	biomassCarrierCostYr = 2030
)

// TYNDPOptions parameterizes the TYNDP generation builder.
type TYNDPOptions struct {
	Vision  string
	Regions []string
	// Exclude lists regions whose generation comes from another builder.
	Exclude []string
	Year    int
	// Buses holds every bus of the topology. Biomass conversions without
	// their input bus are skipped.
	Buses map[string]element.Bus
}

// ReadVision reads the generation block of vision from the NGC sheet rows.
func ReadVision(rows [][]string, vision string) (*source.Table, error) {
	offset, ok := Visions[vision]
	if !ok {
		return nil, fmt.Errorf("unknown TYNDP vision %q", vision)
	}
	start, end := 1+offset, 1+offset+visionRows
	if len(rows) < end {
		return nil, fmt.Errorf("NGC sheet has %d rows, %s needs %d", len(rows), vision, end)
	}
	t := source.NewTable("NGC#"+vision, rows[start:end])
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("NGC sheet: %s block has no header", vision)
	}
	t.Columns[0] = "country"
	t.Rename(map[string]string{"Hard coal": "coal", "Nuclear": "uranium"})
	t.DropEmptyColumns()
	if err := t.Require("Biofuels", "Others RES"); err != nil {
		return nil, err
	}

	bio, other := t.Column("Biofuels"), t.Column("Others RES")
	cols := []string{}
	keep := []int{}
	for c, name := range t.Columns {
		if c == bio || c == other {
			continue
		}
		cols = append(cols, strings.ReplaceAll(strings.ToLower(name), " ", "-"))
		keep = append(keep, c)
	}
	out := &source.Table{Name: t.Name, Columns: append(cols, "biomass")}
	for i := range t.Rows {
		row := make([]string, 0, len(keep)+1)
		for _, c := range keep {
			row = append(row, t.Cell(i, c))
		}
		sum := t.Float(i, bio) + t.Float(i, other)
		row = append(row, element.Float{Value: sum, Valid: !math.IsNaN(sum)}.String())
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// TYNDP builds the existing generation mix of every region not excluded.
func TYNDP(mix *source.Table, carriers *reference.Carriers, opts TYNDPOptions, logger log.Logger) ([]element.Component, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	rows := map[string]int{}
	for i := range mix.Rows {
		rows[normalize.Country(mix.Cell(i, 0))] = i
	}
	excluded := map[string]bool{}
	for _, r := range opts.Exclude {
		excluded[r] = true
	}

	var out []element.Component
	for _, r := range opts.Regions {
		if excluded[r] {
			continue
		}
		i, ok := rows[r]
		if !ok {
			return nil, fmt.Errorf("%s: no generation for region %s", mix.Name, r)
		}
		for c, carrier := range mix.Columns[1:] {
			capacity := mix.FloatOr(i, c+1, 0)
			if capacity == 0 {
				continue
			}
			comp, err := tyndpComponent(carriers, opts.Year, r, carrier, capacity)
			if err != nil {
				return nil, fmt.Errorf("tyndp %s-%s: %w", r, carrier, err)
			}
			if comp == nil {
				continue
			}
			if conv, ok := comp.(element.Conversion); ok {
				if _, ok := opts.Buses[conv.FromBus]; !ok {
					level.Warn(logger).Log("msg", "conversion input bus missing, skipped", "name", conv.Name, "from_bus", conv.FromBus)
					continue
				}
			}
			out = append(out, comp)
		}
	}
	level.Info(logger).Log("msg", "built tyndp generation", "vision", opts.Vision, "count", len(out))
	return out, nil
}

func tyndpComponent(carriers *reference.Carriers, year int, r, carrier string, capacity float64) (element.Component, error) {
	bus := topology.ElectricityBus(r)
	switch carrier {
	case "wind", "solar":
		tech, profile := "wind-on", r+"-wind-on-profile"
		if carrier == "solar" {
			tech, profile = "pv", r+"-pv-profile"
		}
		return element.Volatile{
			Identity: element.Identity{Name: r + "-" + tech, Carrier: carrier, Tech: tech},
			Bus:      bus,
			Capacity: element.Some(capacity),
			Profile:  profile,
		}, nil

	case "gas", "coal", "lignite", "oil", "uranium":
		fuel, err := carriers.Cost(year, carrier)
		if err != nil {
			return nil, err
		}
		ef, err := carriers.Emission(emissionFactorYear, carrier)
		if err != nil {
			return nil, err
		}
		co2, err := carriers.Cost(year, reference.CO2)
		if err != nil {
			return nil, err
		}
		eff := tyndpEfficiency[carrier]
		return element.Dispatchable{
			Identity:         element.Identity{Name: r + "-" + carrier, Carrier: carrier, Tech: carrier},
			Bus:              bus,
			Capacity:         element.Some(capacity),
			MarginalCost:     element.Some((fuel + ef*co2) / eff),
			OutputParameters: element.Params{"max": tyndpMax},
		}, nil

	case "others-non-res":
		return element.Dispatchable{
			Identity:         element.Identity{Name: r + "-" + carrier, Carrier: carrier, Tech: carrier},
			Bus:              bus,
			Capacity:         element.Some(capacity),
			MarginalCost:     element.Some(0),
			OutputParameters: element.Params{"summed_max": othersSummedMax},
		}, nil

	case "biomass":
		cost, err := carriers.Cost(biomassCarrierCostYr, carrier)
		if err != nil {
			return nil, err
		}
		return element.Conversion{
			Identity:    element.Identity{Name: r + "-" + carrier, Carrier: carrier, Tech: carrier},
			FromBus:     topology.BiomassBus(r),
			ToBus:       bus,
			Capacity:    element.Some(capacity),
			Efficiency:  element.Some(tyndpEfficiency[carrier]),
			CarrierCost: element.Some(cost),
		}, nil
	}
	return nil, nil
}

// LoadTYNDP reads the vision block from the TYNDP market modelling workbook
// and builds the mix.
func LoadTYNDP(ctx context.Context, archive *source.Archive, carriers *reference.Carriers, opts TYNDPOptions, logger log.Logger) ([]element.Component, error) {
	path, err := archive.Require(ctx, source.TYNDPMarket)
	if err != nil {
		return nil, err
	}
	rows, err := source.ReadSheetRows(path, "NGC")
	if err != nil {
		return nil, err
	}
	mix, err := ReadVision(rows, opts.Vision)
	if err != nil {
		return nil, err
	}
	return TYNDP(mix, carriers, opts, logger)
}
