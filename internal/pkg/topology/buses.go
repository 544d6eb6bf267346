// Package topology builds the buses of a dataset, their geometries and the
// transshipment links between electricity buses.
package topology

import (
	"github.com/ohowland/fuchur_core/internal/pkg/element"
)

// GasHub is the unbalanced global fuel bus CHP units draw from.
const GasHub = "GL-gas"

// Regions lists the configured regions per bus family. Codes are canonical.
type Regions struct {
	Electricity   []string
	HeatCentral   []string
	HeatDecentral []string
	Biomass       []string
}

// ElectricityBus names the electricity bus of region r.
func ElectricityBus(r string) string {
	return r + "-electricity"
}

// HeatBus names the heat bus of region r, kind "central" or "decentral".
func HeatBus(r, kind string) string {
	return r + "-heat-" + kind
}

// BiomassBus names the biomass bus of region r.
func BiomassBus(r string) string {
	return r + "-biomass-bus"
}

// Buses returns every bus of the configured regions. The gas hub is added
// when any heat region exists, since every heat bus gets a CHP unit.
func Buses(regions Regions) []element.Bus {
	var out []element.Bus
	for _, r := range regions.Electricity {
		name := ElectricityBus(r)
		out = append(out, element.Bus{Name: name, Carrier: element.Electricity, Balanced: true, Geometry: name})
	}
	for _, r := range regions.HeatCentral {
		out = append(out, element.Bus{Name: HeatBus(r, "central"), Carrier: element.Heat, Balanced: true})
	}
	for _, r := range regions.HeatDecentral {
		out = append(out, element.Bus{Name: HeatBus(r, "decentral"), Carrier: element.Heat, Balanced: true})
	}
	for _, r := range regions.Biomass {
		out = append(out, element.Bus{Name: BiomassBus(r), Carrier: element.Biomass, Balanced: true})
	}
	if len(regions.HeatCentral)+len(regions.HeatDecentral) > 0 {
		out = append(out, element.Bus{Name: GasHub, Carrier: element.Gas, Balanced: false})
	}
	return out
}

// Index maps bus names onto buses.
func Index(buses []element.Bus) map[string]element.Bus {
	idx := make(map[string]element.Bus, len(buses))
	for _, b := range buses {
		idx[b.Name] = b
	}
	return idx
}
