package generation

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
)

// BiomassPotentialSource is the study biomass potentials are taken from.
const BiomassPotentialSource = "hotmaps"

const twhToMWh = 1e6

// Commodities builds the biomass supply of every biomass region, limited to
// the regional potential over the modelled year.
func Commodities(potentials *reference.Potentials, regions []string, logger log.Logger) []element.Component {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	out := make([]element.Component, 0, len(regions))
	for _, r := range regions {
		potential, ok := potentials.Carrier(BiomassPotentialSource, r, element.Biomass)
		if !ok {
			level.Warn(logger).Log("msg", "no biomass potential", "region", r)
		}
		out = append(out, element.Commodity{Dispatchable: element.Dispatchable{
			Identity:         element.Identity{Name: r + "-biomass-commodity", Carrier: element.Biomass},
			Bus:              topology.BiomassBus(r),
			Capacity:         element.Some(potential * twhToMWh),
			OutputParameters: element.Params{"summed_max": 1},
		}})
	}
	return out
}
