package generation

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/economics"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
)

// National plan targets for Germany, in MW and MWh.
const (
	planOffshore         = 17000
	planOnshore          = 85500
	planPV               = 104500
	planBiomass          = 6000
	planBiomassEff       = 0.4
	planBattery          = 10000
	planBatteryHours     = 8
	planBatteryRoundtrip = 0.9
	planCarrierCostYear  = 2030
)

// PlanRenewables builds the renewable, biomass and battery capacities of the
// German national plan scenario. The biomass plant is only built when buses
// holds the German biomass bus.
func PlanRenewables(carriers *reference.Carriers, buses map[string]element.Bus, logger log.Logger) ([]element.Component, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	const r = "DE"
	bus := topology.ElectricityBus(r)

	volatile := []struct {
		carrier, tech string
		capacity      float64
		profile       string
	}{
		{"wind", "offshore", planOffshore, r + "-wind-off-profile"},
		{"wind", "onshore", planOnshore, r + "-wind-on-profile"},
		{"solar", "pv", planPV, r + "-pv-profile"},
	}
	var out []element.Component
	for _, v := range volatile {
		out = append(out, element.Volatile{
			Identity: element.Identity{Name: r + "-" + v.carrier + "-" + v.tech, Carrier: v.carrier, Tech: v.tech},
			Bus:      bus,
			Capacity: element.Some(v.capacity),
			Profile:  v.profile,
		})
	}

	if _, ok := buses[topology.BiomassBus(r)]; ok {
		cost, err := carriers.Cost(planCarrierCostYear, element.Biomass)
		if err != nil {
			return nil, fmt.Errorf("plan biomass: %w", err)
		}
		out = append(out, element.Conversion{
			Identity:    element.Identity{Name: r + "-biomass-ce", Carrier: element.Biomass, Tech: "ce"},
			FromBus:     topology.BiomassBus(r),
			ToBus:       bus,
			Capacity:    element.Some(planBiomass),
			Efficiency:  element.Some(planBiomassEff),
			CarrierCost: element.Some(cost),
		})
	} else {
		level.Warn(logger).Log("msg", "conversion input bus missing, skipped", "name", r+"-biomass-ce", "from_bus", topology.BiomassBus(r))
	}

	out = append(out, element.Storage{
		Identity:        element.Identity{Name: r + "-battery", Carrier: element.Electricity, Tech: "battery"},
		Bus:             bus,
		Capacity:        element.Some(planBattery),
		StorageCapacity: element.Some(planBattery * planBatteryHours),
		Efficiency:      element.Some(economics.OneWay(planBatteryRoundtrip)),
		Loss:            element.Some(StorageLoss),
		MarginalCost:    element.Some(StorageMarginalCost),
	})
	level.Info(logger).Log("msg", "built national plan renewables", "count", len(out))
	return out, nil
}
