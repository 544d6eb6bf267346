package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/config"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/generation"
	"github.com/ohowland/fuchur_core/internal/pkg/heat"
	"github.com/ohowland/fuchur_core/internal/pkg/hydro"
	"github.com/ohowland/fuchur_core/internal/pkg/load"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
	"github.com/ohowland/fuchur_core/internal/pkg/profile"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
)

// fleetRegion is covered by the registry fleet and the national plan in the
// TYNDP flow.
const fleetRegion = "DE"

func (r *run) component(name string) log.Logger {
	return log.With(r.logger, "component", name)
}

func (r *run) add(components ...element.Component) {
	r.components = append(r.components, components...)
}

func (r *run) topology(ctx context.Context) (int, error) {
	b := r.scenario.Buses
	r.buses = topology.Buses(topology.Regions{
		Electricity:   b.Electricity,
		HeatCentral:   b.Heat.Central,
		HeatDecentral: b.Heat.Decentral,
		Biomass:       b.Biomass,
	})
	logger := r.component("topology")
	shapes, err := topology.LoadGeometries(r.archive.Path(source.NUTSShapefile), b.Electricity, logger)
	if err != nil {
		return 0, err
	}
	r.geometries = topology.AttachGeometries(r.buses, shapes, logger)
	return len(r.buses), nil
}

func (r *run) biomass(ctx context.Context) (int, error) {
	regions := r.scenario.Buses.Biomass
	if len(regions) == 0 {
		return 0, nil
	}
	potentials, err := r.refs.Potentials(ctx)
	if err != nil {
		return 0, err
	}
	c := generation.Commodities(potentials, regions, r.component("biomass"))
	r.add(c...)
	return len(c), nil
}

func (r *run) grid(ctx context.Context) (int, error) {
	regions := r.scenario.Buses.Electricity
	if r.scenario.Grid == "" || len(regions) < 2 {
		return 0, nil
	}
	logger := r.component("grid")
	links, err := topology.Links(ctx, r.archive, topology.LinkOptions{
		Variant:  r.scenario.Grid,
		Regions:  regions,
		Scenario: r.scenario.EHighway.Scenario,
	}, logger)
	if err != nil {
		return 0, err
	}
	g, err := topology.Network(r.buses, links)
	if err != nil {
		return 0, err
	}
	for _, bus := range g.Isolated() {
		level.Warn(logger).Log("msg", "electricity bus has no link", "bus", bus)
		r.publish(msg.Warning, "grid", bus, 0)
	}
	for _, l := range links {
		r.add(l)
	}
	return len(links), nil
}

func (r *run) load(ctx context.Context) (int, error) {
	s := r.scenario
	if s.Load == "" {
		return 0, nil
	}
	scenario := s.EHighway.Scenario
	if s.Load == config.VariantTYNDP {
		scenario = s.TYNDP.Load
	}
	loads, err := load.Read(ctx, r.archive, load.Options{
		Variant:  s.Load,
		Regions:  s.Buses.Electricity,
		Year:     s.Temporal.ScenarioYear,
		Scenario: scenario,
	}, r.component("load"))
	if err != nil {
		return 0, err
	}
	for _, l := range loads {
		r.add(l)
	}
	return len(loads), nil
}

func (r *run) generation(ctx context.Context) (int, error) {
	switch r.flow {
	case Construct:
		return r.investment(ctx)
	case ConstructTYNDP:
		return r.tyndp(ctx)
	}
	return 0, fmt.Errorf("unknown flow %q", r.flow)
}

func (r *run) investment(ctx context.Context) (int, error) {
	s := r.scenario
	if len(s.Technologies.Investment) == 0 {
		return 0, nil
	}
	refs, err := r.references(ctx, true)
	if err != nil {
		return 0, err
	}
	c, err := generation.Investment(refs, generation.InvestmentOptions{
		Regions:         s.Buses.Electricity,
		Technologies:    s.Technologies.Investment,
		Year:            s.Temporal.ScenarioYear,
		WACC:            s.Cost.WACC,
		CostFactor:      s.Cost.Factor,
		PotentialSource: s.Potential,
		Buses:           topology.Index(r.buses),
	}, r.component("investment"))
	if err != nil {
		return 0, err
	}
	r.add(c...)
	return len(c), nil
}

func (r *run) tyndp(ctx context.Context) (int, error) {
	s := r.scenario
	refs, err := r.references(ctx, false)
	if err != nil {
		return 0, err
	}
	logger := r.component("tyndp")
	var exclude []string
	if contains(s.Buses.Electricity, fleetRegion) {
		exclude = []string{fleetRegion}
	}
	mix, err := generation.LoadTYNDP(ctx, r.archive, refs.Carriers, generation.TYNDPOptions{
		Vision:  s.TYNDP.Generation,
		Regions: s.Buses.Electricity,
		Exclude: exclude,
		Year:    s.Temporal.ScenarioYear,
		Buses:   topology.Index(r.buses),
	}, logger)
	if err != nil {
		return 0, err
	}
	r.add(mix...)
	n := len(mix)
	if exclude == nil {
		return n, nil
	}

	fleet, err := generation.LoadFleet(ctx, r.archive, refs, generation.FleetOptions{Year: s.Temporal.ScenarioYear}, r.component("fleet"))
	if err != nil {
		return 0, err
	}
	plan, err := generation.PlanRenewables(refs.Carriers, topology.Index(r.buses), r.component("plan"))
	if err != nil {
		return 0, err
	}
	r.add(fleet...)
	r.add(plan...)
	return n + len(fleet) + len(plan), nil
}

// references fetches the electricity technologies and the carriers, plus the
// potentials when asked.
func (r *run) references(ctx context.Context, potentials bool) (generation.Refs, error) {
	var refs generation.Refs
	var err error
	if refs.Technologies, err = r.refs.Technologies(ctx, reference.Electricity); err != nil {
		return refs, err
	}
	if refs.Carriers, err = r.refs.Carriers(ctx); err != nil {
		return refs, err
	}
	if potentials {
		if refs.Potentials, err = r.refs.Potentials(ctx); err != nil {
			return refs, err
		}
	}
	return refs, nil
}

func (r *run) hydro(ctx context.Context) (int, error) {
	s := r.scenario
	if !s.Technologies.Hydro {
		return 0, nil
	}
	techs, err := r.refs.Technologies(ctx, reference.Electricity)
	if err != nil {
		return 0, err
	}
	res, err := hydro.Load(ctx, r.archive, techs, hydro.Options{
		Regions:      s.Buses.Electricity,
		ScenarioYear: s.Temporal.ScenarioYear,
		WACC:         s.Cost.WACC,
	}, s.Temporal.WeatherYear, r.fallbacks, r.component("hydro"))
	if err != nil {
		return 0, err
	}
	r.add(res.Components...)
	r.profiles = append(r.profiles, res.Ror, res.Reservoir)
	return len(res.Components), nil
}

func (r *run) heat(ctx context.Context) (int, error) {
	s := r.scenario
	if !s.HeatRegions() {
		return 0, nil
	}
	opts := heat.Options{
		Central:   s.Buses.Heat.Central,
		Decentral: s.Buses.Heat.Decentral,
		Year:      s.Temporal.ScenarioYear,
		WACC:      s.Cost.WACC,
		Amount:    s.Heat.Amount,
	}
	var tables heat.Tables
	var err error
	if len(opts.Central) > 0 {
		if tables.Central, err = r.refs.Technologies(ctx, reference.CentralHeat); err != nil {
			return 0, err
		}
	}
	if len(opts.Decentral) > 0 {
		if tables.Decentral, err = r.refs.Technologies(ctx, reference.DecentralHeat); err != nil {
			return 0, err
		}
	}
	if tables.Carriers, err = r.refs.Carriers(ctx); err != nil {
		return 0, err
	}
	c, err := heat.Build(tables, opts, r.component("heat"))
	if err != nil {
		return 0, err
	}
	r.add(c...)
	return len(c), nil
}

// buildProfiles builds exactly the profiles referenced by components that
// survive the capacity filter of the assembly.
func (r *run) buildProfiles(ctx context.Context) (int, error) {
	s := r.scenario
	var emitted []element.Component
	for _, c := range r.components {
		if capacity, potential := c.Sizing(); capacity.Positive() && potential.Positive() {
			emitted = append(emitted, c)
		}
	}
	wanted := profile.Referenced(emitted)
	opts := profile.Options{
		Regions:      s.Buses.Electricity,
		WeatherYear:  s.Temporal.WeatherYear,
		DemandYear:   s.Temporal.DemandYear,
		ScenarioYear: s.Temporal.ScenarioYear,
		Fallbacks:    r.fallbacks,
	}
	logger := r.component("profile")
	n := 0
	keep := func(p *element.Profiles) {
		if p != nil && !p.Empty() {
			r.profiles = append(r.profiles, p)
			n += len(p.Names())
		}
	}

	volatile, err := profile.Volatile(ctx, r.archive, wanted, opts, logger)
	if err != nil {
		return 0, err
	}
	keep(volatile)

	if wantsSuffix(wanted, "-electricity-load-profile") {
		loads, err := profile.LoadElectricity(ctx, r.archive, wanted, opts, logger)
		if err != nil {
			return 0, err
		}
		keep(loads)
	}

	if wantsSuffix(wanted, "-heat-load-profile") {
		heatOpts := opts
		heatOpts.Regions = unique(s.Buses.Heat.Central, s.Buses.Heat.Decentral)
		heatLoads, err := profile.LoadHeat(ctx, r.archive, wanted, heatOpts)
		if err != nil {
			return 0, err
		}
		keep(heatLoads)
	}
	level.Info(logger).Log("msg", "built profiles", "wanted", len(wanted), "count", n)
	return n, nil
}

func wantsSuffix(w profile.Wanted, suffix string) bool {
	for name := range w {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func unique(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range lists {
		for _, v := range l {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
