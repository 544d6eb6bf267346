// Package pipeline runs one dataset construction end to end: topology,
// components, profiles, assembly and the write to the dataset store.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/ohowland/fuchur_core/internal/pkg/assembly"
	"github.com/ohowland/fuchur_core/internal/pkg/config"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/metrics"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/paulmach/orb"
)

// Flow picks the generation builders of a run.
type Flow string

const (
	// Construct builds expandable investment options per technology.
	Construct Flow = "construct"
	// ConstructTYNDP builds the TYNDP vision mix, with Germany taken from
	// the plant registry and the national plan.
	ConstructTYNDP Flow = "construct-tyndp"
)

// ScenarioPath is where the resolved scenario is stored next to the data.
const ScenarioPath = "resources/scenario.toml"

// Options are the run settings that do not belong to a scenario.
type Options struct {
	DatapackageDir string
	RawDataPath    string
	Offline        bool
	Client         *http.Client
	// Archives receive a copy of every dataset file.
	Archives []datapackage.Store
	// Events, when set, receives progress of every stage.
	Events  *msg.PubSub
	Metrics *metrics.Metrics
}

// Report summarizes a finished run.
type Report struct {
	RunID   string
	Dataset *assembly.Dataset
}

type run struct {
	id        string
	scenario  *config.Scenario
	flow      Flow
	opts      Options
	archive   *source.Archive
	refs      *reference.Cache
	fallbacks *normalize.Fallbacks
	logger    log.Logger

	buses      []element.Bus
	geometries map[string]orb.Geometry
	components []element.Component
	profiles   []*element.Profiles
}

// Run constructs the dataset of s with flow and writes it to
// opts.DatapackageDir and every archive.
func Run(ctx context.Context, s *config.Scenario, flow Flow, opts Options, logger log.Logger) (*Report, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	r := &run{
		id:       id.String(),
		scenario: s,
		flow:     flow,
		opts:     opts,
		logger:   log.With(logger, "run", id.String()),
	}
	r.archive = source.NewArchive(opts.RawDataPath, opts.Offline, log.With(r.logger, "component", "source"))
	if opts.Client != nil {
		r.archive.Client = opts.Client
	}
	r.refs = reference.NewCache(s.References, opts.Client, log.With(r.logger, "component", "reference"))
	r.fallbacks = normalize.NewFallbacks(normalize.DefaultRules(), s.Fallbacks.Disable, log.With(r.logger, "component", "fallback"))
	r.fallbacks.OnApply(func(rule normalize.Rule) {
		opts.Metrics.Fallback(rule.Name)
		r.publish(msg.Warning, "fallback", rule.Name, 0)
	})

	level.Info(r.logger).Log("msg", "constructing dataset", "scenario", s.Name, "flow", flow)
	ds, err := r.construct(ctx)
	if err != nil {
		return nil, err
	}
	r.publish(msg.Finished, "write", opts.DatapackageDir, len(ds.Package.Resources))
	level.Info(r.logger).Log("msg", "dataset written", "dir", opts.DatapackageDir, "resources", len(ds.Package.Resources))
	return &Report{RunID: r.id, Dataset: ds}, nil
}

func (r *run) construct(ctx context.Context) (*assembly.Dataset, error) {
	steps := []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{"buses", r.topology},
		{"biomass", r.biomass},
		{"grid", r.grid},
		{"load", r.load},
		{"generation", r.generation},
		{"hydro", r.hydro},
		{"heat", r.heat},
		{"profiles", r.buildProfiles},
	}
	for _, s := range steps {
		if err := r.stage(ctx, s.name, s.fn); err != nil {
			return nil, err
		}
	}

	var ds *assembly.Dataset
	err := r.stage(ctx, "assemble", func(ctx context.Context) (n int, err error) {
		ds, err = assembly.Assemble(assembly.Input{
			Name:       r.scenario.Name,
			RunID:      r.id,
			Year:       r.scenario.Temporal.ScenarioYear,
			Buses:      r.buses,
			Components: r.components,
			Profiles:   r.profiles,
			Geometries: r.geometries,
			Balance:    true,
		}, log.With(r.logger, "component", "assembly"))
		if err != nil {
			return 0, err
		}
		return len(ds.Package.Resources), nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.stage(ctx, "write", func(ctx context.Context) (int, error) { return r.write(ctx, ds) }); err != nil {
		return nil, err
	}
	return ds, nil
}

func (r *run) stage(ctx context.Context, name string, fn func(context.Context) (int, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := r.opts.Metrics.Stage(name)
	n, err := fn(ctx)
	done()
	if err != nil {
		r.publish(msg.Failed, name, err.Error(), 0)
		return fmt.Errorf("%s: %w", name, err)
	}
	level.Debug(r.logger).Log("msg", "stage done", "stage", name, "count", n)
	r.publish(msg.Progress, name, "", n)
	return nil
}

func (r *run) publish(topic msg.Topic, stage, detail string, count int) {
	if r.opts.Events == nil {
		return
	}
	r.opts.Events.Publish(topic, msg.Event{
		RunID:    r.id,
		Scenario: r.scenario.Name,
		Stage:    stage,
		Detail:   detail,
		Count:    count,
		Time:     time.Now().UTC(),
	})
}

// write stores the dataset, the resolved scenario and the metrics snapshot.
func (r *run) write(ctx context.Context, ds *assembly.Dataset) (int, error) {
	store := datapackage.NewMirror(datapackage.NewDirStore(r.opts.DatapackageDir), r.opts.Archives...)
	if err := ds.Write(ctx, store); err != nil {
		return 0, err
	}
	scenario, err := r.scenario.EncodeTOML()
	if err != nil {
		return 0, err
	}
	if err := store.Put(ctx, ScenarioPath, scenario); err != nil {
		return 0, err
	}

	m := r.opts.Metrics
	if m == nil {
		return len(ds.Tables), nil
	}
	for p, t := range ds.Tables {
		name := datapackage.ResourceName(p)
		if p == datapackage.SequencePath(name) {
			m.Profiles(name, len(t.Columns)-1)
		} else {
			m.Components(name, len(t.Rows))
		}
	}
	for resource, n := range ds.Dropped {
		m.Dropped(resource, n)
	}
	snapshot, err := m.Snapshot()
	if err != nil {
		return 0, err
	}
	if err := store.Put(ctx, metrics.SnapshotPath, snapshot); err != nil {
		return 0, err
	}
	return len(ds.Tables), nil
}
