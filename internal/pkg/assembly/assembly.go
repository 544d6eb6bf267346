// Package assembly merges the builder outputs into one dataset, checks its
// referential integrity and writes it as a tabular data package.
package assembly

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/calendar"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/topology"
	"github.com/paulmach/orb"
)

// Balancing components added to every balanced electricity bus.
const (
	ShortageCapacity     = 10e10
	ShortageMarginalCost = 300
	ExcessMarginalCost   = 0
)

// IntegrityError reports a dataset that references something it does not
// contain, or contains something twice.
type IntegrityError struct {
	Resource  string
	Component string
	Field     string
	Reason    string
}

func (e *IntegrityError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("integrity: %s %q: %s", e.Resource, e.Component, e.Reason)
	}
	return fmt.Sprintf("integrity: %s %q field %s: %s", e.Resource, e.Component, e.Field, e.Reason)
}

// Input is everything the builders produced for one dataset.
type Input struct {
	Name       string
	RunID      string
	Year       int
	Buses      []element.Bus
	Components []element.Component
	Profiles   []*element.Profiles
	// Geometries are keyed by bus name.
	Geometries map[string]orb.Geometry
	// Balance adds excess and shortage to every balanced electricity bus.
	Balance bool
}

// Dataset is an assembled, validated data package held in memory.
type Dataset struct {
	Package *datapackage.Package
	// Tables are keyed by their dataset path.
	Tables   map[string]*datapackage.Table
	Geometry []byte
	// Dropped counts the rows filtered for a non-positive capacity, per
	// resource.
	Dropped map[string]int
}

// Assemble merges, filters, balances and validates the input.
func Assemble(in Input, logger log.Logger) (*Dataset, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	buses := topology.Index(in.Buses)
	if len(buses) != len(in.Buses) {
		return nil, duplicateBus(in.Buses)
	}

	ds := &Dataset{Tables: map[string]*datapackage.Table{}, Dropped: map[string]int{}}
	var kept []element.Component
	for _, c := range in.Components {
		capacity, potential := c.Sizing()
		if !capacity.Positive() || !potential.Positive() {
			ds.Dropped[c.Resource()]++
			level.Debug(logger).Log("msg", "dropped non-positive capacity", "name", c.ID().Name, "resource", c.Resource())
			continue
		}
		kept = append(kept, c)
	}
	if in.Balance {
		kept = append(kept, Balancing(in.Buses)...)
	}

	sequences, err := mergeProfiles(in.Profiles, in.Year)
	if err != nil {
		return nil, err
	}
	if err := Validate(kept, buses, sequences); err != nil {
		return nil, err
	}

	byResource := map[string][]element.Component{}
	var resources []string
	for _, c := range kept {
		r := c.Resource()
		if _, ok := byResource[r]; !ok {
			resources = append(resources, r)
		}
		byResource[r] = append(byResource[r], c)
	}
	sort.Strings(resources)

	pkg := &datapackage.Package{Name: in.Name, Profile: "tabular-data-package", ID: in.RunID}
	bt := busTable(in.Buses)
	ds.Tables[datapackage.ElementPath(element.TypeBus)] = bt
	pkg.Resources = append(pkg.Resources, resource(element.TypeBus, datapackage.ElementPath(element.TypeBus), bt))
	for _, r := range resources {
		t := elementTable(byResource[r]).Compact()
		p := datapackage.ElementPath(r)
		ds.Tables[p] = t
		pkg.Resources = append(pkg.Resources, resource(r, p, t))
	}
	for _, name := range sortedKeys(sequences) {
		seq := sequences[name]
		if seq.Empty() {
			continue
		}
		t := sequenceTable(seq)
		p := datapackage.SequencePath(name)
		ds.Tables[p] = t
		pkg.Resources = append(pkg.Resources, resource(name, p, t))
	}
	ds.Package = pkg

	fc := topology.FeatureCollection(in.Buses, in.Geometries)
	if ds.Geometry, err = fc.MarshalJSON(); err != nil {
		return nil, fmt.Errorf("encode bus geometries: %w", err)
	}
	level.Info(logger).Log("msg", "assembled dataset", "name", in.Name, "resources", len(pkg.Resources), "components", len(kept))
	return ds, nil
}

func duplicateBus(buses []element.Bus) error {
	seen := map[string]bool{}
	for _, b := range buses {
		if seen[b.Name] {
			return &IntegrityError{Resource: element.TypeBus, Component: b.Name, Reason: "duplicate name"}
		}
		seen[b.Name] = true
	}
	return nil
}

// Balancing returns an excess and a shortage component for every balanced
// electricity bus.
func Balancing(buses []element.Bus) []element.Component {
	var out []element.Component
	for _, b := range buses {
		if !b.Balanced || b.Carrier != element.Electricity {
			continue
		}
		out = append(out,
			element.Excess{
				Identity:     element.Identity{Name: b.Name + "-excess", Carrier: b.Carrier},
				Bus:          b.Name,
				MarginalCost: element.Some(ExcessMarginalCost),
			},
			element.Shortage{
				Identity:     element.Identity{Name: b.Name + "-shortage", Carrier: b.Carrier},
				Bus:          b.Name,
				Capacity:     element.Some(ShortageCapacity),
				MarginalCost: element.Some(ShortageMarginalCost),
			},
		)
	}
	return out
}

// SequenceResource is the sequence table the profiles of an element resource
// live in.
func SequenceResource(resource string) string {
	return resource + "_profile"
}

// Validate checks names, schemas, bus ports and profile references.
func Validate(components []element.Component, buses map[string]element.Bus, sequences map[string]*element.Profiles) error {
	names := map[string]map[string]bool{}
	for _, c := range components {
		id, r := c.ID(), c.Resource()
		if names[r] == nil {
			names[r] = map[string]bool{}
		}
		if names[r][id.Name] {
			return &IntegrityError{Resource: r, Component: id.Name, Reason: "duplicate name"}
		}
		names[r][id.Name] = true

		if err := c.Validate(); err != nil {
			return fmt.Errorf("%s: %w", r, err)
		}
		for _, p := range c.Ports() {
			b, ok := buses[p.Bus]
			if !ok {
				return &IntegrityError{Resource: r, Component: id.Name, Field: p.Field, Reason: fmt.Sprintf("unknown bus %q", p.Bus)}
			}
			if p.Carrier != "" && b.Carrier != p.Carrier {
				return &IntegrityError{Resource: r, Component: id.Name, Field: p.Field,
					Reason: fmt.Sprintf("bus %q carries %s, want %s", p.Bus, b.Carrier, p.Carrier)}
			}
		}
		if ref := c.ProfileRef(); ref != "" {
			seq, ok := sequences[SequenceResource(r)]
			if !ok {
				return &IntegrityError{Resource: r, Component: id.Name, Field: "profile", Reason: fmt.Sprintf("no sequence table %s", SequenceResource(r))}
			}
			if _, ok := seq.Series(ref); !ok {
				return &IntegrityError{Resource: r, Component: id.Name, Field: "profile", Reason: fmt.Sprintf("unknown profile %q", ref)}
			}
		}
	}
	return nil
}

// mergeProfiles joins the profile tables by resource and checks every table
// spans the scenario calendar.
func mergeProfiles(tables []*element.Profiles, year int) (map[string]*element.Profiles, error) {
	out := map[string]*element.Profiles{}
	for _, p := range tables {
		if p == nil {
			continue
		}
		if p.Len() != calendar.HoursPerYear {
			return nil, &IntegrityError{Resource: p.Resource, Reason: fmt.Sprintf("%d rows, want %d", p.Len(), calendar.HoursPerYear)}
		}
		if year != 0 && p.Index[0].Year() != year {
			return nil, &IntegrityError{Resource: p.Resource, Reason: fmt.Sprintf("calendar year %d, want %d", p.Index[0].Year(), year)}
		}
		if name, ok := p.HasNaN(); ok {
			return nil, &IntegrityError{Resource: p.Resource, Component: name, Reason: "missing values"}
		}
		dst, ok := out[p.Resource]
		if !ok {
			dst = element.NewProfiles(p.Resource, p.Index)
			out[p.Resource] = dst
		}
		if err := dst.Merge(p); err != nil {
			return nil, &IntegrityError{Resource: p.Resource, Reason: err.Error()}
		}
	}
	return out, nil
}

func busTable(buses []element.Bus) *datapackage.Table {
	rows := make([]element.Row, len(buses))
	for i, b := range buses {
		rows[i] = b.Row()
	}
	return rowsTable(rows)
}

func elementTable(components []element.Component) *datapackage.Table {
	rows := make([]element.Row, len(components))
	for i, c := range components {
		rows[i] = c.Row()
	}
	return rowsTable(rows)
}

// rowsTable lays rows out under the union of their fields, in first-seen
// order.
func rowsTable(rows []element.Row) *datapackage.Table {
	t := &datapackage.Table{}
	pos := map[string]int{}
	for _, row := range rows {
		for _, f := range row {
			if _, ok := pos[f.Key]; !ok {
				pos[f.Key] = len(t.Columns)
				t.Columns = append(t.Columns, f.Key)
			}
		}
	}
	for _, row := range rows {
		out := make([]string, len(t.Columns))
		for _, f := range row {
			out[pos[f.Key]] = f.Value
		}
		t.Rows = append(t.Rows, out)
	}
	return t
}

func sequenceTable(p *element.Profiles) *datapackage.Table {
	names := p.Names()
	t := &datapackage.Table{Columns: append([]string{"timeindex"}, names...)}
	series := make([][]float64, len(names))
	for i, n := range names {
		series[i], _ = p.Series(n)
	}
	t.Rows = make([][]string, p.Len())
	for h, ts := range p.Index {
		row := make([]string, len(names)+1)
		row[0] = calendar.Format(ts)
		for i := range names {
			row[i+1] = strconv.FormatFloat(series[i][h], 'g', -1, 64)
		}
		t.Rows[h] = row
	}
	return t
}

var busFields = []string{"bus", "from_bus", "to_bus", "fuel_bus", "electricity_bus", "heat_bus"}

func resource(name, path string, t *datapackage.Table) datapackage.Resource {
	r := datapackage.Resource{
		Name:    name,
		Path:    path,
		Profile: "tabular-data-resource",
		Schema:  datapackage.Schema{Fields: datapackage.InferFields(t)},
	}
	if len(t.Columns) == 0 {
		return r
	}
	r.Schema.PrimaryKey = t.Columns[0]
	if t.Columns[0] == "timeindex" {
		return r
	}
	for _, f := range busFields {
		if t.Column(f) >= 0 {
			r.Schema.ForeignKeys = append(r.Schema.ForeignKeys, datapackage.ForeignKey{
				Fields:    f,
				Reference: datapackage.Reference{Resource: element.TypeBus, Fields: "name"},
			})
		}
	}
	if t.Column("profile") >= 0 {
		r.Schema.ForeignKeys = append(r.Schema.ForeignKeys, datapackage.ForeignKey{
			Fields:    "profile",
			Reference: datapackage.Reference{Resource: SequenceResource(name)},
		})
	}
	return r
}

func sortedKeys(m map[string]*element.Profiles) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Write stores every table, the bus geometries and the descriptor. The store
// is cleaned first so no stale table survives.
func (ds *Dataset) Write(ctx context.Context, store datapackage.Store) error {
	if err := store.Clean(ctx); err != nil {
		return fmt.Errorf("clean dataset: %w", err)
	}
	paths := make([]string, 0, len(ds.Tables))
	for p := range ds.Tables {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := datapackage.WriteTable(ctx, store, p, ds.Tables[p]); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	if err := store.Put(ctx, datapackage.GeometryPath("bus.geojson"), ds.Geometry); err != nil {
		return fmt.Errorf("write bus geometries: %w", err)
	}
	return datapackage.WriteDescriptor(ctx, store, ds.Package)
}
