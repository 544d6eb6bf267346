package topology

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
)

// Grid variants.
const (
	GridEHighway = "ehighway"
	GridTYNDP    = "tyndp"
)

// Link parameters shared by both variants.
const (
	LinkLoss = 0.05
	LinkTech = "transshipment"
)

// DefaultEHighwayScenario is the e-Highway capacity column used by default.
const DefaultEHighwayScenario = "100% RES"

// LinkOptions selects and parameterizes the link source.
type LinkOptions struct {
	Variant  string
	Regions  []string
	Scenario string
}

// Links reads the configured grid source and builds the links between the
// electricity regions.
func Links(ctx context.Context, archive *source.Archive, opts LinkOptions, logger log.Logger) ([]element.Link, error) {
	switch opts.Variant {
	case GridEHighway, "":
		path, err := archive.Require(ctx, source.EHighwayWorkbook)
		if err != nil {
			return nil, err
		}
		t2030, err := source.ReadSheet(path, "T93", source.SheetOptions{Skip: []int{0, 1, 3}, Required: []string{"Links"}})
		if err != nil {
			return nil, err
		}
		t2050, err := source.ReadSheet(path, "T94", source.SheetOptions{Skip: []int{0, 1, 3}, Required: []string{"Links"}})
		if err != nil {
			return nil, err
		}
		links, err := EHighwayLinks(t2030, t2050, opts.Scenario, opts.Regions)
		if err != nil {
			return nil, err
		}
		level.Info(logger).Log("msg", "built links", "variant", GridEHighway, "count", len(links))
		return links, nil
	case GridTYNDP:
		path, err := archive.Require(ctx, source.TYNDPInput)
		if err != nil {
			return nil, err
		}
		t, err := source.ReadSheet(path, "NTC", source.SheetOptions{Skip: []int{1, 2}, Required: []string{"CBA Capacities"}})
		if err != nil {
			return nil, err
		}
		links, err := TYNDPLinks(t, opts.Regions)
		if err != nil {
			return nil, err
		}
		level.Info(logger).Log("msg", "built links", "variant", GridTYNDP, "count", len(links))
		return links, nil
	}
	return nil, fmt.Errorf("unknown grid variant %q", opts.Variant)
}

type pairValues struct {
	label  string
	from   string
	to     string
	values []float64
}

// groupSum sums the value columns of rows sharing a key, keeping first-seen
// key order.
type groupSum struct {
	order []string
	rows  map[string]*pairValues
}

func newGroupSum() *groupSum {
	return &groupSum{rows: map[string]*pairValues{}}
}

func (g *groupSum) add(key, from, to string, values ...float64) {
	p, ok := g.rows[key]
	if !ok {
		p = &pairValues{label: key, from: from, to: to, values: make([]float64, len(values))}
		g.rows[key] = p
		g.order = append(g.order, key)
	}
	for i, v := range values {
		if !math.IsNaN(v) {
			p.values[i] += v
		}
	}
}

func (g *groupSum) sorted() []*pairValues {
	keys := append([]string(nil), g.order...)
	sort.Strings(keys)
	out := make([]*pairValues, len(keys))
	for i, k := range keys {
		out[i] = g.rows[k]
	}
	return out
}

// eHighwayPairs aggregates one e-Highway link sheet onto country pairs.
func eHighwayPairs(t *source.Table, scenario string) (*groupSum, error) {
	t.DropEmptyColumns()
	t.DropLastRow()
	if err := t.Require("Links", scenario, "Length"); err != nil {
		return nil, err
	}
	cl, cs, cn := t.Column("Links"), t.Column(scenario), t.Column("Length")
	g := newGroupSum()
	for i := range t.Rows {
		label := strings.ToUpper(t.Cell(i, cl))
		if !crossBorder(label) {
			continue
		}
		letters := strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && unicode.IsLetter(r) {
				return r
			}
			return -1
		}, label)
		if len(letters) < 4 {
			return nil, fmt.Errorf("%s row %d: malformed link label %q", t.Name, i+1, label)
		}
		g.add(letters, letters[0:2], letters[2:4], t.FloatOr(i, cs, 0), t.FloatOr(i, cn, 0))
	}
	return g, nil
}

// crossBorder reports whether a cluster link label such as "01_PT-02_ES"
// connects two different countries.
func crossBorder(label string) bool {
	ends := strings.SplitN(label, "-", 2)
	if len(ends) != 2 {
		return false
	}
	a, b := strings.SplitN(ends[0], "_", 2), strings.SplitN(ends[1], "_", 2)
	if len(a) != 2 || len(b) != 2 {
		return false
	}
	return strings.TrimSpace(a[1]) != strings.TrimSpace(b[1])
}

// EHighwayLinks builds unordered links from the 2030 capacities plus the 2050
// increment of scenario.
func EHighwayLinks(t2030, t2050 *source.Table, scenario string, regions []string) ([]element.Link, error) {
	if scenario == "" {
		scenario = DefaultEHighwayScenario
	}
	g2030, err := eHighwayPairs(t2030, scenario)
	if err != nil {
		return nil, err
	}
	g2050, err := eHighwayPairs(t2050, scenario)
	if err != nil {
		return nil, err
	}
	allowed := regionSet(regions)
	var links []element.Link
	for _, p := range g2030.sorted() {
		from, to := normalize.Country(p.from), normalize.Country(p.to)
		if !allowed[from] || !allowed[to] {
			continue
		}
		capacity := p.values[0]
		if inc, ok := g2050.rows[p.label]; ok {
			capacity += inc.values[0]
		}
		l := newLink(from, to, capacity)
		l.Length = element.Some(p.values[1])
		links = append(links, l)
	}
	return links, nil
}

// TYNDPLinks builds ordered links from the NTC sheet. The column after
// "CBA Capacities" holds the reverse direction.
func TYNDPLinks(t *source.Table, regions []string) ([]element.Link, error) {
	if err := t.Require("CBA Capacities"); err != nil {
		return nil, err
	}
	fwd := t.Column("CBA Capacities")
	rev := fwd + 1
	g := newGroupSum()
	for i := range t.Rows {
		label := t.Cell(i, 0)
		ends := strings.SplitN(label, "-", 2)
		if len(ends) != 2 || len(ends[0]) < 2 || len(ends[1]) < 2 {
			continue
		}
		from, to := normalize.Country(ends[0][0:2]), normalize.Country(ends[1][0:2])
		g.add(from+"|"+to, from, to, t.FloatOr(i, fwd, 0), t.FloatOr(i, rev, 0))
	}

	allowed := regionSet(regions)
	var links []element.Link
	for _, p := range g.sorted() {
		if p.from == p.to || !allowed[p.from] || !allowed[p.to] {
			continue
		}
		links = append(links, newLink(p.from, p.to, p.values[0]))
		if _, listed := g.rows[p.to+"|"+p.from]; !listed {
			links = append(links, newLink(p.to, p.from, p.values[1]))
		}
	}
	return links, nil
}

func newLink(from, to string, capacity float64) element.Link {
	fb, tb := ElectricityBus(from), ElectricityBus(to)
	return element.Link{
		Identity: element.Identity{Name: fb + "-" + tb, Carrier: element.Electricity, Tech: LinkTech},
		FromBus:  fb,
		ToBus:    tb,
		Capacity: element.Some(capacity),
		Loss:     element.Some(LinkLoss),
	}
}

func regionSet(regions []string) map[string]bool {
	out := make(map[string]bool, len(regions))
	for _, r := range regions {
		out[r] = true
	}
	return out
}
