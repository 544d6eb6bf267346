// Package reference holds the immutable lookup tables shared by the builders:
// technology parameters, carrier costs and emission factors, and resource
// potentials.
package reference

import (
	"fmt"
	"math"
	"sort"

	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
)

// Record is the parameter set of one technology in one year.
type Record struct {
	Year    int
	Carrier string
	Tech    string
	Params  map[string]float64
}

// Param returns one parameter.
func (r Record) Param(name string) (float64, bool) {
	v, ok := r.Params[name]
	return v, ok
}

// Get returns a parameter or NaN.
func (r Record) Get(name string) float64 {
	if v, ok := r.Params[name]; ok {
		return v
	}
	return math.NaN()
}

// Require checks that every named parameter is present.
func (r Record) Require(names ...string) error {
	for _, n := range names {
		if _, ok := r.Params[n]; !ok {
			return fmt.Errorf("technology %s/%s (%d) has no %s", r.Carrier, r.Tech, r.Year, n)
		}
	}
	return nil
}

type techKey struct {
	year    int
	carrier string
	tech    string
}

// Technologies is a technology parameter table keyed by (year, carrier, tech).
type Technologies struct {
	records map[techKey]Record
}

// NewTechnologies builds the table from a long-format resource with the
// columns year, carrier, tech, parameter and value.
func NewTechnologies(t *source.Table) (*Technologies, error) {
	if err := t.Require("year", "carrier", "tech", "parameter", "value"); err != nil {
		return nil, err
	}
	cy, cc, ct, cp, cv := t.Column("year"), t.Column("carrier"), t.Column("tech"), t.Column("parameter"), t.Column("value")
	techs := &Technologies{records: map[techKey]Record{}}
	for i := range t.Rows {
		year, err := parseYear(t.Cell(i, cy))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: year: %w", t.Name, i+1, err)
		}
		v := t.Float(i, cv)
		if math.IsNaN(v) {
			continue
		}
		k := techKey{year, t.Cell(i, cc), t.Cell(i, ct)}
		rec, ok := techs.records[k]
		if !ok {
			rec = Record{Year: k.year, Carrier: k.carrier, Tech: k.tech, Params: map[string]float64{}}
			techs.records[k] = rec
		}
		rec.Params[t.Cell(i, cp)] = v
	}
	return techs, nil
}

// Lookup returns the record for (year, carrier, tech).
func (t *Technologies) Lookup(year int, carrier, tech string) (Record, bool) {
	r, ok := t.records[techKey{year, carrier, tech}]
	return r, ok
}

// ByTech returns the record of tech in year regardless of carrier. When a
// tech exists for several carriers the alphabetically first carrier wins.
func (t *Technologies) ByTech(year int, tech string) (Record, bool) {
	for _, r := range t.Year(year) {
		if r.Tech == tech {
			return r, true
		}
	}
	return Record{}, false
}

// Year lists the records of one year ordered by tech then carrier.
func (t *Technologies) Year(year int) []Record {
	var out []Record
	for k, r := range t.records {
		if k.year == year {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tech != out[j].Tech {
			return out[i].Tech < out[j].Tech
		}
		return out[i].Carrier < out[j].Carrier
	})
	return out
}

// Carrier parameters.
const (
	Cost           = "cost"
	EmissionFactor = "emission-factor"
	CO2            = "co2"
)

type carrierKey struct {
	year      int
	carrier   string
	parameter string
}

// Carriers holds fuel costs and emission factors keyed by (year, carrier).
type Carriers struct {
	values map[carrierKey]float64
}

// NewCarriers builds the table from a resource with the columns year,
// carrier, parameter and value.
func NewCarriers(t *source.Table) (*Carriers, error) {
	if err := t.Require("year", "carrier", "parameter", "value"); err != nil {
		return nil, err
	}
	cy, cc, cp, cv := t.Column("year"), t.Column("carrier"), t.Column("parameter"), t.Column("value")
	c := &Carriers{values: map[carrierKey]float64{}}
	for i := range t.Rows {
		year, err := parseYear(t.Cell(i, cy))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: year: %w", t.Name, i+1, err)
		}
		v := t.Float(i, cv)
		if math.IsNaN(v) {
			continue
		}
		c.values[carrierKey{year, t.Cell(i, cc), t.Cell(i, cp)}] = v
	}
	return c, nil
}

// Value returns one carrier parameter.
func (c *Carriers) Value(year int, carrier, parameter string) (float64, error) {
	v, ok := c.values[carrierKey{year, carrier, parameter}]
	if !ok {
		return 0, fmt.Errorf("carrier %s has no %s for %d", carrier, parameter, year)
	}
	return v, nil
}

// Cost is the fuel cost of carrier in year.
func (c *Carriers) Cost(year int, carrier string) (float64, error) {
	return c.Value(year, carrier, Cost)
}

// Emission is the emission factor of carrier in year.
func (c *Carriers) Emission(year int, carrier string) (float64, error) {
	return c.Value(year, carrier, EmissionFactor)
}

func parseYear(s string) (int, error) {
	v := source.ParseNumber(s)
	if math.IsNaN(v) || v != math.Trunc(v) {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return int(v), nil
}

type potentialKey struct {
	source string
	region string
	name   string
}

// Potentials holds renewable capacity potentials and carrier potentials,
// each tagged by the study they come from.
type Potentials struct {
	capacity map[potentialKey]float64
	carrier  map[potentialKey]float64
}

// NewPotentials builds the table from the renewable resource (country, tech,
// source, capacity_potential) and the carrier resource (country, carrier,
// source, value). Country labels are canonicalized.
func NewPotentials(renewable, carrier *source.Table) (*Potentials, error) {
	p := &Potentials{capacity: map[potentialKey]float64{}, carrier: map[potentialKey]float64{}}
	if renewable != nil {
		if err := renewable.Require("country", "tech", "source", "capacity_potential"); err != nil {
			return nil, err
		}
		read(renewable, "tech", "capacity_potential", p.capacity)
	}
	if carrier != nil {
		if err := carrier.Require("country", "carrier", "source", "value"); err != nil {
			return nil, err
		}
		read(carrier, "carrier", "value", p.carrier)
	}
	return p, nil
}

func read(t *source.Table, nameCol, valueCol string, into map[potentialKey]float64) {
	cc, cn, cs, cv := t.Column("country"), t.Column(nameCol), t.Column("source"), t.Column(valueCol)
	for i := range t.Rows {
		v := t.Float(i, cv)
		if math.IsNaN(v) {
			continue
		}
		into[potentialKey{t.Cell(i, cs), normalize.Country(t.Cell(i, cc)), t.Cell(i, cn)}] = v
	}
}

// Capacity returns the capacity potential of tech in region from study src.
func (p *Potentials) Capacity(src, region, tech string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p.capacity[potentialKey{src, region, tech}]
	return v, ok
}

// Carrier returns the carrier potential of region from study src.
func (p *Potentials) Carrier(src, region, carrier string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p.carrier[potentialKey{src, region, carrier}]
	return v, ok
}
