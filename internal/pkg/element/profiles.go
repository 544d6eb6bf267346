package element

import (
	"fmt"
	"math"
	"time"
)

// Profiles is one sequence table: named hourly series sharing a calendar.
type Profiles struct {
	Resource string
	Index    []time.Time
	names    []string
	series   map[string][]float64
}

// NewProfiles returns an empty sequence table over index.
func NewProfiles(resource string, index []time.Time) *Profiles {
	return &Profiles{
		Resource: resource,
		Index:    index,
		series:   make(map[string][]float64),
	}
}

// Add appends a column. The values must match the calendar length and the
// name must be new.
func (p *Profiles) Add(name string, values []float64) error {
	if len(values) != len(p.Index) {
		return fmt.Errorf("profile %q has %d values, calendar has %d", name, len(values), len(p.Index))
	}
	if _, exists := p.series[name]; exists {
		return fmt.Errorf("profile %q already exists in %s", name, p.Resource)
	}
	p.names = append(p.names, name)
	p.series[name] = values
	return nil
}

// Names lists the columns in insertion order.
func (p *Profiles) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Series returns the values of one column.
func (p *Profiles) Series(name string) ([]float64, bool) {
	v, ok := p.series[name]
	return v, ok
}

// Len is the number of rows.
func (p *Profiles) Len() int {
	return len(p.Index)
}

// Empty reports whether the table holds no columns.
func (p *Profiles) Empty() bool {
	return len(p.names) == 0
}

// Merge copies every column of other into p. Both must share a calendar.
func (p *Profiles) Merge(other *Profiles) error {
	if other == nil {
		return nil
	}
	if len(other.Index) != len(p.Index) {
		return fmt.Errorf("cannot merge %s into %s: calendars differ", other.Resource, p.Resource)
	}
	for _, name := range other.names {
		if err := p.Add(name, other.series[name]); err != nil {
			return err
		}
	}
	return nil
}

// HasNaN reports the first column holding a missing value.
func (p *Profiles) HasNaN() (string, bool) {
	for _, name := range p.names {
		for _, v := range p.series[name] {
			if math.IsNaN(v) {
				return name, true
			}
		}
	}
	return "", false
}
