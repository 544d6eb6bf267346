// Package profile builds the hourly sequences components refer to. Every
// sequence is sliced from a raw year with leap days removed and laid onto the
// scenario-year calendar.
package profile

import (
	"fmt"
	"math"

	"github.com/ohowland/fuchur_core/internal/pkg/calendar"
	"github.com/ohowland/fuchur_core/internal/pkg/element"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
)

// Sequence resources.
const (
	VolatileResource  = "volatile_profile"
	LoadResource      = "load_profile"
	HeatLoadResource  = "heat_load_profile"
	RorResource       = "ror_profile"
	ReservoirResource = "reservoir_profile"
)

// MissingDataError reports a selected slice holding nulls or the wrong number
// of hours.
type MissingDataError struct {
	Source string
	Column string
	Year   int
	Reason string
}

func (e *MissingDataError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("missing data in %s for %d: %s", e.Source, e.Year, e.Reason)
	}
	return fmt.Sprintf("missing data in %s column %q for %d: %s", e.Source, e.Column, e.Year, e.Reason)
}

// Wanted is the set of profile names referenced by emitted components.
type Wanted map[string]bool

// Referenced collects the profile names of components.
func Referenced(components []element.Component) Wanted {
	w := Wanted{}
	for _, c := range components {
		if p := c.ProfileRef(); p != "" {
			w[p] = true
		}
	}
	return w
}

// Any reports whether any of names is wanted.
func (w Wanted) Any(names ...string) bool {
	for _, n := range names {
		if w[n] {
			return true
		}
	}
	return false
}

// Positions returns the rows of ts that make up year, leap day excluded.
func Positions(ts *source.TimeSeries, year int) ([]int, error) {
	pos, err := calendar.Slice(ts.Index, year)
	if err != nil {
		return nil, &MissingDataError{Source: ts.Name, Year: year, Reason: err.Error()}
	}
	return pos, nil
}

// Column picks column at pos and rejects nulls.
func Column(ts *source.TimeSeries, column string, pos []int, year int) ([]float64, error) {
	values, ok := ts.Pick(column, pos)
	if !ok {
		return nil, &MissingDataError{Source: ts.Name, Column: column, Year: year, Reason: "column not found"}
	}
	for i, v := range values {
		if math.IsNaN(v) {
			return nil, &MissingDataError{Source: ts.Name, Column: column, Year: year, Reason: fmt.Sprintf("null at hour %d", i)}
		}
	}
	return values, nil
}

// resolve returns the first column of ts matching region or one of its raw
// aliases, with suffix appended.
func resolve(ts *source.TimeSeries, region, suffix string) (string, bool) {
	for _, a := range normalize.Alias(region) {
		if _, ok := ts.Series(a + suffix); ok {
			return a + suffix, true
		}
	}
	return "", false
}

// Options selects the raw year and the calendar of a profile build.
type Options struct {
	Regions      []string
	WeatherYear  int
	DemandYear   int
	ScenarioYear int
	Fallbacks    *normalize.Fallbacks
}

func (o Options) table(resource string) *element.Profiles {
	return element.NewProfiles(resource, calendar.Hours(o.ScenarioYear))
}
