// Package normalize canonicalizes the identifiers that raw sources disagree on:
// country codes, registry fuel/technology labels and investment technology names.
package normalize

import (
	"fmt"
	"sort"
	"strings"
)

// countrySubstitutions maps legacy or non-ISO labels onto the canonical code.
var countrySubstitutions = map[string]string{
	"UK": "GB",
}

// Country returns the canonical two-letter code for a raw region label.
func Country(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if sub, ok := countrySubstitutions[c]; ok {
		return sub
	}
	return c
}

// Countries canonicalizes every label in raw, keeping order.
func Countries(raw []string) []string {
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = Country(r)
	}
	return out
}

// Alias returns the raw labels a source may still use for the canonical code,
// the code itself first.
func Alias(code string) []string {
	aliases := []string{code}
	keys := make([]string, 0, len(countrySubstitutions))
	for k := range countrySubstitutions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if countrySubstitutions[k] == code {
			aliases = append(aliases, k)
		}
	}
	return aliases
}

// UnmappedTechnologyError is returned when a registry (fuel, technology) pair has
// no entry in the mapping table. Dropping the plant would corrupt capacity totals,
// so callers treat this as fatal.
type UnmappedTechnologyError struct {
	Fuel       string
	Technology string
}

func (e *UnmappedTechnologyError) Error() string {
	return fmt.Sprintf("unmapped technology: fuel %q with technology %q", e.Fuel, e.Technology)
}

// Mapped is a canonical (carrier, tech) pair.
type Mapped struct {
	Carrier string
	Tech    string
}

type registryKey struct {
	fuel       string
	technology string
}

var registry = map[registryKey]Mapped{
	{"Biomass and biogas", "Steam turbine"}:     {"biomass", "st"},
	{"Biomass and biogas", "Combustion Engine"}: {"biomass", "ce"},
	{"Hard coal", "Steam turbine"}:              {"coal", "st"},
	{"Hard coal", "Combined cycle"}:             {"coal", "ccgt"},
	{"Lignite", "Steam turbine"}:                {"lignite", "st"},
	{"Natural gas", "Gas turbine"}:              {"gas", "ocgt"},
	{"Natural gas", "Steam turbine"}:            {"gas", "st"},
	{"Natural gas", "Combined cycle"}:           {"gas", "ccgt"},
	{"Natural gas", "Combustion Engine"}:        {"gas", "st"},
	{"Nuclear", "Steam turbine"}:                {"uranium", "st"},
	{"Oil", "Steam turbine"}:                    {"oil", "st"},
	{"Oil", "Gas turbine"}:                      {"oil", "st"},
	{"Oil", "Combined cycle"}:                   {"oil", "st"},
	{"Other fuels", "Steam turbine"}:            {"waste", "chp"},
	{"Other fuels", "Combined cycle"}:           {"gas", "ccgt"},
	{"Other fuels", "Gas turbine"}:              {"gas", "ocgt"},
	{"Waste", "Steam turbine"}:                  {"waste", "chp"},
	{"Waste", "Combined cycle"}:                 {"waste", "chp"},
	{"Other fossil fuels", "Steam turbine"}:     {"coal", "st"},
	{"Other fossil fuels", "Combustion Engine"}: {"gas", "st"},
	{"Mixed fossil fuels", "Steam turbine"}:     {"gas", "st"},
}

// Technology maps a plant registry label pair onto the internal vocabulary.
func Technology(fuel, technology string) (Mapped, error) {
	m, ok := registry[registryKey{strings.TrimSpace(fuel), strings.TrimSpace(technology)}]
	if !ok {
		return Mapped{}, &UnmappedTechnologyError{Fuel: fuel, Technology: technology}
	}
	return m, nil
}

// Investment technology families.
const (
	Dispatchable = "dispatchable"
	Volatile     = "volatile"
	Conversion   = "conversion"
	Storage      = "storage"
)

var investmentTypes = map[string]string{
	"ocgt":            Dispatchable,
	"ccgt":            Dispatchable,
	"st":              Dispatchable,
	"ce":              Dispatchable,
	"pv":              Volatile,
	"wind_onshore":    Volatile,
	"wind_offshore":   Volatile,
	"biomass":         Conversion,
	"lithium_battery": Storage,
	"acaes":           Storage,
}

// ComponentType returns the component family an investment technology builds.
func ComponentType(tech string) (string, bool) {
	t, ok := investmentTypes[tech]
	return t, ok
}

// northSea is the coastal allow-list for offshore wind.
var northSea = map[string]bool{
	"DE": true, "DK": true, "NO": true, "NL": true, "BE": true, "GB": true, "SE": true,
}

// Coastal reports whether offshore wind may be built in region.
func Coastal(region string) bool {
	return northSea[region]
}

// ProfileSuffix returns the profile family a volatile technology references,
// e.g. "pv-profile" for "pv".
func ProfileSuffix(tech string) (string, bool) {
	switch {
	case strings.Contains(tech, "wind_off"), strings.Contains(tech, "wind-off"), tech == "offshore":
		return "wind-off-profile", true
	case strings.Contains(tech, "wind_on"), strings.Contains(tech, "wind-on"), tech == "onshore":
		return "wind-on-profile", true
	case strings.Contains(tech, "pv"):
		return "pv-profile", true
	}
	return "", false
}
