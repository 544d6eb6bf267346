// Package config loads the scenario a dataset is constructed from. Scenarios
// are TOML, JSON or YAML documents and may inherit from built-in or file
// scenarios through their parents.
package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ohowland/fuchur_core/internal/pkg/normalize"
	"github.com/ohowland/fuchur_core/internal/pkg/reference"
	"gopkg.in/yaml.v3"
)

// Source variants of the load and grid builders.
const (
	VariantEHighway = "ehighway"
	VariantTYNDP    = "tyndp"
)

// DefaultPath is read when no scenario is named.
const DefaultPath = "config.json"

//go:embed scenarios/*.toml
var builtins embed.FS

type HeatBuses struct {
	Central   []string `json:"central" toml:"central"`
	Decentral []string `json:"decentral" toml:"decentral"`
}

type Buses struct {
	Electricity []string  `json:"electricity" toml:"electricity"`
	Heat        HeatBuses `json:"heat" toml:"heat"`
	Biomass     []string  `json:"biomass" toml:"biomass"`
}

type Temporal struct {
	WeatherYear  int `json:"weather_year" toml:"weather_year"`
	DemandYear   int `json:"demand_year" toml:"demand_year"`
	ScenarioYear int `json:"scenario_year" toml:"scenario_year"`
}

type Cost struct {
	WACC float64 `json:"wacc" toml:"wacc"`
	// Factor scales the capacity cost of single technologies.
	Factor map[string]float64 `json:"factor,omitempty" toml:"factor,omitempty"`
}

type Technologies struct {
	Investment []string `json:"investment" toml:"investment"`
	// Hydro adds run-of-river, pumped storage and reservoirs.
	Hydro bool `json:"hydro" toml:"hydro"`
}

type TYNDP struct {
	Load       string `json:"load" toml:"load"`
	Generation string `json:"generation" toml:"generation"`
}

type EHighway struct {
	Scenario string `json:"scenario" toml:"scenario"`
}

type Heat struct {
	Amount float64 `json:"amount" toml:"amount"`
}

type Fallbacks struct {
	Disable []string `json:"disable" toml:"disable"`
}

// Scenario is the validated, immutable configuration of one dataset.
type Scenario struct {
	Name         string              `json:"name" toml:"name"`
	Parents      []string            `json:"parents,omitempty" toml:"parents,omitempty"`
	Buses        Buses               `json:"buses" toml:"buses"`
	Temporal     Temporal            `json:"temporal" toml:"temporal"`
	Cost         Cost                `json:"cost" toml:"cost"`
	Technologies Technologies        `json:"technologies" toml:"technologies"`
	Potential    string              `json:"potential" toml:"potential"`
	TYNDP        TYNDP               `json:"tyndp" toml:"tyndp"`
	EHighway     EHighway            `json:"ehighway" toml:"ehighway"`
	Load         string              `json:"load" toml:"load"`
	Grid         string              `json:"grid" toml:"grid"`
	Heat         Heat                `json:"heat" toml:"heat"`
	Fallbacks    Fallbacks           `json:"fallbacks" toml:"fallbacks"`
	References   reference.Locations `json:"references" toml:"references"`
}

// HeatRegions reports whether any heat bus is configured.
func (s *Scenario) HeatRegions() bool {
	return len(s.Buses.Heat.Central) > 0 || len(s.Buses.Heat.Decentral) > 0
}

// Builtins lists the names of the embedded scenarios.
func Builtins() []string {
	docs, err := builtinDocs()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(docs))
	for n := range docs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve loads the named built-in scenario, or the scenario file at ref when
// no built-in carries that name. An empty ref reads DefaultPath.
func Resolve(ref string) (*Scenario, error) {
	if ref == "" {
		ref = DefaultPath
	}
	doc, err := resolveDoc(ref, "", nil)
	if err != nil {
		return nil, err
	}
	return fromDoc(doc)
}

// Decode reads a scenario document in the given format (toml, json or yaml).
// Parents are resolved against the built-ins and relative to dir.
func Decode(data []byte, format, dir string) (*Scenario, error) {
	raw, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	doc, err := inherit(raw, dir, nil)
	if err != nil {
		return nil, err
	}
	return fromDoc(doc)
}

// EncodeTOML renders the scenario, parents flattened.
func (s *Scenario) EncodeTOML() ([]byte, error) {
	flat := *s
	flat.Parents = nil
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(flat); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type document map[string]interface{}

func builtinDocs() (map[string]document, error) {
	entries, err := builtins.ReadDir("scenarios")
	if err != nil {
		return nil, err
	}
	out := map[string]document{}
	for _, e := range entries {
		data, err := builtins.ReadFile(path.Join("scenarios", e.Name()))
		if err != nil {
			return nil, err
		}
		doc, err := decode(data, "toml")
		if err != nil {
			return nil, fmt.Errorf("built-in scenario %s: %w", e.Name(), err)
		}
		name, _ := doc["name"].(string)
		if name == "" {
			name = strings.TrimSuffix(e.Name(), ".toml")
		}
		out[name] = doc
	}
	return out, nil
}

func resolveDoc(ref, dir string, seen map[string]bool) (document, error) {
	if seen[ref] {
		return nil, fmt.Errorf("scenario %q inherits from itself", ref)
	}
	seen = with(seen, ref)

	docs, err := builtinDocs()
	if err != nil {
		return nil, err
	}
	if doc, ok := docs[ref]; ok {
		return inherit(doc, "", seen)
	}

	p := ref
	if _, err := os.Stat(p); err != nil && dir != "" && !filepath.IsAbs(ref) {
		p = filepath.Join(dir, ref)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("scenario %q is neither built in nor readable: %w", ref, err)
	}
	doc, err := decode(data, formatOf(p))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", p, err)
	}
	return inherit(doc, filepath.Dir(p), seen)
}

// inherit applies the parents in order, then the document's own keys. Parent
// names and parents lists are not inherited.
func inherit(doc document, dir string, seen map[string]bool) (document, error) {
	parents, err := stringList(doc["parents"])
	if err != nil {
		return nil, fmt.Errorf("parents: %w", err)
	}
	out := document{}
	for _, p := range parents {
		pd, err := resolveDoc(p, dir, seen)
		if err != nil {
			return nil, err
		}
		for k, v := range pd {
			if k == "name" || k == "parents" {
				continue
			}
			out[k] = v
		}
	}
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func with(seen map[string]bool, ref string) map[string]bool {
	out := make(map[string]bool, len(seen)+1)
	for k := range seen {
		out[k] = true
	}
	out[ref] = true
	return out
}

func stringList(v interface{}) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("want a list of names, got %T", v)
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("want a name, got %T", it)
		}
		out[i] = s
	}
	return out, nil
}

func formatOf(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

func decode(data []byte, format string) (document, error) {
	doc := document{}
	switch format {
	case "toml":
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, err
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown scenario format %q", format)
	}
	return doc, nil
}

// fromDoc types the merged document, then fills defaults and validates.
func fromDoc(doc document) (*Scenario, error) {
	delete(doc, "parents")
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	s := &Scenario{}
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	s.defaults()
	s.canonicalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scenario) defaults() {
	if s.Temporal.WeatherYear == 0 {
		s.Temporal.WeatherYear = 2011
	}
	if s.Temporal.DemandYear == 0 {
		s.Temporal.DemandYear = 2015
	}
	if s.EHighway.Scenario == "" {
		s.EHighway.Scenario = "100% RES"
	}
	def := reference.DefaultLocations()
	if s.References.TechnologyCost == "" {
		s.References.TechnologyCost = def.TechnologyCost
	}
	if s.References.TechnologyPotential == "" {
		s.References.TechnologyPotential = def.TechnologyPotential
	}
}

func (s *Scenario) canonicalize() {
	s.Buses.Electricity = unique(normalize.Countries(s.Buses.Electricity))
	s.Buses.Heat.Central = unique(normalize.Countries(s.Buses.Heat.Central))
	s.Buses.Heat.Decentral = unique(normalize.Countries(s.Buses.Heat.Decentral))
	s.Buses.Biomass = unique(normalize.Countries(s.Buses.Biomass))
	s.Load = strings.ToLower(s.Load)
	s.Grid = strings.ToLower(s.Grid)
}

func unique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := in[:0]
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ValidationError reports a scenario key holding an unusable value.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scenario key %s: %s", e.Key, e.Reason)
}

// Validate checks the scenario is usable by every builder.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return &ValidationError{"name", "is empty"}
	}
	if len(s.Buses.Electricity) == 0 {
		return &ValidationError{"buses.electricity", "names no region"}
	}
	if s.Temporal.ScenarioYear <= 0 {
		return &ValidationError{"temporal.scenario_year", "is not set"}
	}
	if s.Cost.WACC < 0 || s.Cost.WACC >= 1 {
		return &ValidationError{"cost.wacc", fmt.Sprintf("%v is outside [0, 1)", s.Cost.WACC)}
	}
	for tech, f := range s.Cost.Factor {
		if f < 0 {
			return &ValidationError{"cost.factor." + tech, "is negative"}
		}
	}
	for _, tech := range s.Technologies.Investment {
		if _, ok := normalize.ComponentType(tech); !ok {
			return &ValidationError{"technologies.investment", fmt.Sprintf("unknown technology %q", tech)}
		}
	}
	for key, v := range map[string]string{"load": s.Load, "grid": s.Grid} {
		switch v {
		case "", VariantEHighway, VariantTYNDP:
		default:
			return &ValidationError{key, fmt.Sprintf("unknown variant %q", v)}
		}
	}
	electricity := map[string]bool{}
	for _, r := range s.Buses.Electricity {
		electricity[r] = true
	}
	for key, regions := range map[string][]string{
		"buses.heat.central":   s.Buses.Heat.Central,
		"buses.heat.decentral": s.Buses.Heat.Decentral,
		"buses.biomass":        s.Buses.Biomass,
	} {
		for _, r := range regions {
			if !electricity[r] {
				return &ValidationError{key, fmt.Sprintf("region %s has no electricity bus", r)}
			}
		}
	}
	rules := map[string]bool{}
	for _, r := range normalize.DefaultRules() {
		rules[r.Name] = true
	}
	for _, name := range s.Fallbacks.Disable {
		if !rules[name] {
			return &ValidationError{"fallbacks.disable", fmt.Sprintf("unknown rule %q", name)}
		}
	}
	return nil
}
