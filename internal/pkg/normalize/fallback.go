package normalize

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Fallback families. Each names the kind of data a rule substitutes.
const (
	OffshoreProfile = "offshore-profile"
	HydroInflow     = "hydro-inflow"
	HydroCapacity   = "hydro-capacity"
)

// Rule substitutes missing raw data for one region. Either Source names a donor
// region whose data is copied, or Values holds constants.
type Rule struct {
	Name   string
	Family string
	Region string
	Source string
	Values []float64
}

// Constant reports whether the rule substitutes fixed values.
func (r Rule) Constant() bool {
	return r.Source == ""
}

// DefaultRules is the complete set of substitutions the datasets rely on.
// Hydro capacity values are hydro GW, pumped hydro GW and reservoir TWh.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "offshore-pl-from-se", Family: OffshoreProfile, Region: "PL", Source: "SE"},
		{Name: "inflow-dk-zero", Family: HydroInflow, Region: "DK", Values: []float64{0}},
		{Name: "inflow-lu-from-be", Family: HydroInflow, Region: "LU", Source: "BE"},
		{Name: "capacity-ch", Family: HydroCapacity, Region: "CH", Values: []float64{12, 1.9, 8.8}},
	}
}

// Fallbacks is the active rule set of a run.
type Fallbacks struct {
	rules   []Rule
	logger  log.Logger
	onApply func(Rule)
}

// NewFallbacks keeps every rule not named in disabled.
func NewFallbacks(rules []Rule, disabled []string, logger log.Logger) *Fallbacks {
	off := make(map[string]bool, len(disabled))
	for _, d := range disabled {
		off[d] = true
	}
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if !off[r.Name] {
			active = append(active, r)
		}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Fallbacks{rules: active, logger: logger}
}

// OnApply registers a hook called every time a rule is applied.
func (f *Fallbacks) OnApply(fn func(Rule)) {
	f.onApply = fn
}

// Lookup returns the rule for family and region.
func (f *Fallbacks) Lookup(family, region string) (Rule, bool) {
	if f == nil {
		return Rule{}, false
	}
	for _, r := range f.rules {
		if r.Family == family && r.Region == region {
			return r, true
		}
	}
	return Rule{}, false
}

// Family lists the rules of one family in declaration order.
func (f *Fallbacks) Family(family string) []Rule {
	if f == nil {
		return nil
	}
	var out []Rule
	for _, r := range f.rules {
		if r.Family == family {
			out = append(out, r)
		}
	}
	return out
}

// Applied logs the substitution and notifies the hook.
func (f *Fallbacks) Applied(r Rule) {
	if f == nil {
		return
	}
	if r.Constant() {
		level.Warn(f.logger).Log("msg", "fallback applied", "rule", r.Name, "region", r.Region, "values", fmt.Sprint(r.Values))
	} else {
		level.Warn(f.logger).Log("msg", "fallback applied", "rule", r.Name, "region", r.Region, "source", r.Source)
	}
	if f.onApply != nil {
		f.onApply(r)
	}
}
