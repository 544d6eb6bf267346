package compute

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
)

// SupplyTypes are the component types whose flows count as supply.
var SupplyTypes = map[string]bool{
	"dispatchable": true,
	"volatile":     true,
	"conversion":   true,
	"backpressure": true,
	"extraction":   true,
	"reservoir":    true,
}

// Technology strips the region prefix from a component label. Labels without
// a prefix are returned unchanged.
func Technology(label string) string {
	if i := strings.Index(label, "-"); i >= 0 {
		return label[i+1:]
	}
	return label
}

// Summary pivots long supply results (from, to, type, value) into one row per
// receiving bus and one column per technology. Cells hold the summed flow in
// TWh scaled by the temporal resolution; absent pairs stay empty.
func Summary(supply *datapackage.Table, resolution int) (*datapackage.Table, error) {
	for _, c := range []string{"from", "to", "type", "value"} {
		if supply.Column(c) < 0 {
			return nil, fmt.Errorf("supply results lack column %q", c)
		}
	}
	sums := map[string]map[string]float64{}
	techs := map[string]bool{}
	for i := range supply.Rows {
		if !SupplyTypes[supply.Value(i, "type")] {
			continue
		}
		v, err := strconv.ParseFloat(supply.Value(i, "value"), 64)
		if err != nil {
			return nil, fmt.Errorf("supply row %d: %w", i+1, err)
		}
		to, tech := supply.Value(i, "to"), Technology(supply.Value(i, "from"))
		if sums[to] == nil {
			sums[to] = map[string]float64{}
		}
		sums[to][tech] += v
		techs[tech] = true
	}

	out := &datapackage.Table{Columns: append([]string{"to"}, sortedKeys(techs)...)}
	buses := make(map[string]bool, len(sums))
	for b := range sums {
		buses[b] = true
	}
	for _, bus := range sortedKeys(buses) {
		row := []string{bus}
		for _, tech := range out.Columns[1:] {
			v, ok := sums[bus][tech]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v/1e6*float64(resolution), 'g', -1, 64))
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
