package load

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/xuri/excelize/v2"
	"gotest.tools/v3/assert"
)

func eHighwaySheet() [][]string {
	return [][]string{
		{"Table T40"},
		{"Demand"},
		{"", "Scenario", "100% RES", "Big & Market"},
		{"", "", "TWh", "TWh"},
		{"1", "DE", "620", "700"},
		{"2", "UK", "410", "450"},
		{"3", "PL", "", "190"},
	}
}

func TestSheet(t *testing.T) {
	s, err := Sheet(2050)
	assert.NilError(t, err)
	assert.Equal(t, s, "T40")
	s, err = Sheet(2040)
	assert.NilError(t, err)
	assert.Equal(t, s, "T39")
	_, err = Sheet(2030)
	assert.ErrorContains(t, err, "2040 and 2050")
}

func TestEHighwayDemand(t *testing.T) {
	tbl := source.NewTable("T40", eHighwaySheet(), 0, 1)
	demand, err := EHighwayDemand(tbl, "100% RES")
	assert.NilError(t, err)
	assert.Equal(t, demand["DE"], 620.0)
	assert.Equal(t, demand["GB"], 410.0)

	loads, err := Build(demand, []string{"DE", "GB"})
	assert.NilError(t, err)
	assert.Equal(t, len(loads), 2)
	assert.Equal(t, loads[1].Name, "GB-electricity-load")
	assert.Equal(t, loads[1].Bus, "GB-electricity")
	assert.Equal(t, loads[1].Profile, "GB-electricity-load-profile")
	assert.Equal(t, loads[1].Amount.Value, 410000.0)

	_, err = Build(demand, []string{"PL"})
	assert.ErrorContains(t, err, "PL")
}

func TestTYNDPDemand(t *testing.T) {
	tbl := source.NewTable("Demand", [][]string{
		{"Node", "Best Estimate", "Sustainable Transition"},
		{"DE00", "500", "510"},
		{"DKE1", "13", "14"},
		{"DKW1", "20", "21"},
		{"UK00", "300", "310"},
	})
	demand, err := TYNDPDemand(tbl, "Sustainable Transition")
	assert.NilError(t, err)
	assert.DeepEqual(t, demand, map[string]float64{"DE": 510, "DK": 35, "GB": 310})
}

func TestReadWorkbook(t *testing.T) {
	dir := t.TempDir()
	f := excelize.NewFile()
	_, err := f.NewSheet("T40")
	assert.NilError(t, err)
	for i, row := range eHighwaySheet() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		assert.NilError(t, err)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		assert.NilError(t, f.SetSheetRow("T40", cell, &values))
	}
	assert.NilError(t, f.SaveAs(filepath.Join(dir, source.EHighwayWorkbook)))

	archive := source.NewArchive(dir, true, nil)
	loads, err := Read(context.Background(), archive, Options{Variant: EHighway, Regions: []string{"DE"}, Year: 2050, Scenario: "100% RES"}, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(loads), 1)
	assert.Equal(t, loads[0].Amount.Value, 620000.0)

	_, err = Read(context.Background(), archive, Options{Variant: EHighway, Regions: []string{"DE"}, Year: 2030, Scenario: "100% RES"}, nil)
	assert.ErrorContains(t, err, "2040 and 2050")
}
