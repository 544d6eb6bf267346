package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/fuchur_core/internal/pkg/calendar"
	"github.com/ohowland/fuchur_core/internal/pkg/config"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/metrics"
	"github.com/ohowland/fuchur_core/internal/pkg/msg"
	"github.com/ohowland/fuchur_core/internal/pkg/source"
	"github.com/xuri/excelize/v2"
	"gotest.tools/v3/assert"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	assert.NilError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	assert.NilError(t, os.WriteFile(path, []byte(body), 0o644))
}

// references writes local technology-cost and technology-potential packages.
func references(t *testing.T, dir string, potential string) (string, string) {
	cost := filepath.Join(dir, "cost", "datapackage.json")
	write(t, cost, `{"name": "technology-cost", "resources": [
		{"name": "electricity", "path": "electricity.csv"},
		{"name": "decentral_heat", "path": "decentral_heat.csv"},
		{"name": "carrier", "path": "carrier.csv"}]}`)
	write(t, filepath.Join(dir, "cost", "electricity.csv"), `year,carrier,tech,parameter,value
2030,solar,pv,capacity_cost,400
2030,solar,pv,lifetime,25
2030,wind,wind_onshore,capacity_cost,1100
2030,wind,wind_onshore,lifetime,25
`)
	write(t, filepath.Join(dir, "cost", "decentral_heat.csv"), `year,carrier,tech,parameter,value
2030,gas,boiler_decentral,capacity_cost,300
2030,gas,boiler_decentral,lifetime,20
2030,gas,boiler_decentral,efficiency,0.9
2030,electricity,electricity_heatpump,capacity_cost,1200
2030,electricity,electricity_heatpump,lifetime,20
2030,electricity,electricity_heatpump,efficiency,3
`)
	write(t, filepath.Join(dir, "cost", "carrier.csv"), `year,carrier,parameter,value
2030,co2,cost,80
2030,gas,cost,30
2030,gas,emission-factor,0.2
2014,gas,emission-factor,0.2
2030,biomass,cost,40
`)

	pot := filepath.Join(dir, "potential", "datapackage.json")
	write(t, pot, `{"name": "technology-potential", "resources": [
		{"name": "renewable", "path": "renewable.csv"},
		{"name": "carrier", "path": "carrier.csv"}]}`)
	write(t, filepath.Join(dir, "potential", "renewable.csv"),
		"country,tech,source,capacity_potential\nDE,pv,e-Highway,"+potential+"\n")
	write(t, filepath.Join(dir, "potential", "carrier.csv"), "country,carrier,source,value\nFR,biomass,hotmaps,2\n")
	return cost, pot
}

// ninjaPV writes a leap-free weather year of constant pv capacity factors.
func ninjaPV(t *testing.T, raw string, year int) {
	var b strings.Builder
	b.WriteString("time,DE,FR\n")
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	for ts := start; ts.Year() == year; ts = ts.Add(time.Hour) {
		fmt.Fprintf(&b, "%s,0.25,0.5\n", ts.Format(time.RFC3339))
	}
	write(t, filepath.Join(raw, source.NinjaPV), b.String())
}

func scenario(t *testing.T, dir, potential string) *config.Scenario {
	t.Helper()
	cost, pot := references(t, dir, potential)
	doc := fmt.Sprintf(`{
		"name": "de-pv-test",
		"buses": {"electricity": ["DE"]},
		"temporal": {"scenario_year": 2030, "weather_year": 2011},
		"cost": {"wacc": 0.07},
		"technologies": {"investment": ["pv", "wind_onshore"]},
		"potential": "e-Highway",
		"references": {"technology_cost": %q, "technology_potential": %q}
	}`, cost, pot)
	s, err := config.Decode([]byte(doc), "json", "")
	assert.NilError(t, err)
	return s
}

func TestRunSingleRegionPV(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw")
	ninjaPV(t, raw, 2011)
	out := filepath.Join(dir, "dataset")
	archive := datapackage.NewDirStore(filepath.Join(dir, "archive"))

	events := msg.NewPublisher(uuid.New())
	inbox, err := msg.SubscribeAll(events, uuid.New())
	assert.NilError(t, err)

	m := metrics.New()
	report, err := Run(ctx, scenario(t, dir, "50000"), Construct, Options{
		DatapackageDir: out,
		RawDataPath:    raw,
		Offline:        true,
		Archives:       []datapackage.Store{archive},
		Events:         events,
		Metrics:        m,
	}, nil)
	assert.NilError(t, err)
	_, err = uuid.Parse(report.RunID)
	assert.NilError(t, err)

	store := datapackage.NewDirStore(out)
	pkg, err := datapackage.ReadDescriptor(ctx, store)
	assert.NilError(t, err)
	assert.Equal(t, pkg.Name, "de-pv-test")
	assert.Equal(t, pkg.ID, report.RunID)

	volatile, err := datapackage.ReadTable(ctx, store, datapackage.ElementPath("volatile"))
	assert.NilError(t, err)
	assert.Equal(t, len(volatile.Rows), 1, "wind_onshore has no potential and is dropped")
	assert.Equal(t, volatile.Value(0, "name"), "DE-pv")
	assert.Equal(t, volatile.Value(0, "bus"), "DE-electricity")
	assert.Equal(t, volatile.Value(0, "profile"), "DE-pv-profile")

	seq, err := datapackage.ReadTable(ctx, store, datapackage.SequencePath("volatile_profile"))
	assert.NilError(t, err)
	assert.DeepEqual(t, seq.Columns[1:], []string{"DE-pv-profile"})
	assert.Equal(t, len(seq.Rows), calendar.HoursPerYear)
	assert.Equal(t, seq.Rows[0][0], "2030-01-01 00:00:00")
	assert.Equal(t, seq.Rows[calendar.HoursPerYear-1][1], "0.25")

	for _, resource := range []string{"bus", "excess", "shortage"} {
		_, err := store.Get(ctx, datapackage.ElementPath(resource))
		assert.NilError(t, err, resource)
	}
	_, err = store.Get(ctx, datapackage.ElementPath("load"))
	assert.Assert(t, errors.Is(err, datapackage.ErrNotFound))

	scenarioTOML, err := store.Get(ctx, ScenarioPath)
	assert.NilError(t, err)
	back, err := config.Decode(scenarioTOML, "toml", "")
	assert.NilError(t, err)
	assert.Equal(t, back.Name, "de-pv-test")

	snapshot, err := store.Get(ctx, metrics.SnapshotPath)
	assert.NilError(t, err)
	samples, err := metrics.ParseSnapshot(bytes.NewReader(snapshot))
	assert.NilError(t, err)
	assert.Assert(t, containsSample(samples, metrics.Sample{Name: "fuchur_components", Label: "volatile", Value: 1}))
	assert.Assert(t, containsSample(samples, metrics.Sample{Name: "fuchur_rows_dropped_total", Label: "volatile", Value: 1}))
	assert.Assert(t, containsSample(samples, metrics.Sample{Name: "fuchur_profiles", Label: "volatile_profile", Value: 1}))

	mirrored, err := archive.List(ctx, "")
	assert.NilError(t, err)
	written, err := store.List(ctx, "")
	assert.NilError(t, err)
	assert.DeepEqual(t, mirrored, written)

	events.Close()
	var last msg.Msg
	stages := map[string]bool{}
	for m := range inbox {
		stages[m.Payload().(msg.Event).Stage] = true
		last = m
	}
	assert.Equal(t, last.Topic(), msg.Finished)
	assert.Assert(t, stages["profiles"] && stages["assemble"])
}

func TestRunIsReproducible(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw")
	ninjaPV(t, raw, 2011)
	s := scenario(t, dir, "50000")

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		out := filepath.Join(dir, fmt.Sprintf("dataset-%d", i))
		_, err := Run(ctx, s, Construct, Options{DatapackageDir: out, RawDataPath: raw, Offline: true}, nil)
		assert.NilError(t, err)
		data, err := os.ReadFile(filepath.Join(out, "data", "sequences", "volatile_profile.csv"))
		assert.NilError(t, err)
		outputs = append(outputs, data)
	}
	assert.Assert(t, bytes.Equal(outputs[0], outputs[1]))
}

func TestRunMissingRawData(t *testing.T) {
	dir := t.TempDir()
	events := msg.NewPublisher(uuid.New())
	failed, err := events.Subscribe(uuid.New(), msg.Failed)
	assert.NilError(t, err)

	_, err = Run(context.Background(), scenario(t, dir, "50000"), Construct, Options{
		DatapackageDir: filepath.Join(dir, "dataset"),
		RawDataPath:    filepath.Join(dir, "empty"),
		Offline:        true,
		Events:         events,
	}, nil)
	var missing *source.MissingRawDataError
	assert.Assert(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, missing.Name, source.NinjaPV)

	m := <-failed
	assert.Equal(t, m.Payload().(msg.Event).Stage, "profiles")
}

func TestRunZeroPotentialBuildsNoProfile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := filepath.Join(dir, "dataset")
	_, err := Run(ctx, scenario(t, dir, "0"), Construct, Options{
		DatapackageDir: out,
		RawDataPath:    filepath.Join(dir, "empty"),
		Offline:        true,
	}, nil)
	assert.NilError(t, err, "no profile is wanted, so no raw file is read")

	store := datapackage.NewDirStore(out)
	_, err = store.Get(ctx, datapackage.ElementPath("volatile"))
	assert.Assert(t, errors.Is(err, datapackage.ErrNotFound))
	_, err = store.Get(ctx, datapackage.SequencePath("volatile_profile"))
	assert.Assert(t, errors.Is(err, datapackage.ErrNotFound))
}

func TestRunDecentralHeat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw")
	var b strings.Builder
	b.WriteString("hour;thermal_load\n")
	for h := 0; h < calendar.HoursPerYear; h++ {
		fmt.Fprintf(&b, "%d;0.5\n", h)
	}
	write(t, filepath.Join(raw, source.ThermalLoad), b.String())

	cost, pot := references(t, dir, "0")
	doc := fmt.Sprintf(`{
		"name": "de-heat-test",
		"buses": {"electricity": ["DE"], "heat": {"decentral": ["DE"]}},
		"temporal": {"scenario_year": 2030},
		"cost": {"wacc": 0.07},
		"heat": {"amount": 1000},
		"references": {"technology_cost": %q, "technology_potential": %q}
	}`, cost, pot)
	s, err := config.Decode([]byte(doc), "json", "")
	assert.NilError(t, err)

	out := filepath.Join(dir, "dataset")
	_, err = Run(ctx, s, Construct, Options{DatapackageDir: out, RawDataPath: raw, Offline: true}, nil)
	assert.NilError(t, err)

	store := datapackage.NewDirStore(out)
	loads, err := datapackage.ReadTable(ctx, store, datapackage.ElementPath("heat_load"))
	assert.NilError(t, err)
	assert.Equal(t, len(loads.Rows), 1)
	assert.Equal(t, loads.Value(0, "name"), "DE-heat-decentral-load")
	assert.Equal(t, loads.Value(0, "profile"), "DE-heat-load-profile")

	boilers, err := datapackage.ReadTable(ctx, store, datapackage.ElementPath("dispatchable"))
	assert.NilError(t, err)
	assert.Equal(t, boilers.Value(0, "name"), "boiler_decentral-DE-heat-decentral")

	seq, err := datapackage.ReadTable(ctx, store, datapackage.SequencePath("heat_load_profile"))
	assert.NilError(t, err)
	assert.DeepEqual(t, seq.Columns[1:], []string{"DE-heat-load-profile"})
	assert.Equal(t, len(seq.Rows), calendar.HoursPerYear)
}

// tyndpMarket writes the market modelling workbook with one vision4 row for
// FR in its NGC sheet.
func tyndpMarket(t *testing.T, raw string) {
	t.Helper()
	assert.NilError(t, os.MkdirAll(raw, 0o755))
	f := excelize.NewFile()
	defer f.Close()
	assert.NilError(t, f.SetSheetName("Sheet1", "NGC"))
	header := 2 + 158
	for i, v := range []interface{}{"Country", "Biofuels", "Gas", "Solar", "Others RES"} {
		cell, err := excelize.CoordinatesToCellName(i+1, header)
		assert.NilError(t, err)
		assert.NilError(t, f.SetCellValue("NGC", cell, v))
	}
	for i, v := range []interface{}{"FR", 300, 1000, 2000, 200} {
		cell, err := excelize.CoordinatesToCellName(i+1, header+1)
		assert.NilError(t, err)
		assert.NilError(t, f.SetCellValue("NGC", cell, v))
	}
	last, err := excelize.CoordinatesToCellName(1, header+35)
	assert.NilError(t, err)
	assert.NilError(t, f.SetCellValue("NGC", last, "end"))
	assert.NilError(t, f.SaveAs(filepath.Join(raw, source.TYNDPMarket)))
}

func TestRunTYNDP(t *testing.T) {
	for _, tc := range []struct {
		name    string
		biomass string
		want    bool
	}{
		{"biomass bus declared", `["FR"]`, true},
		{"biomass conversion skipped without its bus", `[]`, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			raw := filepath.Join(dir, "raw")
			ninjaPV(t, raw, 2011)
			tyndpMarket(t, raw)

			cost, pot := references(t, dir, "0")
			doc := fmt.Sprintf(`{
				"name": "fr-tyndp-test",
				"buses": {"electricity": ["FR"], "biomass": %s},
				"temporal": {"scenario_year": 2030},
				"cost": {"wacc": 0.07},
				"tyndp": {"generation": "vision4"},
				"references": {"technology_cost": %q, "technology_potential": %q}
			}`, tc.biomass, cost, pot)
			s, err := config.Decode([]byte(doc), "json", "")
			assert.NilError(t, err)

			out := filepath.Join(dir, "dataset")
			_, err = Run(ctx, s, ConstructTYNDP, Options{DatapackageDir: out, RawDataPath: raw, Offline: true}, nil)
			assert.NilError(t, err)

			store := datapackage.NewDirStore(out)
			dispatchable, err := datapackage.ReadTable(ctx, store, datapackage.ElementPath("dispatchable"))
			assert.NilError(t, err)
			assert.Equal(t, dispatchable.Value(0, "name"), "FR-gas")

			volatile, err := datapackage.ReadTable(ctx, store, datapackage.ElementPath("volatile"))
			assert.NilError(t, err)
			assert.Equal(t, volatile.Value(0, "profile"), "FR-pv-profile")

			conversion, err := datapackage.ReadTable(ctx, store, datapackage.ElementPath("conversion"))
			if !tc.want {
				assert.Assert(t, errors.Is(err, datapackage.ErrNotFound))
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, conversion.Value(0, "name"), "FR-biomass")
			assert.Equal(t, conversion.Value(0, "from_bus"), "FR-biomass-bus")
		})
	}
}

// ntcWorkbook writes the TYNDP input workbook with one DE-FR line in its NTC
// sheet.
func ntcWorkbook(t *testing.T, raw string) {
	t.Helper()
	assert.NilError(t, os.MkdirAll(raw, 0o755))
	f := excelize.NewFile()
	defer f.Close()
	assert.NilError(t, f.SetSheetName("Sheet1", "NTC"))
	assert.NilError(t, f.SetSheetRow("NTC", "A1", &[]interface{}{"", "Type", "CBA Capacities", ""}))
	assert.NilError(t, f.SetSheetRow("NTC", "A2", &[]interface{}{"", "", "=>", "<="}))
	assert.NilError(t, f.SetSheetRow("NTC", "A3", &[]interface{}{"", "", "MW", "MW"}))
	assert.NilError(t, f.SetSheetRow("NTC", "A4", &[]interface{}{"DE00-FR00", "AC", 3000, 2500}))
	assert.NilError(t, f.SaveAs(filepath.Join(raw, source.TYNDPInput)))
}

func TestRunWarnsAboutUnlinkedBus(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw")
	ntcWorkbook(t, raw)

	cost, pot := references(t, dir, "0")
	doc := fmt.Sprintf(`{
		"name": "grid-test",
		"buses": {"electricity": ["DE", "FR", "PL"]},
		"temporal": {"scenario_year": 2030},
		"cost": {"wacc": 0.07},
		"grid": "tyndp",
		"references": {"technology_cost": %q, "technology_potential": %q}
	}`, cost, pot)
	s, err := config.Decode([]byte(doc), "json", "")
	assert.NilError(t, err)

	events := msg.NewPublisher(uuid.New())
	warnings, err := events.Subscribe(uuid.New(), msg.Warning)
	assert.NilError(t, err)

	out := filepath.Join(dir, "dataset")
	_, err = Run(ctx, s, Construct, Options{DatapackageDir: out, RawDataPath: raw, Offline: true, Events: events}, nil)
	assert.NilError(t, err)

	links, err := datapackage.ReadTable(ctx, datapackage.NewDirStore(out), datapackage.ElementPath("link"))
	assert.NilError(t, err)
	assert.Equal(t, len(links.Rows), 2)

	events.Close()
	var unlinked []string
	for m := range warnings {
		if e := m.Payload().(msg.Event); e.Stage == "grid" {
			unlinked = append(unlinked, e.Detail)
		}
	}
	assert.DeepEqual(t, unlinked, []string{"PL-electricity"})
}

func containsSample(samples []metrics.Sample, want metrics.Sample) bool {
	for _, s := range samples {
		if s == want {
			return true
		}
	}
	return false
}
