package hmi

import (
	"context"
	"testing"

	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/metrics"
	"github.com/rivo/tview"
	"gotest.tools/v3/assert"
)

func dataset(t *testing.T, withMetrics bool) datapackage.Store {
	t.Helper()
	ctx := context.Background()
	s := datapackage.NewDirStore(t.TempDir())
	assert.NilError(t, datapackage.WriteTable(ctx, s, datapackage.ElementPath("bus"), &datapackage.Table{
		Columns: []string{"name", "type"},
		Rows:    [][]string{{"DE-electricity", "bus"}, {"FR-electricity", "bus"}},
	}))
	assert.NilError(t, datapackage.WriteDescriptor(ctx, s, &datapackage.Package{
		Name: "test",
		ID:   "run-1",
		Resources: []datapackage.Resource{{
			Name:   "bus",
			Path:   datapackage.ElementPath("bus"),
			Schema: datapackage.Schema{Fields: []datapackage.Field{{Name: "name"}, {Name: "type"}}},
		}},
	}))
	if withMetrics {
		m := metrics.New()
		m.Components("bus", 2)
		data, err := m.Snapshot()
		assert.NilError(t, err)
		assert.NilError(t, s.Put(ctx, metrics.SnapshotPath, data))
	}
	return s
}

func TestSummarize(t *testing.T) {
	sum, err := Summarize(context.Background(), dataset(t, true))
	assert.NilError(t, err)
	assert.Equal(t, sum.ID, "run-1")
	assert.DeepEqual(t, sum.Rows, []Row{{Resource: "bus", Path: "data/elements/bus.csv", Rows: 2, Fields: 2}})
	assert.DeepEqual(t, sum.Metrics, []metrics.Sample{{Name: "fuchur_components", Label: "bus", Value: 2}})
}

func TestSummarizeWithoutSnapshot(t *testing.T) {
	sum, err := Summarize(context.Background(), dataset(t, false))
	assert.NilError(t, err)
	assert.Equal(t, len(sum.Metrics), 0)
}

func TestOverview(t *testing.T) {
	sum, err := Summarize(context.Background(), dataset(t, false))
	assert.NilError(t, err)
	title, content := Overview(tview.NewPages(), sum)
	assert.Equal(t, title, "Overview")
	tbl := content.(*tview.Table)
	assert.Equal(t, tbl.GetRowCount(), 2)
	assert.Equal(t, tbl.GetCell(1, 0).Text, "bus")
	assert.Equal(t, tbl.GetCell(1, 1).Text, "2")
}
