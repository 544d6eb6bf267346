// Package hmi is the terminal inspector of an assembled dataset.
package hmi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell"
	"github.com/ohowland/fuchur_core/internal/pkg/datapackage"
	"github.com/ohowland/fuchur_core/internal/pkg/metrics"
	"github.com/rivo/tview"
)

const logo = `
  ___            _
 / __|_  _  __ | |_  _  _  _ _
|  _|| || |/ _|| ' \| || || '_|
|_|   \_,_|\__||_||_|\_,_||_|
`

// Row summarizes one resource of the package.
type Row struct {
	Resource string
	Path     string
	Rows     int
	Fields   int
	Foreign  int
}

// Summary is everything the inspector shows.
type Summary struct {
	Name    string
	ID      string
	Rows    []Row
	Metrics []metrics.Sample
}

// Summarize reads the descriptor and every resource of the dataset in s. A
// dataset without a metrics snapshot has no Metrics.
func Summarize(ctx context.Context, s datapackage.Store) (Summary, error) {
	pkg, err := datapackage.ReadDescriptor(ctx, s)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Name: pkg.Name, ID: pkg.ID}
	for _, r := range pkg.Resources {
		t, err := datapackage.ReadTable(ctx, s, r.Path)
		if err != nil {
			return Summary{}, fmt.Errorf("resource %s: %w", r.Name, err)
		}
		sum.Rows = append(sum.Rows, Row{
			Resource: r.Name,
			Path:     r.Path,
			Rows:     len(t.Rows),
			Fields:   len(r.Schema.Fields),
			Foreign:  len(r.Schema.ForeignKeys),
		})
	}

	snapshot, err := s.Get(ctx, metrics.SnapshotPath)
	if errors.Is(err, datapackage.ErrNotFound) {
		return sum, nil
	}
	if err != nil {
		return Summary{}, err
	}
	if sum.Metrics, err = metrics.ParseSnapshot(bytes.NewReader(snapshot)); err != nil {
		return Summary{}, fmt.Errorf("%s: %w", metrics.SnapshotPath, err)
	}
	return sum, nil
}

// Page builds one screen of the inspector.
type Page func(*tview.Pages, Summary) (title string, content tview.Primitive)

// Run shows the summary until the user quits with q or Escape.
func Run(sum Summary) error {
	app := tview.NewApplication()
	pages := tview.NewPages()
	for _, page := range []Page{Splash, Overview, Metrics} {
		title, primitive := page(pages, sum)
		pages.AddPage(title, primitive, true, title == "Splash")
	}
	front := "Splash"
	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Rune() == 'q':
			app.Stop()
			return nil
		case ev.Key() == tcell.KeyTab:
			if front == "Metrics" {
				front = "Overview"
			} else {
				front = "Metrics"
			}
			pages.SwitchToPage(front)
			return nil
		}
		return ev
	})
	return app.SetRoot(pages, true).Run()
}

func Splash(pages *tview.Pages, sum Summary) (title string, content tview.Primitive) {
	lines := strings.Split(logo, "\n")
	logoWidth := 0
	for _, line := range lines {
		if len(line) > logoWidth {
			logoWidth = len(line)
		}
	}
	logoBox := tview.NewTextView().
		SetTextColor(tcell.ColorBlue).
		SetDoneFunc(func(key tcell.Key) {
			pages.SwitchToPage("Overview")
		})
	fmt.Fprint(logoBox, logo)

	frame := tview.NewFrame(tview.NewBox()).
		SetBorders(0, 0, 0, 0, 0, 0).
		AddText(sum.Name+" "+sum.ID, true, tview.AlignCenter, tcell.ColorWhite).
		AddText("", true, tview.AlignCenter, tcell.ColorWhite).
		AddText("press enter, tab switches pages, q quits", true, tview.AlignCenter, tcell.ColorDarkMagenta)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 5, false).
		AddItem(tview.NewFlex().
			AddItem(tview.NewBox(), 0, 1, false).
			AddItem(logoBox, logoWidth, 1, true).
			AddItem(tview.NewBox(), 0, 1, false), len(lines), 1, true).
		AddItem(frame, 0, 10, false)
	return "Splash", flex
}

func Overview(pages *tview.Pages, sum Summary) (title string, content tview.Primitive) {
	cells := [][]string{{"Resource", "Rows", "Fields", "Foreign keys", "Path"}}
	for _, r := range sum.Rows {
		cells = append(cells, []string{
			r.Resource, strconv.Itoa(r.Rows), strconv.Itoa(r.Fields), strconv.Itoa(r.Foreign), r.Path,
		})
	}
	return "Overview", table(" Resources ", cells)
}

func Metrics(pages *tview.Pages, sum Summary) (title string, content tview.Primitive) {
	cells := [][]string{{"Metric", "Label", "Value"}}
	for _, s := range sum.Metrics {
		cells = append(cells, []string{s.Name, s.Label, strconv.FormatFloat(s.Value, 'g', -1, 64)})
	}
	return "Metrics", table(" Metrics ", cells)
}

func table(title string, cells [][]string) *tview.Table {
	t := tview.NewTable().SetFixed(1, 1)
	for row, line := range cells {
		for column, cell := range line {
			color := tcell.ColorWhite
			if row == 0 {
				color = tcell.ColorYellow
			} else if column == 0 {
				color = tcell.ColorDarkCyan
			}
			t.SetCell(row, column, tview.NewTableCell(cell).
				SetTextColor(color).
				SetAlign(tview.AlignLeft).
				SetSelectable(row != 0))
		}
	}
	t.SetBorder(true).SetTitle(title)
	t.SetBorders(false).
		SetSelectable(true, false).
		SetSeparator(' ')
	return t
}
