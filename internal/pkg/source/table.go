// Package source reads the raw inputs of the pipeline: CSV files, Excel
// workbooks, shapefiles and remote datapackages. Every reader returns plain
// string tables; typing and unit handling belong to the builders.
package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is a raw table with a header row.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// NewTable takes the first record not listed in skip as header and the rest
// as rows. Short rows are padded to the header width.
func NewTable(name string, records [][]string, skip ...int) *Table {
	skipped := make(map[int]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	t := &Table{Name: name}
	for i, rec := range records {
		if skipped[i] {
			continue
		}
		if t.Columns == nil {
			t.Columns = trimAll(rec)
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	width := len(t.Columns)
	for _, row := range t.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for len(t.Columns) < width {
		t.Columns = append(t.Columns, "")
	}
	for i, row := range t.Rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			t.Rows[i] = padded
		}
	}
	return t
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// Column returns the position of name, or -1. Names are compared after
// trimming surrounding whitespace.
func (t *Table) Column(name string) int {
	name = strings.TrimSpace(name)
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Require checks that every named column is present.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		if t.Column(n) < 0 {
			return fmt.Errorf("%s: missing column %q", t.Name, n)
		}
	}
	return nil
}

// Len is the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Cell returns the trimmed value at row i, column c.
func (t *Table) Cell(i, c int) string {
	if c < 0 || i < 0 || i >= len(t.Rows) || c >= len(t.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[i][c])
}

// Value returns the trimmed value at row i in the named column.
func (t *Table) Value(i int, name string) string {
	return t.Cell(i, t.Column(name))
}

// Float parses the cell at row i, column c. Empty or unparsable cells are NaN.
func (t *Table) Float(i, c int) float64 {
	return ParseNumber(t.Cell(i, c))
}

// FloatOr parses the cell like Float but substitutes def for missing values.
func (t *Table) FloatOr(i, c int, def float64) float64 {
	v := t.Float(i, c)
	if math.IsNaN(v) {
		return def
	}
	return v
}

// ParseNumber reads a raw numeric cell. Empty, "nan" and malformed cells are NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "n/a", "-":
		return math.NaN()
	case "inf", "infinity":
		return math.Inf(1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Index maps the trimmed values of column c onto their first row.
func (t *Table) Index(c int) map[string]int {
	idx := make(map[string]int, len(t.Rows))
	for i := range t.Rows {
		k := t.Cell(i, c)
		if _, seen := idx[k]; !seen {
			idx[k] = i
		}
	}
	return idx
}

// DropEmptyColumns removes every column without a single non-blank data cell.
func (t *Table) DropEmptyColumns() {
	keep := make([]int, 0, len(t.Columns))
	for c := range t.Columns {
		for i := range t.Rows {
			if t.Cell(i, c) != "" {
				keep = append(keep, c)
				break
			}
		}
	}
	cols := make([]string, len(keep))
	for k, c := range keep {
		cols[k] = t.Columns[c]
	}
	for i, row := range t.Rows {
		out := make([]string, len(keep))
		for k, c := range keep {
			out[k] = row[c]
		}
		t.Rows[i] = out
	}
	t.Columns = cols
}

// DropEmptyRows removes rows whose cells are all blank.
func (t *Table) DropEmptyRows() {
	rows := t.Rows[:0]
	for _, row := range t.Rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				rows = append(rows, row)
				break
			}
		}
	}
	t.Rows = rows
}

// DropLastRow removes the trailing row, which in several workbooks is a total.
func (t *Table) DropLastRow() {
	if len(t.Rows) > 0 {
		t.Rows = t.Rows[:len(t.Rows)-1]
	}
}

// Rename replaces column names found in names.
func (t *Table) Rename(names map[string]string) {
	for i, c := range t.Columns {
		if n, ok := names[c]; ok {
			t.Columns[i] = n
		}
	}
}
