// Package datapackage persists assembled datasets in the tabular datapackage
// layout: element tables, sequence tables, geometries and a descriptor, all
// addressed by path through a Store.
package datapackage

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is a rectangular string table with a header.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Column returns the position of name, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i and column name.
func (t *Table) Value(i int, name string) string {
	c := t.Column(name)
	if c < 0 || i >= len(t.Rows) || c >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][c]
}

// Compact drops every column that is empty in all rows. The first column is
// the key and always kept.
func (t *Table) Compact() *Table {
	keep := make([]int, 0, len(t.Columns))
	for c := range t.Columns {
		if c == 0 {
			keep = append(keep, c)
			continue
		}
		for _, row := range t.Rows {
			if c < len(row) && row[c] != "" {
				keep = append(keep, c)
				break
			}
		}
	}
	out := &Table{Columns: make([]string, len(keep)), Rows: make([][]string, len(t.Rows))}
	for i, c := range keep {
		out.Columns[i] = t.Columns[c]
	}
	for r, row := range t.Rows {
		out.Rows[r] = make([]string, len(keep))
		for i, c := range keep {
			if c < len(row) {
				out.Rows[r][i] = row[c]
			}
		}
	}
	return out
}

// EncodeCSV renders the table with a header row.
func EncodeCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCSV parses a table with a header row.
func DecodeCSV(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	return &Table{Columns: records[0], Rows: records[1:]}, nil
}
