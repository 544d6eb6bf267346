package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ohowland/fuchur_core/internal/pkg/calendar"
)

// TimeSeries is a set of hourly columns sharing a timestamp index.
type TimeSeries struct {
	Name   string
	Index  []time.Time
	series map[string][]float64
}

// Series returns one column.
func (ts *TimeSeries) Series(column string) ([]float64, bool) {
	v, ok := ts.series[column]
	return v, ok
}

// Columns lists the columns that were read.
func (ts *TimeSeries) Columns() []string {
	out := make([]string, 0, len(ts.series))
	for c := range ts.series {
		out = append(out, c)
	}
	return out
}

// Pick returns the values of column at positions.
func (ts *TimeSeries) Pick(column string, positions []int) ([]float64, bool) {
	v, ok := ts.series[column]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = v[p]
	}
	return out, true
}

// ReadTimeSeries reads the wanted columns of a CSV file whose first column is
// a timestamp. Wanted columns absent from the header are not an error; the
// caller decides through Series. A nil wanted reads every column.
func ReadTimeSeries(path string, wanted []string) (*TimeSeries, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingRawDataError{Name: filepath.Base(path), Path: path, Err: err}
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeTimeSeries(f, filepath.Base(path), wanted)
}

// DecodeTimeSeries reads a time series from a CSV stream.
func DecodeTimeSeries(r io.Reader, name string, wanted []string) (*TimeSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	header = stripBOM([][]string{header})[0]

	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[w] = true
	}
	cols := map[int]string{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i > 0 && (wanted == nil || want[h]) {
			cols[i] = h
		}
	}

	ts := &TimeSeries{Name: name, series: make(map[string][]float64, len(cols))}
	for _, c := range cols {
		ts.series[c] = []float64{}
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", name, line, err)
		}
		t, err := calendar.Parse(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", name, line, err)
		}
		ts.Index = append(ts.Index, t)
		for i, c := range cols {
			v := ParseNumber("")
			if i < len(rec) {
				v = ParseNumber(rec[i])
			}
			ts.series[c] = append(ts.series[c], v)
		}
	}
	return ts, nil
}
