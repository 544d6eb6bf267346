package source

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CSVOptions controls how a delimited file is read.
type CSVOptions struct {
	// Comma is the field delimiter, ',' when zero.
	Comma rune
	// Skip lists raw record positions dropped before the header is taken.
	Skip []int
	// Required columns must be present in the header.
	Required []string
}

// ReadCSV reads a delimited file into a table.
func ReadCSV(path string, opts CSVOptions) (*Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingRawDataError{Name: filepath.Base(path), Path: path, Err: err}
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeCSV(f, filepath.Base(path), opts)
}

// DecodeCSV reads a delimited stream into a table named name.
func DecodeCSV(r io.Reader, name string, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	t := NewTable(name, stripBOM(records), opts.Skip...)
	if err := t.Require(opts.Required...); err != nil {
		return nil, err
	}
	return t, nil
}

func stripBOM(records [][]string) [][]string {
	if len(records) > 0 && len(records[0]) > 0 {
		first := records[0][0]
		if len(first) >= 3 && first[:3] == "\xef\xbb\xbf" {
			records[0][0] = first[3:]
		}
	}
	return records
}
