package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// SheetOptions controls how a worksheet is turned into a table.
type SheetOptions struct {
	// Skip lists raw row positions dropped before the header is taken.
	Skip []int
	// Required columns must be present in the header.
	Required []string
}

// ReadSheetRows returns the raw cell values of one worksheet. Numbers are
// returned unformatted. An empty sheet name reads the first worksheet.
func ReadSheetRows(path, sheet string) ([][]string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingRawDataError{Name: filepath.Base(path), Path: path, Err: err}
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s of %s: %w", sheet, filepath.Base(path), err)
	}
	return rows, nil
}

// ReadSheet reads one worksheet into a table.
func ReadSheet(path, sheet string, opts SheetOptions) (*Table, error) {
	rows, err := ReadSheetRows(path, sheet)
	if err != nil {
		return nil, err
	}
	t := NewTable(filepath.Base(path)+"#"+sheet, rows, opts.Skip...)
	if err := t.Require(opts.Required...); err != nil {
		return nil, err
	}
	return t, nil
}
