// Package tabular reads sale tables from CSV and Excel workbooks.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"markettrend/server/internal/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyTable        = errors.New("table has no header row")
	ErrMalformedTable    = errors.New("table could not be read")
)

// ReadFile reads a .csv or .xlsx file.
func ReadFile(path string) (models.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.RawTable{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Read(filepath.Base(path), f)
}

// Read picks the parser from the extension of name.
func Read(name string, r io.Reader) (models.RawTable, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(r)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r, "")
	default:
		return models.RawTable{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ReadCSV reads a comma separated table whose first row is the header.
func ReadCSV(r io.Reader) (models.RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return models.RawTable{}, fmt.Errorf("%w: failed to read csv: %w", ErrMalformedTable, err)
	}
	return fromRows(rows)
}

// ReadXLSX reads one sheet of a workbook; an empty sheet name means the first.
func ReadXLSX(r io.Reader, sheet string) (models.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.RawTable{}, fmt.Errorf("%w: failed to open workbook: %w", ErrMalformedTable, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return models.RawTable{}, fmt.Errorf("%w: failed to read sheet %q: %w", ErrMalformedTable, sheet, err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) (models.RawTable, error) {
	if len(rows) == 0 {
		return models.RawTable{}, ErrEmptyTable
	}

	headers := rows[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	table := models.RawTable{Headers: headers, Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		// pad ragged rows so every row indexes like the header
		if len(row) < len(headers) {
			padded := make([]string, len(headers))
			copy(padded, row)
			row = padded
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
