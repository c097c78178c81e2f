// Package tabular reads and writes the tabular formats both tools
// accept: CSV and Excel workbooks. Callers get a uniform Table with a
// case-insensitive header index and required-column validation.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a fully-read tabular file. Rows are padded or truncated to
// the header width, so Get is always safe.
type Table struct {
	Headers []string
	Rows    [][]string

	index map[string]int
}

// HeaderIndex maps lowercased column names to their position.
type HeaderIndex map[string]int

// Index returns the table's header index, building it on first use.
func (t *Table) Index() HeaderIndex {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Headers))
		for i, h := range t.Headers {
			t.index[strings.ToLower(strings.TrimSpace(h))] = i
		}
	}
	return t.index
}

// Get returns the cell for the named column in the given row, or ""
// if the column does not exist.
func (t *Table) Get(row []string, column string) string {
	pos, ok := t.Index()[strings.ToLower(column)]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}

// Require verifies that every named column is present in the header.
// The returned error names all missing columns at once so the user can
// fix the file in one pass.
func (t *Table) Require(columns ...string) error {
	idx := t.Index()
	var missing []string
	for _, col := range columns {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ReadCSV reads an entire CSV stream into a Table. The input passes
// through NewCleanReader first, so BOMs and invalid UTF-8 are handled.
// Ragged rows are tolerated and squared to the header width.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(NewCleanReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file: no header row")
	}

	return tableFromRecords(records), nil
}

// ReadXLSX reads the first sheet of an Excel workbook into a Table.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty sheet: no header row")
	}

	return tableFromRecords(records), nil
}

// ReadNamed reads from r using the codec implied by name's extension.
// Used for uploads, where only the client-supplied filename hints at
// the format.
func ReadNamed(r io.Reader, name string) (*Table, error) {
	if isWorkbook(name) {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// ReadFile reads a tabular file, choosing the codec from the extension.
// .csv reads as CSV; .xlsx and .xls read as a workbook.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if isWorkbook(path) {
		return ReadXLSX(f)
	}
	return ReadCSV(f)
}

// WriteCSV writes the table as CSV.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the table as a single-sheet Excel workbook.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := setSheetRow(f, sheet, 1, t.Headers); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := setSheetRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteFile writes the table to path, choosing the codec from the
// extension the same way ReadFile does.
func WriteFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if isWorkbook(path) {
		err = WriteXLSX(f, t)
	} else {
		err = WriteCSV(f, t)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

func setSheetRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("row %d: %w", rowNum, err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("set row %d: %w", rowNum, err)
	}
	return nil
}

func isWorkbook(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls", ".xlsm":
		return true
	}
	return false
}

// tableFromRecords squares the raw records to the header width.
func tableFromRecords(records [][]string) *Table {
	headers := records[0]
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(headers))
		copy(row, rec)
		rows = append(rows, row)
	}
	return &Table{Headers: headers, Rows: rows}
}
