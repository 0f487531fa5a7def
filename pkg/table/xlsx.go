package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// dateNumFmt is the built-in "m/d/yy h:mm" format excelize applies to
// time.Time values.
const dateNumFmt = 22

// SaveWorkbook writes t to an .xlsx file at path using the streaming writer:
// a header row followed by one row per record on the first sheet.
func SaveWorkbook(path string, t *Table) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: dateNumFmt})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	header := make([]any, t.Width())
	for j, name := range t.Names() {
		header[j] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]any, t.Width())
	for i := 0; i < t.Rows(); i++ {
		for j := range t.Columns {
			v := t.Columns[j].Values[i]
			if ts, ok := v.(time.Time); ok {
				row[j] = excelize.Cell{StyleID: dateStyle, Value: ts}
				continue
			}
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	return f.SaveAs(path)
}

// LoadWorkbook reads the first sheet of an .xlsx file. The first row is the
// header; column kinds come from the cell types and number formats of the
// data rows. The table is named after the file stem.
func LoadWorkbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t := New(name)
	if len(rows) == 0 {
		return t, nil
	}

	header, data := rows[0], rows[1:]
	for j, h := range header {
		raw := make([]string, len(data))
		first := -1
		for i, r := range data {
			if j < len(r) {
				raw[i] = r[j]
			}
			if first < 0 && raw[i] != "" {
				first = i
			}
		}

		kind := Null
		if first >= 0 {
			kind, err = workbookKind(f, sheet, j+1, first+2, raw)
			if err != nil {
				return nil, err
			}
		}

		col := Column{Name: h, Kind: kind, Values: make([]any, len(data))}
		for i, s := range raw {
			v, err := workbookValue(kind, s)
			if err != nil {
				return nil, fmt.Errorf("%s: column %q row %d: %w", name, h, i+2, err)
			}
			col.Values[i] = v
		}
		t.Columns = append(t.Columns, col)
	}
	return t, nil
}

func workbookKind(f *excelize.File, sheet string, col, row int, raw []string) (Kind, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Null, err
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return Null, fmt.Errorf("failed to read cell type of %s: %w", cell, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		return Bool, nil
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return String, nil
	case excelize.CellTypeDate:
		return Time, nil
	}

	styleID, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		return Null, err
	}
	if styleID != 0 {
		style, err := f.GetStyle(styleID)
		if err == nil && isDateFormat(style.NumFmt) {
			return Time, nil
		}
	}

	switch k := InferKind(raw); k {
	case Int, Float:
		return k, nil
	}
	return String, nil
}

// isDateFormat reports whether a built-in number format renders a date.
func isDateFormat(numFmt int) bool {
	return (numFmt >= 14 && numFmt <= 22) || (numFmt >= 45 && numFmt <= 47)
}

// workbookValue converts a raw cell. An empty cell is null for every kind.
func workbookValue(k Kind, s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	switch k {
	case Bool:
		switch strings.ToUpper(s) {
		case "1", "TRUE":
			return true, nil
		case "0", "FALSE":
			return false, nil
		}
		return nil, fmt.Errorf("invalid bool %q", s)
	case Time:
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			ts, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				return nil, err
			}
			return ts.UTC(), nil
		}
		return time.Parse(TimeLayout, s)
	}
	return ParseValue(k, s)
}

// EnsureDir creates dir and its parents if absent.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
