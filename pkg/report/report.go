// Package report renders benchmark results into a formatted xlsx workbook:
// a pivoted summary sheet and a sheet with one raw row per result.
package report

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/appnet-org/tabbench/pkg/bench"
	"github.com/appnet-org/tabbench/pkg/logging"
	"github.com/appnet-org/tabbench/pkg/table"
	"github.com/dustin/go-humanize"
	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	SummarySheet = "Resumen_Comparativo"
	RawSheet     = "RAW_Data"

	defaultSheet = "Sheet1"
	// Built-in number format "#,##0.00".
	numFmtThousands = 4
	widthPadding    = 4
)

var metricColors = map[Metric]string{
	WriteMs: "00B050",
	ReadMs:  "ED7D31",
	SizeKB:  "4472C4",
}

// RawHeader is the header row of the raw sheet.
var RawHeader = []string{"Library", "File", "Format", "Size-KB", "Read-ms", "Write-ms", "Iterations", "Failures", "Warning"}

type styles struct {
	indexHeader int
	libHeader   int
	metric      map[Metric]int
	number      int
	index       int
}

func border() []excelize.Border {
	out := make([]excelize.Border, 0, 4)
	for _, side := range []string{"left", "top", "right", "bottom"} {
		out = append(out, excelize.Border{Type: side, Color: "000000", Style: 1})
	}
	return out
}

func fill(color string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
}

var centered = &excelize.Alignment{Horizontal: "center", Vertical: "center"}

func newStyles(f *excelize.File) (*styles, error) {
	s := &styles{metric: make(map[Metric]int)}
	var err error
	if s.indexHeader, err = f.NewStyle(&excelize.Style{
		Border: border(), Alignment: centered, Font: &excelize.Font{Bold: true}, Fill: fill("BDD7EE"),
	}); err != nil {
		return nil, err
	}
	if s.libHeader, err = f.NewStyle(&excelize.Style{
		Border: border(), Alignment: centered, Font: &excelize.Font{Bold: true, Size: 9}, Fill: fill("D9E1F2"),
	}); err != nil {
		return nil, err
	}
	for m, color := range metricColors {
		if s.metric[m], err = f.NewStyle(&excelize.Style{
			Border: border(), Alignment: centered, Font: &excelize.Font{Bold: true, Color: "FFFFFF"}, Fill: fill(color),
		}); err != nil {
			return nil, err
		}
	}
	if s.number, err = f.NewStyle(&excelize.Style{
		Border: border(), Alignment: centered, NumFmt: numFmtThousands,
	}); err != nil {
		return nil, err
	}
	if s.index, err = f.NewStyle(&excelize.Style{
		Border: border(), Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func columnName(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}

// formatThousands renders v the way "#,##0.00" displays it.
func formatThousands(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

// Write saves results to path as a two-sheet workbook.
func Write(path string, results []bench.Result) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := table.EnsureDir(dir); err != nil {
			return err
		}
	}
	f := excelize.NewFile()
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	if err := writeSummary(f, st, NewPivot(results)); err != nil {
		return fmt.Errorf("failed to write %s: %w", SummarySheet, err)
	}
	if _, err := f.NewSheet(RawSheet); err != nil {
		return err
	}
	if err := writeRaw(f, results); err != nil {
		return fmt.Errorf("failed to write %s: %w", RawSheet, err)
	}
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return err
	}
	idx, err := f.GetSheetIndex(SummarySheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	logging.Info("Report written", zap.String("path", path), zap.Int("results", len(results)))
	return nil
}

func writeSummary(f *excelize.File, st *styles, p *Pivot) error {
	sheet := SummarySheet
	for col, label := range []string{"Format", "Dataset"} {
		top, bottom := cellName(col+1, 1), cellName(col+1, 2)
		if err := f.MergeCell(sheet, top, bottom); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, top, label); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, top, bottom, st.indexHeader); err != nil {
			return err
		}
	}

	nlibs := len(p.Libraries)
	lastRow := len(p.Rows) + 2
	col := 3
	for _, m := range p.Metrics {
		first, last := cellName(col, 1), cellName(col+nlibs-1, 1)
		if nlibs > 1 {
			if err := f.MergeCell(sheet, first, last); err != nil {
				return err
			}
		}
		if err := f.SetCellValue(sheet, first, string(m)); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, first, last, st.metric[m]); err != nil {
			return err
		}

		for i, lib := range p.Libraries {
			c := col + i
			if err := f.SetCellValue(sheet, cellName(c, 2), strings.ToUpper(lib)); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, cellName(c, 2), cellName(c, 2), st.libHeader); err != nil {
				return err
			}

			width := len(lib)
			for r, row := range p.Rows {
				cell := cellName(c, r+3)
				if v, ok := p.Value(row, m, lib); ok {
					if err := f.SetCellFloat(sheet, cell, v, -1, 64); err != nil {
						return err
					}
					width = max(width, len(formatThousands(v)))
				}
				if err := f.SetCellStyle(sheet, cell, cell, st.number); err != nil {
					return err
				}
			}
			if err := f.SetColWidth(sheet, columnName(c), columnName(c), float64(width+widthPadding)); err != nil {
				return err
			}
		}

		if m != SizeKB && len(p.Rows) > 0 {
			ref := fmt.Sprintf("%s3:%s%d", columnName(col), columnName(col+nlibs-1), lastRow)
			if err := f.SetConditionalFormat(sheet, ref, []excelize.ConditionalFormatOptions{{
				Type:     "3_color_scale",
				Criteria: "=",
				MinType:  "min",
				MidType:  "percentile",
				MidValue: "50",
				MaxType:  "max",
				MinColor: "#63BE7B",
				MidColor: "#FFEB84",
				MaxColor: "#F8696B",
			}}); err != nil {
				return err
			}
		}
		col += nlibs
	}

	widths := []int{len("Format"), len("Dataset")}
	for r, row := range p.Rows {
		for i, label := range []string{strings.ToUpper(row.Format), row.Dataset} {
			cell := cellName(i+1, r+3)
			if err := f.SetCellValue(sheet, cell, label); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, cell, cell, st.index); err != nil {
				return err
			}
			widths[i] = max(widths[i], len(label))
		}
	}
	for i, w := range widths {
		if err := f.SetColWidth(sheet, columnName(i+1), columnName(i+1), float64(w+widthPadding)); err != nil {
			return err
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      2,
		TopLeftCell: "C3",
		ActivePane:  "bottomRight",
	})
}

func writeRaw(f *excelize.File, results []bench.Result) error {
	header := make([]any, len(RawHeader))
	for i, h := range RawHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(RawSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range results {
		row := []any{
			strings.ToUpper(r.Library), r.Dataset, strings.ToUpper(r.Format),
			number(r.SizeKB), number(r.ReadMs), number(r.WriteMs),
			r.Iterations, r.Failures, r.Warning,
		}
		if err := f.SetSheetRow(RawSheet, cellName(1, i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

// number maps NaN to nil so the cell stays empty.
func number(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
