package report

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/appnet-org/tabbench/pkg/bench"
)

func sampleResults() []bench.Result {
	return []bench.Result{
		{Library: "stdlib", Dataset: "small", Format: "csv", WriteMs: 1.5, ReadMs: 2.5, SizeKB: 100, Iterations: 5},
		{Library: "arrow", Dataset: "small", Format: "csv", WriteMs: 0.5, ReadMs: 0.75, SizeKB: 90, Iterations: 5},
		{Library: "arrow", Dataset: "large", Format: "parquet", WriteMs: 1234.5, ReadMs: 10, SizeKB: 2048, Iterations: 5},
		{Library: "stdlib", Dataset: "large", Format: "csv", WriteMs: math.NaN(), ReadMs: math.NaN(), SizeKB: math.NaN(), Iterations: 5, Failures: 5},
		{Library: "arrow", Dataset: "large", Format: "csv", WriteMs: 4, ReadMs: 3, SizeKB: 900, Iterations: 5, Warning: "inferred string"},
	}
}

func TestNewPivot_Ordering(t *testing.T) {
	p := NewPivot(sampleResults())
	require.Equal(t, []Metric{WriteMs, ReadMs, SizeKB}, p.Metrics)
	require.Equal(t, []string{"arrow", "stdlib"}, p.Libraries)
	require.Equal(t, []RowKey{
		{Format: "csv", Dataset: "large"},
		{Format: "csv", Dataset: "small"},
		{Format: "parquet", Dataset: "large"},
	}, p.Rows)
}

func TestNewPivot_Cells(t *testing.T) {
	p := NewPivot(sampleResults())

	v, ok := p.Value(RowKey{"csv", "small"}, WriteMs, "stdlib")
	require.True(t, ok)
	require.Equal(t, 1.5, v)

	// All iterations failed: no value.
	_, ok = p.Value(RowKey{"csv", "large"}, WriteMs, "stdlib")
	require.False(t, ok)

	// Never measured.
	_, ok = p.Value(RowKey{"parquet", "large"}, ReadMs, "stdlib")
	require.False(t, ok)
}

func TestNewPivot_AveragesDuplicates(t *testing.T) {
	p := NewPivot([]bench.Result{
		{Library: "a", Dataset: "d", Format: "csv", WriteMs: 2, ReadMs: 1, SizeKB: 1},
		{Library: "a", Dataset: "d", Format: "csv", WriteMs: 4, ReadMs: math.NaN(), SizeKB: 1},
	})
	require.Len(t, p.Rows, 1)
	v, _ := p.Value(RowKey{"csv", "d"}, WriteMs, "a")
	require.Equal(t, 3.0, v)
	v, _ = p.Value(RowKey{"csv", "d"}, ReadMs, "a")
	require.Equal(t, 1.0, v)
}

func TestNewPivot_DropsEmptyMetric(t *testing.T) {
	p := NewPivot([]bench.Result{
		{Library: "a", Dataset: "d", Format: "csv", WriteMs: 2, ReadMs: 1, SizeKB: math.NaN()},
	})
	require.Equal(t, []Metric{WriteMs, ReadMs}, p.Metrics)
}

func TestFormatThousands(t *testing.T) {
	require.Equal(t, "1,234.50", formatThousands(1234.5))
	require.Equal(t, "0.75", formatThousands(0.75))
}

func openReport(t *testing.T) *excelize.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out", "results_summary.xlsx")
	require.NoError(t, Write(path, sampleResults()))
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWrite_Sheets(t *testing.T) {
	f := openReport(t)
	require.Equal(t, []string{SummarySheet, RawSheet}, f.GetSheetList())
	require.Equal(t, 0, f.GetActiveSheetIndex())
}

func TestWrite_SummaryHeader(t *testing.T) {
	f := openReport(t)

	merges, err := f.GetMergeCells(SummarySheet)
	require.NoError(t, err)
	ranges := make(map[string]string)
	for _, m := range merges {
		ranges[m.GetStartAxis()+":"+m.GetEndAxis()] = m.GetCellValue()
	}
	require.Equal(t, map[string]string{
		"A1:A2": "Format",
		"B1:B2": "Dataset",
		"C1:D1": "Write-ms",
		"E1:F1": "Read-ms",
		"G1:H1": "Size-KB",
	}, ranges)

	for cell, want := range map[string]string{"C2": "ARROW", "D2": "STDLIB", "G2": "ARROW", "H2": "STDLIB"} {
		got, err := f.GetCellValue(SummarySheet, cell)
		require.NoError(t, err)
		require.Equal(t, want, got, cell)
	}

	panes, err := f.GetPanes(SummarySheet)
	require.NoError(t, err)
	require.True(t, panes.Freeze)
	require.Equal(t, "C3", panes.TopLeftCell)
	require.Equal(t, 2, panes.XSplit)
	require.Equal(t, 2, panes.YSplit)
}

func TestWrite_SummaryData(t *testing.T) {
	f := openReport(t)
	rows, err := f.GetRows(SummarySheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 5)

	require.Equal(t, []string{"CSV", "large", "4", "", "3", "", "900"}, rows[2][:7])
	require.Equal(t, "CSV", rows[3][0])
	require.Equal(t, "small", rows[3][1])
	require.Equal(t, "1.5", rows[3][3])
	require.Equal(t, "PARQUET", rows[4][0])
	require.Equal(t, "1234.5", rows[4][2])

	// Blank cells keep the number style.
	style, err := f.GetCellStyle(SummarySheet, "D3")
	require.NoError(t, err)
	require.NotZero(t, style)
}

func TestWrite_ColorScaleOnTimingGroupsOnly(t *testing.T) {
	f := openReport(t)
	formats, err := f.GetConditionalFormats(SummarySheet)
	require.NoError(t, err)
	require.Len(t, formats, 2)
	require.Contains(t, formats, "C3:D5")
	require.Contains(t, formats, "E3:F5")
	require.Equal(t, "3_color_scale", formats["C3:D5"][0].Type)
}

func TestWrite_ColumnWidths(t *testing.T) {
	f := openReport(t)
	w, err := f.GetColWidth(SummarySheet, "C")
	require.NoError(t, err)
	// "1,234.50" is eight characters.
	require.Equal(t, 12.0, w)

	w, err = f.GetColWidth(SummarySheet, "A")
	require.NoError(t, err)
	require.Equal(t, float64(len("PARQUET")+4), w)
}

func TestWrite_RawSheet(t *testing.T) {
	f := openReport(t)
	rows, err := f.GetRows(RawSheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	require.Equal(t, RawHeader, rows[0])
	require.Equal(t, []string{"STDLIB", "small", "CSV"}, rows[1][:3])

	failed := rows[4]
	require.Equal(t, "", failed[3])
	require.Equal(t, "5", failed[7])

	require.Equal(t, "inferred string", rows[5][8])
}
