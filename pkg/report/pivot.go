package report

import (
	"math"
	"slices"
	"strings"

	"github.com/appnet-org/tabbench/pkg/bench"
)

// Metric is a top-level column group of the summary.
type Metric string

const (
	WriteMs Metric = "Write-ms"
	ReadMs  Metric = "Read-ms"
	SizeKB  Metric = "Size-KB"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{WriteMs, ReadMs, SizeKB}

func (m Metric) value(r bench.Result) float64 {
	switch m {
	case WriteMs:
		return r.WriteMs
	case ReadMs:
		return r.ReadMs
	case SizeKB:
		return r.SizeKB
	}
	return math.NaN()
}

// RowKey identifies a summary row.
type RowKey struct {
	Format  string
	Dataset string
}

type cellKey struct {
	row    RowKey
	metric Metric
	lib    string
}

type acc struct {
	sum float64
	n   int
}

// Pivot is the results reshaped to rows (format, dataset) by columns
// (metric, library). A cell is the mean of the non-NaN values for its key.
type Pivot struct {
	Rows      []RowKey
	Metrics   []Metric
	Libraries []string
	cells     map[cellKey]acc
}

// NewPivot builds the pivot. Rows are sorted by format then dataset and
// libraries alphabetically. A metric with no value at all is left out.
func NewPivot(results []bench.Result) *Pivot {
	p := &Pivot{cells: make(map[cellKey]acc)}
	present := make(map[Metric]bool)

	for _, r := range results {
		row := RowKey{Format: r.Format, Dataset: r.Dataset}
		if !slices.Contains(p.Rows, row) {
			p.Rows = append(p.Rows, row)
		}
		if !slices.Contains(p.Libraries, r.Library) {
			p.Libraries = append(p.Libraries, r.Library)
		}
		for _, m := range Metrics {
			v := m.value(r)
			if math.IsNaN(v) {
				continue
			}
			present[m] = true
			k := cellKey{row: row, metric: m, lib: r.Library}
			a := p.cells[k]
			a.sum += v
			a.n++
			p.cells[k] = a
		}
	}

	for _, m := range Metrics {
		if present[m] {
			p.Metrics = append(p.Metrics, m)
		}
	}
	slices.SortFunc(p.Rows, func(a, b RowKey) int {
		if c := strings.Compare(a.Format, b.Format); c != 0 {
			return c
		}
		return strings.Compare(a.Dataset, b.Dataset)
	})
	slices.Sort(p.Libraries)
	return p
}

// Value returns the cell for (row, metric, lib); ok is false when no
// result supplied a value for it.
func (p *Pivot) Value(row RowKey, m Metric, lib string) (v float64, ok bool) {
	a, ok := p.cells[cellKey{row: row, metric: m, lib: lib}]
	if !ok || a.n == 0 {
		return 0, false
	}
	return a.sum / float64(a.n), true
}
