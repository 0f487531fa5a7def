// Package generator builds reproducible synthetic datasets for the benchmark.
package generator

import (
	"fmt"
	"path/filepath"

	"github.com/appnet-org/tabbench/pkg/logging"
	"github.com/appnet-org/tabbench/pkg/table"
	"go.uber.org/zap"
)

// Preset is a named dataset size.
type Preset struct {
	Name    string
	Rows    int
	Columns int
}

// DefaultPresets are the three sizes the benchmark ships with.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "small", Rows: 1_000, Columns: 12},
		{Name: "medium", Rows: 10_000, Columns: 24},
		{Name: "large", Rows: 100_000, Columns: 36},
	}
}

// Generator creates tables from presets. All tables drawn from one
// Generator share its random stream, so output depends on the seed and on
// the order of calls.
type Generator struct {
	src *Source
}

// New returns a generator seeded with seed.
func New(seed uint64) *Generator {
	return &Generator{src: NewSource(seed)}
}

// Generate builds one table with rows rows and cols columns, cycling
// through Catalog.
func (g *Generator) Generate(name string, rows, cols int) (*table.Table, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid size %dx%d for dataset %q", rows, cols, name)
	}
	t := table.New(name)
	for i := 0; i < cols; i++ {
		ct := TypeAt(i)
		t.Columns = append(t.Columns, table.Column{
			Name:   ColumnName(i),
			Kind:   ct.Kind(),
			Values: ct.Generate(g.src, rows),
		})
	}
	return t, nil
}

// GenerateAll builds one table per preset, in preset order.
func (g *Generator) GenerateAll(presets []Preset) ([]*table.Table, error) {
	tables := make([]*table.Table, 0, len(presets))
	for _, p := range presets {
		t, err := g.Generate(p.Name, p.Rows, p.Columns)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Save writes each table to <dir>/<name>.xlsx, creating dir if needed, and
// returns the written paths. The first failure aborts.
func Save(dir string, tables []*table.Table) ([]string, error) {
	if err := table.EnsureDir(dir); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(dir, t.Name+".xlsx")
		if err := table.SaveWorkbook(path, t); err != nil {
			return paths, fmt.Errorf("failed to save dataset %s: %w", t.Name, err)
		}
		logging.Info("Dataset written",
			zap.String("file", path),
			zap.Int("rows", t.Rows()),
			zap.Int("columns", t.Width()))
		paths = append(paths, path)
	}
	return paths, nil
}
