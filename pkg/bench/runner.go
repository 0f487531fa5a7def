package bench

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/appnet-org/tabbench/pkg/logging"
	"github.com/appnet-org/tabbench/pkg/registry"
	"github.com/appnet-org/tabbench/pkg/table"
	"go.uber.org/zap"
)

// Runner benchmarks every dataset in DataDir against Pairs.
type Runner struct {
	DataDir string
	TempDir string
	Pairs   []registry.Pair
	Options Options

	reset bool
}

// Dataset is an input workbook found on disk.
type Dataset struct {
	Path string
	Name string
	Size int64
}

// Discover lists the .xlsx files in dir, smallest first. Ties keep name order.
func Discover(dir string) ([]Dataset, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var out []Dataset
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		base := filepath.Base(path)
		out = append(out, Dataset{
			Path: path,
			Name: base[:len(base)-len(filepath.Ext(base))],
			Size: info.Size(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	return out, nil
}

// ResetTempDir removes dir and creates it again empty.
func ResetTempDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return table.EnsureDir(dir)
}

// Run measures every (dataset, pair) in order. No datasets is not an
// error: a warning is logged, no results are returned and the temp dir is
// not touched. Otherwise the temp dir is left in place for the caller to
// remove with Cleanup once the report is written.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	datasets, err := Discover(r.DataDir)
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		logging.Warn("No datasets found", zap.String("dir", r.DataDir))
		return nil, nil
	}
	if err := ResetTempDir(r.TempDir); err != nil {
		return nil, err
	}
	r.reset = true

	progress := r.Options.progress()
	var results []Result
	for _, ds := range datasets {
		progress.Dataset(ds.Name, ds.Size)

		t, err := table.LoadWorkbook(ds.Path)
		if err != nil {
			return results, err
		}
		logging.Debug("Loaded dataset",
			zap.String("dataset", t.Name),
			zap.Int("rows", t.Rows()),
			zap.Int("columns", t.Width()))

		for _, pair := range r.Pairs {
			m, err := Measure(ctx, t, pair, r.TempDir, r.Options)
			if err != nil {
				return results, err
			}
			results = append(results, m.Aggregate(r.Options))
		}
	}
	return results, nil
}

// Cleanup removes the temp dir if Run reset it, and is a no-op otherwise.
func (r *Runner) Cleanup() error {
	if !r.reset {
		return nil
	}
	r.reset = false
	if err := os.RemoveAll(r.TempDir); err != nil {
		return fmt.Errorf("failed to remove temp dir %s: %w", r.TempDir, err)
	}
	return nil
}
