package bench

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/appnet-org/tabbench/pkg/codec"
	"github.com/appnet-org/tabbench/pkg/generator"
	"github.com/appnet-org/tabbench/pkg/logging"
	"github.com/appnet-org/tabbench/pkg/registry"
	"github.com/appnet-org/tabbench/pkg/table"
)

// fakeCodec writes a fixed payload and fails on selected write/read calls.
type fakeCodec struct {
	failWrite map[int]bool
	failRead  map[int]bool
	warning   string
	writes    int
	reads     int
}

func (f *fakeCodec) Write(ctx context.Context, t *table.Table, path string) error {
	defer func() { f.writes++ }()
	if f.warning != "" {
		codec.Warnf(ctx, "%s", f.warning)
	}
	if f.failWrite[f.writes] {
		return errors.New("disk full")
	}
	return os.WriteFile(path, make([]byte, 2048), 0o644)
}

func (f *fakeCodec) Read(ctx context.Context, path string) (*table.Table, error) {
	defer func() { f.reads++ }()
	if f.failRead[f.reads] {
		return nil, errors.New("corrupt file")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return table.New("x"), nil
}

type recorder struct {
	datasets   []string
	iterations int
	failures   []int
	done       []string
}

func (r *recorder) Dataset(name string, _ int64) { r.datasets = append(r.datasets, name) }
func (r *recorder) Iteration(registry.Pair, int, int) { r.iterations++ }
func (r *recorder) Failed(_ registry.Pair, i int, _ error) { r.failures = append(r.failures, i) }
func (r *recorder) Done(p registry.Pair, warning string) {
	r.done = append(r.done, fmt.Sprintf("%s|%s", p, warning))
}

func fakePair(c codec.Codec) registry.Pair {
	return registry.Pair{Library: "fake", Format: registry.CSV, Codec: c}
}

func tinyTable() *table.Table {
	return &table.Table{Name: "small", Columns: []table.Column{
		{Name: "Price_1", Kind: table.Float, Values: []any{1.0, 2.0}},
	}}
}

func TestParseFailureMode(t *testing.T) {
	m, err := ParseFailureMode("strict")
	require.NoError(t, err)
	require.Equal(t, Strict, m)
	m, err = ParseFailureMode("zero-sentinel")
	require.NoError(t, err)
	require.Equal(t, ZeroSentinel, m)
	_, err = ParseFailureMode("lenient")
	require.Error(t, err)
}

func TestMeasure_AllSucceed(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	opts := DefaultOptions()
	opts.Progress = rec

	m, err := Measure(context.Background(), tinyTable(), fakePair(&fakeCodec{}), dir, opts)
	require.NoError(t, err)
	require.Len(t, m.Samples, 5)
	require.Zero(t, m.Failures())
	require.EqualValues(t, 2048, m.SizeBytes)
	require.Equal(t, 5, rec.iterations)
	require.Equal(t, []string{"fake/csv|"}, rec.done)

	for i := 0; i < 5; i++ {
		require.FileExists(t, filepath.Join(dir, fmt.Sprintf("small_fake_%d.csv", i)))
	}

	r := m.Aggregate(opts)
	require.Equal(t, 2.0, r.SizeKB)
	require.Equal(t, 5, r.Iterations)
	require.False(t, r.Degraded())
	require.False(t, math.IsNaN(r.WriteMs))
	require.False(t, math.IsNaN(r.ReadMs))
}

func TestMeasure_FailureIsContained(t *testing.T) {
	rec := &recorder{}
	opts := DefaultOptions()
	opts.Progress = rec
	fc := &fakeCodec{failRead: map[int]bool{2: true}}

	m, err := Measure(context.Background(), tinyTable(), fakePair(fc), t.TempDir(), opts)
	require.NoError(t, err)
	require.Len(t, m.Samples, 5)
	require.Equal(t, 1, m.Failures())
	require.Equal(t, []int{3}, rec.failures)
	require.ErrorContains(t, m.Samples[2].Err, "corrupt file")

	strict := m.Aggregate(opts)
	require.Equal(t, 1, strict.Failures)
	require.True(t, strict.Degraded())
	require.False(t, math.IsNaN(strict.WriteMs))
}

func TestMeasure_FirstWriteFailureLeavesSizeMissing(t *testing.T) {
	fc := &fakeCodec{failWrite: map[int]bool{0: true}}
	m, err := Measure(context.Background(), tinyTable(), fakePair(fc), t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	require.EqualValues(t, -1, m.SizeBytes)

	opts := DefaultOptions()
	require.True(t, math.IsNaN(m.Aggregate(opts).SizeKB))
	opts.Mode = ZeroSentinel
	require.Zero(t, m.Aggregate(opts).SizeKB)
}

func TestMeasure_EveryIterationFails(t *testing.T) {
	fail := map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true}
	m, err := Measure(context.Background(), tinyTable(), fakePair(&fakeCodec{failWrite: fail}), t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 5, m.Failures())

	opts := DefaultOptions()
	strict := m.Aggregate(opts)
	require.True(t, math.IsNaN(strict.WriteMs))
	require.True(t, math.IsNaN(strict.ReadMs))
	require.Equal(t, 5, strict.Failures)

	opts.Mode = ZeroSentinel
	zero := m.Aggregate(opts)
	require.Zero(t, zero.WriteMs)
	require.Zero(t, zero.ReadMs)
	require.True(t, zero.Degraded())
}

func TestMeasure_SurfacesFirstWarningLine(t *testing.T) {
	rec := &recorder{}
	opts := DefaultOptions()
	opts.Progress = rec
	fc := &fakeCodec{warning: "precision lost\nsee column Price_1"}

	m, err := Measure(context.Background(), tinyTable(), fakePair(fc), t.TempDir(), opts)
	require.NoError(t, err)
	require.Equal(t, "precision lost", m.Warning)
	require.Equal(t, []string{"fake/csv|precision lost"}, rec.done)
	require.Equal(t, "precision lost", m.Aggregate(opts).Warning)
}

func TestMeasure_StopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := Measure(ctx, tinyTable(), fakePair(&fakeCodec{}), t.TempDir(), DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, m.Samples)
}

func samplesOf(ms ...float64) []Sample {
	out := make([]Sample, len(ms))
	for i, v := range ms {
		d := time.Duration(v * float64(time.Millisecond))
		out[i] = Sample{Iteration: i, Write: d, Read: d}
	}
	return out
}

func TestAggregate_TrimmedMeanAndSentinel(t *testing.T) {
	m := Measurement{Dataset: "d", Pair: fakePair(nil), SizeBytes: 1024, Samples: samplesOf(1, 2, 3, 4, 100)}
	opts := DefaultOptions()
	r := m.Aggregate(opts)
	require.InDelta(t, 22.0, r.WriteMs, 1e-9)
	require.InDelta(t, 22.0, r.ReadMs, 1e-9)
	require.Equal(t, 1.0, r.SizeKB)

	m.Samples[4].Err = errors.New("boom")
	strict := m.Aggregate(opts)
	require.InDelta(t, 2.5, strict.WriteMs, 1e-9)

	opts.Mode = ZeroSentinel
	zero := m.Aggregate(opts)
	// 1,2,3,4,0: five samples trim nothing at 10%.
	require.InDelta(t, 2.0, zero.WriteMs, 1e-9)
}

func TestAggregate_FewRepetitionsUseMean(t *testing.T) {
	m := Measurement{Pair: fakePair(nil), Samples: samplesOf(1, 2, 9)}
	opts := DefaultOptions()
	opts.Repetitions = 3
	require.InDelta(t, 4.0, m.Aggregate(opts).WriteMs, 1e-9)
}

func TestMeasure_DumpsProfile(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile_data")
	opts := DefaultOptions()
	opts.ProfileDir = profile
	opts.Repetitions = 3

	_, err := Measure(context.Background(), tinyTable(), fakePair(&fakeCodec{failRead: map[int]bool{1: true}}), t.TempDir(), opts)
	require.NoError(t, err)

	writes, err := os.ReadFile(filepath.Join(profile, "small_fake_csv_write_times.txt"))
	require.NoError(t, err)
	require.Len(t, strings.Fields(string(writes)), 2)

	sizes, err := os.ReadFile(filepath.Join(profile, "small_fake_csv_sizes.txt"))
	require.NoError(t, err)
	require.Equal(t, "2048\n", string(sizes))
	require.FileExists(t, filepath.Join(profile, "small_fake_csv_read_times.txt"))
}

func writeDataset(t *testing.T, dir, name string, rows int) {
	t.Helper()
	values := make([]any, rows)
	for i := range values {
		values[i] = int64(i)
	}
	tbl := &table.Table{Name: name, Columns: []table.Column{{Name: "Quantity_1", Kind: table.Int, Values: values}}}
	require.NoError(t, table.SaveWorkbook(filepath.Join(dir, name+".xlsx"), tbl))
}

func TestDiscover_SmallestFirst(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "alpha_large", 5000)
	writeDataset(t, dir, "beta_small", 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	ds, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	require.Equal(t, "beta_small", ds[0].Name)
	require.Equal(t, "alpha_large", ds[1].Name)
	require.Less(t, ds[0].Size, ds[1].Size)
}

func TestRunner_Run(t *testing.T) {
	data := t.TempDir()
	tmp := filepath.Join(t.TempDir(), "Temp")
	writeDataset(t, data, "large", 2000)
	writeDataset(t, data, "small", 20)

	require.NoError(t, os.MkdirAll(tmp, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "stale.csv"), []byte("old"), 0o644))

	rec := &recorder{}
	opts := DefaultOptions()
	opts.Progress = rec
	opts.Repetitions = 2
	r := &Runner{
		DataDir: data,
		TempDir: tmp,
		Pairs:   []registry.Pair{fakePair(&fakeCodec{}), {Library: "other", Format: registry.JSON, Codec: &fakeCodec{}}},
		Options: opts,
	}

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"small", "large"}, rec.datasets)
	require.Len(t, results, 4)
	require.Equal(t, "small", results[0].Dataset)
	require.Equal(t, "fake", results[0].Library)
	require.Equal(t, "other", results[1].Library)
	require.Equal(t, "large", results[2].Dataset)
	require.NoFileExists(t, filepath.Join(tmp, "stale.csv"))

	require.NoError(t, r.Cleanup())
	require.NoDirExists(t, tmp)
}

func TestRunner_NoDatasets(t *testing.T) {
	r := &Runner{DataDir: t.TempDir(), TempDir: filepath.Join(t.TempDir(), "Temp"), Options: DefaultOptions()}
	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
	require.NoDirExists(t, r.TempDir)
	require.NoError(t, r.Cleanup())
}

func TestRunner_NoDatasetsKeepsExistingTempDir(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "Temp")
	require.NoError(t, os.MkdirAll(tmp, 0o755))
	keep := filepath.Join(tmp, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("mine"), 0o644))

	r := &Runner{DataDir: t.TempDir(), TempDir: tmp, Options: DefaultOptions()}
	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
	require.NoError(t, r.Cleanup())
	require.FileExists(t, keep)
}

func TestRunner_FailingPairDoesNotStopOthers(t *testing.T) {
	data := t.TempDir()
	writeDataset(t, data, "large", 200)
	writeDataset(t, data, "small", 20)

	opts := DefaultOptions()
	opts.Repetitions = 2
	broken := &fakeCodec{failWrite: map[int]bool{0: true, 1: true, 2: true, 3: true}}
	r := &Runner{
		DataDir: data,
		TempDir: filepath.Join(t.TempDir(), "Temp"),
		Pairs:   []registry.Pair{fakePair(&fakeCodec{}), {Library: "broken", Format: registry.JSON, Codec: broken}},
		Options: opts,
	}

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, res := range results {
		switch res.Library {
		case "fake":
			require.False(t, res.Degraded(), res.Dataset)
			require.Equal(t, 2, res.Iterations)
			require.False(t, math.IsNaN(res.WriteMs))
			require.Equal(t, 2.0, res.SizeKB)
		case "broken":
			require.Equal(t, 2, res.Failures, res.Dataset)
			require.True(t, math.IsNaN(res.WriteMs))
			require.True(t, math.IsNaN(res.SizeKB))
		default:
			t.Fatalf("unexpected library %q", res.Library)
		}
	}
	require.Equal(t, 4, broken.writes)
	require.NoError(t, r.Cleanup())
	require.NoDirExists(t, r.TempDir)
}

// Every registered pair round-trips a generated workbook without failures.
func TestMeasure_MatrixOnGeneratedWorkbook(t *testing.T) {
	src, err := generator.New(42).Generate("small", 200, 12)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "small.xlsx")
	require.NoError(t, table.SaveWorkbook(path, src))
	tbl, err := table.LoadWorkbook(path)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Repetitions = 2
	dir := t.TempDir()
	for _, pair := range registry.Matrix() {
		m, err := Measure(context.Background(), tbl, pair, dir, opts)
		require.NoError(t, err, pair.String())
		for _, s := range m.Samples {
			require.NoError(t, s.Err, pair.String())
		}
		require.Positive(t, m.SizeBytes, pair.String())
	}
}

func TestMeasure_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logging.Set(zap.New(core))
	defer logging.Set(nil)

	fc := &fakeCodec{failWrite: map[int]bool{1: true}}
	_, err := Measure(context.Background(), tinyTable(), fakePair(fc), t.TempDir(), DefaultOptions())
	require.NoError(t, err)

	entries := logs.FilterMessage("Iteration failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "fake", fields["library"])
	require.Equal(t, "csv", fields["format"])
	require.Equal(t, int64(1), fields["iteration"])
	require.Contains(t, fields["error"], "disk full")
}
