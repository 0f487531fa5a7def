// Package bench times write/read round trips of a table through each
// registered codec and aggregates the samples into results.
package bench

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/appnet-org/tabbench/pkg/codec"
	"github.com/appnet-org/tabbench/pkg/logging"
	"github.com/appnet-org/tabbench/pkg/registry"
	"github.com/appnet-org/tabbench/pkg/stats"
	"github.com/appnet-org/tabbench/pkg/table"
	"go.uber.org/zap"
)

// FailureMode selects how failed iterations enter the statistics.
type FailureMode string

const (
	// Strict drops failed iterations and counts them in Result.Failures.
	Strict FailureMode = "strict"
	// ZeroSentinel records a failed iteration as 0 ms for write and read.
	ZeroSentinel FailureMode = "zero-sentinel"
)

// ParseFailureMode validates s.
func ParseFailureMode(s string) (FailureMode, error) {
	switch m := FailureMode(s); m {
	case Strict, ZeroSentinel:
		return m, nil
	}
	return "", fmt.Errorf("unknown failure mode %q (want %q or %q)", s, Strict, ZeroSentinel)
}

// Options controls one measurement.
type Options struct {
	Repetitions  int
	TrimFraction float64
	Mode         FailureMode
	// ProfileDir, when set, receives the raw per-iteration timings.
	ProfileDir string
	Progress   Progress
}

// DefaultOptions mirrors the command-line defaults.
func DefaultOptions() Options {
	return Options{
		Repetitions:  5,
		TrimFraction: stats.DefaultTrimFraction,
		Mode:         Strict,
	}
}

func (o Options) progress() Progress {
	if o.Progress == nil {
		return NopProgress{}
	}
	return o.Progress
}

// Sample is one write/read iteration.
type Sample struct {
	Iteration int
	Write     time.Duration
	Read      time.Duration
	Err       error
}

func (s Sample) Failed() bool { return s.Err != nil }

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Measurement holds the raw samples of one (dataset, pair).
type Measurement struct {
	Dataset string
	Pair    registry.Pair
	Samples []Sample
	// SizeBytes is the file size after the first write, or -1 if that
	// write failed.
	SizeBytes int64
	Warning   string
}

// Failures counts failed samples.
func (m Measurement) Failures() int {
	n := 0
	for _, s := range m.Samples {
		if s.Failed() {
			n++
		}
	}
	return n
}

// Result is the aggregate for one (library, dataset, format).
type Result struct {
	Library    string
	Dataset    string
	Format     string
	WriteMs    float64
	ReadMs     float64
	SizeKB     float64
	Iterations int
	Failures   int
	Warning    string
}

// Degraded reports whether any iteration failed.
func (r Result) Degraded() bool { return r.Failures > 0 }

// Aggregate reduces the samples to a Result. In Strict mode a series with no
// successful sample is NaN.
func (m Measurement) Aggregate(opts Options) Result {
	r := Result{
		Library:    string(m.Pair.Library),
		Dataset:    m.Dataset,
		Format:     string(m.Pair.Format),
		Iterations: len(m.Samples),
		Failures:   m.Failures(),
		Warning:    m.Warning,
		SizeKB:     float64(m.SizeBytes) / 1024,
	}

	var writes, reads []float64
	for _, s := range m.Samples {
		switch {
		case !s.Failed():
			writes = append(writes, millis(s.Write))
			reads = append(reads, millis(s.Read))
		case opts.Mode == ZeroSentinel:
			writes = append(writes, 0)
			reads = append(reads, 0)
		}
	}

	if m.SizeBytes < 0 {
		r.SizeKB = math.NaN()
		if opts.Mode == ZeroSentinel {
			r.SizeKB = 0
		}
	}
	if len(writes) == 0 {
		r.WriteMs, r.ReadMs = math.NaN(), math.NaN()
		if opts.Mode == ZeroSentinel {
			r.WriteMs, r.ReadMs = 0, 0
		}
		return r
	}
	r.WriteMs = stats.Summarize(writes, opts.Repetitions, opts.TrimFraction)
	r.ReadMs = stats.Summarize(reads, opts.Repetitions, opts.TrimFraction)
	return r
}

// IterationPath is where iteration i of pair writes dataset's file.
func IterationPath(dir, dataset string, lib registry.Library, f registry.Format, i int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%d.%s", dataset, lib, i, registry.Extension(f)))
}

// Measure writes and reads t through pair opts.Repetitions times. Codec
// errors are contained in the returned samples; only cancellation of ctx
// is returned as an error.
func Measure(ctx context.Context, t *table.Table, pair registry.Pair, dir string, opts Options) (Measurement, error) {
	m := Measurement{Dataset: t.Name, Pair: pair, SizeBytes: -1}
	progress := opts.progress()
	warns := &codec.Warnings{}
	cctx := codec.WithWarnings(ctx, warns)

	for i := 0; i < opts.Repetitions; i++ {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		progress.Iteration(pair, i+1, opts.Repetitions)

		s := iterate(cctx, t, pair, IterationPath(dir, t.Name, pair.Library, pair.Format, i), i, &m)
		if s.Failed() {
			if err := ctx.Err(); err != nil && errors.Is(s.Err, err) {
				return m, err
			}
			logging.Warn("Iteration failed",
				zap.String("dataset", t.Name),
				zap.String("library", string(pair.Library)),
				zap.String("format", string(pair.Format)),
				zap.Int("iteration", i),
				zap.Error(s.Err))
			progress.Failed(pair, i+1, s.Err)
		}
		m.Samples = append(m.Samples, s)
		runtime.GC()
	}

	m.Warning = warns.First()
	progress.Done(pair, m.Warning)

	if opts.ProfileDir != "" {
		if err := dumpProfile(opts.ProfileDir, m); err != nil {
			logging.Warn("Failed to write profile data", zap.String("dir", opts.ProfileDir), zap.Error(err))
		}
	}
	return m, nil
}

func iterate(ctx context.Context, t *table.Table, pair registry.Pair, path string, i int, m *Measurement) Sample {
	s := Sample{Iteration: i}

	start := time.Now()
	if err := pair.Codec.Write(ctx, t, path); err != nil {
		s.Err = fmt.Errorf("write %s: %w", pair, err)
		return s
	}
	s.Write = time.Since(start)

	if i == 0 {
		info, err := os.Stat(path)
		if err != nil {
			s.Err = fmt.Errorf("stat %s: %w", path, err)
			return s
		}
		m.SizeBytes = info.Size()
	}

	start = time.Now()
	if _, err := pair.Codec.Read(ctx, path); err != nil {
		s.Err = fmt.Errorf("read %s: %w", pair, err)
		return s
	}
	s.Read = time.Since(start)
	return s
}
