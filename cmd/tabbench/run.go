package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/appnet-org/tabbench/internal/config"
	"github.com/appnet-org/tabbench/pkg/bench"
	"github.com/appnet-org/tabbench/pkg/logging"
	"github.com/appnet-org/tabbench/pkg/registry"
	"github.com/appnet-org/tabbench/pkg/report"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Benchmark every dataset and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.Int("repetitions", 5, "write/read iterations per pair")
	flags.Float64("trim-fraction", 0.1, "fraction trimmed from each end of the timings")
	flags.String("temp-dir", "Temp", "scratch directory for benchmark files")
	flags.String("report", "results_summary.xlsx", "report workbook path")
	flags.String("profile-dir", "", "dump raw timings here when set")
	flags.String("failure-mode", string(bench.Strict), "strict or zero-sentinel")
	flags.StringSlice("libraries", nil, "only benchmark these libraries")
	flags.StringSlice("formats", nil, "only benchmark these formats")
	a.bind(flags, map[string]string{
		config.KeyRepetitions:  "repetitions",
		config.KeyTrimFraction: "trim-fraction",
		config.KeyTempDir:      "temp-dir",
		config.KeyReportFile:   "report",
		config.KeyProfileDir:   "profile-dir",
		config.KeyFailureMode:  "failure-mode",
		config.KeyLibraries:    "libraries",
		config.KeyFormats:      "formats",
	})
	return cmd
}

func (a *app) run(ctx context.Context) (err error) {
	cfg := a.cfg
	pairs, err := registry.Filter(cfg.Libraries, cfg.Formats)
	if err != nil {
		return err
	}
	if cfg.FailureMode == bench.ZeroSentinel {
		logging.Warn("Failed iterations are recorded as 0 ms and will skew the statistics",
			zap.String("failure_mode", string(cfg.FailureMode)))
	}
	logging.Info("Starting benchmark",
		zap.String("data_dir", cfg.DataDir),
		zap.Int("pairs", len(pairs)),
		zap.Int("repetitions", cfg.Repetitions))

	runner := &bench.Runner{
		DataDir: cfg.DataDir,
		TempDir: cfg.TempDir,
		Pairs:   pairs,
		Options: cfg.BenchOptions(a.out),
	}
	defer func() {
		err = multierr.Append(err, runner.Cleanup())
	}()

	results, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		a.out.Warn(fmt.Sprintf("No datasets found in '%s'. Run 'tabbench generate' first.", cfg.DataDir))
		return nil
	}

	a.out.Phase(fmt.Sprintf("Writing report %s ...", cfg.ReportFile))
	if err := report.Write(cfg.ReportFile, results); err != nil {
		return err
	}

	degraded := 0
	for _, r := range results {
		if r.Degraded() {
			degraded++
		}
	}
	if degraded > 0 {
		a.out.Warn(fmt.Sprintf("%d of %d results had failed iterations; see the Failures column in %s", degraded, len(results), report.RawSheet))
	}
	if err := runner.Cleanup(); err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Benchmark finished. Report: '%s'", cfg.ReportFile))
	return nil
}
