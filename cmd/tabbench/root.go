package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/appnet-org/tabbench/internal/config"
	"github.com/appnet-org/tabbench/internal/console"
	"github.com/appnet-org/tabbench/pkg/logging"
)

// app is the state shared by the subcommands once the root has loaded
// the configuration.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	out     *console.Console
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	a := &app{v: config.New(), out: console.New(stdout)}

	root := &cobra.Command{
		Use:   "tabbench",
		Short: "Benchmark tabular serialization libraries",
		Long: `tabbench measures write time, read time and file size of Go tabular
serialization libraries across file formats and writes a formatted xlsx report.

  tabbench generate   create synthetic datasets under data/
  tabbench run        benchmark every dataset and write results_summary.xlsx`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./tabbench.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")
	flags.String("data-dir", "data", "directory holding the dataset workbooks")
	flags.Uint64("seed", 42, "random seed for dataset generation")
	a.bind(flags, map[string]string{
		config.KeyLogLevel:  "log-level",
		config.KeyLogFormat: "log-format",
		config.KeyDataDir:   "data-dir",
		config.KeySeed:      "seed",
	})

	root.AddCommand(newGenerateCmd(a), newRunCmd(a))
	return root
}

// bind attaches flags to viper keys. A flag only overrides the file and
// environment when it was set explicitly.
func (a *app) bind(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := logging.Init(&cfg.Log); err != nil {
		return err
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		logging.Debug("Using config file", zap.String("path", used))
	}
	a.cfg = cfg
	return nil
}
