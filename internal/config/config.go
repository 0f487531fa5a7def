// Package config loads tabbench settings from defaults, an optional YAML
// file, TABBENCH_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/appnet-org/tabbench/pkg/bench"
	"github.com/appnet-org/tabbench/pkg/generator"
	"github.com/appnet-org/tabbench/pkg/logging"
	"github.com/appnet-org/tabbench/pkg/stats"
)

const (
	KeyRepetitions  = "repetitions"
	KeyTrimFraction = "trim_fraction"
	KeyDataDir      = "data_dir"
	KeyTempDir      = "temp_dir"
	KeyReportFile   = "report_file"
	KeyProfileDir   = "profile_dir"
	KeyFailureMode  = "failure_mode"
	KeyLibraries    = "libraries"
	KeyFormats      = "formats"
	KeySeed         = "seed"
	KeyPresets      = "presets"
	KeyLogLevel     = "log.level"
	KeyLogFormat    = "log.format"

	EnvPrefix = "TABBENCH"
	// FileName is looked up in the working directory when no --config is given.
	FileName = "tabbench"
)

// Config is the resolved configuration.
type Config struct {
	Repetitions  int
	TrimFraction float64
	DataDir      string
	TempDir      string
	ReportFile   string
	ProfileDir   string
	FailureMode  bench.FailureMode
	Libraries    []string
	Formats      []string
	Seed         uint64
	Presets      []generator.Preset
	Log          logging.Config
}

// New returns a viper instance with every default set and environment
// lookup enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRepetitions, 5)
	v.SetDefault(KeyTrimFraction, stats.DefaultTrimFraction)
	v.SetDefault(KeyDataDir, "data")
	v.SetDefault(KeyTempDir, "Temp")
	v.SetDefault(KeyReportFile, "results_summary.xlsx")
	v.SetDefault(KeyProfileDir, "")
	v.SetDefault(KeyFailureMode, string(bench.Strict))
	v.SetDefault(KeyLibraries, []string{})
	v.SetDefault(KeyFormats, []string{})
	v.SetDefault(KeySeed, 42)

	presets := make([]string, 0, 3)
	for _, p := range generator.DefaultPresets() {
		presets = append(presets, FormatPreset(p))
	}
	v.SetDefault(KeyPresets, presets)

	def := logging.DefaultConfig()
	v.SetDefault(KeyLogLevel, def.Level)
	v.SetDefault(KeyLogFormat, def.Format)
	return v
}

// Load reads cfgFile (or ./tabbench.yaml if present) into v and resolves
// the configuration. A missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	mode, err := bench.ParseFailureMode(v.GetString(KeyFailureMode))
	if err != nil {
		return nil, err
	}
	seed, err := strconv.ParseUint(v.GetString(KeySeed), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", KeySeed, v.GetString(KeySeed), err)
	}

	cfg := &Config{
		Repetitions:  v.GetInt(KeyRepetitions),
		TrimFraction: v.GetFloat64(KeyTrimFraction),
		DataDir:      v.GetString(KeyDataDir),
		TempDir:      v.GetString(KeyTempDir),
		ReportFile:   v.GetString(KeyReportFile),
		ProfileDir:   v.GetString(KeyProfileDir),
		FailureMode:  mode,
		Libraries:    list(v.GetStringSlice(KeyLibraries)),
		Formats:      list(v.GetStringSlice(KeyFormats)),
		Seed:         seed,
		Log: logging.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}
	for _, s := range list(v.GetStringSlice(KeyPresets)) {
		p, err := ParsePreset(s)
		if err != nil {
			return nil, err
		}
		cfg.Presets = append(cfg.Presets, p)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// list flattens comma-separated entries, which is how environment
// variables carry lists.
func list(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParsePreset parses "name=ROWSxCOLS".
func ParsePreset(s string) (generator.Preset, error) {
	name, size, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return generator.Preset{}, fmt.Errorf("invalid preset %q: want name=ROWSxCOLS", s)
	}
	rows, cols, ok := strings.Cut(strings.ToLower(size), "x")
	if !ok {
		return generator.Preset{}, fmt.Errorf("invalid preset %q: want name=ROWSxCOLS", s)
	}
	r, err := strconv.Atoi(rows)
	if err != nil || r < 0 {
		return generator.Preset{}, fmt.Errorf("invalid row count in preset %q", s)
	}
	c, err := strconv.Atoi(cols)
	if err != nil || c < 0 {
		return generator.Preset{}, fmt.Errorf("invalid column count in preset %q", s)
	}
	return generator.Preset{Name: name, Rows: r, Columns: c}, nil
}

// FormatPreset is the inverse of ParsePreset.
func FormatPreset(p generator.Preset) string {
	return fmt.Sprintf("%s=%dx%d", p.Name, p.Rows, p.Columns)
}

// Validate checks ranges that viper cannot.
func (c *Config) Validate() error {
	if c.Repetitions < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyRepetitions, c.Repetitions)
	}
	if c.TrimFraction < 0 || c.TrimFraction >= 0.5 {
		return fmt.Errorf("%s must be in [0, 0.5), got %g", KeyTrimFraction, c.TrimFraction)
	}
	if _, err := bench.ParseFailureMode(string(c.FailureMode)); err != nil {
		return err
	}
	if c.DataDir == "" || c.TempDir == "" || c.ReportFile == "" {
		return fmt.Errorf("%s, %s and %s must be set", KeyDataDir, KeyTempDir, KeyReportFile)
	}
	seen := make(map[string]bool)
	for _, p := range c.Presets {
		if seen[p.Name] {
			return fmt.Errorf("duplicate preset %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// BenchOptions maps the configuration onto measurement options.
func (c *Config) BenchOptions(progress bench.Progress) bench.Options {
	return bench.Options{
		Repetitions:  c.Repetitions,
		TrimFraction: c.TrimFraction,
		Mode:         c.FailureMode,
		ProfileDir:   c.ProfileDir,
		Progress:     progress,
	}
}
