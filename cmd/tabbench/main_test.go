package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/appnet-org/tabbench/pkg/report"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestGenerateThenRun(t *testing.T) {
	work := t.TempDir()
	t.Chdir(work)
	data := filepath.Join(work, "data")
	temp := filepath.Join(work, "Temp")
	reportPath := filepath.Join(work, "summary.xlsx")

	out := execute(t, "generate", "--data-dir", data, "--preset", "tiny=20x11", "--preset", "wide=5x14")
	require.Contains(t, out, "Generated 2 datasets")
	require.FileExists(t, filepath.Join(data, "tiny.xlsx"))
	require.FileExists(t, filepath.Join(data, "wide.xlsx"))

	out = execute(t, "run",
		"--data-dir", data,
		"--temp-dir", temp,
		"--report", reportPath,
		"--libraries", "stdlib,arrow",
		"--formats", "csv,feather",
		"--repetitions", "2",
		"--log-level", "error")
	require.Contains(t, out, "DATASET: WIDE")
	require.Contains(t, out, "STDLIB > CSV: done.")
	require.Contains(t, out, "ARROW > FEATHER: done.")
	require.Contains(t, out, "Benchmark finished")
	require.NoDirExists(t, temp)

	f, err := excelize.OpenFile(reportPath)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{report.SummarySheet, report.RawSheet}, f.GetSheetList())
	rows, err := f.GetRows(report.RawSheet)
	require.NoError(t, err)
	// Header plus 3 pairs for each of 2 datasets.
	require.Len(t, rows, 7)
}

func TestRun_NoDatasets(t *testing.T) {
	work := t.TempDir()
	t.Chdir(work)
	keep := filepath.Join(work, "Temp", "notes.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(keep), 0o755))
	require.NoError(t, os.WriteFile(keep, []byte("mine"), 0o644))

	out := execute(t, "run", "--data-dir", filepath.Join(work, "empty"), "--log-level", "error")
	require.Contains(t, out, "No datasets found")
	require.NoFileExists(t, filepath.Join(work, "results_summary.xlsx"))
	require.FileExists(t, keep)
}

func TestRun_UnknownLibrary(t *testing.T) {
	t.Chdir(t.TempDir())
	root := newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--libraries", "pandas"})
	require.ErrorContains(t, root.Execute(), "unknown library")
}

func TestRun_InvalidFailureMode(t *testing.T) {
	t.Chdir(t.TempDir())
	root := newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--failure-mode", "lenient"})
	require.Error(t, root.Execute())
}
