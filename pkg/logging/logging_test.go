package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_RejectsBadLevel(t *testing.T) {
	err := Init(&Config{Level: "loud", Format: "console"})
	require.Error(t, err)
}

func TestInit_RejectsBadFormat(t *testing.T) {
	err := Init(&Config{Level: "info", Format: "xml"})
	require.Error(t, err)
}

func TestInit_Defaults(t *testing.T) {
	require.NoError(t, Init(nil))
	require.True(t, L().Core().Enabled(zapcore.InfoLevel))
	require.False(t, L().Core().Enabled(zapcore.DebugLevel))
}

func TestSet_RoutesPackageFunctions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	defer Set(nil)

	Info("dataset written", zap.Int("rows", 10))
	Warn("iteration failed", zap.String("pair", "arrow/csv"))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "dataset written", entries[0].Message)
	require.Equal(t, int64(10), entries[0].ContextMap()["rows"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
}
