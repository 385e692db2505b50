package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewForFallsBack(t *testing.T) {
	logger := NewFor("loud", false, "")
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
}

func TestNewForLevelFollowsMode(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		development bool
		want        zapcore.Level
	}{
		{"development default", "", true, zapcore.DebugLevel},
		{"production default", "", false, zapcore.InfoLevel},
		{"explicit level wins in development", "warn", true, zapcore.WarnLevel},
		{"explicit level wins in production", "debug", false, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewFor(tt.level, tt.development, "")
			core := logger.Core()
			assert.True(t, core.Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, core.Enabled(tt.want-1))
			}
		})
	}
}

func TestNamedAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	root := Wrap(zap.New(core))

	child := root.Named("sidecar").With(zap.Int("pid", 42))
	child.Info("line")
	child.Debug("hidden")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sidecar", entries[0].LoggerName)
	assert.Equal(t, int64(42), entries[0].ContextMap()["pid"])
}

func TestWrapNil(t *testing.T) {
	logger := Wrap(nil)
	require.NotNil(t, logger)
	logger.Info("discarded")
}

func TestNewWritesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := New(Config{Level: "info", Dir: dir})
	require.NoError(t, err)
	logger.Info("Sidecar launched", zap.Int("pid", 42))
	logger.Debug("filtered")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Sidecar launched", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 42, entry["pid"])
}

func TestNewForBadDirFallsBack(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	logger := NewFor("info", false, filepath.Join(file, "logs"))
	require.NotNil(t, logger)
	logger.Info("still works")
}
