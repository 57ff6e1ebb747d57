package logger_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"destiny-server/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, sc.Err())
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "DEBUG", want: zapcore.DebugLevel},
		{in: " warn ", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "loud", want: zapcore.InfoLevel, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := logger.ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_JSONWithServiceField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := logger.New(logger.Config{Level: "info", OutputPath: path, Service: "destiny-server"})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Named("Orchestrator").Info("Generation run started", zap.String("report_id", "r1"))
	require.NoError(t, log.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "destiny-server", e["service"])
	assert.Equal(t, "Orchestrator", e["logger"])
	assert.Equal(t, "r1", e["report_id"])
	assert.Contains(t, e, "timestamp")
	assert.NotContains(t, e, "caller")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := logger.New(logger.Config{Level: "loud", OutputPath: path})
	require.NoError(t, err)

	log.Debug("hidden")
	require.NoError(t, log.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "Falling back to info log level", entries[0]["msg"])
	assert.NotContains(t, entries[0], "service")
}

func TestNew_DevelopmentAddsCaller(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := logger.New(logger.Config{Level: "debug", OutputPath: path, Development: true})
	require.NoError(t, err)

	log.Debug("visible")
	require.NoError(t, log.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "DEBUG", entries[0]["level"])
	assert.Contains(t, entries[0], "caller")
}
