package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level      string
		wantLevels []string
	}{
		{level: "debug", wantLevels: []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{level: "info", wantLevels: []string{"INFO", "WARN", "ERROR"}},
		{level: "warn", wantLevels: []string{"WARN", "ERROR"}},
		{level: "error", wantLevels: []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			output := &bytes.Buffer{}
			log, err := New(&Config{Level: tt.level, Format: "json", writer: output})
			require.NoError(t, err)

			log.Debug("d")
			log.Info("i")
			log.Warn("w")
			log.Error("e", slog.String("job_id", "j-1"))

			entries := decodeLines(t, output)
			got := make([]string, 0, len(entries))
			for _, e := range entries {
				got = append(got, e["level"].(string))
			}
			assert.Equal(t, tt.wantLevels, got)
			assert.Equal(t, "j-1", entries[len(entries)-1]["job_id"])
		})
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	output := &bytes.Buffer{}
	log, err := New(&Config{Level: "info", Format: "console", writer: output})
	require.NoError(t, err)

	log.Info("job queued", slog.String("job_id", "abc"))

	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "job queued")
	assert.Contains(t, output.String(), "abc")
}

func TestNew_SourceLocation(t *testing.T) {
	output := &bytes.Buffer{}
	log, err := New(&Config{Level: "info", Format: "json", EnableSource: true, writer: output})
	require.NoError(t, err)

	log.Info("with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("written to file")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNew_FileOutputUnwritable(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "api.log")})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestNewDiscard(t *testing.T) {
	log := NewDiscard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
	assert.NotPanics(t, func() { log.Error("dropped") })
}
