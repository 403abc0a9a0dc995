package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-riverdiff/internal/logger"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		s        string
		expected slog.Level
	}{
		{s: "", expected: slog.LevelInfo},
		{s: "debug", expected: slog.LevelDebug},
		{s: "DEBUG", expected: slog.LevelDebug},
		{s: "warn", expected: slog.LevelWarn},
		{s: "error", expected: slog.LevelError},
		{s: "verbose", expected: slog.LevelInfo},
	} {
		t.Run(tc.s, func(t *testing.T) {
			assert.Equal(t, tc.expected, logger.ParseLevel(tc.s))
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "warn", "json")
	l.Info("dropped")
	l.Warn("kept", "stage", "sample")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 1, len(lines))
	var record map[string]any
	assert.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "sample", record["stage"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "", "")
	l.Debug("dropped")
	l.Info("kept", "points", 4)
	assert.Contains(t, buf.String(), "msg=kept points=4")
	assert.NotContains(t, buf.String(), "dropped")
}
