package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestCommandLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*CommandLogger)
	}{
		{"debug", func(l *CommandLogger) { l.Debug("dispatched", "command", ":NODE:", "args", 4) }},
		{"info", func(l *CommandLogger) { l.Info("dispatched", "command", ":NODE:", "args", 4) }},
		{"error", func(l *CommandLogger) { l.Error("dispatched", "command", ":NODE:", "args", 4) }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewCommandLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "dispatched", entry["message"])
			assert.Equal(t, "commands", entry["component"])
			assert.Equal(t, ":NODE:", entry["command"])
			assert.Equal(t, float64(4), entry["args"])
		})
	}
}

func TestCommandLogger_OddPairs(t *testing.T) {
	var buf bytes.Buffer
	NewCommandLogger(zerolog.New(&buf)).Info("odd", 7, "seven", "dangling")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "seven", entry["7"])
	assert.Contains(t, entry, "dangling")
	assert.Nil(t, entry["dangling"])
}

func TestCommandLogger_Errors(t *testing.T) {
	var buf bytes.Buffer
	NewCommandLogger(zerolog.New(&buf)).Error("failed", "error", errors.New("node not found"))

	assert.Equal(t, "node not found", decodeLine(t, &buf)["error"])
}

func TestCommandLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	NewCommandLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)).Debug("hidden", "command", ":TICK:")
	assert.Empty(t, buf.String())
}
