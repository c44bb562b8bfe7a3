package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 10, 19, 9, 5, 7, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "tiptrails-logs",
			want:    filepath.Join("tiptrails-logs", "tiptrails.20261019_090507.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./tiptrails-logs",
			want:    filepath.Join(".", "tiptrails-logs", "tiptrails.20261019_090507.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "tiptrails"),
			want:    filepath.Join("/var", "log", "tiptrails", "tiptrails.20261019_090507.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "tiptrails", sessionStart))
		})
	}
}
