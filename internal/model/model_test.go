package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Info", &Info{}, "tiptrails_infos"},
		{"Session", &Session{}, "sessions"},
		{"BundleEvent", &BundleEvent{}, "bundle_events"},
		{"TrailSample", &TrailSample{}, "trail_samples"},
		{"TrailPath", &TrailPath{}, "trail_paths"},
		{"RecorderPerformance", &RecorderPerformance{}, "recorder_performances"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_AllNamed(t *testing.T) {
	for _, m := range DatabaseModels {
		_, ok := m.(interface{ TableName() string })
		assert.True(t, ok, "%T has no TableName", m)
	}
}
