// Package storage defines where recorded sessions go.
package storage

import (
	"time"

	"github.com/OCAP2/tiptrails/internal/model"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// Record calls made without a started session return core.ErrNoSession.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession(end time.Time) error

	// Recording
	RecordBundles(records []core.BundleRecord) error
	RecordSamples(samples []core.TrailSample) error
}

// Exporter is implemented by backends that write a file per session.
type Exporter interface {
	ExportedFilePath() string
}

// Loader is implemented by backends that can read sessions back.
type Loader interface {
	Sessions() ([]core.Session, error)
	LoadRecording(sessionID string) (*core.Recording, error)
}

// PerformanceRecorder is implemented by backends that keep health snapshots.
type PerformanceRecorder interface {
	RecordPerformance(p model.RecorderPerformance) error
}

// WriteTimer is implemented by backends that time their writes.
type WriteTimer interface {
	LastWriteDuration() time.Duration
}
