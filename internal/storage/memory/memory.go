// Package memory keeps a session in memory and exports it as JSON when the
// session ends.
package memory

import (
	"sync"
	"time"

	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig

	mu             sync.RWMutex
	session        *core.Session
	bundles        []core.BundleRecord
	samples        []core.TrailSample
	last           *core.Recording
	lastExportPath string
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, discarding unexported data.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *s
	b.session = &cp
	b.bundles = nil
	b.samples = nil
	return nil
}

// EndSession finalizes and exports the session data.
func (b *Backend) EndSession(end time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}
	b.session.EndTime = end
	rec := &core.Recording{Session: *b.session, Bundles: b.bundles, Samples: b.samples}
	b.session = nil
	b.bundles = nil
	b.samples = nil
	b.last = rec

	if b.cfg.OutputDir == "" {
		return nil
	}
	path, err := WriteExport(b.cfg.OutputDir, b.cfg.CompressOutput, rec)
	if err != nil {
		return err
	}
	b.lastExportPath = path
	return nil
}

// RecordBundles appends lifecycle events.
func (b *Backend) RecordBundles(records []core.BundleRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}
	b.bundles = append(b.bundles, records...)
	return nil
}

// RecordSamples appends samples.
func (b *Backend) RecordSamples(samples []core.TrailSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}
	b.samples = append(b.samples, samples...)
	return nil
}

// Counts returns how many events and samples the running session holds.
func (b *Backend) Counts() (bundles, samples int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bundles), len(b.samples)
}

// ExportedFilePath is the file written for the last ended session.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// Sessions lists the last ended session, if any.
func (b *Backend) Sessions() ([]core.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return nil, nil
	}
	return []core.Session{b.last.Session}, nil
}

// LoadRecording returns the last ended session when its id matches.
func (b *Backend) LoadRecording(sessionID string) (*core.Recording, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil || b.last.Session.ID != sessionID {
		return nil, ErrUnknownSession
	}
	return b.last, nil
}
