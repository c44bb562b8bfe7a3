// Package gormstorage implements storage on any GORM database. Samples are
// written as they arrive; trail paths are derived when a session ends.
package gormstorage

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/OCAP2/tiptrails/internal/database"
	"github.com/OCAP2/tiptrails/internal/model"
	"github.com/OCAP2/tiptrails/internal/model/convert"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend records sessions into a GORM database.
type Backend struct {
	deps Dependencies

	mu        sync.Mutex
	sessionID string
	// time-ordered samples per endpoint, for the path rows
	paths map[core.EndpointKey][]core.TrailSample

	lastWrite time.Duration
}

// New creates a GORM backend on an open database.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps:  deps,
		paths: make(map[core.EndpointKey][]core.TrailSample),
	}
}

// DB returns the underlying database.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend has no database")
	}
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.deps.Logger.Info("Database setup complete")
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartSession inserts the session row and makes it current.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	b.mu.Lock()
	b.sessionID = s.ID
	clear(b.paths)
	b.mu.Unlock()
	return nil
}

// EndSession stamps the end time and writes one path row per endpoint
// with at least two samples.
func (b *Backend) EndSession(end time.Time) error {
	b.mu.Lock()
	id := b.sessionID
	paths := b.paths
	b.sessionID = ""
	b.paths = make(map[core.EndpointKey][]core.TrailSample)
	b.mu.Unlock()

	if id == "" {
		return core.ErrNoSession
	}

	if err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", end).Error; err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	rows := make([]model.TrailPath, 0, len(paths))
	for key, samples := range paths {
		if len(samples) < 2 {
			continue
		}
		row, err := convert.CoreToTrailPath(id, key, samples)
		if err != nil {
			b.deps.Logger.Warn("Skipping trail path", "key", key.String(), "error", err)
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Endpoint.Label < rows[j].Endpoint.Label })
	if err := b.deps.DB.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert trail paths: %w", err)
	}
	return nil
}

func (b *Backend) currentSession() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessionID == "" {
		return "", core.ErrNoSession
	}
	return b.sessionID, nil
}

// RecordBundles inserts lifecycle events.
func (b *Backend) RecordBundles(records []core.BundleRecord) error {
	id, err := b.currentSession()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	rows := make([]model.BundleEvent, len(records))
	for i, r := range records {
		rows[i] = convert.CoreToBundleEvent(id, r)
	}
	return b.timed(func() error {
		if err := b.deps.DB.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert bundle events: %w", err)
		}
		return nil
	})
}

// RecordSamples inserts samples and extends the per-endpoint paths.
func (b *Backend) RecordSamples(samples []core.TrailSample) error {
	id, err := b.currentSession()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	rows := make([]model.TrailSample, len(samples))
	for i, s := range samples {
		rows[i] = convert.CoreToTrailSample(id, s)
	}
	err = b.timed(func() error {
		if err := b.deps.DB.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert trail samples: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	for _, s := range samples {
		b.paths[s.Key] = append(b.paths[s.Key], s)
	}
	b.mu.Unlock()
	return nil
}

// RecordPerformance stores a recorder health snapshot.
func (b *Backend) RecordPerformance(p model.RecorderPerformance) error {
	if err := b.deps.DB.Create(&p).Error; err != nil {
		return fmt.Errorf("failed to insert performance: %w", err)
	}
	return nil
}

// LastWriteDuration is how long the latest insert took.
func (b *Backend) LastWriteDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastWrite
}

func (b *Backend) timed(fn func() error) error {
	start := time.Now()
	err := fn()
	b.mu.Lock()
	b.lastWrite = time.Since(start)
	b.mu.Unlock()
	return err
}

// Sessions lists stored sessions, newest first.
func (b *Backend) Sessions() ([]core.Session, error) {
	var rows []model.Session
	if err := b.deps.DB.Order("start_time desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]core.Session, len(rows))
	for i, r := range rows {
		out[i] = convert.SessionToCore(r)
	}
	return out, nil
}

// LoadRecording reads a session with its events and samples in time order.
func (b *Backend) LoadRecording(sessionID string) (*core.Recording, error) {
	var s model.Session
	if err := b.deps.DB.First(&s, "id = ?", sessionID).Error; err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var events []model.BundleEvent
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("time, id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load bundle events: %w", err)
	}

	var samples []model.TrailSample
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("time, id").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("failed to load trail samples: %w", err)
	}

	rec := &core.Recording{
		Session: convert.SessionToCore(s),
		Bundles: make([]core.BundleRecord, len(events)),
		Samples: make([]core.TrailSample, len(samples)),
	}
	for i, e := range events {
		rec.Bundles[i] = convert.BundleEventToCore(e)
	}
	for i, ts := range samples {
		rec.Samples[i] = convert.TrailSampleToCore(ts)
	}
	return rec, nil
}

// TrailPaths returns the stored path rows of a session.
func (b *Backend) TrailPaths(sessionID string) ([]model.TrailPath, error) {
	var rows []model.TrailPath
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("endpoint_label").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load trail paths: %w", err)
	}
	return rows, nil
}
