// Package postgres records sessions into PostgreSQL through the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/tiptrails/internal/database"
	"github.com/OCAP2/tiptrails/internal/model"
	gormstorage "github.com/OCAP2/tiptrails/internal/storage/gorm"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Backend connects lazily in Init and then delegates to the GORM backend.
type Backend struct {
	cfg    database.PostgresConfig
	logger *slog.Logger
	inner  *gormstorage.Backend
}

// New creates a PostgreSQL backend. No connection is made until Init.
func New(cfg database.PostgresConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Init connects, validates the connection and migrates the schema.
func (b *Backend) Init() error {
	db, err := database.OpenPostgres(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.logger.Info("Connected to database", "host", b.cfg.Host, "database", b.cfg.Database)
	b.inner = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.logger})
	return b.inner.Init()
}

func (b *Backend) ready() (*gormstorage.Backend, error) {
	if b.inner == nil {
		return nil, fmt.Errorf("postgres backend not initialised")
	}
	return b.inner, nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	if b.inner == nil {
		return nil
	}
	return b.inner.Close()
}

func (b *Backend) StartSession(s *core.Session) error {
	g, err := b.ready()
	if err != nil {
		return err
	}
	return g.StartSession(s)
}

func (b *Backend) EndSession(end time.Time) error {
	g, err := b.ready()
	if err != nil {
		return err
	}
	return g.EndSession(end)
}

func (b *Backend) RecordBundles(records []core.BundleRecord) error {
	g, err := b.ready()
	if err != nil {
		return err
	}
	return g.RecordBundles(records)
}

func (b *Backend) RecordSamples(samples []core.TrailSample) error {
	g, err := b.ready()
	if err != nil {
		return err
	}
	return g.RecordSamples(samples)
}

func (b *Backend) Sessions() ([]core.Session, error) {
	g, err := b.ready()
	if err != nil {
		return nil, err
	}
	return g.Sessions()
}

func (b *Backend) LoadRecording(sessionID string) (*core.Recording, error) {
	g, err := b.ready()
	if err != nil {
		return nil, err
	}
	return g.LoadRecording(sessionID)
}

func (b *Backend) RecordPerformance(p model.RecorderPerformance) error {
	g, err := b.ready()
	if err != nil {
		return err
	}
	return g.RecordPerformance(p)
}

func (b *Backend) LastWriteDuration() time.Duration {
	g, err := b.ready()
	if err != nil {
		return 0
	}
	return g.LastWriteDuration()
}
