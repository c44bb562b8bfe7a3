// Package sqlitestorage records into an in-memory SQLite database that is
// periodically dumped to disk via VACUUM INTO. It wraps the GORM backend;
// the only SQLite-specific concerns are the in-memory database and the dumps.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/OCAP2/tiptrails/internal/database"
	gormstorage "github.com/OCAP2/tiptrails/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	// Path receives the dumps; empty keeps everything in memory.
	Path         string
	DumpInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db     *gorm.DB
	cfg    Config
	logger *slog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.OpenSQLite("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
		db:       db,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(b.cfg.Path), 0755); err != nil {
			return fmt.Errorf("failed to create dump directory: %w", err)
		}
		if b.cfg.DumpInterval > 0 {
			b.wg.Add(1)
			go b.dumpLoop()
		}
	}

	return nil
}

// EndSession closes the session and dumps immediately.
func (b *Backend) EndSession(end time.Time) error {
	if err := b.Backend.EndSession(end); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	if err := b.Dump(); err != nil {
		b.logger.Error("Final dump failed", "error", err)
	}
	return b.Backend.Close()
}

// Dump writes the database to the configured path. No-op without a path.
func (b *Backend) Dump() error {
	if b.cfg.Path == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.Path); err != nil {
		return err
	}
	b.logger.Debug("Dumped to disk", "path", b.cfg.Path, "duration", time.Since(start))
	return nil
}

// ExportedFilePath is where the database is dumped.
func (b *Backend) ExportedFilePath() string {
	return b.cfg.Path
}

// dumpLoop periodically dumps the in-memory database to disk.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.logger.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
