package main

import (
	"fmt"
	"os"
	"time"

	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/internal/database"
	"github.com/OCAP2/tiptrails/internal/storage"
	gormstorage "github.com/OCAP2/tiptrails/internal/storage/gorm"
	"github.com/OCAP2/tiptrails/internal/storage/memory"
	"github.com/OCAP2/tiptrails/internal/storage/postgres"
)

// openLoader opens the configured database for reading. SQLite reads the
// dump file, since the live database only exists in memory.
func openLoader(cfg config.StorageConfig) (storage.Loader, func(), error) {
	switch cfg.Type {
	case "postgres":
		b := postgres.New(database.PostgresConfig(cfg.Postgres), Logger)
		if err := b.Init(); err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil

	case "sqlite":
		if _, err := os.Stat(cfg.SQLite.Path); err != nil {
			return nil, nil, fmt.Errorf("no sqlite dump at %s: %w", cfg.SQLite.Path, err)
		}
		db, err := database.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		b := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: Logger})
		if err := b.Init(); err != nil {
			_ = b.Close()
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%s storage writes its export when a session ends, see %s",
			cfg.Type, cfg.Memory.OutputDir)
	}
}

func exportSessions(sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return fmt.Errorf("no session IDs provided")
	}

	cfg := config.GetStorageConfig()
	loader, closeLoader, err := openLoader(cfg)
	if err != nil {
		return err
	}
	defer closeLoader()

	for _, id := range sessionIDs {
		start := time.Now()
		rec, err := loader.LoadRecording(id)
		if err != nil {
			return err
		}
		path, err := memory.WriteExport(cfg.Memory.OutputDir, cfg.Memory.CompressOutput, rec)
		if err != nil {
			return fmt.Errorf("error writing export for %s: %w", id, err)
		}
		fmt.Println("Wrote session", id, "to", path, "in", time.Since(start))
	}
	return nil
}

func listSessions() error {
	loader, closeLoader, err := openLoader(config.GetStorageConfig())
	if err != nil {
		return err
	}
	defer closeLoader()

	sessions, err := loader.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s\t%s\t%s\t%s\n", s.ID, s.Name, s.StartTime.Format(time.RFC3339), s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
	}
	return nil
}
