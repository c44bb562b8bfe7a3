package storage

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/internal/database"
	"github.com/OCAP2/tiptrails/internal/storage/memory"
	"github.com/OCAP2/tiptrails/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/tiptrails/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration.
// The backend is not initialised.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(database.PostgresConfig(cfg.Postgres), logger), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			Path:         cfg.SQLite.Path,
			DumpInterval: cfg.SQLite.DumpInterval,
		}, logger)
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
