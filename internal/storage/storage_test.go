package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/internal/storage"
	gormstorage "github.com/OCAP2/tiptrails/internal/storage/gorm"
	"github.com/OCAP2/tiptrails/internal/storage/memory"
	"github.com/OCAP2/tiptrails/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/tiptrails/internal/storage/sqlite"
)

var (
	_ storage.Backend = (*memory.Backend)(nil)
	_ storage.Backend = (*gormstorage.Backend)(nil)
	_ storage.Backend = (*sqlitestorage.Backend)(nil)
	_ storage.Backend = (*postgres.Backend)(nil)

	_ storage.Exporter = (*memory.Backend)(nil)
	_ storage.Exporter = (*sqlitestorage.Backend)(nil)

	_ storage.Loader = (*memory.Backend)(nil)
	_ storage.Loader = (*gormstorage.Backend)(nil)
	_ storage.Loader = (*postgres.Backend)(nil)

	_ storage.PerformanceRecorder = (*gormstorage.Backend)(nil)
	_ storage.PerformanceRecorder = (*postgres.Backend)(nil)
	_ storage.WriteTimer          = (*sqlitestorage.Backend)(nil)
)

func TestNewBackend_Memory(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{
		Type:   "memory",
		Memory: config.MemoryConfig{OutputDir: t.TempDir()},
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)
}

func TestNewBackend_SQLite(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{Type: "sqlite"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlitestorage.Backend{}, b)
}

func TestNewBackend_Postgres(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{
		Type:     "postgres",
		Postgres: config.PostgresConfig{Host: "localhost", Port: "5432", Database: "tiptrails"},
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &postgres.Backend{}, b)
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := storage.NewBackend(config.StorageConfig{Type: "tape"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type: tape")
}
