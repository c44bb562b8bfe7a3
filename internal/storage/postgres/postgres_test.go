package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/OCAP2/tiptrails/internal/database"
	"github.com/OCAP2/tiptrails/pkg/core"
)

func TestBackend_NotInitialised(t *testing.T) {
	b := New(database.PostgresConfig{Host: "localhost"}, nil)

	assert.Error(t, b.StartSession(&core.Session{ID: "s"}))
	assert.Error(t, b.EndSession(time.Now()))
	assert.Error(t, b.RecordBundles(nil))
	assert.Error(t, b.RecordSamples(nil))
	_, err := b.Sessions()
	assert.Error(t, err)
	_, err = b.LoadRecording("s")
	assert.Error(t, err)
	assert.NoError(t, b.Close())
}

func TestBackend_InitFailsWithoutServer(t *testing.T) {
	b := New(database.PostgresConfig{
		Host: "127.0.0.1", Port: "1", Username: "u", Password: "p", Database: "d",
	}, nil)
	assert.ErrorContains(t, b.Init(), "failed to connect to postgres")
}
