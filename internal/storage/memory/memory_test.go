package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/pkg/core"
)

var t0 = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func record(t *testing.T, b *Backend) {
	t.Helper()
	key := core.SyntheticKey(3, 1)
	require.NoError(t, b.StartSession(&core.Session{ID: "s1", Name: "Demo Session", StartTime: t0, Style: core.DefaultStyle()}))
	require.NoError(t, b.RecordBundles([]core.BundleRecord{{Key: key, Name: "Trail_Finger_31", Event: core.BundleCreated, Time: t0}}))
	require.NoError(t, b.RecordSamples([]core.TrailSample{
		{Key: key, Time: t0, Position: core.Position3D{X: 0}},
		{Key: key, Time: t0.Add(time.Second), Position: core.Position3D{X: 2}, Speed: 2},
	}))
}

func TestBackend_RequiresSession(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.ErrorIs(t, b.RecordBundles(nil), core.ErrNoSession)
	assert.ErrorIs(t, b.RecordSamples(nil), core.ErrNoSession)
	assert.ErrorIs(t, b.EndSession(t0), core.ErrNoSession)
}

func TestBackend_ExportGzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.Init())
	record(t, b)

	nb, ns := b.Counts()
	assert.Equal(t, 1, nb)
	assert.Equal(t, 2, ns)

	require.NoError(t, b.EndSession(t0.Add(10*time.Second)))
	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Demo_Session_20261019_100000.json.gz"), path)

	export, err := ReadExport(path)
	require.NoError(t, err)
	assert.Equal(t, "s1", export.SessionID)
	assert.Equal(t, 10.0, export.Duration)
	require.Len(t, export.Endpoints, 1)
	assert.Equal(t, "tip#31", export.Endpoints[0].Key)
	assert.Equal(t, 2.0, export.Endpoints[0].Length)
	assert.Len(t, export.Endpoints[0].Samples, 2)

	nb, ns = b.Counts()
	assert.Zero(t, nb)
	assert.Zero(t, ns)
}

func TestBackend_ExportPlainJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	record(t, b)
	require.NoError(t, b.EndSession(t0.Add(time.Second)))

	assert.Equal(t, ".json", filepath.Ext(b.ExportedFilePath()))
	export, err := ReadExport(b.ExportedFilePath())
	require.NoError(t, err)
	assert.Equal(t, "Demo Session", export.SessionName)
}

func TestBackend_LoadLastRecording(t *testing.T) {
	b := New(config.MemoryConfig{})
	record(t, b)
	require.NoError(t, b.EndSession(t0.Add(time.Second)))
	assert.Empty(t, b.ExportedFilePath())

	sessions, err := b.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, t0.Add(time.Second), sessions[0].EndTime)

	rec, err := b.LoadRecording("s1")
	require.NoError(t, err)
	assert.Len(t, rec.Samples, 2)

	_, err = b.LoadRecording("other")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestReadExport_Missing(t *testing.T) {
	_, err := ReadExport(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
