package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/pkg/core"
)

func TestProcessMetricData(t *testing.T) {
	bucket, point, err := ProcessMetricData([]string{
		`"motion"`, `"hand_rate"`, `"tag::hand::left"`, `"field::float::hz::59.5"`, `"field::int::count::3"`, `"field::string::note::ok"`,
	})
	require.NoError(t, err)
	assert.Equal(t, "motion", bucket)
	assert.Equal(t, "hand_rate", point.Name())

	lp := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	assert.Contains(t, lp, "hand=left")
	assert.Contains(t, lp, "hz=59.5")
	assert.Contains(t, lp, "count=3i")
	assert.Contains(t, lp, `note="ok"`)
}

func TestProcessMetricData_Errors(t *testing.T) {
	_, _, err := ProcessMetricData([]string{"only"})
	assert.Error(t, err)

	_, _, err = ProcessMetricData([]string{"b", "m", "field::int::n::x"})
	assert.Error(t, err)
}

func TestSamplePoint(t *testing.T) {
	ts := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	p := SamplePoint("s1", core.TrailSample{
		Key: core.SyntheticKey(3, 1), Time: ts, Position: core.Position3D{X: 1, Y: 2, Z: 3}, Speed: 0.5, Emitting: true,
	})
	lp := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, lp, MeasurementSample+",endpoint=tip#31,kind=synthetic,session=s1")
	assert.Contains(t, lp, "emitting=true")
	assert.Contains(t, lp, "speed=0.5")

	b := BundlePoint("s1", core.BundleRecord{Key: core.SyntheticKey(3, 1), Name: "Trail_Finger_31", Event: core.BundleCreated, Time: ts})
	assert.Equal(t, MeasurementBundle, b.Name())
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.Equal(t, []string{"motion", PerformanceBucket}, m.BucketNames)
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(config.InfluxConfig{
		Enabled: true, Protocol: "http", Host: "127.0.0.1", Port: "1", Org: "tiptrails", Bucket: "hands",
	}, zerolog.Nop(), backup)

	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)

	ts := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	require.NoError(t, m.WriteSamples(context.Background(), "s1", []core.TrailSample{
		{Key: core.SyntheticKey(1, 0), Time: ts},
		{Key: core.SyntheticKey(1, 1), Time: ts},
	}))
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "endpoint=tip#10")
	assert.Contains(t, lines[1], "endpoint=tip#11")
}

func TestWritePoint_NoWriter(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	err := m.WritePoint(context.Background(), "motion", influxdb2_write.NewPointWithMeasurement("x"))
	assert.Error(t, err)
}
