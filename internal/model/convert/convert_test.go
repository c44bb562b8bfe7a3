package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/internal/geo"
	"github.com/OCAP2/tiptrails/internal/model"
	"github.com/OCAP2/tiptrails/pkg/core"
)

var t0 = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func TestEndpoint_RoundTrip(t *testing.T) {
	keys := []core.EndpointKey{
		core.StructuralKey(core.NodeHandle{ID: 12, Version: 3}),
		core.SyntheticKey(3, 1),
	}
	for _, k := range keys {
		t.Run(k.String(), func(t *testing.T) {
			e := CoreToEndpoint(k)
			assert.Equal(t, k.String(), e.Label)
			assert.Equal(t, k, EndpointToCore(e))
		})
	}

	assert.Equal(t, core.EndpointKey{}, EndpointToCore(model.Endpoint{Kind: 9}))
}

func TestSession_RoundTrip(t *testing.T) {
	style := core.DefaultStyle()
	style.StartWidth = 0.02
	s := core.Session{
		ID:               "7d0c8f1e-0000-4000-8000-000000000001",
		Name:             "demo",
		Mode:             "provider",
		StartTime:        t0,
		EndTime:          t0.Add(time.Minute),
		ExtensionVersion: "1.0.0",
		Style:            style,
	}

	g := CoreToSession(s)
	require.NotNil(t, g.EndTime)
	assert.JSONEq(t, string(g.Style), string(styleToJSON(style)))

	back := SessionToCore(g)
	assert.Equal(t, s, back)
}

func TestSessionToCore_OpenAndBadStyle(t *testing.T) {
	g := CoreToSession(core.Session{ID: "x", StartTime: t0})
	assert.Nil(t, g.EndTime)

	g.Style = []byte("not json")
	s := SessionToCore(g)
	assert.True(t, s.EndTime.IsZero())
	assert.Equal(t, core.DefaultStyle().StartWidth, s.Style.StartWidth)
}

func TestBundleEvent_RoundTrip(t *testing.T) {
	r := core.BundleRecord{
		Key:       core.SyntheticKey(2, 4),
		Name:      "Trail_Finger_24",
		Event:     core.BundleCreated,
		Time:      t0,
		HasMarker: true,
	}
	g := CoreToBundleEvent("sess", r)
	assert.Equal(t, "sess", g.SessionID)
	assert.Equal(t, "created", g.Event)
	assert.Equal(t, r, BundleEventToCore(g))
}

func TestTrailSample_RoundTrip(t *testing.T) {
	s := core.TrailSample{
		Key:      core.StructuralKey(core.NodeHandle{ID: 5, Version: 1}),
		Time:     t0,
		Position: core.Position3D{X: 1, Y: 2, Z: 3},
		Speed:    0.5,
		Width:    0.006,
		Emitting: true,
	}
	g := CoreToTrailSample("sess", s)
	assert.Equal(t, 1.0, g.X)
	assert.Equal(t, s, TrailSampleToCore(g))
}

func TestCoreToTrailPath(t *testing.T) {
	key := core.SyntheticKey(1, 1)
	samples := []core.TrailSample{
		{Key: key, Time: t0, Position: core.Position3D{}},
		{Key: key, Time: t0.Add(time.Second), Position: core.Position3D{X: 3}},
		{Key: key, Time: t0.Add(2 * time.Second), Position: core.Position3D{X: 3, Y: 4}},
	}

	p, err := CoreToTrailPath("sess", key, samples)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Points)
	assert.InDelta(t, 7.0, p.Length, 1e-9)
	assert.Equal(t, t0, p.StartTime)
	assert.Equal(t, t0.Add(2*time.Second), p.EndTime)

	pts, err := geo.DecodePath(p.Path)
	require.NoError(t, err)
	assert.Equal(t, core.Position3D{X: 3, Y: 4}, pts[2])

	_, err = CoreToTrailPath("sess", key, samples[:1])
	assert.ErrorIs(t, err, geo.ErrShortPath)
}
