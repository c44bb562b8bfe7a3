package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/internal/scene/memscene"
	"github.com/OCAP2/tiptrails/pkg/core"
)

func setup(t *testing.T, opts Options) (*memscene.Scene, core.NodeHandle, *Manager) {
	t.Helper()
	s := memscene.New()
	anchor := s.MustAddNode(core.NodeHandle{}, "index_end", core.Position3D{})
	return s, anchor, NewManager(s, core.DefaultStyle(), opts)
}

func TestCreate_Idempotent(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	key := core.StructuralKey(anchor)

	b1, err := m.Create(key, anchor, "index_end")
	require.NoError(t, err)
	b2, err := m.Create(key, anchor, "index_end")
	require.NoError(t, err)

	assert.Same(t, b1, b2)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, m.Owned(), "trail and marker")
	assert.Equal(t, 2, s.ResourceCount())
	assert.True(t, b1.HasMarker())
}

func TestCreate_AppliesStyle(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	b, err := m.Create(core.StructuralKey(anchor), anchor, "index_end")
	require.NoError(t, err)

	info, ok := s.Resource(b.Trail)
	require.True(t, ok)
	assert.Equal(t, "Trail_index_end", info.Name)
	assert.Equal(t, anchor, info.Parent)
	assert.True(t, info.DontSave)
	assert.InDelta(t, 0.45, info.Trail.Lifetime, 1e-9)
	assert.InDelta(t, 0.006, info.Trail.StartWidth, 1e-12)
	assert.Equal(t, core.TransparentAfterQueue, info.Trail.RenderQueue)
	assert.Equal(t, 10, info.Trail.SortingOrder)
	assert.Equal(t, core.DefaultTrailShader, info.Trail.Shader)
	assert.False(t, info.Trail.Gradient.Empty())

	dot, ok := s.Resource(b.Marker)
	require.True(t, ok)
	assert.True(t, dot.Marker)
	assert.InDelta(t, 0.010, dot.Glyph.Size, 1e-12)
}

func TestCreate_PersistKeepsInSave(t *testing.T) {
	s, anchor, m := setup(t, Options{Persist: true})
	_, err := m.Create(core.StructuralKey(anchor), anchor, "index_end")
	require.NoError(t, err)

	assert.Len(t, s.Save().Resources, 2)
}

func TestCreate_NonPersistExcludedFromSave(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	_, err := m.Create(core.StructuralKey(anchor), anchor, "index_end")
	require.NoError(t, err)

	assert.Empty(t, s.Save().Resources)
}

func TestCreate_StaleAnchor(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	s.DestroyNode(anchor)

	_, err := m.Create(core.StructuralKey(anchor), anchor, "index_end")
	require.ErrorIs(t, err, memscene.ErrUnknownParent)
	assert.Zero(t, m.Len())
	assert.Zero(t, s.ResourceCount())
}

func TestShaderFallback(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	style := core.DefaultStyle()
	style.Material = "Custom/Glow"
	style.Gradient = nil
	m.SetStyle(style)

	b, err := m.Create(core.StructuralKey(anchor), anchor, "a")
	require.NoError(t, err)
	info, _ := s.Resource(b.Trail)
	assert.Equal(t, core.DefaultTrailShader, info.Trail.Shader, "unknown material")
	assert.Equal(t, core.DefaultGradient(), info.Trail.Gradient)

	s.RemoveShader(core.DefaultTrailShader)
	m.ApplyStyle(b)
	info, _ = s.Resource(b.Trail)
	assert.Equal(t, core.FallbackTrailShader, info.Trail.Shader)

	s.AddShader("Custom/Glow")
	m.ApplyStyle(b)
	info, _ = s.Resource(b.Trail)
	assert.Equal(t, "Custom/Glow", info.Trail.Shader)
}

func TestSetStyle_LivePropagation(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	b, err := m.Create(core.StructuralKey(anchor), anchor, "a")
	require.NoError(t, err)
	trail := b.Trail

	style := core.DefaultStyle()
	style.StartWidth = 0.01
	style.WidthScale = 2
	style.MarkerEnabled = false
	m.SetStyle(style)

	info, ok := s.Resource(b.Trail)
	require.True(t, ok)
	assert.Equal(t, trail, b.Trail, "not recreated")
	assert.InDelta(t, 0.02, info.Trail.StartWidth, 1e-12)
	assert.False(t, b.HasMarker())
	assert.Equal(t, 1, s.ResourceCount())

	style.MarkerEnabled = true
	m.SetStyle(style)
	assert.True(t, b.HasMarker())
	assert.Equal(t, 2, s.ResourceCount())
}

func TestSetWidth_SurvivesRestyle(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	b, err := m.Create(core.StructuralKey(anchor), anchor, "a")
	require.NoError(t, err)

	m.SetWidth(b, 0.05)
	m.SetStyle(core.DefaultStyle())

	info, _ := s.Resource(b.Trail)
	assert.InDelta(t, 0.05, info.Trail.StartWidth, 1e-12)
}

func TestUnpin_FollowsStyleAgain(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	b, err := m.Create(core.StructuralKey(anchor), anchor, "a")
	require.NoError(t, err)

	m.SetWidth(b, 0.04)
	m.Unpin()
	info, _ := s.Resource(b.Trail)
	assert.InDelta(t, 0.006, info.Trail.StartWidth, 1e-12)

	style := core.DefaultStyle()
	style.StartWidth = 0.05
	m.SetStyle(style)
	info, _ = s.Resource(b.Trail)
	assert.InDelta(t, 0.05, info.Trail.StartWidth, 1e-12)
	assert.InDelta(t, 0.05, b.Width, 1e-12)
}

func TestSetEmitting_TogglesMarker(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	b, err := m.Create(core.StructuralKey(anchor), anchor, "a")
	require.NoError(t, err)

	m.SetEmitting(b, false)
	trail, _ := s.Resource(b.Trail)
	dot, _ := s.Resource(b.Marker)
	assert.False(t, trail.Emitting)
	assert.False(t, dot.Visible)

	m.SetEmitting(b, true)
	dot, _ = s.Resource(b.Marker)
	assert.True(t, dot.Visible)
}

func TestDestroy_ToleratesExternalRelease(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	key := core.StructuralKey(anchor)
	b, err := m.Create(key, anchor, "a")
	require.NoError(t, err)

	s.Release(b.Trail)
	assert.False(t, m.Alive(b))
	assert.Equal(t, 1, m.Owned())

	assert.True(t, m.Destroy(key))
	assert.False(t, m.Destroy(key))
	assert.Zero(t, s.ResourceCount())
}

func TestDestroyAll(t *testing.T) {
	s := memscene.New()
	root := s.MustAddNode(core.NodeHandle{}, "hand", core.Position3D{})
	m := NewManager(s, core.DefaultStyle(), Options{})

	for _, name := range []string{"thumb_end", "index_end", "middle_end"} {
		n := s.MustAddNode(root, name, core.Position3D{})
		_, err := m.Create(core.StructuralKey(n), n, name)
		require.NoError(t, err)
	}
	require.Equal(t, 6, s.ResourceCount())

	assert.Equal(t, 3, m.DestroyAll())
	assert.Zero(t, m.Len())
	assert.Zero(t, m.Owned())
	assert.Zero(t, s.ResourceCount())
}

func TestDetach_KeepsResources(t *testing.T) {
	s, anchor, m := setup(t, Options{Persist: true})
	_, err := m.Create(core.StructuralKey(anchor), anchor, "a")
	require.NoError(t, err)

	detached := m.Detach()
	assert.Len(t, detached, 1)
	assert.Zero(t, m.Len())
	assert.Equal(t, 2, s.ResourceCount())
}

func TestKeysOrdered(t *testing.T) {
	s := memscene.New()
	m := NewManager(s, core.DefaultStyle(), Options{})
	for _, id := range []int{3, 1, 2} {
		_, err := m.Create(core.SyntheticKey(id, 0), core.NodeHandle{}, "tip")
		require.NoError(t, err)
	}
	assert.Equal(t, []core.EndpointKey{
		core.SyntheticKey(1, 0),
		core.SyntheticKey(2, 0),
		core.SyntheticKey(3, 0),
	}, m.Keys())
}

func TestSetPersist_AppliesToNewBundles(t *testing.T) {
	s, anchor, m := setup(t, Options{})
	_, err := m.Create(core.StructuralKey(anchor), anchor, "index_end")
	require.NoError(t, err)

	m.SetPersist(true)
	other := s.MustAddNode(core.NodeHandle{}, "thumb_end", core.Position3D{})
	_, err = m.Create(core.StructuralKey(other), other, "thumb_end")
	require.NoError(t, err)

	assert.Len(t, s.Save().Resources, 2, "only the second bundle is saved")
}
