// Package effects owns the visual resources attached to tracked endpoints:
// one trail and an optional marker per endpoint, kept in a Bundle.
package effects

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/tiptrails/internal/scene"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Bundle is the set of resources spawned for one endpoint.
type Bundle struct {
	Key      core.EndpointKey
	Name     string
	Anchor   core.NodeHandle
	Trail    core.ResourceHandle
	Marker   core.ResourceHandle // zero when markers are disabled
	Emitting bool
	LastSeen time.Time
	// Width is the current start width pushed to the trail.
	Width float64

	pinned bool // Width was set explicitly and survives style updates
}

// HasMarker reports whether the bundle owns a marker.
func (b *Bundle) HasMarker() bool {
	return !b.Marker.IsZero()
}

// Options configures a Manager.
type Options struct {
	// Persist leaves resources in scene saves and lets Detach hand them over.
	Persist bool
	Logger  *slog.Logger
}

// Manager creates, restyles and releases bundles.
type Manager struct {
	renderer scene.Renderer
	persist  bool
	logger   *slog.Logger

	mu           sync.Mutex
	style        core.Style
	bundles      map[core.EndpointKey]*Bundle
	warnedShader map[string]bool
}

// NewManager returns a manager drawing through r with the given style.
func NewManager(r scene.Renderer, style core.Style, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		renderer:     r,
		persist:      opts.Persist,
		logger:       logger,
		style:        style,
		bundles:      make(map[core.EndpointKey]*Bundle),
		warnedShader: make(map[string]bool),
	}
}

// Style returns the style applied to new bundles.
func (m *Manager) Style() core.Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style
}

// Create spawns the bundle for key under anchor. It is idempotent: an
// existing bundle for key is returned unchanged.
func (m *Manager) Create(key core.EndpointKey, anchor core.NodeHandle, name string) (*Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.bundles[key]; ok {
		return b, nil
	}

	opts := scene.SpawnOptions{Name: "Trail_" + name, Parent: anchor, DontSave: !m.persist}
	trail, err := m.renderer.SpawnTrail(opts)
	if err != nil {
		return nil, fmt.Errorf("spawning trail for %s: %w", key, err)
	}

	b := &Bundle{Key: key, Name: name, Anchor: anchor, Trail: trail, Emitting: true}
	if m.style.MarkerEnabled {
		if err := m.spawnMarker(b); err != nil {
			m.renderer.Release(trail)
			return nil, err
		}
	}
	m.apply(b)
	m.bundles[key] = b
	return b, nil
}

func (m *Manager) spawnMarker(b *Bundle) error {
	opts := scene.SpawnOptions{Name: "Dot_" + b.Name, Parent: b.Anchor, DontSave: !m.persist}
	marker, err := m.renderer.SpawnMarker(opts)
	if err != nil {
		return fmt.Errorf("spawning marker for %s: %w", b.Key, err)
	}
	b.Marker = marker
	return nil
}

// SetStyle replaces the style and pushes it to every live bundle.
func (m *Manager) SetStyle(style core.Style) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.style = style
	for _, b := range m.bundles {
		m.apply(b)
	}
}

// SetPersist changes whether bundles spawned from now on are kept in scene
// saves.
func (m *Manager) SetPersist(persist bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persist = persist
}

// ApplyStyle pushes the current style to b without recreating it.
func (m *Manager) ApplyStyle(b *Bundle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(b)
}

func (m *Manager) apply(b *Bundle) {
	if !m.renderer.ResourceValid(b.Trail) {
		return
	}
	s := m.style

	start := s.ScaledStartWidth()
	if b.pinned {
		start = b.Width
	}
	b.Width = start

	gradient := s.Gradient
	if gradient.Empty() {
		gradient = core.DefaultGradient()
	}

	m.renderer.ConfigureTrail(b.Trail, scene.TrailParams{
		Lifetime:          s.Lifetime.Seconds(),
		StartWidth:        start,
		EndWidth:          s.ScaledEndWidth(),
		MinVertexDistance: s.MinVertexDistance,
		SortingOrder:      s.SortingOrder,
		RenderQueue:       s.RenderQueue,
		CornerVertices:    s.CornerVertices,
		CapVertices:       s.CapVertices,
		AlignToView:       s.AlignToView,
		CastShadows:       s.CastShadows,
		ReceiveShadows:    s.ReceiveShadows,
		Shader:            m.resolveShader(s.Material),
		Gradient:          gradient,
	})

	switch {
	case s.MarkerEnabled && !b.HasMarker():
		if err := m.spawnMarker(b); err != nil {
			m.logger.Warn("Marker not created", "key", b.Key.String(), "error", err)
			return
		}
	case !s.MarkerEnabled && b.HasMarker():
		m.release(b.Marker)
		b.Marker = core.ResourceHandle{}
		return
	case !s.MarkerEnabled:
		return
	}

	markerShader := s.MarkerMaterial
	if markerShader == "" {
		markerShader = s.Material
	}
	m.renderer.ConfigureMarker(b.Marker, scene.MarkerParams{
		Size:           s.MarkerSize,
		Color:          s.MarkerColor,
		Shader:         m.resolveShader(markerShader),
		RenderQueue:    s.RenderQueue,
		CastShadows:    s.CastShadows,
		ReceiveShadows: s.ReceiveShadows,
	})
	m.renderer.SetVisible(b.Marker, b.Emitting)
}

// resolveShader returns material when the renderer knows it, otherwise the
// first available built-in shader.
func (m *Manager) resolveShader(material string) string {
	if material != "" {
		if m.renderer.FindShader(material) {
			return material
		}
		if !m.warnedShader[material] {
			m.warnedShader[material] = true
			m.logger.Warn("Material not found, using default shader", "material", material)
		}
	}
	for _, name := range []string{core.DefaultTrailShader, core.FallbackTrailShader} {
		if m.renderer.FindShader(name) {
			return name
		}
	}
	return ""
}

// SetWidth sets the start width of b and keeps it across style updates.
func (m *Manager) SetWidth(b *Bundle, start float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Width = start
	b.pinned = true
	m.renderer.SetTrailWidth(b.Trail, start, m.style.ScaledEndWidth())
}

// Unpin drops widths set with SetWidth so every bundle follows the style
// width again.
func (m *Manager) Unpin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bundles {
		if b.pinned {
			b.pinned = false
			m.apply(b)
		}
	}
}

// SetEmitting toggles trail emission; the marker is shown only while
// the trail emits.
func (m *Manager) SetEmitting(b *Bundle, on bool) {
	if b.Emitting == on {
		return
	}
	b.Emitting = on
	m.renderer.SetEmitting(b.Trail, on)
	if b.HasMarker() {
		m.renderer.SetVisible(b.Marker, on)
	}
}

// Move places both resources of b at world.
func (m *Manager) Move(b *Bundle, world core.Position3D) {
	m.renderer.MoveResource(b.Trail, world)
	if b.HasMarker() {
		m.renderer.MoveResource(b.Marker, world)
	}
}

// SetScale sets the uniform local scale of both resources of b.
func (m *Manager) SetScale(b *Bundle, uniform float64) {
	m.renderer.SetResourceScale(b.Trail, uniform)
	if b.HasMarker() {
		m.renderer.SetResourceScale(b.Marker, uniform)
	}
}

// Alive reports whether the trail of b still exists.
func (m *Manager) Alive(b *Bundle) bool {
	return b != nil && m.renderer.ResourceValid(b.Trail)
}

// Get returns the bundle for key.
func (m *Manager) Get(key core.EndpointKey) (*Bundle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundles[key]
	return b, ok
}

// Keys returns the keys of all bundles in a stable order.
func (m *Manager) Keys() []core.EndpointKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]core.EndpointKey, 0, len(m.bundles))
	for k := range m.bundles {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// Len is the number of bundles held.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bundles)
}

// Owned counts the live resources held by the manager.
func (m *Manager) Owned() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bundles {
		if m.renderer.ResourceValid(b.Trail) {
			n++
		}
		if b.HasMarker() && m.renderer.ResourceValid(b.Marker) {
			n++
		}
	}
	return n
}

// Destroy releases the bundle for key. Resources already destroyed by the
// host are skipped. It reports whether a bundle was held.
func (m *Manager) Destroy(key core.EndpointKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundles[key]
	if !ok {
		return false
	}
	m.releaseBundle(b)
	delete(m.bundles, key)
	return true
}

// DestroyAll releases every bundle and returns how many were held.
func (m *Manager) DestroyAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.bundles)
	for _, b := range m.bundles {
		m.releaseBundle(b)
	}
	clear(m.bundles)
	return n
}

// Detach forgets every bundle without releasing its resources; the scene
// keeps them. The detached bundles are returned.
func (m *Manager) Detach() []*Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Bundle, 0, len(m.bundles))
	for _, b := range m.bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].Key, out[j].Key) })
	clear(m.bundles)
	return out
}

func (m *Manager) releaseBundle(b *Bundle) {
	m.release(b.Trail)
	if b.HasMarker() {
		m.release(b.Marker)
	}
}

func (m *Manager) release(r core.ResourceHandle) {
	if m.renderer.ResourceValid(r) {
		m.renderer.Release(r)
	}
}

// SortKeys orders keys by kind, then node or synthetic id.
func SortKeys(keys []core.EndpointKey) {
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
}

func keyLess(a, b core.EndpointKey) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Node.ID != b.Node.ID {
		return a.Node.ID < b.Node.ID
	}
	if a.Node.Version != b.Node.Version {
		return a.Node.Version < b.Node.Version
	}
	return a.ID < b.ID
}
