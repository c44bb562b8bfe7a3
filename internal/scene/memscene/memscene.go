// Package memscene is an in-memory scene: a node hierarchy plus a renderer
// that keeps trail sample buffers instead of drawing. It backs the replay
// binary and the tests.
package memscene

import (
	"errors"
	"sync"
	"time"

	"github.com/OCAP2/tiptrails/internal/scene"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// ErrUnknownParent is returned when a node or resource is attached to a stale handle.
var ErrUnknownParent = errors.New("parent node does not exist")

type node struct {
	name     string
	parent   core.NodeHandle
	children []core.NodeHandle
	local    core.Position3D
	scale    float64
	active   bool
}

type resourceKind uint8

const (
	kindTrail resourceKind = iota + 1
	kindMarker
)

// TrailPoint is one vertex of a trail ribbon.
type TrailPoint struct {
	Position core.Position3D
	Time     time.Time
}

type resource struct {
	kind     resourceKind
	name     string
	parent   core.NodeHandle
	dontSave bool
	trail    scene.TrailParams
	marker   scene.MarkerParams
	emitting bool
	visible  bool
	position core.Position3D
	scale    float64
	points   []TrailPoint
}

type slot[T any] struct {
	gen  uint32
	item *T
}

// slots is a generational arena: freed IDs are reused with a bumped
// generation so old handles stop resolving.
type slots[T any] struct {
	items []slot[T]
	free  []uint32
}

func (s *slots[T]) add(item *T) (uint32, uint32) {
	if n := len(s.free); n > 0 {
		id := s.free[n-1]
		s.free = s.free[:n-1]
		sl := &s.items[id-1]
		sl.gen++
		sl.item = item
		return id, sl.gen
	}
	s.items = append(s.items, slot[T]{gen: 1, item: item})
	return uint32(len(s.items)), 1
}

func (s *slots[T]) get(id, gen uint32) (*T, bool) {
	if id == 0 || int(id) > len(s.items) {
		return nil, false
	}
	sl := s.items[id-1]
	if sl.gen != gen || sl.item == nil {
		return nil, false
	}
	return sl.item, true
}

func (s *slots[T]) remove(id, gen uint32) bool {
	if _, ok := s.get(id, gen); !ok {
		return false
	}
	s.items[id-1].item = nil
	s.free = append(s.free, id)
	return true
}

func (s *slots[T]) count() int {
	return len(s.items) - len(s.free)
}

// Scene implements scene.Hierarchy and scene.Renderer.
type Scene struct {
	mu        sync.RWMutex
	nodes     slots[node]
	resources slots[resource]
	shaders   map[string]bool
	now       time.Time
}

// New creates an empty scene that knows the default trail shaders.
func New() *Scene {
	return &Scene{
		shaders: map[string]bool{
			core.DefaultTrailShader:  true,
			core.FallbackTrailShader: true,
		},
	}
}

// SetTime sets the scene clock used to age trail samples.
func (s *Scene) SetTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

// AddShader registers a shader name.
func (s *Scene) AddShader(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shaders[name] = true
}

// RemoveShader unregisters a shader name.
func (s *Scene) RemoveShader(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shaders, name)
}

// AddNode creates an active node with unit scale under parent (zero for root).
func (s *Scene) AddNode(parent core.NodeHandle, name string, local core.Position3D) (core.NodeHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p *node
	if !parent.IsZero() {
		var ok bool
		p, ok = s.nodes.get(parent.ID, parent.Version)
		if !ok {
			return core.NodeHandle{}, ErrUnknownParent
		}
	}

	id, gen := s.nodes.add(&node{name: name, parent: parent, local: local, scale: 1, active: true})
	h := core.NodeHandle{ID: id, Version: gen}
	if p != nil {
		p.children = append(p.children, h)
	}
	return h, nil
}

// MustAddNode is AddNode for fixtures; it panics on a stale parent.
func (s *Scene) MustAddNode(parent core.NodeHandle, name string, local core.Position3D) core.NodeHandle {
	h, err := s.AddNode(parent, name, local)
	if err != nil {
		panic(err)
	}
	return h
}

// SetLocalPosition moves a node relative to its parent.
func (s *Scene) SetLocalPosition(h core.NodeHandle, local core.Position3D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes.get(h.ID, h.Version); ok {
		n.local = local
	}
}

// SetActive toggles a node's own active flag.
func (s *Scene) SetActive(h core.NodeHandle, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes.get(h.ID, h.Version); ok {
		n.active = active
	}
}

// SetScale sets a node's local uniform scale.
func (s *Scene) SetScale(h core.NodeHandle, scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes.get(h.ID, h.Version); ok {
		n.scale = scale
	}
}

// DestroyNode removes a node, its subtree and every resource attached to them.
func (s *Scene) DestroyNode(h core.NodeHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes.get(h.ID, h.Version)
	if !ok {
		return
	}
	if p, ok := s.nodes.get(n.parent.ID, n.parent.Version); ok {
		for i, c := range p.children {
			if c == h {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	s.destroySubtree(h)
}

func (s *Scene) destroySubtree(h core.NodeHandle) {
	n, ok := s.nodes.get(h.ID, h.Version)
	if !ok {
		return
	}
	for _, c := range n.children {
		s.destroySubtree(c)
	}
	for i := range s.resources.items {
		r := s.resources.items[i].item
		if r != nil && r.parent == h {
			s.resources.remove(uint32(i+1), s.resources.items[i].gen)
		}
	}
	s.nodes.remove(h.ID, h.Version)
}

// NodeCount is the number of live nodes.
func (s *Scene) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes.count()
}

// ResourceCount is the number of live resources.
func (s *Scene) ResourceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resources.count()
}

// Valid implements scene.Hierarchy.
func (s *Scene) Valid(h core.NodeHandle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes.get(h.ID, h.Version)
	return ok
}

// Name implements scene.Hierarchy.
func (s *Scene) Name(h core.NodeHandle) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.nodes.get(h.ID, h.Version); ok {
		return n.name
	}
	return ""
}

// Parent implements scene.Hierarchy.
func (s *Scene) Parent(h core.NodeHandle) (core.NodeHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes.get(h.ID, h.Version)
	if !ok || n.parent.IsZero() {
		return core.NodeHandle{}, false
	}
	return n.parent, true
}

// Descendants implements scene.Hierarchy. Order is depth-first, children in
// insertion order.
func (s *Scene) Descendants(root core.NodeHandle) []core.NodeHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.NodeHandle
	var walk func(h core.NodeHandle)
	walk = func(h core.NodeHandle) {
		n, ok := s.nodes.get(h.ID, h.Version)
		if !ok {
			return
		}
		for _, c := range n.children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(root)
	return out
}

// world resolves position and lossy scale by walking up the parent chain.
func (s *Scene) world(h core.NodeHandle) (core.Position3D, float64, bool) {
	n, ok := s.nodes.get(h.ID, h.Version)
	if !ok {
		return core.Position3D{}, 0, false
	}
	if n.parent.IsZero() {
		return n.local, n.scale, true
	}
	ppos, pscale, ok := s.world(n.parent)
	if !ok {
		return n.local, n.scale, true
	}
	return ppos.Add(n.local.Scale(pscale)), pscale * n.scale, true
}

// WorldPosition implements scene.Hierarchy.
func (s *Scene) WorldPosition(h core.NodeHandle) (core.Position3D, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, _, ok := s.world(h)
	return pos, ok
}

// LossyScale implements scene.Hierarchy.
func (s *Scene) LossyScale(h core.NodeHandle) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, scale, ok := s.world(h)
	if !ok {
		return 1
	}
	return scale
}

// TransformPoint implements scene.Hierarchy.
func (s *Scene) TransformPoint(h core.NodeHandle, local core.Position3D) (core.Position3D, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, scale, ok := s.world(h)
	if !ok {
		return core.Position3D{}, false
	}
	return pos.Add(local.Scale(scale)), true
}

// ActiveInHierarchy implements scene.Hierarchy.
func (s *Scene) ActiveInHierarchy(h core.NodeHandle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for !h.IsZero() {
		n, ok := s.nodes.get(h.ID, h.Version)
		if !ok || !n.active {
			return false
		}
		h = n.parent
	}
	return true
}

// FindShader implements scene.Renderer.
func (s *Scene) FindShader(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shaders[name]
}

func (s *Scene) spawn(kind resourceKind, opts scene.SpawnOptions) (core.ResourceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !opts.Parent.IsZero() {
		if _, ok := s.nodes.get(opts.Parent.ID, opts.Parent.Version); !ok {
			return core.ResourceHandle{}, ErrUnknownParent
		}
	}
	pos, _, _ := s.world(opts.Parent)
	id, gen := s.resources.add(&resource{
		kind:     kind,
		name:     opts.Name,
		parent:   opts.Parent,
		dontSave: opts.DontSave,
		visible:  true,
		emitting: kind == kindTrail,
		position: pos,
		scale:    1,
	})
	return core.ResourceHandle{ID: id, Version: gen}, nil
}

// SpawnTrail implements scene.Renderer.
func (s *Scene) SpawnTrail(opts scene.SpawnOptions) (core.ResourceHandle, error) {
	return s.spawn(kindTrail, opts)
}

// SpawnMarker implements scene.Renderer.
func (s *Scene) SpawnMarker(opts scene.SpawnOptions) (core.ResourceHandle, error) {
	return s.spawn(kindMarker, opts)
}

// ResourceValid implements scene.Renderer.
func (s *Scene) ResourceValid(r core.ResourceHandle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.resources.get(r.ID, r.Version)
	return ok
}

func (s *Scene) withResource(r core.ResourceHandle, fn func(res *resource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.resources.get(r.ID, r.Version); ok {
		fn(res)
	}
}

// ConfigureTrail implements scene.Renderer.
func (s *Scene) ConfigureTrail(r core.ResourceHandle, p scene.TrailParams) {
	s.withResource(r, func(res *resource) { res.trail = p })
}

// ConfigureMarker implements scene.Renderer.
func (s *Scene) ConfigureMarker(r core.ResourceHandle, p scene.MarkerParams) {
	s.withResource(r, func(res *resource) { res.marker = p })
}

// SetEmitting implements scene.Renderer.
func (s *Scene) SetEmitting(r core.ResourceHandle, on bool) {
	s.withResource(r, func(res *resource) { res.emitting = on })
}

// SetTrailWidth implements scene.Renderer.
func (s *Scene) SetTrailWidth(r core.ResourceHandle, start, end float64) {
	s.withResource(r, func(res *resource) {
		res.trail.StartWidth = start
		res.trail.EndWidth = end
	})
}

// SetVisible implements scene.Renderer.
func (s *Scene) SetVisible(r core.ResourceHandle, on bool) {
	s.withResource(r, func(res *resource) { res.visible = on })
}

// SetResourceScale implements scene.Renderer.
func (s *Scene) SetResourceScale(r core.ResourceHandle, uniform float64) {
	s.withResource(r, func(res *resource) { res.scale = uniform })
}

// MoveResource implements scene.Renderer. Emitting trails record a vertex
// when the move exceeds the minimum vertex distance; vertices older than the
// trail lifetime are dropped.
func (s *Scene) MoveResource(r core.ResourceHandle, world core.Position3D) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.resources.get(r.ID, r.Version)
	if !ok {
		return
	}
	res.position = world
	if res.kind != kindTrail {
		return
	}

	if res.trail.Lifetime > 0 && !s.now.IsZero() {
		ttl := time.Duration(res.trail.Lifetime * float64(time.Second))
		keep := res.points[:0]
		for _, p := range res.points {
			if s.now.Sub(p.Time) <= ttl {
				keep = append(keep, p)
			}
		}
		res.points = keep
	}

	if !res.emitting {
		return
	}
	if n := len(res.points); n > 0 && res.points[n-1].Position.Distance(world) < res.trail.MinVertexDistance {
		return
	}
	res.points = append(res.points, TrailPoint{Position: world, Time: s.now})
}

// Release implements scene.Renderer. Releasing a stale handle is a no-op.
func (s *Scene) Release(r core.ResourceHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources.remove(r.ID, r.Version)
}
