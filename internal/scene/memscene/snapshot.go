package memscene

import (
	"sort"

	"github.com/OCAP2/tiptrails/internal/scene"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// ResourceInfo is a read-only copy of a spawned resource.
type ResourceInfo struct {
	Handle   core.ResourceHandle
	Name     string
	Marker   bool
	Parent   core.NodeHandle
	DontSave bool
	Emitting bool
	Visible  bool
	Position core.Position3D
	Scale    float64
	Trail    scene.TrailParams
	Glyph    scene.MarkerParams
	Points   []TrailPoint
}

func (s *Scene) info(id, gen uint32, r *resource) ResourceInfo {
	pts := make([]TrailPoint, len(r.points))
	copy(pts, r.points)
	return ResourceInfo{
		Handle:   core.ResourceHandle{ID: id, Version: gen},
		Name:     r.name,
		Marker:   r.kind == kindMarker,
		Parent:   r.parent,
		DontSave: r.dontSave,
		Emitting: r.emitting,
		Visible:  r.visible,
		Position: r.position,
		Scale:    r.scale,
		Trail:    r.trail,
		Glyph:    r.marker,
		Points:   pts,
	}
}

// Resource returns a copy of the resource behind r.
func (s *Scene) Resource(r core.ResourceHandle) (ResourceInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.resources.get(r.ID, r.Version)
	if !ok {
		return ResourceInfo{}, false
	}
	return s.info(r.ID, r.Version, res), true
}

// Resources returns copies of every live resource ordered by name.
func (s *Scene) Resources() []ResourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ResourceInfo
	for i, sl := range s.resources.items {
		if sl.item != nil {
			out = append(out, s.info(uint32(i+1), sl.gen, sl.item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NodeInfo is a saved node.
type NodeInfo struct {
	Handle core.NodeHandle
	Name   string
	Parent core.NodeHandle
	Local  core.Position3D
	Scale  float64
	Active bool
}

// Snapshot is what a scene save would persist.
type Snapshot struct {
	Nodes     []NodeInfo
	Resources []ResourceInfo
}

// Save captures the scene. Resources spawned with DontSave are left out.
func (s *Scene) Save() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap Snapshot
	for i, sl := range s.nodes.items {
		if sl.item == nil {
			continue
		}
		snap.Nodes = append(snap.Nodes, NodeInfo{
			Handle: core.NodeHandle{ID: uint32(i + 1), Version: sl.gen},
			Name:   sl.item.name,
			Parent: sl.item.parent,
			Local:  sl.item.local,
			Scale:  sl.item.scale,
			Active: sl.item.active,
		})
	}
	for i, sl := range s.resources.items {
		if sl.item == nil || sl.item.dontSave {
			continue
		}
		snap.Resources = append(snap.Resources, s.info(uint32(i+1), sl.gen, sl.item))
	}
	return snap
}
