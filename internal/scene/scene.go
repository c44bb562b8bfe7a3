// Package scene declares the host collaborators the trail engine talks to:
// the node hierarchy the endpoints live in and the renderer that owns the
// spawned visual resources. Implementations live with the host.
package scene

import (
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Hierarchy is the host's tree of named nodes.
type Hierarchy interface {
	// Valid reports whether h still refers to a live node.
	Valid(h core.NodeHandle) bool
	Name(h core.NodeHandle) string
	// Parent returns the parent of h; false at the root or for stale handles.
	Parent(h core.NodeHandle) (core.NodeHandle, bool)
	// Descendants lists every node below root, inactive ones included.
	// root itself is not part of the result.
	Descendants(root core.NodeHandle) []core.NodeHandle
	WorldPosition(h core.NodeHandle) (core.Position3D, bool)
	// ActiveInHierarchy is true when h and all its ancestors are active.
	ActiveInHierarchy(h core.NodeHandle) bool
	// LossyScale is the uniform world scale of h (x component).
	LossyScale(h core.NodeHandle) float64
	// TransformPoint maps a point local to h into world space.
	TransformPoint(h core.NodeHandle, local core.Position3D) (core.Position3D, bool)
}

// TrailParams is what a renderer needs to configure a trail ribbon.
type TrailParams struct {
	Lifetime          float64 // seconds
	StartWidth        float64
	EndWidth          float64
	MinVertexDistance float64
	SortingOrder      int
	RenderQueue       int
	CornerVertices    int
	CapVertices       int
	AlignToView       bool
	CastShadows       bool
	ReceiveShadows    bool
	Shader            string
	Gradient          *core.Gradient
}

// MarkerParams configures the marker glyph drawn at a tip.
type MarkerParams struct {
	Size           float64
	Color          core.Color
	Shader         string
	RenderQueue    int
	CastShadows    bool
	ReceiveShadows bool
}

// SpawnOptions are applied when a resource is created.
type SpawnOptions struct {
	Name string
	// Parent is the node the resource is attached to; zero for scene root.
	Parent core.NodeHandle
	// DontSave excludes the resource from scene saves.
	DontSave bool
}

// Renderer spawns and mutates visual resources.
type Renderer interface {
	// FindShader reports whether a shader with this name is available.
	FindShader(name string) bool
	SpawnTrail(opts SpawnOptions) (core.ResourceHandle, error)
	SpawnMarker(opts SpawnOptions) (core.ResourceHandle, error)
	// ResourceValid reports whether r still exists.
	ResourceValid(r core.ResourceHandle) bool
	ConfigureTrail(r core.ResourceHandle, p TrailParams)
	ConfigureMarker(r core.ResourceHandle, p MarkerParams)
	SetEmitting(r core.ResourceHandle, on bool)
	SetTrailWidth(r core.ResourceHandle, start, end float64)
	SetVisible(r core.ResourceHandle, on bool)
	MoveResource(r core.ResourceHandle, world core.Position3D)
	SetResourceScale(r core.ResourceHandle, uniform float64)
	Release(r core.ResourceHandle)
}

// Camera is the viewpoint used for pixel-constant widths.
type Camera struct {
	Position    core.Position3D
	FieldOfView float64 // vertical, degrees
	PixelHeight int
}
