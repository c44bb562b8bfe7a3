// pkg/core/style.go
package core

import "time"

// Shader names tried, in order, when no material is configured.
const (
	DefaultTrailShader    = "Universal Render Pipeline/Particles/Unlit"
	FallbackTrailShader   = "Sprites/Default"
	TransparentAfterQueue = 3050
)

// Color is a linear RGBA color.
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// White is opaque white.
var White = Color{R: 1, G: 1, B: 1, A: 1}

// ColorKey places a color at time T in [0,1] along the trail.
type ColorKey struct {
	Color Color   `json:"color"`
	T     float32 `json:"t"`
}

// AlphaKey places an alpha value at time T in [0,1] along the trail.
type AlphaKey struct {
	Alpha float32 `json:"alpha"`
	T     float32 `json:"t"`
}

// Gradient colors a trail from head (T=0) to tail (T=1).
type Gradient struct {
	ColorKeys []ColorKey `json:"colorKeys"`
	AlphaKeys []AlphaKey `json:"alphaKeys"`
}

// DefaultGradient is white fading from opaque to transparent.
func DefaultGradient() *Gradient {
	return &Gradient{
		ColorKeys: []ColorKey{{Color: White, T: 0}, {Color: White, T: 1}},
		AlphaKeys: []AlphaKey{{Alpha: 1, T: 0}, {Alpha: 0, T: 1}},
	}
}

// Empty reports whether the gradient has no usable keys.
func (g *Gradient) Empty() bool {
	return g == nil || (len(g.ColorKeys) == 0 && len(g.AlphaKeys) == 0)
}

// Style is the full set of visual parameters pushed to a resource bundle.
type Style struct {
	Lifetime          time.Duration `json:"lifetime"`
	StartWidth        float64       `json:"startWidth"`
	EndWidth          float64       `json:"endWidth"`
	MinVertexDistance float64       `json:"minVertexDistance"`
	WidthScale        float64       `json:"widthScale"` // multiplies start/end width
	SortingOrder      int           `json:"sortingOrder"`
	RenderQueue       int           `json:"renderQueue"`
	CornerVertices    int           `json:"cornerVertices"`
	CapVertices       int           `json:"capVertices"`
	AlignToView       bool          `json:"alignToView"`
	CastShadows       bool          `json:"castShadows"`
	ReceiveShadows    bool          `json:"receiveShadows"`
	Material          string        `json:"material"`
	Gradient          *Gradient     `json:"gradient"`

	MarkerEnabled  bool    `json:"markerEnabled"`
	MarkerSize     float64 `json:"markerSize"`
	MarkerColor    Color   `json:"markerColor"`
	MarkerMaterial string  `json:"markerMaterial"`
}

// DefaultStyle returns the trail look used when nothing is configured.
func DefaultStyle() Style {
	return Style{
		Lifetime:          450 * time.Millisecond,
		StartWidth:        0.006,
		EndWidth:          0,
		MinVertexDistance: 0.0025,
		WidthScale:        1,
		SortingOrder:      10,
		RenderQueue:       TransparentAfterQueue,
		CornerVertices:    4,
		CapVertices:       4,
		AlignToView:       true,
		Gradient:          DefaultGradient(),
		MarkerEnabled:     true,
		MarkerSize:        0.010,
		MarkerColor:       White,
	}
}

// ScaledStartWidth is StartWidth after the global width scale.
func (s Style) ScaledStartWidth() float64 {
	return s.StartWidth * s.WidthScale
}

// ScaledEndWidth is EndWidth after the global width scale.
func (s Style) ScaledEndWidth() float64 {
	return s.EndWidth * s.WidthScale
}
