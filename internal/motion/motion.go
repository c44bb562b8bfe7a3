// Package motion estimates per-endpoint speed between frames and derives
// trail widths from it.
package motion

import (
	"math"
	"time"

	"github.com/OCAP2/tiptrails/internal/scene"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// MinElapsed is the smallest time step used when dividing by elapsed time.
const MinElapsed = 1e-4

type sample struct {
	pos  core.Position3D
	time time.Time
}

// Estimator keeps the previous sample per key. It is not safe for
// concurrent use; the registry owns it under its own lock.
type Estimator struct {
	prev map[core.EndpointKey]sample
}

// NewEstimator returns an empty estimator.
func NewEstimator() *Estimator {
	return &Estimator{prev: make(map[core.EndpointKey]sample)}
}

// Observe records pos for key and returns its speed in units per second.
// The first observation of a key returns 0.
func (e *Estimator) Observe(key core.EndpointKey, pos core.Position3D, now time.Time) float64 {
	last, ok := e.prev[key]
	e.prev[key] = sample{pos: pos, time: now}
	if !ok {
		return 0
	}
	dt := math.Max(MinElapsed, now.Sub(last.time).Seconds())
	return pos.Distance(last.pos) / dt
}

// Forget drops the history of key.
func (e *Estimator) Forget(key core.EndpointKey) {
	delete(e.prev, key)
}

// Reset drops all history.
func (e *Estimator) Reset() {
	clear(e.prev)
}

// Len is the number of tracked keys.
func (e *Estimator) Len() int {
	return len(e.prev)
}

// Lerp interpolates from a to b by t, clamped to [0,1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*clamp01(t)
}

// InverseLerp returns where v lies between a and b, clamped to [0,1].
// A degenerate range yields 0.
func InverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return clamp01((v - a) / (b - a))
}

func clamp01(t float64) float64 {
	return math.Min(1, math.Max(0, t))
}

// WidthRange maps speed to a trail width.
type WidthRange struct {
	SpeedMin   float64
	SpeedMax   float64
	StartWidth float64
	Scale      float64
}

// DefaultWidthRange matches the provider defaults.
func DefaultWidthRange() WidthRange {
	return WidthRange{SpeedMin: 0, SpeedMax: 2, StartWidth: 0.02, Scale: 1.4}
}

// slowFactor is the fraction of StartWidth used at or below SpeedMin.
const slowFactor = 0.6

// WidthBySpeed returns the start width for an endpoint moving at speed.
func WidthBySpeed(speed float64, r WidthRange) float64 {
	k := InverseLerp(r.SpeedMin, r.SpeedMax, speed)
	return Lerp(r.StartWidth*slowFactor, r.StartWidth*r.Scale, k)
}

// PixelWidth returns the world-space width that covers pixels on screen at
// pos, seen from cam.
func PixelWidth(cam scene.Camera, pos core.Position3D, pixels float64) float64 {
	dist := cam.Position.Distance(pos)
	fov := cam.FieldOfView * math.Pi / 180
	worldPerPixel := 2 * math.Tan(fov/2) * dist / math.Max(1, float64(cam.PixelHeight))
	return pixels * worldPerPixel
}
