// pkg/core/position.go
package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Position3D is a point in scene space, metres unless stated otherwise.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec converts the position to a gonum vector.
func (p Position3D) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// FromVec converts a gonum vector back to a position.
func FromVec(v r3.Vec) Position3D {
	return Position3D{X: v.X, Y: v.Y, Z: v.Z}
}

// Add returns p+q.
func (p Position3D) Add(q Position3D) Position3D {
	return FromVec(r3.Add(p.Vec(), q.Vec()))
}

// Sub returns p-q.
func (p Position3D) Sub(q Position3D) Position3D {
	return FromVec(r3.Sub(p.Vec(), q.Vec()))
}

// Scale returns p scaled by f.
func (p Position3D) Scale(f float64) Position3D {
	return FromVec(r3.Scale(f, p.Vec()))
}

// Distance returns the euclidean distance between p and q.
func (p Position3D) Distance(q Position3D) float64 {
	return r3.Norm(r3.Sub(p.Vec(), q.Vec()))
}

// IsFinite reports whether every component is a finite number.
func (p Position3D) IsFinite() bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
