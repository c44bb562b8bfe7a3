// Package geo converts trail positions to and from simplefeatures geometry.
// Trail paths are stored as WKB LineString Z in scene metres.
package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/tiptrails/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ErrShortPath is returned for paths with fewer than two points.
var ErrShortPath = errors.New("path needs at least 2 points")

// Position3DFromString parses "x,y" or "x,y,z" into a core.Position3D.
func Position3DFromString(coords string) (core.Position3D, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Position3D{}, ErrInvalidCoordinates
		}
		v[i] = f
	}
	pos := core.Position3D{X: v[0], Y: v[1], Z: v[2]}
	if !pos.IsFinite() {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	return pos, nil
}

// Point converts a position to a 3D point.
func Point(p core.Position3D) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Z:    p.Z,
		Type: geom.DimXYZ,
	})
}

// Path builds a LineString Z through pts in order.
func Path(pts []core.Position3D) (geom.LineString, error) {
	if len(pts) < 2 {
		return geom.LineString{}, ErrShortPath
	}
	flat := make([]float64, 0, len(pts)*3)
	for i, p := range pts {
		if !p.IsFinite() {
			return geom.LineString{}, fmt.Errorf("point %d: %w", i, ErrInvalidCoordinates)
		}
		flat = append(flat, p.X, p.Y, p.Z)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ)), nil
}

// EncodePath returns the WKB encoding of the path through pts.
func EncodePath(pts []core.Position3D) ([]byte, error) {
	ls, err := Path(pts)
	if err != nil {
		return nil, err
	}
	return ls.AsBinary(), nil
}

// DecodePath reads a WKB LineString back into positions.
func DecodePath(wkb []byte) ([]core.Position3D, error) {
	g, err := geom.UnmarshalWKB(wkb)
	if err != nil {
		return nil, fmt.Errorf("decode path: %w", err)
	}
	ls, ok := g.AsLineString()
	if !ok {
		return nil, fmt.Errorf("decode path: unexpected geometry %s", g.Type())
	}
	seq := ls.Coordinates()
	out := make([]core.Position3D, seq.Length())
	for i := range out {
		c := seq.Get(i)
		out[i] = core.Position3D{X: c.X, Y: c.Y, Z: c.Z}
	}
	return out, nil
}

// PathLength is the 3D length of the polyline through pts.
func PathLength(pts []core.Position3D) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		total += pts[i-1].Distance(pts[i])
	}
	return total
}
