// Package geometry handles the GeoJSON encodings stored with documents.
//
// Geometries are compared by encoding, so every value entering the system
// is normalized first: parsed and re-encoded with a stable layout.
package geometry

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrUnsupported is returned for geometry types a default point cannot be
// derived from.
var ErrUnsupported = errors.New("unsupported geometry type")

// Normalize parses a GeoJSON geometry and re-encodes it. Empty input stays empty.
func Normalize(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	g, err := parse(raw)
	if err != nil {
		return "", err
	}
	return encode(g)
}

// IsPoint reports whether raw is a GeoJSON Point.
func IsPoint(raw string) bool {
	g, err := parse(raw)
	if err != nil {
		return false
	}
	_, ok := g.(orb.Point)
	return ok
}

// DefaultPoint derives a point from a detail geometry: the point half-way
// along a track, or the centroid of an outline.
func DefaultPoint(detail string) (string, error) {
	g, err := parse(detail)
	if err != nil {
		return "", err
	}

	var p orb.Point
	switch v := g.(type) {
	case orb.Point:
		p = v
	case orb.LineString:
		p = midpoint([]orb.LineString{v})
	case orb.MultiLineString:
		p = midpoint(v)
	case orb.Polygon, orb.MultiPolygon:
		p, _ = planar.CentroidArea(v)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, g.GeoJSONType())
	}
	return encode(p)
}

// midpoint walks the lines in order and returns the point at half of the
// total length.
func midpoint(lines []orb.LineString) orb.Point {
	var total float64
	var first orb.Point
	found := false
	for _, ls := range lines {
		for i := 1; i < len(ls); i++ {
			total += planar.Distance(ls[i-1], ls[i])
		}
		if !found && len(ls) > 0 {
			first, found = ls[0], true
		}
	}
	if total == 0 {
		return first
	}

	remaining := total / 2
	for _, ls := range lines {
		for i := 1; i < len(ls); i++ {
			a, b := ls[i-1], ls[i]
			d := planar.Distance(a, b)
			if d == 0 {
				continue
			}
			if remaining <= d {
				f := remaining / d
				return orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
			}
			remaining -= d
		}
	}
	last := lines[len(lines)-1]
	return last[len(last)-1]
}

func parse(raw string) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid geojson: %w", err)
	}
	if g.Coordinates == nil {
		return nil, fmt.Errorf("invalid geojson: no coordinates")
	}
	return g.Geometry(), nil
}

func encode(g orb.Geometry) (string, error) {
	b, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode geojson: %w", err)
	}
	return string(b), nil
}
