package model

import (
	"github.com/paulmach/orb"
)

// Feature is a geometry plus a flat attribute map. Attribute lookup is
// explicit: a missing key is reported as absent, it never panics past the
// aggregation boundary.
type Feature struct {
	ID         int64          `json:"id"`
	Geometry   orb.Geometry   `json:"-"`
	Attributes map[string]any `json:"attributes"`
}

// StringAttr returns the attribute as a string, or ok=false when it is
// missing or not a string.
func (f Feature) StringAttr(key string) (string, bool) {
	v, ok := f.Attributes[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// NumAttr returns the attribute as a float64, accepting the numeric types
// that survive a JSON round trip.
func (f Feature) NumAttr(key string) (float64, bool) {
	v, ok := f.Attributes[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (f Feature) Polygon() (orb.Polygon, bool) {
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		return g, true
	case orb.Ring:
		return orb.Polygon{g}, true
	default:
		return nil, false
	}
}

func (f Feature) Point() (orb.Point, bool) {
	p, ok := f.Geometry.(orb.Point)
	return p, ok
}

// FeatureCollection is an ordered sequence of features with no uniqueness
// constraint.
type FeatureCollection struct {
	Features []Feature
}

func (c FeatureCollection) Len() int { return len(c.Features) }
