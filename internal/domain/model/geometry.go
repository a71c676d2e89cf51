package model

import (
	"fmt"

	"github.com/paulmach/orb"
)

// AOI is the analysis polygon. Every raster and vector operation is
// implicitly clipped to it.
type AOI struct {
	Polygon orb.Polygon
}

// NewAOI validates the polygon before any query is issued: it must be
// present, closed, have a real interior and a non-self-intersecting outer
// ring.
func NewAOI(p orb.Polygon) (AOI, error) {
	if len(p) == 0 || len(p[0]) == 0 {
		return AOI{}, Errf(FailureInvalidGeometry, "area of interest is missing")
	}

	ring := p[0]
	if len(ring) < 4 {
		return AOI{}, Errf(FailureInvalidGeometry, "area of interest must have at least 3 distinct vertices")
	}
	if ring[0] != ring[len(ring)-1] {
		return AOI{}, Errf(FailureInvalidGeometry, "area of interest ring is not closed")
	}
	if selfIntersects(ring) {
		return AOI{}, Errf(FailureInvalidGeometry, "area of interest is self-intersecting, redraw the polygon")
	}

	return AOI{Polygon: p}, nil
}

// NewAOIFromBounds builds a rectangular AOI, the shape the drawing tool
// produces by default.
func NewAOIFromBounds(b Bounds) (AOI, error) {
	ring := orb.Ring{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}
	return NewAOI(orb.Polygon{ring})
}

func (a AOI) Empty() bool { return len(a.Polygon) == 0 }

func (a AOI) Bounds() Bounds {
	bound := a.Polygon.Bound()
	return Bounds{
		MinLat: bound.Min.Lat(),
		MinLon: bound.Min.Lon(),
		MaxLat: bound.Max.Lat(),
		MaxLon: bound.Max.Lon(),
	}
}

func (a AOI) Validate() error {
	_, err := NewAOI(a.Polygon)
	return err
}

// selfIntersects checks non-adjacent edge pairs of the outer ring. The ring
// sizes drawn by hand are small, so the quadratic scan is fine.
func selfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1 // last vertex repeats the first
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges (they share a vertex by construction).
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d orb.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(a, b, p orb.Point) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

func (a AOI) String() string {
	if a.Empty() {
		return "AOI(empty)"
	}
	return fmt.Sprintf("AOI(%s)", a.Bounds())
}
