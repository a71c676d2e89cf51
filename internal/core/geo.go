package core

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// calculateArea returns the area of a bounding box in km², correcting the
// degree-to-meter conversion for latitude.
func calculateArea(bounds model.Bounds) float64 {
	latMid := (bounds.MinLat + bounds.MaxLat) / 2 * math.Pi / 180
	dLat := bounds.MaxLat - bounds.MinLat
	dLon := bounds.MaxLon - bounds.MinLon

	// Degree-to-meter coefficients at the mid latitude.
	kx := 111132.92 - 559.82*math.Cos(2*latMid)
	ky := 111412.84 * math.Cos(latMid)

	return math.Abs(dLat*kx*dLon*ky) / 1000000 // km²
}

// haversine returns the great-circle distance between two points in meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// closestPointOnSegment projects p onto segment ab in the planar
// coordinate space, clamped to the segment ends.
func closestPointOnSegment(p, a, b orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	if dx == 0 && dy == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// distanceToRing is the minimum distance in meters from p to any edge of
// the ring. The nearest point is found planar (edges are short), the
// distance itself is measured great-circle.
func distanceToRing(p orb.Point, ring orb.Ring) float64 {
	min := math.MaxFloat64
	for i := 0; i+1 < len(ring); i++ {
		c := closestPointOnSegment(p, ring[i], ring[i+1])
		if d := haversine(p[1], p[0], c[1], c[0]); d < min {
			min = d
		}
	}
	return min
}
