package model

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Grid is a single-band raster over a geographic bounding box. Values is
// row-major with row 0 at MinLat. A pixel with Valid=false is masked;
// masking is the only way to express "no value", never a sentinel number.
type Grid struct {
	Bounds Bounds    `json:"bounds"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Values []float64 `json:"values"`
	Valid  []bool    `json:"valid"`
}

func NewGrid(b Bounds, width, height int) *Grid {
	return &Grid{
		Bounds: b,
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
		Valid:  make([]bool, width*height),
	}
}

func (g *Grid) Index(x, y int) int { return y*g.Width + x }

// At returns the pixel value and whether it is unmasked.
func (g *Grid) At(x, y int) (float64, bool) {
	i := g.Index(x, y)
	return g.Values[i], g.Valid[i]
}

func (g *Grid) Set(x, y int, v float64) {
	i := g.Index(x, y)
	g.Values[i] = v
	g.Valid[i] = true
}

func (g *Grid) Mask(x, y int) {
	g.Valid[g.Index(x, y)] = false
}

func (g *Grid) SameShape(o *Grid) bool {
	return o != nil && g.Width == o.Width && g.Height == o.Height
}

// CellCenter returns the geographic center of pixel (x, y).
func (g *Grid) CellCenter(x, y int) (lat, lon float64) {
	dLat := (g.Bounds.MaxLat - g.Bounds.MinLat) / float64(g.Height)
	dLon := (g.Bounds.MaxLon - g.Bounds.MinLon) / float64(g.Width)
	lat = g.Bounds.MinLat + (float64(y)+0.5)*dLat
	lon = g.Bounds.MinLon + (float64(x)+0.5)*dLon
	return lat, lon
}

// CellBounds returns the geographic extent of pixel (x, y), used for
// per-pixel area estimates.
func (g *Grid) CellBounds(x, y int) Bounds {
	dLat := (g.Bounds.MaxLat - g.Bounds.MinLat) / float64(g.Height)
	dLon := (g.Bounds.MaxLon - g.Bounds.MinLon) / float64(g.Width)
	return Bounds{
		MinLat: g.Bounds.MinLat + float64(y)*dLat,
		MinLon: g.Bounds.MinLon + float64(x)*dLon,
		MaxLat: g.Bounds.MinLat + float64(y+1)*dLat,
		MaxLon: g.Bounds.MinLon + float64(x+1)*dLon,
	}
}

func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Bounds, g.Width, g.Height)
	copy(out.Values, g.Values)
	copy(out.Valid, g.Valid)
	return out
}

// ClipTo masks every pixel whose center falls outside the polygon.
func (g *Grid) ClipTo(p orb.Polygon) *Grid {
	out := g.Clone()
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			lat, lon := g.CellCenter(x, y)
			if !planar.PolygonContains(p, orb.Point{lon, lat}) {
				out.Valid[out.Index(x, y)] = false
			}
		}
	}
	return out
}

// UnmaskedValues collects the values of every unmasked pixel.
func (g *Grid) UnmaskedValues() []float64 {
	out := make([]float64, 0, len(g.Values))
	for i, ok := range g.Valid {
		if ok {
			out = append(out, g.Values[i])
		}
	}
	return out
}

// RasterItem is one acquisition: a timestamp and its single-band raster.
type RasterItem struct {
	Timestamp time.Time `json:"timestamp"`
	Grid      *Grid     `json:"grid"`
}

// RasterStack is an ordered sequence of acquisitions sharing one CRS and
// nominal resolution. Immutable once returned by the imagery source.
type RasterStack struct {
	Items []RasterItem
}

func (s *RasterStack) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

func (s *RasterStack) Timestamps() []time.Time {
	if s == nil {
		return nil
	}
	out := make([]time.Time, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Timestamp
	}
	return out
}

// ClosestTo returns the acquisition nearest to t, provided it falls within
// the given window on either side.
func (s *RasterStack) ClosestTo(t time.Time, within time.Duration) (RasterItem, bool) {
	if s.Count() == 0 {
		return RasterItem{}, false
	}
	best := -1
	var bestDiff time.Duration
	for i, it := range s.Items {
		diff := it.Timestamp.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	if bestDiff > within {
		return RasterItem{}, false
	}
	return s.Items[best], true
}

// StatsSummary is the per-pixel reduction of a raster stack. If Count is
// zero the summary is empty and Mean/StdDev are nil; consumers must refuse
// to score an empty summary.
type StatsSummary struct {
	Mean       *Grid
	StdDev     *Grid
	Count      int
	Timestamps []time.Time
}

func (s StatsSummary) Empty() bool { return s.Count == 0 }
