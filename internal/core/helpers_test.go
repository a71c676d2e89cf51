package core_test

import (
	"time"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

var testBounds = model.Bounds{MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1}

// uniformGrid builds a fully valid grid with one value everywhere.
func uniformGrid(b model.Bounds, w, h int, value float64) *model.Grid {
	g := model.NewGrid(b, w, h)
	for i := range g.Values {
		g.Values[i] = value
		g.Valid[i] = true
	}
	return g
}

// valuesGrid builds a grid from explicit row-major values, all valid.
func valuesGrid(b model.Bounds, w, h int, values []float64) *model.Grid {
	g := model.NewGrid(b, w, h)
	copy(g.Values, values)
	for i := range g.Valid {
		g.Valid[i] = true
	}
	return g
}

// stackOf wraps grids into a stack with one-day-apart timestamps.
func stackOf(grids ...*model.Grid) *model.RasterStack {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &model.RasterStack{}
	for i, g := range grids {
		s.Items = append(s.Items, model.RasterItem{
			Timestamp: base.AddDate(0, 0, i),
			Grid:      g,
		})
	}
	return s
}

// summaryOf is shorthand for building a stats summary from constant grids.
func summaryOf(b model.Bounds, w, h int, mean, stdDev float64, count int) model.StatsSummary {
	return model.StatsSummary{
		Mean:   uniformGrid(b, w, h, mean),
		StdDev: uniformGrid(b, w, h, stdDev),
		Count:  count,
	}
}
