package core

import (
	"math"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// Pixel-wise grid arithmetic. Every operation propagates masks: an output
// pixel is masked whenever any input pixel is masked, and division masks
// zero denominators instead of producing infinities.

func subGrids(a, b *model.Grid) (*model.Grid, error) {
	if !a.SameShape(b) {
		return nil, model.Errf(model.FailureDegenerateStatistics,
			"raster shapes differ: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	out := model.NewGrid(a.Bounds, a.Width, a.Height)
	for i := range a.Values {
		if a.Valid[i] && b.Valid[i] {
			out.Values[i] = a.Values[i] - b.Values[i]
			out.Valid[i] = true
		}
	}
	return out, nil
}

func addGrids(a, b *model.Grid) (*model.Grid, error) {
	if !a.SameShape(b) {
		return nil, model.Errf(model.FailureDegenerateStatistics,
			"raster shapes differ: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	out := model.NewGrid(a.Bounds, a.Width, a.Height)
	for i := range a.Values {
		if a.Valid[i] && b.Valid[i] {
			out.Values[i] = a.Values[i] + b.Values[i]
			out.Valid[i] = true
		}
	}
	return out, nil
}

// divGrids masks pixels where the denominator is masked or zero.
func divGrids(a, b *model.Grid) (*model.Grid, error) {
	if !a.SameShape(b) {
		return nil, model.Errf(model.FailureDegenerateStatistics,
			"raster shapes differ: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	out := model.NewGrid(a.Bounds, a.Width, a.Height)
	for i := range a.Values {
		if a.Valid[i] && b.Valid[i] && b.Values[i] != 0 {
			out.Values[i] = a.Values[i] / b.Values[i]
			out.Valid[i] = true
		}
	}
	return out, nil
}

func absGrid(a *model.Grid) *model.Grid {
	out := a.Clone()
	for i := range out.Values {
		if out.Valid[i] {
			out.Values[i] = math.Abs(out.Values[i])
		}
	}
	return out
}

func scaleGrid(a *model.Grid, factor float64) *model.Grid {
	out := a.Clone()
	for i := range out.Values {
		if out.Valid[i] {
			out.Values[i] = out.Values[i] * factor
		}
	}
	return out
}

// normalizedDifference computes ((b1+b2)-(b3+b4))/((b1+b2)+(b3+b4)),
// the band-sum ratio behind the burnt-area index.
func normalizedDifference(b1, b2, b3, b4 *model.Grid) (*model.Grid, error) {
	top, err := addGrids(b1, b2)
	if err != nil {
		return nil, err
	}
	bottom, err := addGrids(b3, b4)
	if err != nil {
		return nil, err
	}
	num, err := subGrids(top, bottom)
	if err != nil {
		return nil, err
	}
	den, err := addGrids(top, bottom)
	if err != nil {
		return nil, err
	}
	return divGrids(num, den)
}
