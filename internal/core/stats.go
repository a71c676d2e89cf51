package core

import (
	"math"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// StatsEngine reduces a raster stack to per-pixel mean and sample standard
// deviation plus the scalar image count.
type StatsEngine struct{}

// Compute reduces the stack pixel-wise. At each pixel, masked samples are
// ignored; the mean is masked only where every input is masked, and the
// standard deviation (n−1 denominator) is masked wherever fewer than two
// unmasked samples exist. A zero-length stack yields an empty summary,
// which callers must refuse to score.
func (StatsEngine) Compute(stack *model.RasterStack) (model.StatsSummary, error) {
	if stack.Count() == 0 {
		return model.StatsSummary{Count: 0}, nil
	}

	first := stack.Items[0].Grid
	for _, it := range stack.Items[1:] {
		if !first.SameShape(it.Grid) {
			return model.StatsSummary{}, model.Errf(model.FailureDegenerateStatistics,
				"raster stack mixes shapes: %dx%d vs %dx%d",
				first.Width, first.Height, it.Grid.Width, it.Grid.Height)
		}
	}

	size := first.Width * first.Height
	sums := make([]float64, size)
	counts := make([]int, size)

	for _, it := range stack.Items {
		g := it.Grid
		for i := range g.Values {
			if g.Valid[i] {
				sums[i] += g.Values[i]
				counts[i]++
			}
		}
	}

	mean := model.NewGrid(first.Bounds, first.Width, first.Height)
	for i := 0; i < size; i++ {
		if counts[i] > 0 {
			mean.Values[i] = sums[i] / float64(counts[i])
			mean.Valid[i] = true
		}
	}

	// Second pass for the sample variance around the per-pixel mean.
	sqDiffs := make([]float64, size)
	for _, it := range stack.Items {
		g := it.Grid
		for i := range g.Values {
			if g.Valid[i] {
				d := g.Values[i] - mean.Values[i]
				sqDiffs[i] += d * d
			}
		}
	}

	stdDev := model.NewGrid(first.Bounds, first.Width, first.Height)
	for i := 0; i < size; i++ {
		if counts[i] >= 2 {
			stdDev.Values[i] = math.Sqrt(sqDiffs[i] / float64(counts[i]-1))
			stdDev.Valid[i] = true
		}
	}

	return model.StatsSummary{
		Mean:       mean,
		StdDev:     stdDev,
		Count:      stack.Count(),
		Timestamps: stack.Timestamps(),
	}, nil
}
