package core

import (
	"github.com/montanaflynn/stats"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// Recommendation texts returned by Evaluate. The interval [p90, p99] is
// closed: a threshold exactly at either percentile counts as reasonable.
const (
	RecommendTooHigh    = "too high, consider lowering toward p95/p99"
	RecommendTooLow     = "too low, consider raising toward p90/p95"
	RecommendReasonable = "within reasonable range"
)

// ThresholdEvaluator computes global score percentiles over the AOI and
// judges the caller's threshold against them. MaxPixels is the reduction
// budget: exceeding it fails loudly instead of silently subsampling.
type ThresholdEvaluator struct {
	MaxPixels int
	// OnAbs computes percentiles on abs(score) instead of the raw score.
	OnAbs bool
}

// Evaluate computes p90/p95/p99 over every unmasked pixel of the score
// raster and classifies the threshold.
func (e ThresholdEvaluator) Evaluate(score *model.Grid, threshold float64) (model.ScoreStats, error) {
	src := score
	if e.OnAbs {
		src = absGrid(score)
	}
	values := src.UnmaskedValues()

	if e.MaxPixels > 0 && len(values) > e.MaxPixels {
		return model.ScoreStats{}, model.Errf(model.FailureBackendLimit,
			"percentile reduction over %d pixels exceeds the budget of %d, shrink the area of interest",
			len(values), e.MaxPixels)
	}
	if len(values) == 0 {
		return model.ScoreStats{}, model.Errf(model.FailureDegenerateStatistics,
			"no unmasked score pixels inside the area of interest")
	}

	p90, err := stats.Percentile(values, 90)
	if err != nil {
		return model.ScoreStats{}, model.WrapErr(model.FailureDegenerateStatistics, err, "p90")
	}
	p95, err := stats.Percentile(values, 95)
	if err != nil {
		return model.ScoreStats{}, model.WrapErr(model.FailureDegenerateStatistics, err, "p95")
	}
	p99, err := stats.Percentile(values, 99)
	if err != nil {
		return model.ScoreStats{}, model.WrapErr(model.FailureDegenerateStatistics, err, "p99")
	}

	return model.ScoreStats{
		P90:            p90,
		P95:            p95,
		P99:            p99,
		Recommendation: recommend(threshold, p90, p99),
		SampleCount:    len(values),
	}, nil
}

func recommend(threshold, p90, p99 float64) string {
	switch {
	case threshold > p99:
		return RecommendTooHigh
	case threshold < p90:
		return RecommendTooLow
	default:
		return RecommendReasonable
	}
}
