package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolenyo2099/change-detection-tool/internal/core"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

func scoreRamp() *model.Grid {
	// 100 pixels with values 1..100.
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	return valuesGrid(testBounds, 10, 10, values)
}

func TestEvaluateThreshold_Percentiles(t *testing.T) {
	evaluator := core.ThresholdEvaluator{MaxPixels: 1000}

	stats, err := evaluator.Evaluate(scoreRamp(), 50)
	require.NoError(t, err)

	assert.Equal(t, 100, stats.SampleCount)
	assert.Greater(t, stats.P95, stats.P90)
	assert.Greater(t, stats.P99, stats.P95)
	assert.Equal(t, core.RecommendReasonable, stats.Recommendation)
}

// Recommendation is monotonic in the threshold, and both percentile
// boundaries belong to the "reasonable" branch.
func TestEvaluateThreshold_RecommendationBoundaries(t *testing.T) {
	evaluator := core.ThresholdEvaluator{MaxPixels: 1000}
	grid := scoreRamp()

	base, err := evaluator.Evaluate(grid, 0)
	require.NoError(t, err)

	cases := []struct {
		name      string
		threshold float64
		want      string
	}{
		{"above p99", base.P99 + 0.001, core.RecommendTooHigh},
		{"well above p99", base.P99 * 10, core.RecommendTooHigh},
		{"exactly p99", base.P99, core.RecommendReasonable},
		{"between", (base.P90 + base.P99) / 2, core.RecommendReasonable},
		{"exactly p90", base.P90, core.RecommendReasonable},
		{"below p90", base.P90 - 0.001, core.RecommendTooLow},
		{"far below p90", -1000, core.RecommendTooLow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats, err := evaluator.Evaluate(grid, tc.threshold)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stats.Recommendation)
		})
	}
}

func TestEvaluateThreshold_PixelBudget(t *testing.T) {
	evaluator := core.ThresholdEvaluator{MaxPixels: 10}

	_, err := evaluator.Evaluate(scoreRamp(), 5)
	require.Error(t, err)
	assert.Equal(t, model.FailureBackendLimit, model.KindOf(err))
	assert.Contains(t, err.Error(), "shrink the area of interest")
}

func TestEvaluateThreshold_AllMasked(t *testing.T) {
	grid := model.NewGrid(testBounds, 10, 10) // everything masked

	evaluator := core.ThresholdEvaluator{MaxPixels: 1000}
	_, err := evaluator.Evaluate(grid, 5)
	require.Error(t, err)
	assert.Equal(t, model.FailureDegenerateStatistics, model.KindOf(err))
}

func TestEvaluateThreshold_OnAbs(t *testing.T) {
	// Signed scores symmetric around zero: raw percentiles sit near zero,
	// abs percentiles near the magnitude.
	values := make([]float64, 100)
	for i := range values {
		if i%2 == 0 {
			values[i] = float64(i)
		} else {
			values[i] = -float64(i)
		}
	}
	grid := valuesGrid(testBounds, 10, 10, values)

	raw, err := core.ThresholdEvaluator{MaxPixels: 1000}.Evaluate(grid, 0)
	require.NoError(t, err)
	abs, err := core.ThresholdEvaluator{MaxPixels: 1000, OnAbs: true}.Evaluate(grid, 0)
	require.NoError(t, err)

	assert.Greater(t, abs.P90, raw.P90)
}
