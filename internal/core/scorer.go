package core

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// ChangeScorer turns before/after statistics into a per-pixel significance
// score. Intent selects the sign policy: construction keeps the signed
// score (positive excursions only), everything else scores abs(score).
type ChangeScorer struct {
	Intent model.DetectionIntent
}

// SingleSample scores one after-acquisition against the before-period
// statistics: (after − mean) / stdDev. Pixels where stdDev is masked or
// zero come out masked, never infinite.
func (s ChangeScorer) SingleSample(after *model.Grid, before model.StatsSummary) (*model.Grid, error) {
	if before.Empty() {
		return nil, model.Errf(model.FailureEmptyInput,
			"no imagery available for the before period, cannot score")
	}
	if before.Count < 2 {
		return nil, model.Errf(model.FailureDegenerateStatistics,
			"before period has %d image(s), at least 2 are needed for a deviation estimate", before.Count)
	}

	diff, err := subGrids(after, before.Mean)
	if err != nil {
		return nil, err
	}
	score, err := divGrids(diff, before.StdDev)
	if err != nil {
		return nil, err
	}
	return s.applySign(score), nil
}

// PooledTwoSample scores two period summaries with a pooled-variance
// two-sample t statistic.
func (s ChangeScorer) PooledTwoSample(before, after model.StatsSummary) (*model.Grid, error) {
	if before.Empty() || after.Empty() {
		return nil, model.Errf(model.FailureEmptyInput,
			"no imagery available for one of the periods, cannot score")
	}
	n1, n2 := before.Count, after.Count
	if n1+n2 < 3 {
		return nil, model.Errf(model.FailureDegenerateStatistics,
			"too few images for a pooled test: %d before, %d after", n1, n2)
	}

	diff, err := subGrids(after.Mean, before.Mean)
	if err != nil {
		return nil, err
	}
	se, err := pooledStandardError(before.StdDev, after.StdDev, n1, n2)
	if err != nil {
		return nil, err
	}
	score, err := divGrids(diff, se)
	if err != nil {
		return nil, err
	}
	return s.applySign(score), nil
}

// pooledStandardError computes s_p·sqrt(1/n1 + 1/n2) with
// s_p² = [(n1−1)σ1² + (n2−1)σ2²] / (n1+n2−2), pixel-wise. A period with a
// single image contributes zero weight, so its undefined variance drops
// out and the pooled variance reduces to the other period's variance.
// This is a documented approximation, not an exact two-sample test.
func pooledStandardError(sd1, sd2 *model.Grid, n1, n2 int) (*model.Grid, error) {
	if !sd1.SameShape(sd2) {
		return nil, model.Errf(model.FailureDegenerateStatistics,
			"deviation rasters differ in shape")
	}
	out := model.NewGrid(sd1.Bounds, sd1.Width, sd1.Height)
	w1 := float64(n1 - 1)
	w2 := float64(n2 - 1)
	df := float64(n1 + n2 - 2)
	scale := math.Sqrt(1/float64(n1) + 1/float64(n2))
	for i := range out.Values {
		if n1 >= 2 && !sd1.Valid[i] {
			continue
		}
		if n2 >= 2 && !sd2.Valid[i] {
			continue
		}
		var v1, v2 float64
		if n1 >= 2 {
			v1 = sd1.Values[i] * sd1.Values[i]
		}
		if n2 >= 2 {
			v2 = sd2.Values[i] * sd2.Values[i]
		}
		sp := math.Sqrt((w1*v1 + w2*v2) / df)
		if se := sp * scale; se > 0 {
			out.Values[i] = se
			out.Valid[i] = true
		}
	}
	return out, nil
}

func (s ChangeScorer) applySign(score *model.Grid) *model.Grid {
	if s.Intent.OneSided() {
		return score
	}
	return absGrid(score)
}

// PooledPValue is the two-sided p-value of a pooled t score with
// n1+n2−2 degrees of freedom.
func PooledPValue(score float64, n1, n2 int) float64 {
	df := float64(n1 + n2 - 2)
	if df <= 0 {
		return 1
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.CDF(-math.Abs(score))
}

// BurnIndexDifference computes a normalized burn index per period from
// four band composites and returns post − pre. The index is
// ((b1+b2)-(b3+b4))/((b1+b2)+(b3+b4)) on each period's mean composite.
func BurnIndexDifference(pre, post [4]*model.Grid) (*model.Grid, error) {
	preIdx, err := normalizedDifference(pre[0], pre[1], pre[2], pre[3])
	if err != nil {
		return nil, err
	}
	postIdx, err := normalizedDifference(post[0], post[1], post[2], post[3])
	if err != nil {
		return nil, err
	}
	return subGrids(postIdx, preIdx)
}

// BurntMask thresholds the index difference at cutoff: burnt pixels get 1,
// the rest 0, masked pixels stay masked.
func BurntMask(indexDiff *model.Grid, cutoff float64) *model.Grid {
	out := indexDiff.Clone()
	for i := range out.Values {
		if !out.Valid[i] {
			continue
		}
		if out.Values[i] > cutoff {
			out.Values[i] = 1
		} else {
			out.Values[i] = 0
		}
	}
	return out
}
