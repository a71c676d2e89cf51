package core

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// TierCutoffs maps each reported tier to its fraction of the global p90.
// Tiers are cumulative thresholds: a building above the extreme cutoff is
// also in very-high and high.
type TierCutoffs map[model.ChangeTier]float64

func DefaultTierCutoffs() TierCutoffs {
	return TierCutoffs{
		model.TierHigh:     0.90,
		model.TierVeryHigh: 0.95,
		model.TierExtreme:  1.00,
	}
}

// AggregateResult is the vector-side view of one detection run.
type AggregateResult struct {
	Buildings  []model.TieredBuilding
	ByTier     map[model.ChangeTier][]model.TieredBuilding
	Changed    orb.MultiPolygon
	Affected   []model.Feature
	Categories map[string]int
}

// VectorAggregator reduces the score raster onto building footprints,
// buckets them into tiers, dissolves the changed footprints into one
// filter geometry and tallies the points it contains.
type VectorAggregator struct {
	Cutoffs TierCutoffs
	// Tolerance absorbs coordinate rounding when testing point containment,
	// in meters.
	Tolerance float64
	// CategoryKey is the attribute naming a point's category.
	CategoryKey string
}

func NewVectorAggregator(cutoffs TierCutoffs, tolerance float64) VectorAggregator {
	if cutoffs == nil {
		cutoffs = DefaultTierCutoffs()
	}
	return VectorAggregator{Cutoffs: cutoffs, Tolerance: tolerance, CategoryKey: "category"}
}

// Aggregate computes the per-building mean score, tiers the buildings
// against p90 and filters the point features by the dissolved changed
// geometry. Buildings with no unmasked overlap are excluded from every
// tier. Zero affected points is a valid outcome, not an error.
func (a VectorAggregator) Aggregate(
	score *model.Grid,
	buildings model.FeatureCollection,
	points model.FeatureCollection,
	p90 float64,
) (AggregateResult, error) {
	result := AggregateResult{
		ByTier:     make(map[model.ChangeTier][]model.TieredBuilding),
		Categories: make(map[string]int),
	}

	// Changed set is deduplicated by feature identity, not by re-summing.
	changedIDs := make(map[int64]struct{})
	var changedPolys []orb.Polygon

	for _, f := range buildings.Features {
		poly, ok := f.Polygon()
		if !ok {
			continue
		}
		mean, ok := meanOverPolygon(score, poly)
		if !ok {
			continue // no unmasked overlap, excluded from all tiers
		}

		tb := model.TieredBuilding{Feature: f, MeanScore: mean}
		for _, tier := range a.sortedTiers() {
			if mean > p90*a.Cutoffs[tier] {
				tb.Tiers = append(tb.Tiers, tier)
				result.ByTier[tier] = append(result.ByTier[tier], tb)
			}
		}
		if len(tb.Tiers) == 0 {
			continue
		}
		result.Buildings = append(result.Buildings, tb)
		if _, seen := changedIDs[f.ID]; !seen {
			changedIDs[f.ID] = struct{}{}
			changedPolys = append(changedPolys, poly)
		}
	}

	result.Changed = Dissolve(changedPolys)
	result.Affected = a.FilterContained(points, result.Changed)

	for _, p := range result.Affected {
		category, ok := p.StringAttr(a.CategoryKey)
		if !ok {
			category = "uncategorized"
		}
		result.Categories[category]++
	}

	return result, nil
}

// FilterContained keeps the points inside the dissolved geometry, with the
// configured tolerance. Filtering is idempotent: re-filtering the output
// against the same geometry returns the same set.
func (a VectorAggregator) FilterContained(points model.FeatureCollection, changed orb.MultiPolygon) []model.Feature {
	var affected []model.Feature
	for _, f := range points.Features {
		pt, ok := f.Point()
		if !ok {
			continue
		}
		if containsWithTolerance(changed, pt, a.Tolerance) {
			affected = append(affected, f)
		}
	}
	return affected
}

func (a VectorAggregator) sortedTiers() []model.ChangeTier {
	tiers := make([]model.ChangeTier, 0, len(a.Cutoffs))
	for t := range a.Cutoffs {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool { return a.Cutoffs[tiers[i]] < a.Cutoffs[tiers[j]] })
	return tiers
}

// meanOverPolygon averages the score pixels whose centers fall inside the
// polygon. ok is false when no unmasked pixel overlaps.
func meanOverPolygon(score *model.Grid, poly orb.Polygon) (float64, bool) {
	// Restrict the scan to the polygon's bounding box.
	bound := poly.Bound()
	var sum float64
	var n int
	for y := 0; y < score.Height; y++ {
		for x := 0; x < score.Width; x++ {
			lat, lon := score.CellCenter(x, y)
			p := orb.Point{lon, lat}
			if !bound.Contains(p) {
				continue
			}
			v, valid := score.At(x, y)
			if !valid {
				continue
			}
			if planar.PolygonContains(poly, p) {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Dissolve unions the changed footprints into one multi-part geometry.
// The result is used only as a containment filter, so member polygons are
// kept as-is rather than merged edge-by-edge: containment in the union is
// containment in any member.
func Dissolve(polys []orb.Polygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(polys))
	for _, p := range polys {
		out = append(out, p)
	}
	return out
}

func containsWithTolerance(mp orb.MultiPolygon, pt orb.Point, tolerance float64) bool {
	if planar.MultiPolygonContains(mp, pt) {
		return true
	}
	if tolerance <= 0 {
		return false
	}
	for _, poly := range mp {
		for _, ring := range poly {
			if distanceToRing(pt, ring) <= tolerance {
				return true
			}
		}
	}
	return false
}
