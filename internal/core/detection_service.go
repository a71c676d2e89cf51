package core

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/repository"
)

// Options tunes a DetectionService. Zero values fall back to the defaults
// below.
type Options struct {
	MaxPixels             int
	Cutoffs               TierCutoffs
	ToleranceMeters       float64
	BurnCutoff            float64
	SingleImageWindowDays int
	BurnBands             [4]string
	// Seed fixes the color palette rng; 0 seeds from the clock.
	Seed int64
}

const (
	defaultMaxPixels       = 10_000_000
	defaultBurnCutoff      = 0.1
	defaultSingleImageDays = 15
	defaultToleranceMeters = 1.0 // absorbs coordinate rounding
)

// DetectionService orchestrates one detection run: imagery stacks in,
// statistics, scoring, thresholding and vector aggregation out.
type DetectionService struct {
	imagery  repository.ImageryRepository
	features repository.FeatureRepository
	recorder repository.RunRecorder
	saveRuns bool
	opts     Options
}

func NewDetectionService(
	imagery repository.ImageryRepository,
	features repository.FeatureRepository,
	recorder repository.RunRecorder,
	saveRuns bool,
	opts Options,
) *DetectionService {
	if opts.MaxPixels == 0 {
		opts.MaxPixels = defaultMaxPixels
	}
	if opts.Cutoffs == nil {
		opts.Cutoffs = DefaultTierCutoffs()
	}
	if opts.ToleranceMeters == 0 {
		opts.ToleranceMeters = defaultToleranceMeters
	}
	if opts.BurnCutoff == 0 {
		opts.BurnCutoff = defaultBurnCutoff
	}
	if opts.SingleImageWindowDays == 0 {
		opts.SingleImageWindowDays = defaultSingleImageDays
	}
	if opts.BurnBands[0] == "" {
		// BADI-style band pairs on Sentinel-2 naming.
		opts.BurnBands = [4]string{"B6", "B7", "B8A", "B12"}
	}
	return &DetectionService{
		imagery:  imagery,
		features: features,
		recorder: recorder,
		saveRuns: saveRuns,
		opts:     opts,
	}
}

// RunChangeDetection compares the two period stacks with the pooled
// two-sample t statistic and attributes the result to buildings and points.
func (s *DetectionService) RunChangeDetection(ctx context.Context, req model.AnalysisRequest) (*model.DetectionResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	base := repository.RasterQuery{CollectionID: req.CollectionID, Filters: req.Filters}.FilterBounds(req.AOI)
	beforeNode := NewStackStats(base.FilterDate(req.BeforeWindow()))
	afterNode := NewStackStats(base.FilterDate(req.AfterWindow()))

	score, err := ClipAOI(PooledScore(beforeNode, afterNode, req.Intent), req.AOI).
		Materialize(ctx, s.imagery)
	if err != nil {
		return nil, err
	}

	// Stats nodes are already materialized and cached at this point.
	before, _ := beforeNode.Materialize(ctx, s.imagery)
	after, _ := afterNode.Materialize(ctx, s.imagery)

	return s.finishRun(ctx, req, score, before, after, "change")
}

// RunSingleImageChangeDetection collapses the after period to the single
// acquisition closest to the after date, within the configured window, and
// scores it against the before-period statistics.
func (s *DetectionService) RunSingleImageChangeDetection(ctx context.Context, req model.AnalysisRequest) (*model.DetectionResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	base := repository.RasterQuery{CollectionID: req.CollectionID, Filters: req.Filters}.FilterBounds(req.AOI)
	beforeNode := NewStackStats(base.FilterDate(req.BeforeWindow()))

	window := time.Duration(s.opts.SingleImageWindowDays) * 24 * time.Hour
	afterQuery := base.FilterDate(model.DateRange{
		Start: req.AfterDate.Add(-window),
		End:   req.AfterDate.Add(window),
	})
	afterStack, err := s.imagery.QueryRasters(ctx, afterQuery)
	if err != nil {
		return nil, err
	}
	afterItem, ok := afterStack.ClosestTo(req.AfterDate, window)
	if !ok {
		return nil, model.Errf(model.FailureEmptyInput,
			"no acquisition within %d days of the after date", s.opts.SingleImageWindowDays)
	}

	score, err := ClipAOI(SingleSampleScore(Const(afterItem.Grid), beforeNode, req.Intent), req.AOI).
		Materialize(ctx, s.imagery)
	if err != nil {
		return nil, err
	}

	before, _ := beforeNode.Materialize(ctx, s.imagery)
	after := model.StatsSummary{Count: 1, Timestamps: []time.Time{afterItem.Timestamp}}

	return s.finishRun(ctx, req, score, before, after, "single-image")
}

// RunBurntAreaDetection bypasses the t-test path: it differences a
// normalized burn index between the pre- and post-fire composites and
// thresholds the difference into a boolean burnt mask.
func (s *DetectionService) RunBurntAreaDetection(
	ctx context.Context,
	aoi model.AOI,
	collectionID string,
	preFire, postFire model.DateRange,
) (*model.BurntAreaResult, error) {
	if err := aoi.Validate(); err != nil {
		return nil, err
	}
	if !preFire.Valid() || !postFire.Valid() {
		return nil, model.Errf(model.FailureEmptyInput, "pre- and post-fire date ranges are required")
	}

	base := repository.RasterQuery{CollectionID: collectionID}.FilterBounds(aoi)

	periodIndex := func(r model.DateRange) (Expr, *StatsNode) {
		q := base.FilterDate(r)
		nodes := make([]*StatsNode, 4)
		exprs := make([]Expr, 4)
		for i, band := range s.opts.BurnBands {
			nodes[i] = NewStackStats(q.Select(band))
			exprs[i] = Mean(nodes[i])
		}
		return NormalizedDiff(exprs[0], exprs[1], exprs[2], exprs[3]), nodes[0]
	}

	preExpr, preNode := periodIndex(preFire)
	postExpr, postNode := periodIndex(postFire)

	indexDiff, err := ClipAOI(Sub(postExpr, preExpr), aoi).Materialize(ctx, s.imagery)
	if err != nil {
		return nil, err
	}

	mask := BurntMask(indexDiff, s.opts.BurnCutoff)

	var burnt int
	var areaKm2 float64
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if v, ok := mask.At(x, y); ok && v == 1 {
				burnt++
				areaKm2 += calculateArea(mask.CellBounds(x, y))
			}
		}
	}

	pre, _ := preNode.Materialize(ctx, s.imagery)
	post, _ := postNode.Materialize(ctx, s.imagery)

	result := &model.BurntAreaResult{
		RunID:           uuid.NewString(),
		BurntMask:       mask,
		BurntPixelCount: burnt,
		BurntAreaKm2:    areaKm2,
		PreImageCount:   pre.Count,
		PostImageCount:  post.Count,
		PreDates:        pre.Timestamps,
		PostDates:       post.Timestamps,
	}

	s.recordRun(ctx, model.RunRecord{
		ID:           result.RunID,
		Kind:         "burnt-area",
		BBox:         aoi.Bounds().String(),
		Threshold:    s.opts.BurnCutoff,
		BeforeImages: pre.Count,
		AfterImages:  post.Count,
	})

	return result, nil
}

// finishRun is the shared tail of the two t-test modes: threshold
// evaluation and vector aggregation over the materialized score raster.
// The two consumers are independent, so feature retrieval runs concurrently
// with the percentile reduction.
func (s *DetectionService) finishRun(
	ctx context.Context,
	req model.AnalysisRequest,
	score *model.Grid,
	before, after model.StatsSummary,
	kind string,
) (*model.DetectionResult, error) {
	evaluator := ThresholdEvaluator{MaxPixels: s.opts.MaxPixels, OnAbs: req.PercentileOnAbs}

	type statsOut struct {
		stats model.ScoreStats
		err   error
	}
	type featsOut struct {
		buildings model.FeatureCollection
		points    model.FeatureCollection
		err       error
	}

	statsCh := make(chan statsOut, 1)
	featsCh := make(chan featsOut, 1)

	go func() {
		st, err := evaluator.Evaluate(score, req.Threshold)
		statsCh <- statsOut{stats: st, err: err}
	}()

	go func() {
		if req.IgnoreBuildings {
			featsCh <- featsOut{}
			return
		}
		buildings, err := s.features.GetBuildingFootprints(ctx, req.AOI)
		if err != nil {
			featsCh <- featsOut{err: err}
			return
		}
		points, err := s.features.GetPointsOfInterest(ctx, req.AOI)
		featsCh <- featsOut{buildings: buildings, points: points, err: err}
	}()

	st := <-statsCh
	ft := <-featsCh

	if st.err != nil {
		return nil, st.err
	}
	st.stats.PValue = PooledPValue(st.stats.P90, before.Count, after.Count)

	result := &model.DetectionResult{
		RunID:            uuid.NewString(),
		ScoreStats:       st.stats,
		BeforeImageCount: before.Count,
		AfterImageCount:  after.Count,
		BeforeDates:      before.Timestamps,
		AfterDates:       after.Timestamps,
	}

	var tierCounts map[model.ChangeTier]int
	if !req.IgnoreBuildings {
		if ft.err != nil {
			return nil, ft.err
		}
		aggregator := NewVectorAggregator(s.opts.Cutoffs, s.opts.ToleranceMeters)
		agg, err := aggregator.Aggregate(score, ft.buildings, ft.points, st.stats.P90)
		if err != nil {
			return nil, err
		}
		result.TieredBuildings = agg.ByTier
		result.CategorizedPoints = agg.Categories
		result.AffectedPoints = agg.Affected

		// One color map per run, filled as categories are discovered.
		seed := s.opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		colors := make(model.CategoryColorMap, len(agg.Categories))
		for label := range agg.Categories {
			ColorFor(label, colors, rng)
		}
		result.Colors = colors

		tierCounts = make(map[model.ChangeTier]int, len(agg.ByTier))
		for tier, list := range agg.ByTier {
			tierCounts[tier] = len(list)
		}
	}

	rec := model.RunRecord{
		ID:             result.RunID,
		Kind:           kind,
		BBox:           req.AOI.Bounds().String(),
		Intent:         string(req.Intent),
		Threshold:      req.Threshold,
		P90:            st.stats.P90,
		P95:            st.stats.P95,
		P99:            st.stats.P99,
		PValue:         st.stats.PValue,
		Recommendation: st.stats.Recommendation,
		BeforeImages:   before.Count,
		AfterImages:    after.Count,
	}
	if tierCounts != nil {
		if data, err := json.Marshal(tierCounts); err == nil {
			rec.TierCounts = data
		}
	}
	s.recordRun(ctx, rec)

	return result, nil
}

func (s *DetectionService) recordRun(ctx context.Context, rec model.RunRecord) {
	if !s.saveRuns || s.recorder == nil {
		return
	}
	if err := s.recorder.SaveRun(ctx, rec); err != nil {
		log.Printf("Warning: failed to record analysis run %s: %v", rec.ID, err)
	}
}

func validateRequest(req model.AnalysisRequest) error {
	if err := req.AOI.Validate(); err != nil {
		return err
	}
	if req.BeforeDate.IsZero() || req.AfterDate.IsZero() {
		return model.Errf(model.FailureEmptyInput, "before and after dates are required")
	}
	if req.PeriodMonths <= 0 {
		return model.Errf(model.FailureEmptyInput, "period length must be at least one month")
	}
	if req.AfterDate.Before(req.BeforeDate) {
		return model.Errf(model.FailureEmptyInput, "after date must not precede before date")
	}
	return nil
}
