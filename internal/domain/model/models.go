package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

func (b Bounds) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// ParseBounds parses a bbox string in format "lat1,lon1,lat2,lon2".
func ParseBounds(bbox string) (Bounds, error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("bbox must have 4 components, got %d", len(parts))
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("invalid bbox component %d: %w", i, err)
		}
		vals[i] = v
	}

	b := Bounds{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}

	if b.MinLat < -90 || b.MinLat > 90 || b.MaxLat < -90 || b.MaxLat > 90 {
		return Bounds{}, fmt.Errorf("latitude out of range [-90, 90]")
	}
	if b.MinLon < -180 || b.MinLon > 180 || b.MaxLon < -180 || b.MaxLon > 180 {
		return Bounds{}, fmt.Errorf("longitude out of range [-180, 180]")
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return Bounds{}, fmt.Errorf("minLat must be <= maxLat and minLon must be <= maxLon")
	}

	return b, nil
}

// DetectionIntent selects the sign policy of the change score: construction
// keeps the signed score (one-sided), all other intents take abs(score).
type DetectionIntent string

const (
	IntentConstruction DetectionIntent = "construction"
	IntentChange       DetectionIntent = "change"
	IntentDamage       DetectionIntent = "damage"
)

func (i DetectionIntent) OneSided() bool { return i == IntentConstruction }

type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// ImageryFilters narrows a catalog query the way the hosted archive expects:
// acquisition mode, orbit direction and optionally a single relative orbit.
type ImageryFilters struct {
	Mode          string
	OrbitPass     string
	RelativeOrbit *int
	MaxCloudPct   *float64
	Band          string
	Dates         DateRange
}

// AnalysisRequest carries every parameter of one detection run. Core code
// reads only this struct, never ambient state.
type AnalysisRequest struct {
	AOI             AOI
	BeforeDate      time.Time
	AfterDate       time.Time
	PeriodMonths    int
	Intent          DetectionIntent
	Threshold       float64
	IgnoreBuildings bool
	CollectionID    string
	Filters         ImageryFilters
	// PercentileOnAbs controls whether two-sided runs compute percentiles on
	// abs(score) or on the raw signed score. The upstream logic is ambiguous
	// here, so it is an explicit knob rather than a fixed choice.
	PercentileOnAbs bool
}

// BeforeWindow is the PeriodMonths-long window ending at BeforeDate.
func (r AnalysisRequest) BeforeWindow() DateRange {
	return DateRange{Start: r.BeforeDate.AddDate(0, -r.PeriodMonths, 0), End: r.BeforeDate}
}

// AfterWindow is the PeriodMonths-long window ending at AfterDate.
func (r AnalysisRequest) AfterWindow() DateRange {
	return DateRange{Start: r.AfterDate.AddDate(0, -r.PeriodMonths, 0), End: r.AfterDate}
}

type ChangeTier string

const (
	TierLow      ChangeTier = "low"
	TierMedium   ChangeTier = "medium"
	TierHigh     ChangeTier = "high"
	TierVeryHigh ChangeTier = "very-high"
	TierExtreme  ChangeTier = "extreme"
)

// CategoryColorMap maps a category label to a 6-hex-digit display color.
// Populated once per run while grouping; not persisted across runs.
type CategoryColorMap map[string]string

type ScoreStats struct {
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	// PValue is the two-sided p-value of the p90 score under the pooled
	// test's degrees of freedom.
	PValue         float64 `json:"p_value"`
	Recommendation string  `json:"recommendation"`
	SampleCount    int     `json:"sample_count"`
}

// TieredBuilding is a building footprint with its mean change score and
// every tier whose cutoff the score met. Tiers are cumulative.
type TieredBuilding struct {
	Feature   Feature      `json:"feature"`
	MeanScore float64      `json:"mean_score"`
	Tiers     []ChangeTier `json:"tiers"`
}

type DetectionResult struct {
	RunID             string                          `json:"run_id"`
	ScoreStats        ScoreStats                      `json:"score_stats"`
	BeforeImageCount  int                             `json:"before_image_count"`
	AfterImageCount   int                             `json:"after_image_count"`
	BeforeDates       []time.Time                     `json:"before_dates"`
	AfterDates        []time.Time                     `json:"after_dates"`
	TieredBuildings   map[ChangeTier][]TieredBuilding `json:"tiered_buildings,omitempty"`
	CategorizedPoints map[string]int                  `json:"categorized_points,omitempty"`
	AffectedPoints    []Feature                       `json:"affected_points,omitempty"`
	Colors            CategoryColorMap                `json:"colors,omitempty"`
}

type BurntAreaResult struct {
	RunID           string      `json:"run_id"`
	BurntMask       *Grid       `json:"-"`
	BurntPixelCount int         `json:"burnt_pixel_count"`
	BurntAreaKm2    float64     `json:"burnt_area_km2"`
	PreImageCount   int         `json:"pre_image_count"`
	PostImageCount  int         `json:"post_image_count"`
	PreDates        []time.Time `json:"pre_dates"`
	PostDates       []time.Time `json:"post_dates"`
}

// RunRecord is the persisted trace of one analysis run.
type RunRecord struct {
	ID             string    `db:"id"`
	Kind           string    `db:"kind"`
	BBox           string    `db:"bbox"`
	Intent         string    `db:"intent"`
	Threshold      float64   `db:"threshold"`
	P90            float64   `db:"p90"`
	P95            float64   `db:"p95"`
	P99            float64   `db:"p99"`
	PValue         float64   `db:"p_value"`
	Recommendation string    `db:"recommendation"`
	BeforeImages   int       `db:"before_images"`
	AfterImages    int       `db:"after_images"`
	TierCounts     []byte    `db:"tier_counts"`
	RecordedAt     time.Time `db:"recorded_at"`
}
