package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/kolenyo2099/change-detection-tool/internal/core"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/repository"
)

type Handler struct {
	service         *core.DetectionService
	recorder        repository.RunRecorder
	collection      string
	burntCollection string
	percentileOnAbs bool
}

func NewHandler(service *core.DetectionService, recorder repository.RunRecorder, collection, burntCollection string, percentileOnAbs bool) *Handler {
	return &Handler{
		service:         service,
		recorder:        recorder,
		collection:      collection,
		burntCollection: burntCollection,
		percentileOnAbs: percentileOnAbs,
	}
}

type DetectRequest struct {
	BBox            string      `json:"bbox"`
	AOI             [][]float64 `json:"aoi,omitempty"` // [lon,lat] ring, overrides bbox
	BeforeDate      string      `json:"before_date"`
	AfterDate       string      `json:"after_date"`
	PeriodMonths    int         `json:"period_months"`
	Intent          string      `json:"intent"`
	Threshold       float64     `json:"threshold"`
	IgnoreBuildings bool        `json:"ignore_buildings"`
	Mode            string      `json:"mode,omitempty"`
	OrbitPass       string      `json:"orbit_pass,omitempty"`
	RelativeOrbit   *int        `json:"relative_orbit,omitempty"`
}

type BurntAreaRequest struct {
	BBox      string      `json:"bbox"`
	AOI       [][]float64 `json:"aoi,omitempty"`
	PreStart  string      `json:"pre_start"`
	PreEnd    string      `json:"pre_end"`
	PostStart string      `json:"post_start"`
	PostEnd   string      `json:"post_end"`
}

// Detect runs the pooled two-sample change detection.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	h.detect(w, r, h.service.RunChangeDetection)
}

// DetectSingle runs change detection against the single acquisition
// closest to the after date.
func (h *Handler) DetectSingle(w http.ResponseWriter, r *http.Request) {
	h.detect(w, r, h.service.RunSingleImageChangeDetection)
}

func (h *Handler) detect(
	w http.ResponseWriter,
	r *http.Request,
	run func(ctx context.Context, req model.AnalysisRequest) (*model.DetectionResult, error),
) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	analysisReq, err := h.buildRequest(req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	result, err := run(r.Context(), analysisReq)
	if err != nil {
		writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// BurntArea runs the spectral-index burnt-area detection.
func (h *Handler) BurntArea(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BurntAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	aoi, err := parseAOI(req.BBox, req.AOI)
	if err != nil {
		writeFailure(w, err)
		return
	}

	pre, err := parseRange(req.PreStart, req.PreEnd)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid pre-fire range: %v", err), http.StatusBadRequest)
		return
	}
	post, err := parseRange(req.PostStart, req.PostEnd)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid post-fire range: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.service.RunBurntAreaDetection(r.Context(), aoi, h.burntCollection, pre, post)
	if err != nil {
		writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Runs lists recent analysis runs intersecting a bbox.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.recorder == nil {
		http.Error(w, "Run history is not enabled", http.StatusNotFound)
		return
	}

	bounds, err := model.ParseBounds(r.URL.Query().Get("bbox"))
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid bbox: %v", err), http.StatusBadRequest)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.recorder.RunsForArea(r.Context(), bounds, limit)
	if err != nil {
		log.Printf("Error querying run history: %v", err)
		http.Error(w, "Failed to query run history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

func (h *Handler) buildRequest(req DetectRequest) (model.AnalysisRequest, error) {
	aoi, err := parseAOI(req.BBox, req.AOI)
	if err != nil {
		return model.AnalysisRequest{}, err
	}

	beforeDate, err := time.Parse("2006-01-02", req.BeforeDate)
	if err != nil {
		return model.AnalysisRequest{}, model.Errf(model.FailureEmptyInput,
			"invalid before_date, use YYYY-MM-DD")
	}
	afterDate, err := time.Parse("2006-01-02", req.AfterDate)
	if err != nil {
		return model.AnalysisRequest{}, model.Errf(model.FailureEmptyInput,
			"invalid after_date, use YYYY-MM-DD")
	}

	intent := model.DetectionIntent(req.Intent)
	if intent == "" {
		intent = model.IntentChange
	}

	periodMonths := req.PeriodMonths
	if periodMonths == 0 {
		periodMonths = 12
	}

	return model.AnalysisRequest{
		AOI:             aoi,
		BeforeDate:      beforeDate,
		AfterDate:       afterDate,
		PeriodMonths:    periodMonths,
		Intent:          intent,
		Threshold:       req.Threshold,
		IgnoreBuildings: req.IgnoreBuildings,
		CollectionID:    h.collection,
		Filters: model.ImageryFilters{
			Mode:          req.Mode,
			OrbitPass:     req.OrbitPass,
			RelativeOrbit: req.RelativeOrbit,
		},
		PercentileOnAbs: h.percentileOnAbs,
	}, nil
}

func parseAOI(bbox string, ring [][]float64) (model.AOI, error) {
	if len(ring) > 0 {
		r := make(orb.Ring, 0, len(ring))
		for _, pt := range ring {
			if len(pt) != 2 {
				return model.AOI{}, model.Errf(model.FailureInvalidGeometry,
					"aoi vertices must be [lon, lat] pairs")
			}
			r = append(r, orb.Point{pt[0], pt[1]})
		}
		if len(r) > 0 && r[0] != r[len(r)-1] {
			r = append(r, r[0])
		}
		return model.NewAOI(orb.Polygon{r})
	}

	bounds, err := model.ParseBounds(bbox)
	if err != nil {
		return model.AOI{}, model.Errf(model.FailureInvalidGeometry, "invalid bbox: %v", err)
	}
	return model.NewAOIFromBounds(bounds)
}

func parseRange(start, end string) (model.DateRange, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("invalid start date: %w", err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("invalid end date: %w", err)
	}
	if e.Before(s) {
		return model.DateRange{}, fmt.Errorf("end date precedes start date")
	}
	return model.DateRange{Start: s, End: e}, nil
}

// writeFailure maps the failure taxonomy to HTTP statuses with the
// actionable message intact.
func writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch model.KindOf(err) {
	case model.FailureInvalidGeometry:
		status = http.StatusBadRequest
	case model.FailureEmptyInput:
		status = http.StatusNotFound
	case model.FailureDegenerateStatistics:
		status = http.StatusUnprocessableEntity
	case model.FailureBackendLimit:
		status = http.StatusRequestEntityTooLarge
	default:
		log.Printf("Error running detection: %v", err)
	}
	http.Error(w, err.Error(), status)
}
