package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolenyo2099/change-detection-tool/internal/api"
	"github.com/kolenyo2099/change-detection-tool/internal/core"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/repository"
)

var apiBounds = model.Bounds{MinLat: 0, MinLon: 0, MaxLat: 4, MaxLon: 4}

func constGrid(v float64) *model.Grid {
	g := model.NewGrid(apiBounds, 4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			g.Set(x, y, v)
		}
	}
	return g
}

// stubImagery serves a fixed before/after pair keyed on the window end.
type stubImagery struct {
	empty bool
}

func (s stubImagery) QueryRasters(_ context.Context, q repository.RasterQuery) (*model.RasterStack, error) {
	if s.empty {
		return &model.RasterStack{}, nil
	}
	stack := func(vals ...float64) *model.RasterStack {
		out := &model.RasterStack{}
		for i, v := range vals {
			out.Items = append(out.Items, model.RasterItem{
				Timestamp: q.Filters.Dates.Start.AddDate(0, 0, i),
				Grid:      constGrid(v),
			})
		}
		return out
	}
	if q.Filters.Dates.End.Before(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		return stack(-13, -12, -11, -12), nil
	}
	return stack(-9, -8, -7), nil
}

type stubRecorder struct {
	runs []model.RunRecord
}

func (r *stubRecorder) SaveRun(_ context.Context, rec model.RunRecord) error {
	r.runs = append(r.runs, rec)
	return nil
}

func (r *stubRecorder) RunsForArea(context.Context, model.Bounds, int) ([]model.RunRecord, error) {
	return r.runs, nil
}

func newTestHandler(imagery repository.ImageryRepository, recorder repository.RunRecorder) *api.Handler {
	service := core.NewDetectionService(imagery, nil, recorder, recorder != nil, core.Options{})
	return api.NewHandler(service, recorder, "sar-grd", "optical-sr", false)
}

func detectBody(extra string) string {
	body := `{
		"bbox": "0,0,4,4",
		"before_date": "2024-01-01",
		"after_date": "2024-07-01",
		"period_months": 3,
		"intent": "construction",
		"threshold": 2,
		"ignore_buildings": true` + extra + `
	}`
	return body
}

func TestDetect(t *testing.T) {
	h := newTestHandler(stubImagery{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/detect", strings.NewReader(detectBody("")))
	h.Detect(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result model.DetectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 4, result.BeforeImageCount)
	assert.Equal(t, 3, result.AfterImageCount)
	assert.Greater(t, result.ScoreStats.P90, 0.0)
}

func TestDetect_AOIRingOverridesBBox(t *testing.T) {
	h := newTestHandler(stubImagery{}, nil)

	// Open ring: the handler closes it before validation.
	extra := `,
		"aoi": [[0,0],[4,0],[4,4],[0,4]]`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/detect", strings.NewReader(detectBody(extra)))
	h.Detect(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestDetect_Failures(t *testing.T) {
	cases := []struct {
		name    string
		imagery repository.ImageryRepository
		method  string
		body    string
		want    int
	}{
		{
			name:    "wrong method",
			imagery: stubImagery{},
			method:  http.MethodGet,
			body:    detectBody(""),
			want:    http.StatusMethodNotAllowed,
		},
		{
			name:    "malformed json",
			imagery: stubImagery{},
			method:  http.MethodPost,
			body:    "{not json",
			want:    http.StatusBadRequest,
		},
		{
			name:    "invalid bbox",
			imagery: stubImagery{},
			method:  http.MethodPost,
			body:    `{"bbox":"95,0,96,4","before_date":"2024-01-01","after_date":"2024-07-01"}`,
			want:    http.StatusBadRequest,
		},
		{
			name:    "bad date",
			imagery: stubImagery{},
			method:  http.MethodPost,
			body:    `{"bbox":"0,0,4,4","before_date":"January","after_date":"2024-07-01"}`,
			want:    http.StatusNotFound,
		},
		{
			name:    "no imagery",
			imagery: stubImagery{empty: true},
			method:  http.MethodPost,
			body:    detectBody(""),
			want:    http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(tc.imagery, nil)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, "/api/detect", strings.NewReader(tc.body))
			h.Detect(rec, req)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestBurntArea_InvalidRange(t *testing.T) {
	h := newTestHandler(stubImagery{}, nil)

	body := `{
		"bbox": "0,0,4,4",
		"pre_start": "2024-07-31",
		"pre_end": "2024-07-01",
		"post_start": "2024-08-15",
		"post_end": "2024-09-15"
	}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/burnt", strings.NewReader(body))
	h.BurntArea(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "pre-fire")
}

func TestRuns(t *testing.T) {
	recorder := &stubRecorder{}
	h := newTestHandler(stubImagery{}, recorder)

	// Record one run through the detect endpoint.
	rec := httptest.NewRecorder()
	h.Detect(rec, httptest.NewRequest(http.MethodPost, "/api/detect", strings.NewReader(detectBody(""))))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Runs(rec, httptest.NewRequest(http.MethodGet, "/api/runs?bbox=0,0,4,4&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "change", runs[0].Kind)
}

func TestRuns_Disabled(t *testing.T) {
	h := newTestHandler(stubImagery{}, nil)

	rec := httptest.NewRecorder()
	h.Runs(rec, httptest.NewRequest(http.MethodGet, "/api/runs?bbox=0,0,4,4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuns_InvalidBBox(t *testing.T) {
	h := newTestHandler(stubImagery{}, &stubRecorder{})

	rec := httptest.NewRecorder()
	h.Runs(rec, httptest.NewRequest(http.MethodGet, "/api/runs?bbox=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
