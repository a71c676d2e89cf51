package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

func TestParseBounds(t *testing.T) {
	b, err := model.ParseBounds("52.0, 4.0, 52.5, 4.5")
	require.NoError(t, err)
	assert.Equal(t, model.Bounds{MinLat: 52.0, MinLon: 4.0, MaxLat: 52.5, MaxLon: 4.5}, b)

	for _, bad := range []string{
		"52.0,4.0,52.5",        // too few components
		"a,4.0,52.5,4.5",       // not a number
		"95.0,4.0,96.0,4.5",    // latitude out of range
		"52.0,185.0,52.5,186",  // longitude out of range
		"52.5,4.0,52.0,4.5",    // min > max
	} {
		_, err := model.ParseBounds(bad)
		assert.Error(t, err, "bbox %q must be rejected", bad)
	}
}

func TestAnalysisRequestWindows(t *testing.T) {
	req := model.AnalysisRequest{
		BeforeDate:   time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		AfterDate:    time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		PeriodMonths: 3,
	}

	before := req.BeforeWindow()
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), before.Start)
	assert.Equal(t, req.BeforeDate, before.End)

	after := req.AfterWindow()
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), after.Start)
	assert.Equal(t, req.AfterDate, after.End)
}

func TestDetectionIntentOneSided(t *testing.T) {
	assert.True(t, model.IntentConstruction.OneSided())
	assert.False(t, model.IntentChange.OneSided())
	assert.False(t, model.IntentDamage.OneSided())
}

func TestDetectionErrorKind(t *testing.T) {
	err := model.Errf(model.FailureBackendLimit, "raster has %d pixels", 12)
	assert.Equal(t, model.FailureBackendLimit, model.KindOf(err))
	assert.Contains(t, err.Error(), "backend_limit_exceeded")
	assert.Contains(t, err.Error(), "12 pixels")

	wrapped := model.WrapErr(model.FailureEmptyInput, err, "catalog query failed")
	assert.Equal(t, model.FailureEmptyInput, model.KindOf(wrapped))

	assert.Equal(t, model.FailureUnknown, model.KindOf(assert.AnError))
}
