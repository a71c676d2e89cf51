package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolenyo2099/change-detection-tool/internal/config"
)

// chdir switches to dir for the duration of the test; t.Chdir needs Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restoring working directory: %v", err)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir()) // no config file in reach

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sar-grd", cfg.Imagery.Collection)
	assert.Equal(t, "optical-sr", cfg.Imagery.BurntCollection)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Overpass.Endpoint)
	assert.False(t, cfg.Postgres.SaveRuns)
	assert.Equal(t, 10000000, cfg.Detection.MaxPixels)
	assert.Equal(t, 0.90, cfg.Detection.HighCutoff)
	assert.Equal(t, 0.95, cfg.Detection.VeryHighCutoff)
	assert.Equal(t, 1.0, cfg.Detection.ExtremeCutoff)
	assert.Equal(t, 0.1, cfg.Detection.BurnCutoff)
	assert.Equal(t, 1.0, cfg.Detection.ToleranceMeters)
	assert.Equal(t, 15, cfg.Detection.SingleImageWindowDays)
	assert.False(t, cfg.Detection.PercentileOnAbs)
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHANGEDETECT_SERVER_ADDR", ":9999")
	t.Setenv("CHANGEDETECT_IMAGERY_COLLECTION", "sar-slc")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "sar-slc", cfg.Imagery.Collection)
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
server:
  addr: ":7070"
detection:
  max_pixels: 5000
  percentile_on_abs: true
postgres:
  url: "postgres://localhost/changes"
  save_runs: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 5000, cfg.Detection.MaxPixels)
	assert.True(t, cfg.Detection.PercentileOnAbs)
	assert.True(t, cfg.Postgres.SaveRuns)
	// Untouched keys keep their defaults.
	assert.Equal(t, "sar-grd", cfg.Imagery.Collection)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
