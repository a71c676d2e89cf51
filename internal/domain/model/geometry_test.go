package model_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

func closedRing(pts ...orb.Point) orb.Ring {
	return append(orb.Ring(pts), pts[0])
}

func TestNewAOI(t *testing.T) {
	cases := []struct {
		name    string
		polygon orb.Polygon
		wantErr bool
	}{
		{
			name:    "square",
			polygon: orb.Polygon{closedRing(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 1})},
		},
		{
			name:    "triangle",
			polygon: orb.Polygon{closedRing(orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 2})},
		},
		{
			name:    "empty",
			polygon: orb.Polygon{},
			wantErr: true,
		},
		{
			name:    "open ring",
			polygon: orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}},
			wantErr: true,
		},
		{
			name:    "too few vertices",
			polygon: orb.Polygon{orb.Ring{{0, 0}, {1, 1}, {0, 0}}},
			wantErr: true,
		},
		{
			name: "bowtie",
			// Edges (0,0)-(2,2) and (2,0)-(0,2) cross at (1,1).
			polygon: orb.Polygon{closedRing(orb.Point{0, 0}, orb.Point{2, 2}, orb.Point{2, 0}, orb.Point{0, 2})},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			aoi, err := model.NewAOI(tc.polygon)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, model.FailureInvalidGeometry, model.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.NoError(t, aoi.Validate())
		})
	}
}

func TestNewAOIFromBounds(t *testing.T) {
	aoi, err := model.NewAOIFromBounds(model.Bounds{MinLat: 1, MinLon: 2, MaxLat: 3, MaxLon: 4})
	require.NoError(t, err)

	b := aoi.Bounds()
	assert.Equal(t, 1.0, b.MinLat)
	assert.Equal(t, 2.0, b.MinLon)
	assert.Equal(t, 3.0, b.MaxLat)
	assert.Equal(t, 4.0, b.MaxLon)
}
