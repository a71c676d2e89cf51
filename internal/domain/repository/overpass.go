package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/serjvanilla/go-overpass"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// OverpassRepository pulls building footprints and points of interest from
// an Overpass endpoint. It implements FeatureRepository.
type OverpassRepository struct {
	client  *overpass.Client
	timeout time.Duration
}

func NewOverpassRepository(endpoint string, timeout time.Duration) *OverpassRepository {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassRepository{
		client:  &client,
		timeout: timeout,
	}
}

// GetBuildingFootprints returns the building ways inside the AOI bounds as
// polygon features.
func (r *OverpassRepository) GetBuildingFootprints(ctx context.Context, aoi model.AOI) (model.FeatureCollection, error) {
	bbox := overpassBBox(aoi.Bounds())
	query := fmt.Sprintf(`
		[out:json];
		(
			way["building"](%s);
		);
		out body geom;
	`, bbox)

	result, err := r.executeQuery(ctx, query)
	if err != nil {
		return model.FeatureCollection{}, fmt.Errorf("failed to execute building query: %w", err)
	}

	var features []model.Feature
	for _, way := range result.Ways {
		poly, ok := wayPolygon(way)
		if !ok {
			continue
		}
		features = append(features, model.Feature{
			ID:       way.ID,
			Geometry: poly,
			Attributes: map[string]any{
				"building": way.Tags["building"],
				"name":     way.Tags["name"],
			},
		})
	}

	return model.FeatureCollection{Features: features}, nil
}

// GetPointsOfInterest returns amenity nodes inside the AOI bounds as point
// features, categorized by their amenity tag.
func (r *OverpassRepository) GetPointsOfInterest(ctx context.Context, aoi model.AOI) (model.FeatureCollection, error) {
	bbox := overpassBBox(aoi.Bounds())
	query := fmt.Sprintf(`
		[out:json];
		(
			node["amenity"](%s);
		);
		out body;
	`, bbox)

	result, err := r.executeQuery(ctx, query)
	if err != nil {
		return model.FeatureCollection{}, fmt.Errorf("failed to execute points-of-interest query: %w", err)
	}

	var features []model.Feature
	for _, node := range result.Nodes {
		if node == nil {
			continue
		}
		features = append(features, model.Feature{
			ID:       node.ID,
			Geometry: orb.Point{node.Lon, node.Lat},
			Attributes: map[string]any{
				"category": node.Tags["amenity"],
				"name":     node.Tags["name"],
			},
		})
	}

	return model.FeatureCollection{Features: features}, nil
}

func (r *OverpassRepository) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.client.Query(query)
	if err != nil {
		return nil, fmt.Errorf("overpass query failed: %w", err)
	}

	return &result, nil
}

// wayPolygon builds a closed polygon from a way's node chain. Open ways
// (roads, fences) are skipped.
func wayPolygon(way *overpass.Way) (orb.Polygon, bool) {
	if way == nil || len(way.Nodes) < 4 {
		return nil, false
	}
	ring := make(orb.Ring, 0, len(way.Nodes))
	for _, node := range way.Nodes {
		if node == nil {
			return nil, false
		}
		ring = append(ring, orb.Point{node.Lon, node.Lat})
	}
	if ring[0] != ring[len(ring)-1] {
		return nil, false
	}
	return orb.Polygon{ring}, true
}

// overpassBBox formats bounds in the south,west,north,east order Overpass
// expects.
func overpassBBox(b model.Bounds) string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}
