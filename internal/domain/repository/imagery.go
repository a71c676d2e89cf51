package repository

import (
	"context"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// RasterQuery narrows a catalog request: collection, filters (mode, orbit,
// date range, cloud cover), band selection and the AOI bounds. Building a
// query is cheap and synchronous; only QueryRasters touches the backend.
type RasterQuery struct {
	CollectionID string
	Filters      model.ImageryFilters
	AOI          model.AOI
}

// Select returns a copy of the query narrowed to one band.
func (q RasterQuery) Select(band string) RasterQuery {
	q.Filters.Band = band
	return q
}

// FilterDate returns a copy of the query narrowed to a date range.
func (q RasterQuery) FilterDate(r model.DateRange) RasterQuery {
	q.Filters.Dates = r
	return q
}

// FilterBounds returns a copy of the query narrowed to an AOI.
func (q RasterQuery) FilterBounds(aoi model.AOI) RasterQuery {
	q.AOI = aoi
	return q
}

// ImageryRepository is the hosted satellite-imagery catalog. Returned
// stacks are ordered by acquisition time and immutable.
type ImageryRepository interface {
	QueryRasters(ctx context.Context, q RasterQuery) (*model.RasterStack, error)
}

// FeatureRepository supplies the vector collaborators: building footprints
// (dataset chosen externally by region code) and points of interest.
type FeatureRepository interface {
	GetBuildingFootprints(ctx context.Context, aoi model.AOI) (model.FeatureCollection, error)
	GetPointsOfInterest(ctx context.Context, aoi model.AOI) (model.FeatureCollection, error)
}
