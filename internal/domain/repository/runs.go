package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// RunRecorder persists the trace of each analysis run. Recording is best
// effort: a failed insert must never fail the run itself.
type RunRecorder interface {
	SaveRun(ctx context.Context, rec model.RunRecord) error
	RunsForArea(ctx context.Context, bounds model.Bounds, limit int) ([]model.RunRecord, error)
}

type PostgresRunRecorder struct {
	DB *sqlx.DB
}

func NewPostgresRunRecorder(connStr string) *PostgresRunRecorder {
	db := sqlx.MustConnect("postgres", connStr)
	return &PostgresRunRecorder{DB: db}
}

func (r *PostgresRunRecorder) SaveRun(ctx context.Context, rec model.RunRecord) error {
	bounds, err := model.ParseBounds(rec.BBox)
	if err != nil {
		return fmt.Errorf("invalid bbox on run record: %w", err)
	}

	const query = `
		INSERT INTO analysis_runs (
			id, kind, bbox, geom, intent, threshold,
			p90, p95, p99, p_value, recommendation,
			before_images, after_images, tier_counts, recorded_at
		) VALUES (
			$1, $2, $3, ST_MakeEnvelope($4, $5, $6, $7, 4326), $8, $9,
			$10, $11, $12, $13, $14, $15, $16, $17, NOW()
		)`

	_, err = r.DB.ExecContext(ctx, query,
		rec.ID, rec.Kind, rec.BBox,
		bounds.MinLon, bounds.MinLat, bounds.MaxLon, bounds.MaxLat,
		rec.Intent, rec.Threshold,
		rec.P90, rec.P95, rec.P99, rec.PValue, rec.Recommendation,
		rec.BeforeImages, rec.AfterImages, rec.TierCounts,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis run: %w", err)
	}
	return nil
}

// RunsForArea returns the most recent runs whose AOI intersects the given
// bounds.
func (r *PostgresRunRecorder) RunsForArea(ctx context.Context, bounds model.Bounds, limit int) ([]model.RunRecord, error) {
	const query = `
		SELECT id, kind, bbox, intent, threshold,
		       p90, p95, p99, p_value, recommendation,
		       before_images, after_images, tier_counts, recorded_at
		FROM analysis_runs
		WHERE ST_Intersects(geom, ST_MakeEnvelope($1, $2, $3, $4, 4326))
		ORDER BY recorded_at DESC
		LIMIT $5`

	var runs []model.RunRecord
	err := r.DB.SelectContext(ctx, &runs, query,
		bounds.MinLon, bounds.MinLat, bounds.MaxLon, bounds.MaxLat, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	return runs, nil
}
