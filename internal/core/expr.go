package core

import (
	"context"
	"sync"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/repository"
)

// Raster computations are built as immutable, lazily evaluated expression
// graphs. Building a graph is synchronous and cheap; Materialize is the
// only operation that touches the imagery backend. Independent
// materializations are safe to run in parallel: nodes hold no shared
// mutable state beyond a once-guarded fetch cache.

// StatsNode defers the stack fetch and its statistical reduction. The
// fetch runs at most once, so Mean and StdDev expressions derived from the
// same node share one backend call.
type StatsNode struct {
	query repository.RasterQuery

	once    sync.Once
	summary model.StatsSummary
	err     error
}

func NewStackStats(q repository.RasterQuery) *StatsNode {
	return &StatsNode{query: q}
}

// Materialize pulls the stack and reduces it. Safe for concurrent use.
func (n *StatsNode) Materialize(ctx context.Context, be repository.ImageryRepository) (model.StatsSummary, error) {
	n.once.Do(func() {
		stack, err := be.QueryRasters(ctx, n.query)
		if err != nil {
			n.err = err
			return
		}
		n.summary, n.err = StatsEngine{}.Compute(stack)
	})
	return n.summary, n.err
}

// Expr is a deferred single-raster computation.
type Expr struct {
	eval func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error)
}

// Materialize evaluates the expression graph against the backend.
func (e Expr) Materialize(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
	return e.eval(ctx, be)
}

// Const lifts an already-materialized grid into the expression space.
func Const(g *model.Grid) Expr {
	return Expr{eval: func(context.Context, repository.ImageryRepository) (*model.Grid, error) {
		return g, nil
	}}
}

// Mean is the per-pixel mean raster of a stats node.
func Mean(n *StatsNode) Expr {
	return Expr{eval: func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
		s, err := n.Materialize(ctx, be)
		if err != nil {
			return nil, err
		}
		if s.Empty() {
			return nil, model.Errf(model.FailureEmptyInput, "no imagery available for this period/area")
		}
		return s.Mean, nil
	}}
}

// StdDev is the per-pixel sample standard deviation of a stats node.
func StdDev(n *StatsNode) Expr {
	return Expr{eval: func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
		s, err := n.Materialize(ctx, be)
		if err != nil {
			return nil, err
		}
		if s.Empty() {
			return nil, model.Errf(model.FailureEmptyInput, "no imagery available for this period/area")
		}
		return s.StdDev, nil
	}}
}

func Sub(a, b Expr) Expr {
	return binary(a, b, subGrids)
}

func Add(a, b Expr) Expr {
	return binary(a, b, addGrids)
}

// Div masks zero denominators instead of dividing through.
func Div(a, b Expr) Expr {
	return binary(a, b, divGrids)
}

func Abs(a Expr) Expr {
	return Expr{eval: func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
		g, err := a.eval(ctx, be)
		if err != nil {
			return nil, err
		}
		return absGrid(g), nil
	}}
}

func Scale(a Expr, factor float64) Expr {
	return Expr{eval: func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
		g, err := a.eval(ctx, be)
		if err != nil {
			return nil, err
		}
		return scaleGrid(g, factor), nil
	}}
}

// ClipAOI masks pixels outside the analysis polygon.
func ClipAOI(a Expr, aoi model.AOI) Expr {
	return Expr{eval: func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
		g, err := a.eval(ctx, be)
		if err != nil {
			return nil, err
		}
		return g.ClipTo(aoi.Polygon), nil
	}}
}

// NormalizedDiff is ((b1+b2)-(b3+b4))/((b1+b2)+(b3+b4)).
func NormalizedDiff(b1, b2, b3, b4 Expr) Expr {
	return Expr{eval: func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
		grids := make([]*model.Grid, 4)
		for i, e := range []Expr{b1, b2, b3, b4} {
			g, err := e.eval(ctx, be)
			if err != nil {
				return nil, err
			}
			grids[i] = g
		}
		return normalizedDifference(grids[0], grids[1], grids[2], grids[3])
	}}
}

// PooledScore defers the pooled two-sample t score of two period nodes.
func PooledScore(before, after *StatsNode, intent model.DetectionIntent) Expr {
	return Expr{eval: func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
		b, err := before.Materialize(ctx, be)
		if err != nil {
			return nil, err
		}
		a, err := after.Materialize(ctx, be)
		if err != nil {
			return nil, err
		}
		return ChangeScorer{Intent: intent}.PooledTwoSample(b, a)
	}}
}

// SingleSampleScore defers the single-sample t score of one raster against
// a period node.
func SingleSampleScore(after Expr, before *StatsNode, intent model.DetectionIntent) Expr {
	return Expr{eval: func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
		b, err := before.Materialize(ctx, be)
		if err != nil {
			return nil, err
		}
		g, err := after.eval(ctx, be)
		if err != nil {
			return nil, err
		}
		return ChangeScorer{Intent: intent}.SingleSample(g, b)
	}}
}

func binary(a, b Expr, op func(x, y *model.Grid) (*model.Grid, error)) Expr {
	return Expr{eval: func(ctx context.Context, be repository.ImageryRepository) (*model.Grid, error) {
		ga, err := a.eval(ctx, be)
		if err != nil {
			return nil, err
		}
		gb, err := b.eval(ctx, be)
		if err != nil {
			return nil, err
		}
		return op(ga, gb)
	}}
}
