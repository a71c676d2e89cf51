package core_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolenyo2099/change-detection-tool/internal/core"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/repository"
)

// cannedBackend serves canned stacks and counts fetches.
type cannedBackend struct {
	mu    sync.Mutex
	calls int
	serve func(q repository.RasterQuery) (*model.RasterStack, error)
}

func (b *cannedBackend) QueryRasters(_ context.Context, q repository.RasterQuery) (*model.RasterStack, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return b.serve(q)
}

func (b *cannedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestExpr_LazyUntilMaterialize(t *testing.T) {
	backend := &cannedBackend{serve: func(repository.RasterQuery) (*model.RasterStack, error) {
		return stackOf(uniformGrid(testBounds, 2, 2, 5), uniformGrid(testBounds, 2, 2, 7)), nil
	}}

	node := core.NewStackStats(repository.RasterQuery{CollectionID: "c"})
	expr := core.Sub(core.Mean(node), core.Const(uniformGrid(testBounds, 2, 2, 1)))

	// Building the graph must not touch the backend.
	assert.Zero(t, backend.callCount())

	got, err := expr.Materialize(context.Background(), backend)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.callCount())

	v, ok := got.At(0, 0)
	require.True(t, ok)
	assert.InDelta(t, 5.0, v, 1e-12) // mean 6 − 1
}

func TestStatsNode_SingleFetchShared(t *testing.T) {
	backend := &cannedBackend{serve: func(repository.RasterQuery) (*model.RasterStack, error) {
		return stackOf(
			uniformGrid(testBounds, 1, 1, 4),
			uniformGrid(testBounds, 1, 1, 6),
		), nil
	}}

	node := core.NewStackStats(repository.RasterQuery{})

	mean, err := core.Mean(node).Materialize(context.Background(), backend)
	require.NoError(t, err)
	stdDev, err := core.StdDev(node).Materialize(context.Background(), backend)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.callCount(), "mean and stddev must share one fetch")

	m, _ := mean.At(0, 0)
	assert.InDelta(t, 5.0, m, 1e-12)
	sd, _ := stdDev.At(0, 0)
	assert.InDelta(t, 1.4142135623730951, sd, 1e-12)
}

func TestExpr_EmptyStackSurfacesNoData(t *testing.T) {
	backend := &cannedBackend{serve: func(repository.RasterQuery) (*model.RasterStack, error) {
		return &model.RasterStack{}, nil
	}}

	_, err := core.Mean(core.NewStackStats(repository.RasterQuery{})).
		Materialize(context.Background(), backend)
	require.Error(t, err)
	assert.Equal(t, model.FailureEmptyInput, model.KindOf(err))
	assert.Contains(t, err.Error(), "no imagery available")
}

func TestExpr_DivMasksZeroDenominator(t *testing.T) {
	num := core.Const(uniformGrid(testBounds, 1, 1, 4))
	den := core.Const(uniformGrid(testBounds, 1, 1, 0))

	got, err := core.Div(num, den).Materialize(context.Background(), nil)
	require.NoError(t, err)

	_, ok := got.At(0, 0)
	assert.False(t, ok)
}

func TestExpr_NormalizedDiff(t *testing.T) {
	b := func(v float64) core.Expr { return core.Const(uniformGrid(testBounds, 1, 1, v)) }

	got, err := core.NormalizedDiff(b(2), b(2), b(1), b(1)).Materialize(context.Background(), nil)
	require.NoError(t, err)

	v, ok := got.At(0, 0)
	require.True(t, ok)
	assert.InDelta(t, (4.0-2.0)/6.0, v, 1e-12)
}
