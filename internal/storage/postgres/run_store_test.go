package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/storage"
)

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	run := createTestRun(t, ctx, pool, "run-001")

	store := NewRunStore(pool)
	got, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)

	assert.Equal(t, run.Symbol, got.Symbol)
	assert.True(t, run.StartDate.Equal(got.StartDate))
	assert.True(t, run.EndDate.Equal(got.EndDate))
	assert.Equal(t, run.Parameters, got.Parameters)
	assert.InDelta(t, run.RealizedPNL, got.RealizedPNL, 1e-9)
	assert.InDelta(t, run.UnrealizedPNL, got.UnrealizedPNL, 1e-9)
	require.Len(t, got.FinalLots, 1)
	assert.InDelta(t, 95.0, got.FinalLots[0].Price, 1e-9)
	require.NotNil(t, got.Report.ProfitFactor)
	assert.InDelta(t, 1.8, *got.Report.ProfitFactor, 1e-9)
	assert.Equal(t, []float64{0.4, 0.2}, got.Report.HoldingAnnualized)
	assert.Equal(t, 4, got.Transactions)
}

func TestRunStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	run := createTestRun(t, ctx, pool, "run-dup")

	err := NewRunStore(pool).Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewRunStore(pool).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_GetBySymbol(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestRun(t, ctx, pool, "run-b")
	createTestRun(t, ctx, pool, "run-a")

	other := &domain.BacktestRun{RunID: "run-x", Symbol: "MSFT", StartDate: day(0), EndDate: day(1)}
	require.NoError(t, NewRunStore(pool).Insert(ctx, other))

	runs, err := NewRunStore(pool).GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
}
