package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/observability"
	"dca-backtest-lab/internal/storage/memory"
)

type runnerFixture struct {
	prices  *memory.PriceSeriesStore
	runs    *memory.RunStore
	txs     *memory.TransactionStore
	metrics *observability.Metrics
	runner  *Runner
}

func newRunnerFixture(t *testing.T, closes ...float64) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		prices:  memory.NewPriceSeriesStore(),
		runs:    memory.NewRunStore(),
		txs:     memory.NewTransactionStore(),
		metrics: observability.NewMetrics("test", prometheus.NewRegistry()),
	}

	points := series(closes...)
	ptrs := make([]*domain.PricePoint, len(points))
	for i := range points {
		ptrs[i] = &points[i]
	}
	if err := f.prices.InsertBulk(context.Background(), ptrs); err != nil {
		t.Fatalf("seed prices: %v", err)
	}

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.runner = NewRunner(RunnerOptions{
		PriceStore:       f.prices,
		RunStore:         f.runs,
		TransactionStore: f.txs,
		Metrics:          f.metrics,
		Now:              func() time.Time { return clock },
	})
	return f
}

func TestRunner_PersistsRunAndTransactions(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, 100, 95, 90, 85, 88, 90, 100, 110, 120, 115, 107)

	res, err := f.runner.Run(ctx, params(nil), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	run, err := f.runs.GetByID(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if run.Transactions != 2 {
		t.Errorf("run transactions: expected 2, got %d", run.Transactions)
	}
	if !run.StartDate.Equal(day(0)) || !run.EndDate.Equal(day(10)) {
		t.Errorf("run range: got %s..%s", run.StartDate, run.EndDate)
	}
	if run.CreatedAt.IsZero() {
		t.Error("expected created_at to be stamped")
	}

	stored, err := f.txs.GetByRunID(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored transactions, got %d", len(stored))
	}
	if stored[0].Type != domain.TransactionBuy || stored[1].Type != domain.TransactionSell {
		t.Errorf("unexpected order: %s, %s", stored[0].Type, stored[1].Type)
	}
}

func TestRunner_SecondRunIsNotPersistedAgain(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, 100, 95, 90, 85, 88, 90, 100, 110, 120, 115, 107)

	first, err := f.runner.Run(ctx, params(nil), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := f.runner.Run(ctx, params(nil), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if first.RunID != second.RunID {
		t.Errorf("run IDs differ: %s vs %s", first.RunID, second.RunID)
	}

	stored, err := f.txs.GetByRunID(ctx, first.RunID)
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("expected 2 stored transactions after rerun, got %d", len(stored))
	}

	if got := testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("successful runs: expected 2, got %v", got)
	}
}

func TestRunner_DateRange(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t, 100, 95, 90, 85, 88, 90, 100, 110, 120, 115, 107)

	res, err := f.runner.Run(ctx, params(nil), day(0), day(5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.DailyValues) != 6 {
		t.Errorf("expected 6 simulated days, got %d", len(res.DailyValues))
	}
	if len(res.FinalLots) != 1 {
		t.Errorf("expected the day-5 buy to remain open, got %d lots", len(res.FinalLots))
	}
}

func TestRunner_HalfOpenRangeIsRejected(t *testing.T) {
	f := newRunnerFixture(t, 100, 95, 90, 85, 88, 90)

	for _, r := range []struct{ from, to time.Time }{
		{day(2), time.Time{}},
		{time.Time{}, day(3)},
	} {
		_, err := f.runner.Run(context.Background(), params(nil), r.from, r.to)
		if !errors.Is(err, ErrHalfOpenRange) {
			t.Fatalf("Run(%v, %v): expected ErrHalfOpenRange, got %v", r.from, r.to, err)
		}
	}
	if got := testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("error")); got != 2 {
		t.Errorf("failed runs: expected 2, got %v", got)
	}
	if runs, _ := f.runs.GetBySymbol(context.Background(), "TEST"); len(runs) != 0 {
		t.Errorf("rejected range must not persist a run, got %d", len(runs))
	}
}

func TestRunner_UnknownSymbol(t *testing.T) {
	f := newRunnerFixture(t, 100, 101)

	p := params(func(p *domain.StrategyParameters) { p.Symbol = "NOPE" })
	_, err := f.runner.Run(context.Background(), p, time.Time{}, time.Time{})
	if !errors.Is(err, ErrEmptyPriceSeries) {
		t.Fatalf("expected ErrEmptyPriceSeries, got %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed runs: expected 1, got %v", got)
	}
}

func TestRunner_WithoutStores(t *testing.T) {
	prices := memory.NewPriceSeriesStore()
	points := series(100, 90)
	if err := prices.InsertBulk(context.Background(), []*domain.PricePoint{&points[0], &points[1]}); err != nil {
		t.Fatalf("seed prices: %v", err)
	}

	r := NewRunner(RunnerOptions{PriceStore: prices})
	res, err := r.Run(context.Background(), params(nil), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RunID == "" {
		t.Error("expected a run ID")
	}
}
