package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dca-backtest-lab/internal/adaptive"
	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/observability"
	"dca-backtest-lab/internal/storage"
)

// Runner loads a price series, simulates it and persists the outcome.
type Runner struct {
	priceStore       storage.PriceSeriesStore
	runStore         storage.RunStore
	transactionStore storage.TransactionStore
	classifier       adaptive.ScenarioClassifier
	logger           *zap.Logger
	metrics          *observability.Metrics
	now              func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
// RunStore and TransactionStore are optional; without them nothing is persisted.
type RunnerOptions struct {
	PriceStore       storage.PriceSeriesStore
	RunStore         storage.RunStore
	TransactionStore storage.TransactionStore
	Classifier       adaptive.ScenarioClassifier
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	Now              func() time.Time // defaults to time.Now
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		priceStore:       opts.PriceStore,
		runStore:         opts.RunStore,
		transactionStore: opts.TransactionStore,
		classifier:       opts.Classifier,
		logger:           logger,
		metrics:          opts.Metrics,
		now:              now,
	}
}

// Run executes a simulation for params.Symbol.
// Steps:
//  1. Load prices (whole history when both bounds are zero, else [from, to])
//  2. Simulate
//  3. Persist run summary and transactions
//
// A run that was already persisted is not written again.
func (r *Runner) Run(ctx context.Context, params domain.StrategyParameters, from, to time.Time) (*Result, error) {
	start := r.now()

	if from.IsZero() != to.IsZero() {
		r.metrics.RecordRun("error", r.now().Sub(start).Seconds(), 0)
		return nil, fmt.Errorf("%w: from=%s to=%s", ErrHalfOpenRange,
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	// 1. Load prices
	prices, err := r.loadPrices(ctx, params.Symbol, from, to)
	if err != nil {
		r.metrics.RecordRun("error", r.now().Sub(start).Seconds(), 0)
		return nil, err
	}

	// 2. Simulate
	res, err := Simulate(ctx, prices, params, Options{
		Classifier: r.classifier,
		Logger:     r.logger,
		Metrics:    r.metrics,
	})
	if err != nil {
		r.metrics.RecordRun("error", r.now().Sub(start).Seconds(), len(prices))
		return nil, err
	}

	// 3. Persist
	if err := r.persist(ctx, res); err != nil {
		r.metrics.RecordRun("error", r.now().Sub(start).Seconds(), len(prices))
		return nil, err
	}

	end := r.now()
	r.metrics.RecordRun("success", end.Sub(start).Seconds(), len(prices))
	r.metrics.MarkSuccess(float64(end.Unix()))
	return res, nil
}

func (r *Runner) loadPrices(ctx context.Context, symbol string, from, to time.Time) ([]domain.PricePoint, error) {
	var (
		points []*domain.PricePoint
		err    error
	)
	if !from.IsZero() {
		points, err = r.priceStore.GetByDateRange(ctx, symbol, from, to)
	} else {
		points, err = r.priceStore.GetBySymbol(ctx, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("load prices for %s: %w", symbol, err)
	}

	prices := make([]domain.PricePoint, len(points))
	for i, p := range points {
		prices[i] = *p
	}
	return prices, nil
}

func (r *Runner) persist(ctx context.Context, res *Result) error {
	if r.runStore == nil {
		return nil
	}

	run := res.BacktestRun()
	run.CreatedAt = r.now().UTC()
	if err := r.runStore.Insert(ctx, run); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Info("run already persisted", zap.String("run_id", res.RunID))
			return nil
		}
		return fmt.Errorf("insert run: %w", err)
	}

	if r.transactionStore == nil || len(res.Transactions) == 0 {
		return nil
	}
	txs := make([]*domain.Transaction, len(res.Transactions))
	for i := range res.Transactions {
		txs[i] = &res.Transactions[i]
	}
	if err := r.transactionStore.InsertBulk(ctx, txs); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}
