package storage

import (
	"context"
	"time"

	"dca-backtest-lab/internal/domain"
)

// QueryObserver receives the latency and outcome of every store call.
type QueryObserver interface {
	RecordDBQuery(database, operation string, seconds float64, err error)
}

func observe(o QueryObserver, database, operation string, start time.Time, err error) {
	if o != nil {
		o.RecordDBQuery(database, operation, time.Since(start).Seconds(), err)
	}
}

// InstrumentedPriceSeriesStore times a PriceSeriesStore.
type InstrumentedPriceSeriesStore struct {
	Store    PriceSeriesStore
	Database string
	Observer QueryObserver
}

func (s *InstrumentedPriceSeriesStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) (err error) {
	defer func(start time.Time) { observe(s.Observer, s.Database, "price_insert", start, err) }(time.Now())
	return s.Store.InsertBulk(ctx, points)
}

func (s *InstrumentedPriceSeriesStore) GetBySymbol(ctx context.Context, symbol string) (out []*domain.PricePoint, err error) {
	defer func(start time.Time) { observe(s.Observer, s.Database, "price_get_symbol", start, err) }(time.Now())
	return s.Store.GetBySymbol(ctx, symbol)
}

func (s *InstrumentedPriceSeriesStore) GetByDateRange(ctx context.Context, symbol string, from, to time.Time) (out []*domain.PricePoint, err error) {
	defer func(start time.Time) { observe(s.Observer, s.Database, "price_get_range", start, err) }(time.Now())
	return s.Store.GetByDateRange(ctx, symbol, from, to)
}

// InstrumentedRunStore times a RunStore.
type InstrumentedRunStore struct {
	Store    RunStore
	Database string
	Observer QueryObserver
}

func (s *InstrumentedRunStore) Insert(ctx context.Context, run *domain.BacktestRun) (err error) {
	defer func(start time.Time) { observe(s.Observer, s.Database, "run_insert", start, err) }(time.Now())
	return s.Store.Insert(ctx, run)
}

func (s *InstrumentedRunStore) GetByID(ctx context.Context, runID string) (out *domain.BacktestRun, err error) {
	defer func(start time.Time) { observe(s.Observer, s.Database, "run_get", start, err) }(time.Now())
	return s.Store.GetByID(ctx, runID)
}

func (s *InstrumentedRunStore) GetBySymbol(ctx context.Context, symbol string) (out []*domain.BacktestRun, err error) {
	defer func(start time.Time) { observe(s.Observer, s.Database, "run_get_symbol", start, err) }(time.Now())
	return s.Store.GetBySymbol(ctx, symbol)
}

// InstrumentedTransactionStore times a TransactionStore.
type InstrumentedTransactionStore struct {
	Store    TransactionStore
	Database string
	Observer QueryObserver
}

func (s *InstrumentedTransactionStore) InsertBulk(ctx context.Context, txs []*domain.Transaction) (err error) {
	defer func(start time.Time) { observe(s.Observer, s.Database, "tx_insert", start, err) }(time.Now())
	return s.Store.InsertBulk(ctx, txs)
}

func (s *InstrumentedTransactionStore) GetByRunID(ctx context.Context, runID string) (out []*domain.Transaction, err error) {
	defer func(start time.Time) { observe(s.Observer, s.Database, "tx_get_run", start, err) }(time.Now())
	return s.Store.GetByRunID(ctx, runID)
}

var (
	_ PriceSeriesStore = (*InstrumentedPriceSeriesStore)(nil)
	_ RunStore         = (*InstrumentedRunStore)(nil)
	_ TransactionStore = (*InstrumentedTransactionStore)(nil)
)
