package storage

import (
	"context"
	"time"

	"dca-backtest-lab/internal/domain"
)

// PriceSeriesStore provides access to daily price history.
type PriceSeriesStore interface {
	// InsertBulk adds multiple points atomically. Fails entire batch on any
	// duplicate (symbol, date).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetBySymbol retrieves all points for a symbol, ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error)

	// GetByDateRange retrieves points for a symbol within [from, to] (inclusive), ordered by date ASC.
	GetByDateRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.PricePoint, error)
}

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetBySymbol retrieves all runs for a symbol, ordered by created_at ASC, run_id ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.BacktestRun, error)
}

// TransactionStore provides access to transactions storage.
type TransactionStore interface {
	// InsertBulk adds a run's transactions atomically. Fails entire batch on
	// any duplicate transaction id.
	InsertBulk(ctx context.Context, txs []*domain.Transaction) error

	// GetByRunID retrieves all transactions of a run, ordered by seq ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Transaction, error)
}
