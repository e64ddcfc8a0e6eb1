package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
// Parameters, report and final lots live in JSONB columns.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, symbol, start_date, end_date, parameters,
	realized_pnl, unrealized_pnl, final_lots, report,
	transactions, regime_changes, questionable, created_at`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	lots, err := jsonb(r.FinalLots)
	if err != nil {
		return fmt.Errorf("marshal final lots: %w", err)
	}
	report, err := json.Marshal(r.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query := `INSERT INTO backtest_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.Symbol, r.StartDate, r.EndDate, params,
		r.RealizedPNL, r.UnrealizedPNL, lots, report,
		r.Transactions, r.RegimeChanges, r.Questionable, r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetBySymbol retrieves all runs for a symbol, oldest first.
func (s *RunStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs
		WHERE symbol = $1
		ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get backtest runs by symbol: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var params, lots, report []byte

	err := row.Scan(
		&r.RunID, &r.Symbol, &r.StartDate, &r.EndDate, &params,
		&r.RealizedPNL, &r.UnrealizedPNL, &lots, &report,
		&r.Transactions, &r.RegimeChanges, &r.Questionable, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &r.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if err := json.Unmarshal(lots, &r.FinalLots); err != nil {
		return nil, fmt.Errorf("decode final lots: %w", err)
	}
	if err := json.Unmarshal(report, &r.Report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
