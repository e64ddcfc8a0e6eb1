package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `
	id, run_id, seq, type, date, price, shares, value,
	lot_price, lot_date, realized_pnl, holding_days, annualized_return, reason,
	stop_price, limit_price, lots_before, lots_after, average_cost_after, unrealized_pnl_after, total_realized_pnl,
	consecutive_buy_count, consecutive_sell_count, grid_spacing, profit_requirement, scenario`

// InsertBulk writes the ledger atomically. Fails entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO transactions (` + transactionColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8,
		$9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21,
		$22, $23, $24, $25, $26
	)`

	for _, t := range txs {
		if t == nil || t.ID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		before, err := jsonb(t.LotsBefore)
		if err != nil {
			return fmt.Errorf("marshal lots before: %w", err)
		}
		after, err := jsonb(t.LotsAfter)
		if err != nil {
			return fmt.Errorf("marshal lots after: %w", err)
		}

		sell := t.Type == domain.TransactionSell
		_, err = tx.Exec(ctx, query,
			t.ID, t.RunID, t.Seq, string(t.Type), t.Date, t.Price, t.Shares, t.Value,
			nullIf(sell, t.LotPrice), nullTime(t.LotDate), nullIf(sell, t.RealizedPNL),
			nullIf(sell, t.HoldingDays), nullIf(sell, t.AnnualizedReturn), nullString(t.Reason),
			nullIf(t.StopPrice != 0, t.StopPrice), nullIf(t.LimitPrice != 0, t.LimitPrice),
			before, after, t.AverageCostAfter, t.UnrealizedPNLAfter, t.TotalRealizedPNL,
			t.ConsecutiveBuyCount, t.ConsecutiveSellCount,
			nullIf(t.GridSpacing != 0, t.GridSpacing), nullIf(t.ProfitRequirement != 0, t.ProfitRequirement),
			nullString(t.Scenario),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert transaction in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves a run's ledger in sequence order.
func (s *TransactionStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE run_id = $1
		ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get transactions by run id: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var out []*domain.Transaction

	for rows.Next() {
		var t domain.Transaction
		var typ string
		var lotPrice, realized, annualized, stop, limit, spacing, profitReq *float64
		var lotDate *time.Time
		var holding *int
		var reason, scenario *string
		var before, after []byte

		err := rows.Scan(
			&t.ID, &t.RunID, &t.Seq, &typ, &t.Date, &t.Price, &t.Shares, &t.Value,
			&lotPrice, &lotDate, &realized, &holding, &annualized, &reason,
			&stop, &limit, &before, &after, &t.AverageCostAfter, &t.UnrealizedPNLAfter, &t.TotalRealizedPNL,
			&t.ConsecutiveBuyCount, &t.ConsecutiveSellCount, &spacing, &profitReq, &scenario,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}

		t.Type = domain.TransactionType(typ)
		t.LotPrice = deref(lotPrice)
		t.RealizedPNL = deref(realized)
		t.HoldingDays = deref(holding)
		t.AnnualizedReturn = deref(annualized)
		t.StopPrice = deref(stop)
		t.LimitPrice = deref(limit)
		t.GridSpacing = deref(spacing)
		t.ProfitRequirement = deref(profitReq)
		t.Reason = deref(reason)
		t.Scenario = deref(scenario)
		if lotDate != nil {
			t.LotDate = *lotDate
		}
		if err := json.Unmarshal(before, &t.LotsBefore); err != nil {
			return nil, fmt.Errorf("decode lots before: %w", err)
		}
		if err := json.Unmarshal(after, &t.LotsAfter); err != nil {
			return nil, fmt.Errorf("decode lots after: %w", err)
		}

		out = append(out, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return out, nil
}

func nullIf[T any](ok bool, v T) *T {
	if !ok {
		return nil
	}
	return &v
}

func nullString(s string) *string {
	return nullIf(s != "", s)
}

func nullTime(t time.Time) *time.Time {
	return nullIf(!t.IsZero(), t)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
