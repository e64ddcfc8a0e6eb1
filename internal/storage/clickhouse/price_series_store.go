package clickhouse

import (
	"context"
	"fmt"
	"time"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/storage"
)

// PriceSeriesStore implements storage.PriceSeriesStore using ClickHouse.
// The table is a ReplacingMergeTree keyed on (symbol, date), so duplicate
// detection is done explicitly before the batch is sent.
type PriceSeriesStore struct {
	conn *Conn
}

// NewPriceSeriesStore creates a new PriceSeriesStore.
func NewPriceSeriesStore(conn *Conn) *PriceSeriesStore {
	return &PriceSeriesStore{conn: conn}
}

var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)

const priceColumns = `symbol, date, adjusted_close, ma20, ma50, ma200, rsi14, volatility20`

type priceKey struct {
	symbol string
	date   string
}

func keyOf(symbol string, date time.Time) priceKey {
	return priceKey{symbol, date.UTC().Format(time.DateOnly)}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate (symbol, date).
func (s *PriceSeriesStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	type span struct{ from, to time.Time }
	spans := make(map[string]span)
	seen := make(map[priceKey]struct{})
	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := keyOf(p.Symbol, p.Date)
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}

		sp, ok := spans[p.Symbol]
		if !ok {
			sp = span{p.Date, p.Date}
		}
		if p.Date.Before(sp.from) {
			sp.from = p.Date
		}
		if p.Date.After(sp.to) {
			sp.to = p.Date
		}
		spans[p.Symbol] = sp
	}

	for symbol, sp := range spans {
		existing, err := s.GetByDateRange(ctx, symbol, sp.from, sp.to)
		if err != nil {
			return fmt.Errorf("check existing: %w", err)
		}
		for _, e := range existing {
			if _, dup := seen[keyOf(e.Symbol, e.Date)]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_series (`+priceColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.Symbol, p.Date.UTC(), p.AdjustedClose,
			p.MA20, p.MA50, p.MA200, p.RSI14, p.Volatility20,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbol retrieves the full series for a symbol, ascending by date.
func (s *PriceSeriesStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM price_series FINAL
		WHERE symbol = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByDateRange retrieves points within [from, to] (inclusive).
func (s *PriceSeriesStore) GetByDateRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM price_series FINAL
		WHERE symbol = ? AND date >= toDate(?) AND date <= toDate(?)
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol,
		from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		err := rows.Scan(
			&p.Symbol, &p.Date, &p.AdjustedClose,
			&p.MA20, &p.MA50, &p.MA200, &p.RSI14, &p.Volatility20,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price series row: %w", err)
		}
		p.Date = p.Date.UTC()
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price series rows: %w", err)
	}
	return points, nil
}
