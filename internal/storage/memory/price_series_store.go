package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/storage"
)

// PriceSeriesStore is an in-memory implementation of storage.PriceSeriesStore.
type PriceSeriesStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // keyed by (symbol, date)
}

// NewPriceSeriesStore creates a new in-memory price series store.
func NewPriceSeriesStore() *PriceSeriesStore {
	return &PriceSeriesStore{
		data: make(map[string]*domain.PricePoint),
	}
}

// priceKey generates a unique key for a price point.
func priceKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s|%s", symbol, date.UTC().Format(time.DateOnly))
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyPoint(p *domain.PricePoint) *domain.PricePoint {
	c := *p
	c.MA20 = copyFloat(p.MA20)
	c.MA50 = copyFloat(p.MA50)
	c.MA200 = copyFloat(p.MA200)
	c.RSI14 = copyFloat(p.RSI14)
	c.Volatility20 = copyFloat(p.Volatility20)
	return &c
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *PriceSeriesStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := priceKey(p.Symbol, p.Date)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		s.data[priceKey(p.Symbol, p.Date)] = copyPoint(p)
	}

	return nil
}

// GetBySymbol retrieves all points for a symbol, ordered by date ASC.
func (s *PriceSeriesStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.PricePoint, error) {
	return s.filter(func(p *domain.PricePoint) bool {
		return p.Symbol == symbol
	}), nil
}

// GetByDateRange retrieves points for a symbol within [from, to] (inclusive).
func (s *PriceSeriesStore) GetByDateRange(_ context.Context, symbol string, from, to time.Time) ([]*domain.PricePoint, error) {
	return s.filter(func(p *domain.PricePoint) bool {
		return p.Symbol == symbol && !p.Date.Before(from) && !p.Date.After(to)
	}), nil
}

func (s *PriceSeriesStore) filter(keep func(*domain.PricePoint) bool) []*domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if keep(p) {
			result = append(result, copyPoint(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result
}

var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)
