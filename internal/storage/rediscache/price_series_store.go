// Package rediscache puts a Redis read-through cache in front of a price
// series store. Series are immutable once loaded, so a cached read is only
// invalidated when the same symbol receives new points.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/storage"
)

// CacheObserver receives hit/miss notifications.
type CacheObserver interface {
	RecordCache(hit bool)
}

// PriceSeriesStore wraps a primary storage.PriceSeriesStore.
// Writes go to the primary and drop every cached range for the symbol.
type PriceSeriesStore struct {
	primary  storage.PriceSeriesStore
	rdb      *redis.Client
	ttl      time.Duration
	observer CacheObserver
}

// NewPriceSeriesStore creates a cached wrapper around primary.
// observer may be nil.
func NewPriceSeriesStore(primary storage.PriceSeriesStore, rdb *redis.Client, ttl time.Duration, observer CacheObserver) *PriceSeriesStore {
	return &PriceSeriesStore{
		primary:  primary,
		rdb:      rdb,
		ttl:      ttl,
		observer: observer,
	}
}

var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)

// InsertBulk writes through to the primary, then invalidates the cache.
func (s *PriceSeriesStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if err := s.primary.InsertBulk(ctx, points); err != nil {
		return err
	}

	symbols := make(map[string]struct{})
	for _, p := range points {
		symbols[p.Symbol] = struct{}{}
	}
	for sym := range symbols {
		s.invalidate(ctx, sym)
	}
	return nil
}

// GetBySymbol reads through the cache.
func (s *PriceSeriesStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error) {
	return s.readThrough(ctx, symbol, seriesKey(symbol), func() ([]*domain.PricePoint, error) {
		return s.primary.GetBySymbol(ctx, symbol)
	})
}

// GetByDateRange reads through the cache, keyed per range.
func (s *PriceSeriesStore) GetByDateRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.PricePoint, error) {
	return s.readThrough(ctx, symbol, rangeKey(symbol, from, to), func() ([]*domain.PricePoint, error) {
		return s.primary.GetByDateRange(ctx, symbol, from, to)
	})
}

func (s *PriceSeriesStore) readThrough(ctx context.Context, symbol, key string, load func() ([]*domain.PricePoint, error)) ([]*domain.PricePoint, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var points []*domain.PricePoint
		if json.Unmarshal(data, &points) == nil {
			s.record(true)
			return points, nil
		}
	}
	s.record(false)

	points, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(points); err == nil {
		pipe := s.rdb.TxPipeline()
		pipe.Set(ctx, key, data, s.ttl)
		pipe.SAdd(ctx, indexKey(symbol), key)
		pipe.Expire(ctx, indexKey(symbol), s.ttl)
		// cache failures never fail the read
		_, _ = pipe.Exec(ctx)
	}
	return points, nil
}

func (s *PriceSeriesStore) invalidate(ctx context.Context, symbol string) {
	keys, err := s.rdb.SMembers(ctx, indexKey(symbol)).Result()
	if err != nil {
		return
	}
	keys = append(keys, indexKey(symbol))
	s.rdb.Del(ctx, keys...)
}

func (s *PriceSeriesStore) record(hit bool) {
	if s.observer != nil {
		s.observer.RecordCache(hit)
	}
}

func seriesKey(symbol string) string { return fmt.Sprintf("prices:%s:all", symbol) }
func indexKey(symbol string) string  { return fmt.Sprintf("prices:%s:keys", symbol) }

func rangeKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("prices:%s:%s:%s", symbol, from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly))
}
