package rediscache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/storage/memory"
)

func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	opt, err := redis.ParseURL(fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	rdb := redis.NewClient(opt)

	return rdb, func() {
		rdb.Close()
		_ = container.Terminate(ctx)
	}
}

type countingStore struct {
	*memory.PriceSeriesStore
	reads int
}

func (c *countingStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.PricePoint, error) {
	c.reads++
	return c.PriceSeriesStore.GetBySymbol(ctx, symbol)
}

func (c *countingStore) GetByDateRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.PricePoint, error) {
	c.reads++
	return c.PriceSeriesStore.GetByDateRange(ctx, symbol, from, to)
}

type hits struct{ hit, miss int }

func (h *hits) RecordCache(hit bool) {
	if hit {
		h.hit++
	} else {
		h.miss++
	}
}

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "prices:AAPL:all", seriesKey("AAPL"))
	assert.Equal(t, "prices:AAPL:keys", indexKey("AAPL"))
	assert.Equal(t, "prices:AAPL:2024-01-01:2024-01-03", rangeKey("AAPL", day(0), day(2)))
}

func TestPriceSeriesStore_ReadThrough(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	primary := &countingStore{PriceSeriesStore: memory.NewPriceSeriesStore()}
	obs := &hits{}
	store := NewPriceSeriesStore(primary, rdb, time.Minute, obs)

	ma := 99.0
	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		{Symbol: "AAPL", Date: day(0), AdjustedClose: 100, MA20: &ma},
		{Symbol: "AAPL", Date: day(1), AdjustedClose: 101},
	}))

	first, err := store.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	second, err := store.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 1, primary.reads, "second read should be served from redis")
	assert.Equal(t, 1, obs.hit)
	assert.Equal(t, 1, obs.miss)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].AdjustedClose, second[0].AdjustedClose)
	require.NotNil(t, second[0].MA20)
	assert.Equal(t, 99.0, *second[0].MA20)
	assert.True(t, day(0).Equal(second[0].Date))
}

func TestPriceSeriesStore_InsertInvalidates(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	primary := &countingStore{PriceSeriesStore: memory.NewPriceSeriesStore()}
	store := NewPriceSeriesStore(primary, rdb, time.Minute, nil)

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{{Symbol: "AAPL", Date: day(0), AdjustedClose: 100}}))

	_, err := store.GetByDateRange(ctx, "AAPL", day(0), day(5))
	require.NoError(t, err)

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{{Symbol: "AAPL", Date: day(1), AdjustedClose: 101}}))

	got, err := store.GetByDateRange(ctx, "AAPL", day(0), day(5))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, primary.reads)
}
