package adaptive

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"dca-backtest-lab/internal/domain"
)

// windowCacheSize bounds the number of cached windows per service.
const windowCacheSize = 100

type windowKey struct {
	seriesLength int
	windowDays   int
}

// windowCache memoizes window extraction for one run. Keys are only
// meaningful while the underlying series is append-only.
type windowCache struct {
	cache *lru.Cache[windowKey, Window]
}

func newWindowCache() (*windowCache, error) {
	c, err := lru.New[windowKey, Window](windowCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create window cache: %w", err)
	}
	return &windowCache{cache: c}, nil
}

// get returns the last windowDays prices of history and the transactions
// dated inside that span.
func (c *windowCache) get(history []domain.PricePoint, txs []domain.Transaction, windowDays int) Window {
	key := windowKey{seriesLength: len(history), windowDays: windowDays}
	if w, ok := c.cache.Get(key); ok {
		return w
	}
	w := ExtractWindow(history, txs, windowDays)
	c.cache.Add(key, w)
	return w
}

func (c *windowCache) len() int {
	return c.cache.Len()
}

// ExtractWindow slices the trailing windowDays entries of history.
// A non-positive windowDays uses the whole history.
func ExtractWindow(history []domain.PricePoint, txs []domain.Transaction, windowDays int) Window {
	if len(history) == 0 {
		return Window{}
	}
	start := 0
	if windowDays > 0 && len(history) > windowDays {
		start = len(history) - windowDays
	}
	prices := make([]domain.PricePoint, len(history)-start)
	copy(prices, history[start:])

	w := Window{
		Prices:    prices,
		StartDate: prices[0].Date,
		EndDate:   prices[len(prices)-1].Date,
	}
	for _, tx := range txs {
		if !tx.Date.Before(w.StartDate) && !tx.Date.After(w.EndDate) {
			w.Transactions = append(w.Transactions, tx)
		}
	}
	return w
}
