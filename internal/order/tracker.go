// Package order implements the trailing-stop buy and sell machines and the
// per-run state they read: the peak/bottom tracker and the consecutive
// trade streaks.
package order

import "time"

// Tracker holds the highest and lowest price since the last executed
// transaction.
type Tracker struct {
	Peak                float64
	Bottom              float64
	LastTransactionDate time.Time

	initialized bool
}

// Observe widens the tracked range to include price.
// The first observation initializes both extremes.
func (t *Tracker) Observe(price float64) {
	if !t.initialized {
		t.Peak = price
		t.Bottom = price
		t.initialized = true
		return
	}
	if price > t.Peak {
		t.Peak = price
	}
	if price < t.Bottom {
		t.Bottom = price
	}
}

// Reset collapses the range to price after an executed transaction.
func (t *Tracker) Reset(price float64, date time.Time) {
	t.Peak = price
	t.Bottom = price
	t.LastTransactionDate = date
	t.initialized = true
}

// Initialized reports whether any price has been observed.
func (t *Tracker) Initialized() bool {
	return t.initialized
}
