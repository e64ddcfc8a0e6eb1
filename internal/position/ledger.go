// Package position keeps the set of open lots for one simulation run.
package position

import (
	"errors"
	"fmt"
	"time"

	"dca-backtest-lab/internal/domain"
)

// Ledger errors
var (
	ErrMaxLotsReached = errors.New("max lots reached")
	ErrLotNotFound    = errors.New("lot not found in ledger")
	ErrInvalidLot     = errors.New("lot price and shares must be positive")
)

// Ledger owns the open lots in acquisition order.
// Not safe for concurrent use; one ledger belongs to one run.
type Ledger struct {
	maxLots int
	lots    []domain.Lot

	totalCost   float64
	totalShares float64
	averageCost float64
}

// New creates an empty ledger bounded by maxLots.
func New(maxLots int) *Ledger {
	return &Ledger{maxLots: maxLots}
}

// FromLots rebuilds a ledger holding lots in the given order.
func FromLots(maxLots int, lots []domain.Lot) *Ledger {
	l := &Ledger{maxLots: maxLots, lots: make([]domain.Lot, len(lots))}
	copy(l.lots, lots)
	l.recompute()
	return l
}

// AddLot appends a lot. Callers pre-check capacity; a full ledger
// returns ErrMaxLotsReached.
func (l *Ledger) AddLot(price, shares float64, date time.Time) error {
	if price <= 0 || shares <= 0 {
		return fmt.Errorf("%w: price=%v shares=%v", ErrInvalidLot, price, shares)
	}
	if len(l.lots) >= l.maxLots {
		return fmt.Errorf("%w: %d/%d", ErrMaxLotsReached, len(l.lots), l.maxLots)
	}
	l.lots = append(l.lots, domain.Lot{Price: price, Shares: shares, Date: date})
	l.recompute()
	return nil
}

// RemoveLots removes each named lot by (price, shares) identity.
// The ledger is left untouched if any lot is missing.
func (l *Ledger) RemoveLots(lots []domain.Lot) error {
	remaining := make([]domain.Lot, len(l.lots))
	copy(remaining, l.lots)

	for _, target := range lots {
		idx := -1
		for i, lot := range remaining {
			if lot.SameLot(target) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: price=%v shares=%v", ErrLotNotFound, target.Price, target.Shares)
		}
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}

	l.lots = remaining
	l.recompute()
	return nil
}

// recompute refreshes cached totals from scratch.
func (l *Ledger) recompute() {
	l.totalCost = 0
	l.totalShares = 0
	for _, lot := range l.lots {
		l.totalCost += lot.Cost()
		l.totalShares += lot.Shares
	}
	if l.totalShares > 0 {
		l.averageCost = l.totalCost / l.totalShares
	} else {
		l.averageCost = 0
	}
}

// AverageCost returns the share-weighted average lot price, 0 when empty.
func (l *Ledger) AverageCost() float64 {
	return l.averageCost
}

// TotalCost returns the summed cost basis of open lots.
func (l *Ledger) TotalCost() float64 {
	return l.totalCost
}

// TotalShares returns the summed shares of open lots.
func (l *Ledger) TotalShares() float64 {
	return l.totalShares
}

// MarketValue marks all open lots at price.
func (l *Ledger) MarketValue(price float64) float64 {
	return l.totalShares * price
}

// UnrealizedPNL returns market value minus cost basis at price.
func (l *Ledger) UnrealizedPNL(price float64) float64 {
	return l.MarketValue(price) - l.totalCost
}

// Count returns the number of open lots.
func (l *Ledger) Count() int {
	return len(l.lots)
}

// MaxLots returns the capacity the ledger was created with.
func (l *Ledger) MaxLots() int {
	return l.maxLots
}

// IsEmpty reports whether no lots are open.
func (l *Ledger) IsEmpty() bool {
	return len(l.lots) == 0
}

// Lots returns a copy of the open lots in acquisition order.
func (l *Ledger) Lots() []domain.Lot {
	out := make([]domain.Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Last returns the most recently acquired lot.
func (l *Ledger) Last() (domain.Lot, bool) {
	if len(l.lots) == 0 {
		return domain.Lot{}, false
	}
	return l.lots[len(l.lots)-1], true
}
