package domain

import "time"

// Lot is one discrete purchase of shares, tracked individually for cost basis.
// A lot is never mutated; it is removed only by a sell that names it.
type Lot struct {
	Price  float64   `json:"price"`
	Shares float64   `json:"shares"`
	Date   time.Time `json:"date"`
}

// Cost returns price * shares.
func (l Lot) Cost() float64 {
	return l.Price * l.Shares
}

// SameLot reports whether two lots have the same (price, shares) identity.
func (l Lot) SameLot(o Lot) bool {
	return l.Price == o.Price && l.Shares == o.Shares
}
