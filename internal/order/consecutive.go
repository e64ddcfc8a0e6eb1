package order

import "dca-backtest-lab/internal/domain"

// ConsecutiveState tracks same-direction trade streaks for the whole run.
// It changes only when a trade executes.
type ConsecutiveState struct {
	LastAction    domain.TransactionType // empty before the first trade
	LastBuyPrice  *float64
	BuyCount      int
	LastSellPrice *float64
	SellCount     int
}

// RecordBuy applies an executed buy at price.
// A buy at or above the previous buy price restarts the count at zero
// and keeps the previous price as the reference.
func (c *ConsecutiveState) RecordBuy(price float64) {
	c.LastAction = domain.TransactionBuy
	if c.LastBuyPrice != nil && price >= *c.LastBuyPrice {
		c.BuyCount = 0
		return
	}
	c.BuyCount++
	p := price
	c.LastBuyPrice = &p
}

// RecordSell applies an executed sell at price. Any sell ends the buy streak.
func (c *ConsecutiveState) RecordSell(price float64) {
	c.LastAction = domain.TransactionSell
	if c.LastSellPrice != nil && price > *c.LastSellPrice {
		c.SellCount++
	} else {
		c.SellCount = 1
	}
	p := price
	c.LastSellPrice = &p
	c.BuyCount = 0
	c.LastBuyPrice = nil
}

// IsConsecutiveSell reports whether a sell at price would extend a sell streak.
func (c *ConsecutiveState) IsConsecutiveSell(price float64) bool {
	return c.LastSellPrice != nil && price > *c.LastSellPrice
}

// Snapshot returns a deep copy.
func (c ConsecutiveState) Snapshot() ConsecutiveState {
	out := c
	if c.LastBuyPrice != nil {
		v := *c.LastBuyPrice
		out.LastBuyPrice = &v
	}
	if c.LastSellPrice != nil {
		v := *c.LastSellPrice
		out.LastSellPrice = &v
	}
	return out
}
