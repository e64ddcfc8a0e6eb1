package domain

import "time"

// PricePoint is one trading day of a symbol's price history.
// Indicator fields are precomputed upstream and may be nil.
type PricePoint struct {
	Symbol        string    // ticker symbol
	Date          time.Time // trading day (UTC midnight)
	AdjustedClose float64   // split/dividend adjusted close

	MA20         *float64 // 20-day simple moving average
	MA50         *float64 // 50-day simple moving average
	MA200        *float64 // 200-day simple moving average
	RSI14        *float64 // 14-day RSI
	Volatility20 *float64 // 20-day stdev of daily returns
}

// DailyValue is the end-of-day portfolio snapshot recorded by the simulation loop.
type DailyValue struct {
	Date           time.Time
	Price          float64
	LotCount       int
	Deployed       float64 // total cost basis of open lots
	MarketValue    float64 // open lots marked at Price
	RealizedPNL    float64 // cumulative
	UnrealizedPNL  float64
	PortfolioValue float64 // max exposure + realized + unrealized
}
