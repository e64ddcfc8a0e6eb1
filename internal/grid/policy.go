// Package grid computes the minimum price spacing required between lots.
package grid

import (
	"math"

	"dca-backtest-lab/internal/domain"
)

// Spacing modes.
const (
	ModeFixed   = "fixed"
	ModeDynamic = "dynamic"
)

// Dynamic spacing bounds and scale.
const (
	dynamicBaseUnit   = 0.10  // spacing at normalized price 100
	dynamicScalePrice = 100.0 // normalized price at which baseUnit applies
	MinDynamicSpacing = 0.005
	MaxDynamicSpacing = 0.50
)

// Policy computes required fractional spacing between a candidate buy
// price and existing lots.
type Policy struct {
	Mode         string  // ModeFixed or ModeDynamic
	GridInterval float64 // fixed spacing, and consecutive base when fixed

	// Dynamic mode
	Multiplier     float64
	Normalize      bool
	ReferencePrice float64 // 0 until the first trade of the run

	// Consecutive-incremental buy grid
	Consecutive          bool
	ConsecutiveIncrement float64
}

// FromParameters builds a policy from static and live parameters.
// The reference price is carried over by the caller.
func FromParameters(p domain.StrategyParameters, live domain.LiveParameters, referencePrice float64) Policy {
	mode := ModeFixed
	if live.EnableDynamicGrid {
		mode = ModeDynamic
	}
	return Policy{
		Mode:                 mode,
		GridInterval:         live.GridIntervalPercent,
		Multiplier:           p.DynamicGridMultiplier,
		Normalize:            p.NormalizeToReference,
		ReferencePrice:       referencePrice,
		Consecutive:          live.EnableConsecutiveIncrementalBuyGrid,
		ConsecutiveIncrement: p.GridConsecutiveIncrement,
	}
}

// DynamicSpacing maps a mid price to spacing:
//
//	normalized = mid/reference*100 (when normalizing against a known reference), else mid
//	spacing    = multiplier * 0.10 * sqrt(normalized/100), clamped to [0.005, 0.50]
func DynamicSpacing(mid, reference, multiplier float64, normalize bool) float64 {
	normalized := mid
	if normalize && reference > 0 {
		normalized = mid / reference * dynamicScalePrice
	}
	if normalized <= 0 {
		return MinDynamicSpacing
	}
	spacing := multiplier * dynamicBaseUnit * math.Sqrt(normalized/dynamicScalePrice)
	return clamp(spacing, MinDynamicSpacing, MaxDynamicSpacing)
}

// Base returns the non-consecutive spacing required between candidate and lot.
func (p Policy) Base(candidate, lotPrice float64) float64 {
	if p.Mode == ModeDynamic {
		return DynamicSpacing((candidate+lotPrice)/2, p.ReferencePrice, p.Multiplier, p.Normalize)
	}
	return p.GridInterval
}

// SpacingAt returns the base spacing at a single price level.
func (p Policy) SpacingAt(price float64) float64 {
	return p.Base(price, price)
}

// Required returns the spacing required between candidate and lotPrice.
// The consecutive increment only applies against the most recent lot.
func (p Policy) Required(candidate, lotPrice float64, mostRecent bool, consecutiveBuyCount int) float64 {
	base := p.Base(candidate, lotPrice)
	if p.Consecutive && mostRecent && consecutiveBuyCount > 0 {
		return base + float64(consecutiveBuyCount)*p.ConsecutiveIncrement
	}
	return base
}

// Violation describes the first lot that blocks a candidate buy.
type Violation struct {
	LotPrice float64
	Required float64
	Actual   float64
}

// Admissible reports whether candidate is far enough from every lot.
// lots must be in acquisition order.
func (p Policy) Admissible(candidate float64, lots []domain.Lot, consecutiveBuyCount int) (bool, Violation) {
	for i, lot := range lots {
		if lot.Price <= 0 {
			continue
		}
		required := p.Required(candidate, lot.Price, i == len(lots)-1, consecutiveBuyCount)
		actual := math.Abs(candidate-lot.Price) / lot.Price
		// tolerance for prices that sit exactly on a grid line
		if actual+1e-12 < required {
			return false, Violation{LotPrice: lot.Price, Required: required, Actual: actual}
		}
	}
	return true, Violation{}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
