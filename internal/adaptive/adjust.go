package adaptive

import (
	"math"

	"dca-backtest-lab/internal/domain"
)

// Safe ranges for adjusted parameters.
const (
	minGrid      = 0.01
	maxGrid      = 0.50
	minProfit    = 0.005
	maxProfit    = 0.50
	minTrailing  = 0.005
	maxTrailing  = 0.50
	minStopLoss  = 0.05
	maxStopLoss  = 0.50
	maxEntryDays = 30
)

// Adjustment is one row of the scenario table. Multipliers apply to the
// baseline value; nil toggles keep the baseline.
type Adjustment struct {
	Grid           float64
	Profit         float64
	MaxLots        float64
	MaxLotsToSell  float64
	BuyActivation  float64
	BuyRebound     float64
	SellActivation float64
	SellPullback   float64
	StopLoss       float64
	EntryDelayDays int

	BuyEnabled            *bool
	SellEnabled           *bool
	ConsecutiveBuyGrid    *bool
	ConsecutiveSellProfit *bool
}

func boolPtr(b bool) *bool { return &b }

func unit() Adjustment {
	return Adjustment{
		Grid: 1, Profit: 1, MaxLots: 1, MaxLotsToSell: 1,
		BuyActivation: 1, BuyRebound: 1, SellActivation: 1, SellPullback: 1, StopLoss: 1,
	}
}

// Table returns the adjustment row for a scenario. Unknown scenarios map to
// the identity row.
func Table(s domain.ScenarioType) Adjustment {
	a := unit()
	switch s {
	case domain.ScenarioDowntrend:
		a.BuyEnabled = boolPtr(false)
		a.Grid = 1.5
		a.Profit = 0.5
		a.MaxLots = 0.5
		a.BuyActivation = 1.5
		a.SellActivation = 0.5
		a.SellPullback = 0.8
		a.StopLoss = 0.7
		a.EntryDelayDays = 5
		a.ConsecutiveBuyGrid = boolPtr(false)
		a.ConsecutiveSellProfit = boolPtr(false)
	case domain.ScenarioOscillatingUptrend:
		a.Grid = 0.8
		a.BuyActivation = 0.8
		a.SellActivation = 0.8
	case domain.ScenarioMissedRally:
		a.Grid = 1.2
		a.Profit = 1.5
		a.BuyActivation = 0.5
		a.SellActivation = 1.5
		a.SellPullback = 1.2
		a.StopLoss = 1.2
	}
	return a
}

// Adjust derives live parameters for a scenario from the baseline.
// It never reads previously adjusted values.
func Adjust(baseline domain.LiveParameters, s domain.ScenarioType) domain.LiveParameters {
	a := Table(s)
	out := baseline

	out.GridIntervalPercent = clamp(baseline.GridIntervalPercent*a.Grid, minGrid, maxGrid)
	out.ProfitRequirement = clamp(baseline.ProfitRequirement*a.Profit, minProfit, maxProfit)
	out.TrailingBuyActivationPercent = clamp(baseline.TrailingBuyActivationPercent*a.BuyActivation, minTrailing, maxTrailing)
	out.TrailingBuyReboundPercent = clamp(baseline.TrailingBuyReboundPercent*a.BuyRebound, minTrailing, maxTrailing)
	out.TrailingSellActivationPercent = clamp(baseline.TrailingSellActivationPercent*a.SellActivation, minTrailing, maxTrailing)
	out.TrailingSellPullbackPercent = clamp(baseline.TrailingSellPullbackPercent*a.SellPullback, minTrailing, maxTrailing)
	out.HardStopLossPercent = clamp(baseline.HardStopLossPercent*a.StopLoss, minStopLoss, maxStopLoss)

	out.MaxLots = clampInt(int(math.Round(float64(baseline.MaxLots)*a.MaxLots)), 1, baseline.MaxLots)
	out.MaxLotsToSell = clampInt(int(math.Round(float64(baseline.MaxLotsToSell)*a.MaxLotsToSell)), 1, out.MaxLots)
	out.EntryDelayDays = clampInt(baseline.EntryDelayDays+a.EntryDelayDays, 0, maxEntryDays)

	if a.BuyEnabled != nil {
		out.BuyEnabled = *a.BuyEnabled
	}
	if a.SellEnabled != nil {
		out.SellEnabled = *a.SellEnabled
	}
	if a.ConsecutiveBuyGrid != nil {
		out.EnableConsecutiveIncrementalBuyGrid = *a.ConsecutiveBuyGrid
	}
	if a.ConsecutiveSellProfit != nil {
		out.EnableConsecutiveIncrementalSellProfit = *a.ConsecutiveSellProfit
	}
	return out
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

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
