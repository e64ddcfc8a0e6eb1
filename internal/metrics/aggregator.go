// Package metrics builds the performance report of a simulation run.
package metrics

import (
	"math"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/order"
)

// Input is everything Aggregate reads.
type Input struct {
	Daily        []domain.DailyValue  // one per simulated day, ascending
	Transactions []domain.Transaction // full ledger including aborted entries
	OpenLots     []domain.Lot         // lots still held at the end
	Params       domain.StrategyParameters
}

// Aggregate computes the performance report. It is a pure function of in.
func Aggregate(in Input) domain.PerformanceReport {
	maxExposure := in.Params.MaxExposure()
	r := domain.PerformanceReport{
		MaxExposure:       maxExposure,
		HoldingAnnualized: []float64{},
	}
	if len(in.Daily) == 0 {
		return r
	}

	first := in.Daily[0]
	last := in.Daily[len(in.Daily)-1]
	r.StartDate = first.Date
	r.EndDate = last.Date
	r.Days = int(last.Date.Sub(first.Date).Hours() / 24)

	r.RealizedPNL = last.RealizedPNL
	r.UnrealizedPNL = last.UnrealizedPNL
	r.TotalPNL = r.RealizedPNL + r.UnrealizedPNL
	r.FinalPortfolioValue = maxExposure + r.TotalPNL

	computeCapital(&r, in.Daily, maxExposure)
	computeReturns(&r, maxExposure)
	computeRisk(&r, in.Daily)
	computeTrades(&r, in.Transactions)
	computeHoldings(&r, in.OpenLots, last)

	return r
}

func computeCapital(r *domain.PerformanceReport, daily []domain.DailyValue, maxExposure float64) {
	deployed := make([]float64, len(daily))
	for i, d := range daily {
		deployed[i] = d.Deployed
		r.MaxDeployed = math.Max(r.MaxDeployed, d.Deployed)
	}
	r.AvgDeployed = computeMean(deployed)
	if maxExposure > 0 {
		r.UtilizationRate = r.AvgDeployed / maxExposure
	}
}

func computeReturns(r *domain.PerformanceReport, maxExposure float64) {
	if maxExposure > 0 {
		r.TotalReturn = r.TotalPNL / maxExposure
	}
	if r.AvgDeployed > 0 {
		r.ReturnOnDeployed = r.TotalPNL / r.AvgDeployed
	}
	if r.Days < 1 {
		return
	}
	r.AnnualizedReturn = r.TotalReturn * 365 / float64(r.Days)
	r.CAGR = order.AnnualizedReturn(r.TotalReturn, r.Days)
	if r.AvgDeployed > 0 {
		r.CAGROnDeployed = order.AnnualizedReturn(r.ReturnOnDeployed, r.Days)
	}
}

func computeRisk(r *domain.PerformanceReport, daily []domain.DailyValue) {
	values := make([]float64, len(daily))
	for i, d := range daily {
		values[i] = d.PortfolioValue
	}
	r.MaxDrawdown, r.MaxDrawdownPct = computeMaxDrawdown(values)

	returns := computeDailyReturns(values)
	mean := computeMean(returns)
	r.SharpeRatio = computeRatio(mean, computeStddev(returns, mean))
	r.SortinoRatio = computeRatio(mean, computeDownsideDeviation(returns))
}

func computeTrades(r *domain.PerformanceReport, txs []domain.Transaction) {
	var buyPrices, sellPrices, sellAnnualized []float64
	grossProfit, grossLoss := 0.0, 0.0

	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionBuy:
			r.TotalBuys++
			buyPrices = append(buyPrices, tx.Price)
		case domain.TransactionSell:
			r.TotalSells++
			sellPrices = append(sellPrices, tx.Price)
			sellAnnualized = append(sellAnnualized, tx.AnnualizedReturn)
			switch {
			case tx.RealizedPNL > 0:
				r.Wins++
				grossProfit += tx.RealizedPNL
			case tx.RealizedPNL < 0:
				r.Losses++
				grossLoss -= tx.RealizedPNL
			}
		case domain.TransactionAbortedBuy:
			r.AbortedBuys++
		case domain.TransactionAbortedSell:
			r.AbortedSells++
		}
	}

	r.NumTrades = r.TotalBuys + r.TotalSells
	r.WinRate = computeWinRate(r.Wins, r.TotalSells)
	if grossLoss > 0 {
		pf := grossProfit / grossLoss
		r.ProfitFactor = &pf
	}
	r.AvgBuyPrice = computeMean(buyPrices)
	r.AvgSellPrice = computeMean(sellPrices)
	r.AvgTradeAnnualized = computeMean(sellAnnualized)
}

// computeHoldings annualizes each open lot as if sold at the last price on
// the last day.
func computeHoldings(r *domain.PerformanceReport, lots []domain.Lot, last domain.DailyValue) {
	for _, lot := range lots {
		if lot.Price <= 0 {
			continue
		}
		ret := (last.Price - lot.Price) / lot.Price
		days := order.HoldingDays(lot.Date, last.Date)
		r.HoldingAnnualized = append(r.HoldingAnnualized, order.AnnualizedReturn(ret, days))
	}
	r.AvgHoldingAnnualized = computeMean(r.HoldingAnnualized)
}
