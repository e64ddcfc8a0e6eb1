package simulation

import (
	"dca-backtest-lab/internal/adaptive"
	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/order"
	"dca-backtest-lab/internal/position"
)

// State is everything one simulation run mutates. It is owned by a single
// Simulate call and never shared.
type State struct {
	RunID  string
	Params domain.StrategyParameters
	Live   domain.LiveParameters

	Ledger      *position.Ledger
	Tracker     order.Tracker
	Consecutive order.ConsecutiveState
	Buy         *order.BuyMachine
	Sell        *order.SellMachine

	ReferencePrice float64 // first executed trade price, 0 before
	RealizedPNL    float64

	Transactions []domain.Transaction
	Questionable []domain.QuestionableEvent
	Daily        []domain.DailyValue
	Whipsaw      []adaptive.WhipsawWarning
}

// NewState creates the initial state for a run.
func NewState(runID string, params domain.StrategyParameters) *State {
	return &State{
		RunID:  runID,
		Params: params,
		Live:   domain.LiveFromStatic(params),
		Ledger: position.New(params.MaxLots),
		Buy:    order.NewBuyMachine(params.TrailingStopOrderType),
		Sell:   order.NewSellMachine(),
	}
}

// snapshot fills the post-trade fields of tx from ledger and the run totals.
func (s *State) snapshot(tx *domain.Transaction, ledger *position.Ledger, price float64) {
	tx.LotsAfter = ledger.Lots()
	tx.AverageCostAfter = ledger.AverageCost()
	tx.UnrealizedPNLAfter = ledger.UnrealizedPNL(price)
	tx.TotalRealizedPNL = s.RealizedPNL
	tx.ConsecutiveBuyCount = s.Consecutive.BuyCount
	tx.ConsecutiveSellCount = s.Consecutive.SellCount
}

// dailyValue marks the ledger at the day's close.
func (s *State) dailyValue(p domain.PricePoint) domain.DailyValue {
	unrealized := s.Ledger.UnrealizedPNL(p.AdjustedClose)
	return domain.DailyValue{
		Date:           p.Date,
		Price:          p.AdjustedClose,
		LotCount:       s.Ledger.Count(),
		Deployed:       s.Ledger.TotalCost(),
		MarketValue:    s.Ledger.MarketValue(p.AdjustedClose),
		RealizedPNL:    s.RealizedPNL,
		UnrealizedPNL:  unrealized,
		PortfolioValue: s.Params.MaxExposure() + s.RealizedPNL + unrealized,
	}
}
