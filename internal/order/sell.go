package order

import (
	"fmt"
	"math"
	"sort"
	"time"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/grid"
	"dca-backtest-lab/internal/position"
)

const (
	// limitDiscount sets the limit price floor relative to the stop.
	limitDiscount = 0.95
	// maxAnnualized caps compounding of very short holds so reports stay finite.
	maxAnnualized = 1e6
)

// SellOrder is the single live trailing sell order.
type SellOrder struct {
	StopPrice                   float64
	LimitPrice                  float64
	LotsToSell                  []domain.Lot
	HighestPriceSinceActivation float64
	BottomReference             float64
	LotProfitRequirement        float64
	Consecutive                 bool
	ActivationDate              time.Time
}

func (o SellOrder) clone() SellOrder {
	out := o
	out.LotsToSell = append([]domain.Lot(nil), o.LotsToSell...)
	return out
}

// SellInput is everything the sell machine reads for one day.
type SellInput struct {
	Date        time.Time
	Price       float64
	Live        domain.LiveParameters
	Grid        grid.Policy
	Tracker     *Tracker
	Ledger      *position.Ledger
	Consecutive *ConsecutiveState
}

// SellFill is one lot closed by an executed sell.
type SellFill struct {
	Lot              domain.Lot
	RealizedPNL      float64
	HoldingDays      int
	AnnualizedReturn float64
}

// SellResult describes what the sell machine did.
type SellResult struct {
	Action Action
	Reason string
	Fills  []SellFill // set when executed, highest lot price first
	Order  SellOrder  // order state after evaluation
}

// SellMachine is the trailing-stop sell state machine.
// IDLE -> ARMED -> (CANCELLED | EXECUTED).
type SellMachine struct {
	order *SellOrder

	// ABORTED_SELL is recorded at most once per tracker cycle.
	abortedAt    time.Time
	abortedValid bool
}

// NewSellMachine creates an idle sell machine.
func NewSellMachine() *SellMachine {
	return &SellMachine{}
}

// Order returns the armed order, or nil.
func (m *SellMachine) Order() *SellOrder {
	if m.order == nil {
		return nil
	}
	o := m.order.clone()
	return &o
}

// Armed reports whether an order is live.
func (m *SellMachine) Armed() bool {
	return m.order != nil
}

// Evaluate advances the machine by one day. On execution it removes the sold
// lots from the ledger, updates the consecutive state and resets the tracker.
func (m *SellMachine) Evaluate(in SellInput) (SellResult, error) {
	if in.Ledger.IsEmpty() {
		m.order = nil
		return SellResult{Action: ActionNone}, nil
	}

	// profitability check, armed or not
	if in.Price <= in.Ledger.AverageCost()*(1+in.Live.ProfitRequirement) {
		if m.order != nil {
			o := m.order.clone()
			m.order = nil
			return SellResult{Action: ActionCancelled, Reason: BlockUnprofitable, Order: o}, nil
		}
		return SellResult{Action: ActionNone}, nil
	}

	if m.order == nil {
		return m.activate(in), nil
	}

	o := m.order
	if in.Price <= o.StopPrice {
		return m.trigger(in)
	}

	if in.Price > o.HighestPriceSinceActivation {
		return m.update(in), nil
	}

	return SellResult{Action: ActionNone, Order: o.clone()}, nil
}

// requirement returns the per-lot profit requirement and whether a sell at
// price extends a sell streak.
func requirement(in SellInput) (float64, bool) {
	consecutive := in.Consecutive.IsConsecutiveSell(in.Price)
	req := in.Live.ProfitRequirement
	if consecutive && in.Live.EnableConsecutiveIncrementalSellProfit {
		req += in.Grid.SpacingAt(in.Price)
	}
	return req, consecutive
}

// EligibleLots returns lots that may be sold at price, highest price first,
// capped at maxLots. The reference is the last sell price on a consecutive
// sell and the lot's own price otherwise. A lot is never sold at or below
// its purchase price.
func EligibleLots(lots []domain.Lot, price, req float64, lastSellPrice *float64, consecutive bool, maxLots int) []domain.Lot {
	var eligible []domain.Lot
	for _, lot := range lots {
		ref := lot.Price
		if consecutive && lastSellPrice != nil {
			ref = *lastSellPrice
		}
		if price > ref*(1+req) && price > lot.Price {
			eligible = append(eligible, lot)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Price > eligible[j].Price
	})
	if maxLots > 0 && len(eligible) > maxLots {
		eligible = eligible[:maxLots]
	}
	return eligible
}

func selectLots(in SellInput, req float64, consecutive bool) []domain.Lot {
	return EligibleLots(in.Ledger.Lots(), in.Price, req, in.Consecutive.LastSellPrice, consecutive, in.Live.MaxLotsToSell)
}

func limitFor(lots []domain.Lot, stop float64) float64 {
	highest := 0.0
	for _, lot := range lots {
		highest = math.Max(highest, lot.Price)
	}
	return math.Max(highest, stop*limitDiscount)
}

func (m *SellMachine) activate(in SellInput) SellResult {
	l := in.Ledger
	t := in.Tracker
	switch {
	case !in.Live.SellEnabled:
		return SellResult{Action: ActionNone}
	case l.Count() == 0 || in.Price <= l.AverageCost():
		return SellResult{Action: ActionNone}
	case in.Price < t.Bottom*(1+in.Live.TrailingSellActivationPercent):
		return SellResult{Action: ActionNone}
	case l.UnrealizedPNL(in.Price) <= 0:
		return SellResult{Action: ActionNone}
	}

	req, consecutive := requirement(in)
	lots := selectLots(in, req, consecutive)
	if len(lots) == 0 {
		if consecutive && !(m.abortedValid && m.abortedAt.Equal(t.LastTransactionDate)) {
			m.abortedAt = t.LastTransactionDate
			m.abortedValid = true
			return SellResult{Action: ActionAborted, Reason: domain.AbortReasonNoEligibleLots}
		}
		return SellResult{Action: ActionNone}
	}

	stop := in.Price * (1 - in.Live.TrailingSellPullbackPercent)
	m.order = &SellOrder{
		StopPrice:                   stop,
		LimitPrice:                  limitFor(lots, stop),
		LotsToSell:                  lots,
		HighestPriceSinceActivation: in.Price,
		BottomReference:             t.Bottom,
		LotProfitRequirement:        req,
		Consecutive:                 consecutive,
		ActivationDate:              in.Date,
	}
	return SellResult{Action: ActionActivated, Order: m.order.clone()}
}

// update re-selects lots at a new high and ratchets the stop upward.
func (m *SellMachine) update(in SellInput) SellResult {
	o := m.order
	o.HighestPriceSinceActivation = in.Price

	req, consecutive := requirement(in)
	lots := selectLots(in, req, consecutive)
	if len(lots) == 0 {
		m.order = nil
		return SellResult{Action: ActionCancelled, Order: o.clone()}
	}

	if stop := in.Price * (1 - in.Live.TrailingSellPullbackPercent); stop > o.StopPrice {
		o.StopPrice = stop
	}
	o.LotsToSell = lots
	o.LotProfitRequirement = req
	o.Consecutive = consecutive
	o.LimitPrice = limitFor(lots, o.StopPrice)
	return SellResult{Action: ActionUpdated, Order: o.clone()}
}

func (m *SellMachine) trigger(in SellInput) (SellResult, error) {
	o := m.order
	price := in.Price
	l := in.Ledger

	switch {
	case !in.Live.SellEnabled:
		return SellResult{Action: ActionBlocked, Reason: BlockSellDisabled, Order: o.clone()}, nil
	case price <= o.LimitPrice:
		return SellResult{Action: ActionBlocked, Reason: BlockBelowLimit, Order: o.clone()}, nil
	case price <= l.AverageCost()*(1+in.Live.ProfitRequirement):
		return SellResult{Action: ActionBlocked, Reason: BlockUnprofitable, Order: o.clone()}, nil
	}

	fills := make([]SellFill, 0, len(o.LotsToSell))
	for _, lot := range o.LotsToSell {
		days := HoldingDays(lot.Date, in.Date)
		fills = append(fills, SellFill{
			Lot:              lot,
			RealizedPNL:      lot.Shares * (price - lot.Price),
			HoldingDays:      days,
			AnnualizedReturn: AnnualizedReturn((price-lot.Price)/lot.Price, days),
		})
	}

	if err := l.RemoveLots(o.LotsToSell); err != nil {
		return SellResult{}, fmt.Errorf("execute sell at %v: %w", price, err)
	}

	in.Consecutive.RecordSell(price)
	in.Tracker.Reset(price, in.Date)
	done := o.clone()
	m.order = nil

	return SellResult{Action: ActionExecuted, Fills: fills, Order: done}, nil
}

// HoldingDays returns whole calendar days between from and to, at least 1.
func HoldingDays(from, to time.Time) int {
	days := int(to.Sub(from).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// AnnualizedReturn compounds a holding-period return to a yearly rate:
// (1+ret)^(365/days) - 1.
func AnnualizedReturn(ret float64, days int) float64 {
	if days < 1 {
		days = 1
	}
	if ret <= -1 {
		return -1
	}
	r := math.Pow(1+ret, 365/float64(days)) - 1
	if math.IsInf(r, 1) || r > maxAnnualized {
		return maxAnnualized
	}
	return r
}
