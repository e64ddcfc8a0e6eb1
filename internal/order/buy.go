package order

import (
	"fmt"
	"time"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/grid"
	"dca-backtest-lab/internal/position"
)

// BuyOrder is the single live trailing buy order.
type BuyOrder struct {
	StopPrice        float64
	TriggeredAtPrice float64
	ActivationDate   time.Time
	PeakReference    float64
	LastUpdatePrice  float64

	abortRecorded bool
}

// BuyInput is everything the buy machine reads for one day.
type BuyInput struct {
	Date        time.Time
	Price       float64
	LotSizeUSD  float64
	Live        domain.LiveParameters
	Grid        grid.Policy
	EntryDelay  bool // buys held back after a regime change
	Tracker     *Tracker
	Ledger      *position.Ledger
	Consecutive *ConsecutiveState
}

// BuyResult describes what the buy machine did.
type BuyResult struct {
	Action    Action
	Reason    string         // blocked or abort reason
	Violation grid.Violation // set when blocked by grid spacing
	Lot       domain.Lot     // set when executed
	Order     BuyOrder       // order state after evaluation
}

// BuyMachine is the trailing-stop buy state machine.
// IDLE -> ARMED -> (CANCELLED | EXECUTED).
type BuyMachine struct {
	order  *BuyOrder
	market bool
}

// NewBuyMachine creates an idle buy machine. orderType is domain.OrderTypeLimit
// or domain.OrderTypeMarket.
func NewBuyMachine(orderType string) *BuyMachine {
	return &BuyMachine{market: orderType == domain.OrderTypeMarket}
}

// Order returns the armed order, or nil.
func (m *BuyMachine) Order() *BuyOrder {
	if m.order == nil {
		return nil
	}
	o := *m.order
	return &o
}

// Armed reports whether an order is live.
func (m *BuyMachine) Armed() bool {
	return m.order != nil
}

// Evaluate advances the machine by one day. On execution it adds the lot to
// the ledger, updates the consecutive state and resets the tracker.
func (m *BuyMachine) Evaluate(in BuyInput) (BuyResult, error) {
	if m.order == nil {
		return m.activate(in), nil
	}

	o := m.order
	price := in.Price

	if !m.market && price > o.PeakReference {
		m.order = nil
		return BuyResult{Action: ActionCancelled, Order: *o}, nil
	}

	if next := price * (1 + in.Live.TrailingBuyReboundPercent); next < o.StopPrice {
		o.StopPrice = next
		o.LastUpdatePrice = price
		return BuyResult{Action: ActionUpdated, Order: *o}, nil
	}

	if price < o.StopPrice {
		return BuyResult{Action: ActionNone, Order: *o}, nil
	}

	return m.trigger(in)
}

func (m *BuyMachine) activate(in BuyInput) BuyResult {
	if !in.Live.BuyEnabled || !in.Tracker.Initialized() {
		return BuyResult{Action: ActionNone}
	}
	peak := in.Tracker.Peak
	if peak <= 0 || in.Price > peak*(1-in.Live.TrailingBuyActivationPercent) {
		return BuyResult{Action: ActionNone}
	}

	m.order = &BuyOrder{
		StopPrice:        in.Price * (1 + in.Live.TrailingBuyReboundPercent),
		TriggeredAtPrice: in.Price,
		ActivationDate:   in.Date,
		PeakReference:    peak,
		LastUpdatePrice:  in.Price,
	}
	return BuyResult{Action: ActionActivated, Order: *m.order}
}

// trigger runs the execution gates in order: adaptive disable and entry
// delay, lot capacity, the consecutive-buy price restriction, grid spacing.
func (m *BuyMachine) trigger(in BuyInput) (BuyResult, error) {
	o := m.order
	price := in.Price

	switch {
	case !in.Live.BuyEnabled:
		return BuyResult{Action: ActionBlocked, Reason: BlockBuyDisabled, Order: *o}, nil
	case in.EntryDelay:
		return BuyResult{Action: ActionBlocked, Reason: BlockEntryDelay, Order: *o}, nil
	case in.Ledger.Count() >= in.Live.MaxLots || in.Ledger.Count() >= in.Ledger.MaxLots():
		return BuyResult{Action: ActionBlocked, Reason: BlockMaxLots, Order: *o}, nil
	}

	c := in.Consecutive
	if in.Live.EnableConsecutiveIncrementalBuyGrid && c.LastBuyPrice != nil && price >= *c.LastBuyPrice {
		if o.abortRecorded {
			return BuyResult{Action: ActionBlocked, Reason: domain.AbortReasonPriceNotBelowLastBuy, Order: *o}, nil
		}
		o.abortRecorded = true
		return BuyResult{Action: ActionAborted, Reason: domain.AbortReasonPriceNotBelowLastBuy, Order: *o}, nil
	}

	if ok, v := in.Grid.Admissible(price, in.Ledger.Lots(), c.BuyCount); !ok {
		return BuyResult{Action: ActionBlocked, Reason: BlockGridSpacing, Violation: v, Order: *o}, nil
	}

	shares := in.LotSizeUSD / price
	if err := in.Ledger.AddLot(price, shares, in.Date); err != nil {
		return BuyResult{}, fmt.Errorf("execute buy at %v: %w", price, err)
	}

	c.RecordBuy(price)
	in.Tracker.Reset(price, in.Date)
	m.order = nil

	return BuyResult{
		Action: ActionExecuted,
		Lot:    domain.Lot{Price: price, Shares: shares, Date: in.Date},
		Order:  *o,
	}, nil
}
