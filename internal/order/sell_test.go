package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/grid"
	"dca-backtest-lab/internal/position"
)

type sellHarness struct {
	params  domain.StrategyParameters
	live    domain.LiveParameters
	machine *SellMachine
	tracker *Tracker
	ledger  *position.Ledger
	cons    *ConsecutiveState
}

func newSellHarness(mutate func(p *domain.StrategyParameters)) *sellHarness {
	p := domain.DefaultParameters()
	if mutate != nil {
		mutate(&p)
	}
	return &sellHarness{
		params:  p,
		live:    domain.LiveFromStatic(p),
		machine: NewSellMachine(),
		tracker: &Tracker{},
		ledger:  position.New(p.MaxLots),
		cons:    &ConsecutiveState{},
	}
}

// buy seeds a held lot the way an executed buy would.
func (h *sellHarness) buy(t *testing.T, i int, price float64) {
	t.Helper()
	require.NoError(t, h.ledger.AddLot(price, h.params.LotSizeUSD/price, day(i)))
	h.cons.RecordBuy(price)
	h.tracker.Reset(price, day(i))
}

func (h *sellHarness) step(t *testing.T, i int, price float64) SellResult {
	t.Helper()
	h.tracker.Observe(price)
	res, err := h.machine.Evaluate(SellInput{
		Date:        day(i),
		Price:       price,
		Live:        h.live,
		Grid:        grid.FromParameters(h.params, h.live, 0),
		Tracker:     h.tracker,
		Ledger:      h.ledger,
		Consecutive: h.cons,
	})
	require.NoError(t, err)
	return res
}

func TestSellMachine_ArmTrailExecute(t *testing.T) {
	h := newSellHarness(nil)
	h.buy(t, 0, 90)

	assert.Equal(t, ActionNone, h.step(t, 1, 100).Action) // below 90*1.2

	res := h.step(t, 2, 120)
	require.Equal(t, ActionActivated, res.Action)
	assert.InDelta(t, 108, res.Order.StopPrice, 1e-9)
	assert.InDelta(t, 102.6, res.Order.LimitPrice, 1e-9)
	assert.Equal(t, 90.0, res.Order.BottomReference)
	require.Len(t, res.Order.LotsToSell, 1)

	res = h.step(t, 3, 125)
	require.Equal(t, ActionUpdated, res.Action)
	assert.InDelta(t, 112.5, res.Order.StopPrice, 1e-9)
	assert.InDelta(t, 106.875, res.Order.LimitPrice, 1e-9)

	// pullback that stays above the stop leaves the stop alone
	res = h.step(t, 4, 118)
	assert.Equal(t, ActionNone, res.Action)
	assert.InDelta(t, 112.5, res.Order.StopPrice, 1e-9)

	res = h.step(t, 5, 112)
	require.Equal(t, ActionExecuted, res.Action)
	require.Len(t, res.Fills, 1)
	fill := res.Fills[0]
	assert.Equal(t, 90.0, fill.Lot.Price)
	assert.InDelta(t, (10000.0/90)*22, fill.RealizedPNL, 1e-9)
	assert.Equal(t, 5, fill.HoldingDays)
	assert.InDelta(t, AnnualizedReturn(22.0/90, 5), fill.AnnualizedReturn, 1e-9)

	assert.True(t, h.ledger.IsEmpty())
	assert.False(t, h.machine.Armed())
	assert.Equal(t, 112.0, h.tracker.Peak)
	assert.Equal(t, 112.0, h.tracker.Bottom)
	assert.Equal(t, 1, h.cons.SellCount)
	assert.Nil(t, h.cons.LastBuyPrice)
	assert.Equal(t, 0, h.cons.BuyCount)
}

func TestSellMachine_GapBelowLimitThenCancel(t *testing.T) {
	h := newSellHarness(nil)
	h.buy(t, 0, 90)
	h.step(t, 1, 120)
	h.step(t, 2, 125) // stop 112.5, limit 106.875

	res := h.step(t, 3, 100)
	assert.Equal(t, ActionBlocked, res.Action)
	assert.Equal(t, BlockBelowLimit, res.Reason)
	assert.True(t, h.machine.Armed())

	// at or below average cost * 1.05 the order is dropped
	res = h.step(t, 4, 94)
	assert.Equal(t, ActionCancelled, res.Action)
	assert.False(t, h.machine.Armed())
	assert.Equal(t, 1, h.ledger.Count())
}

func TestSellMachine_MultiLotHighestFirst(t *testing.T) {
	h := newSellHarness(func(p *domain.StrategyParameters) { p.MaxLotsToSell = 2 })
	h.buy(t, 0, 100)
	h.buy(t, 1, 90)
	h.buy(t, 2, 80)

	res := h.step(t, 3, 120)
	require.Equal(t, ActionActivated, res.Action)
	require.Len(t, res.Order.LotsToSell, 2)
	assert.Equal(t, 100.0, res.Order.LotsToSell[0].Price)
	assert.Equal(t, 90.0, res.Order.LotsToSell[1].Price)
	assert.InDelta(t, 102.6, res.Order.LimitPrice, 1e-9)

	res = h.step(t, 4, 108)
	require.Equal(t, ActionExecuted, res.Action)
	require.Len(t, res.Fills, 2)
	assert.Equal(t, 100.0, res.Fills[0].Lot.Price)
	assert.Equal(t, 90.0, res.Fills[1].Lot.Price)

	lots := h.ledger.Lots()
	require.Len(t, lots, 1)
	assert.Equal(t, 80.0, lots[0].Price)
	assert.Equal(t, 108.0, *h.cons.LastSellPrice)
}

func TestSellMachine_ConsecutiveAbort(t *testing.T) {
	h := newSellHarness(func(p *domain.StrategyParameters) {
		p.EnableConsecutiveIncrementalSellProfit = true
	})
	require.NoError(t, h.ledger.AddLot(100, 100, day(0)))
	h.cons.RecordSell(110)
	h.tracker.Reset(100, day(1))

	// consecutive: requirement 5% + 10% grid over last sell 110 -> 126.5
	res := h.step(t, 2, 121)
	assert.Equal(t, ActionAborted, res.Action)
	assert.Equal(t, domain.AbortReasonNoEligibleLots, res.Reason)

	assert.Equal(t, ActionNone, h.step(t, 3, 122).Action, "abort recorded once per cycle")

	res = h.step(t, 4, 127)
	require.Equal(t, ActionActivated, res.Action)
	assert.True(t, res.Order.Consecutive)
	assert.InDelta(t, 0.15, res.Order.LotProfitRequirement, 1e-12)
}

func TestSellMachine_EmptyLedger(t *testing.T) {
	h := newSellHarness(nil)
	h.step(t, 0, 50)
	assert.Equal(t, ActionNone, h.step(t, 1, 500).Action)
	assert.False(t, h.machine.Armed())
}

func TestSellMachine_SellDisabled(t *testing.T) {
	h := newSellHarness(nil)
	h.buy(t, 0, 90)
	h.step(t, 1, 120)

	h.live.SellEnabled = false
	res := h.step(t, 2, 107)
	assert.Equal(t, ActionBlocked, res.Action)
	assert.Equal(t, BlockSellDisabled, res.Reason)
	assert.Equal(t, 1, h.ledger.Count())
}

func TestSellMachine_NeverBelowLotPrice(t *testing.T) {
	lastSell := 80.0
	lots := []domain.Lot{{Price: 100, Shares: 1}, {Price: 70, Shares: 1}}

	got := EligibleLots(lots, 95, 0.05, &lastSell, true, 5)
	require.Len(t, got, 1)
	assert.Equal(t, 70.0, got[0].Price)
}

func TestAnnualizedReturn(t *testing.T) {
	assert.InDelta(t, 0.10, AnnualizedReturn(0.10, 365), 1e-12)
	assert.InDelta(t, 0.10, AnnualizedReturn(0.21, 730), 1e-9)
	assert.Equal(t, -1.0, AnnualizedReturn(-1, 10))
	assert.Equal(t, maxAnnualized, AnnualizedReturn(5, 1))
	assert.Equal(t, 1, HoldingDays(day(3), day(3)))
	assert.Equal(t, 7, HoldingDays(day(3), day(10)))
}
