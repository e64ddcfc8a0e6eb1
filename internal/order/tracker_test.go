package order

import (
	"testing"
	"time"

	"dca-backtest-lab/internal/domain"
)

func day(i int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestTracker_ObserveAndReset(t *testing.T) {
	var tr Tracker
	if tr.Initialized() {
		t.Fatal("zero tracker should not be initialized")
	}

	for _, p := range []float64{100, 105, 97, 101} {
		tr.Observe(p)
	}
	if tr.Peak != 105 || tr.Bottom != 97 {
		t.Errorf("peak/bottom = %v/%v, want 105/97", tr.Peak, tr.Bottom)
	}

	tr.Reset(99, day(4))
	if tr.Peak != 99 || tr.Bottom != 99 {
		t.Errorf("after reset peak/bottom = %v/%v, want 99/99", tr.Peak, tr.Bottom)
	}
	if !tr.LastTransactionDate.Equal(day(4)) {
		t.Errorf("last transaction date = %v", tr.LastTransactionDate)
	}
}

func TestConsecutiveState(t *testing.T) {
	var c ConsecutiveState

	c.RecordBuy(100)
	c.RecordBuy(90)
	if c.BuyCount != 2 || *c.LastBuyPrice != 90 {
		t.Fatalf("after two falling buys: count=%d last=%v", c.BuyCount, *c.LastBuyPrice)
	}

	// not below the previous buy: count restarts, reference kept
	c.RecordBuy(95)
	if c.BuyCount != 0 || *c.LastBuyPrice != 90 {
		t.Errorf("after rising buy: count=%d last=%v, want 0/90", c.BuyCount, *c.LastBuyPrice)
	}

	c.RecordSell(110)
	if c.SellCount != 1 || *c.LastSellPrice != 110 {
		t.Errorf("first sell: count=%d last=%v", c.SellCount, *c.LastSellPrice)
	}
	if c.BuyCount != 0 || c.LastBuyPrice != nil {
		t.Errorf("sell must clear buy streak, got count=%d last=%v", c.BuyCount, c.LastBuyPrice)
	}
	if c.LastAction != domain.TransactionSell {
		t.Errorf("last action = %s", c.LastAction)
	}

	c.RecordSell(120)
	if c.SellCount != 2 {
		t.Errorf("higher sell count = %d, want 2", c.SellCount)
	}
	c.RecordSell(115)
	if c.SellCount != 1 {
		t.Errorf("lower sell count = %d, want 1", c.SellCount)
	}

	if !c.IsConsecutiveSell(116) || c.IsConsecutiveSell(115) {
		t.Error("IsConsecutiveSell must be strict above last sell price")
	}

	snap := c.Snapshot()
	*snap.LastSellPrice = 1
	if *c.LastSellPrice != 115 {
		t.Error("Snapshot must deep copy")
	}
}
