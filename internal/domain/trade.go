package domain

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

// Transaction types.
const (
	TransactionBuy         TransactionType = "BUY"
	TransactionSell        TransactionType = "SELL"
	TransactionAbortedBuy  TransactionType = "ABORTED_BUY"
	TransactionAbortedSell TransactionType = "ABORTED_SELL"
)

// IsExecuted reports whether the transaction changed the position.
func (t TransactionType) IsExecuted() bool {
	return t == TransactionBuy || t == TransactionSell
}

// Abort reason codes.
const (
	AbortReasonPriceNotBelowLastBuy = "PRICE_NOT_BELOW_LAST_BUY"
	AbortReasonNoEligibleLots       = "NO_ELIGIBLE_LOTS_FOR_CONSECUTIVE_SELL"
)

// Transaction is an immutable record of an executed or aborted order event,
// carrying a full before/after snapshot of the position.
type Transaction struct {
	ID    string          `json:"id"`    // deterministic hash
	RunID string          `json:"runId"` // owning run
	Seq   int             `json:"seq"`   // position in the run's ledger
	Type  TransactionType `json:"type"`
	Date  time.Time       `json:"date"`

	Price  float64 `json:"price"`  // execution (or attempted) price
	Shares float64 `json:"shares"` // shares bought/sold, 0 for aborted
	Value  float64 `json:"value"`  // price * shares

	// Sell-only fields
	LotPrice         float64   `json:"lotPrice,omitempty"`
	LotDate          time.Time `json:"lotDate,omitempty"`
	RealizedPNL      float64   `json:"realizedPnl,omitempty"`
	HoldingDays      int       `json:"holdingDays,omitempty"`
	AnnualizedReturn float64   `json:"annualizedReturn,omitempty"`

	// Trailing order levels at execution. StopPrice is set for buys and
	// sells, LimitPrice only for sells.
	StopPrice  float64 `json:"stopPrice,omitempty"`
	LimitPrice float64 `json:"limitPrice,omitempty"`

	Reason string `json:"reason,omitempty"` // abort reason code

	LotsBefore         []Lot   `json:"lotsBefore"`
	LotsAfter          []Lot   `json:"lotsAfter"`
	AverageCostAfter   float64 `json:"averageCostAfter"`
	UnrealizedPNLAfter float64 `json:"unrealizedPnlAfter"`
	TotalRealizedPNL   float64 `json:"totalRealizedPnl"`

	ConsecutiveBuyCount  int     `json:"consecutiveBuyCount"`
	ConsecutiveSellCount int     `json:"consecutiveSellCount"`
	GridSpacing          float64 `json:"gridSpacing,omitempty"`
	ProfitRequirement    float64 `json:"profitRequirement,omitempty"`
	Scenario             string  `json:"scenario,omitempty"` // active regime, empty when adaptive is off
}

// Questionable event kinds and severities.
const (
	QuestionableSameDaySellBuy = "SAME_DAY_SELL_BUY"
	SeverityWarning            = "WARNING"
)

// QuestionableEvent is an audit warning. It never alters control flow.
type QuestionableEvent struct {
	Date        time.Time `json:"date"`
	Kind        string    `json:"kind"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
}
