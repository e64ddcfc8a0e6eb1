package domain

import "time"

// PerformanceReport is the MetricsAggregator output for one run.
// Return fields are fractions (0.12 = 12%).
type PerformanceReport struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Days      int       `json:"days"` // calendar days between first and last price

	// Returns
	TotalPNL             float64   `json:"totalPnl"`
	TotalReturn          float64   `json:"totalReturn"`          // on max exposure
	AnnualizedReturn     float64   `json:"annualizedReturn"`     // simple interest
	CAGR                 float64   `json:"cagr"`                 // compounded, on max exposure
	ReturnOnDeployed     float64   `json:"returnOnDeployed"`     // on average deployed capital
	CAGROnDeployed       float64   `json:"cagrOnDeployed"`       // compounded, on average deployed capital
	FinalPortfolioValue  float64   `json:"finalPortfolioValue"`  // max exposure + total P&L
	AvgTradeAnnualized   float64   `json:"avgTradeAnnualized"`   // mean of per-sell annualized returns
	AvgHoldingAnnualized float64   `json:"avgHoldingAnnualized"` // mean over open lots, exit at end date
	HoldingAnnualized    []float64 `json:"holdingAnnualized"`    // per open lot, acquisition order

	// Risk
	MaxDrawdown    float64 `json:"maxDrawdown"`    // absolute, on portfolio value
	MaxDrawdownPct float64 `json:"maxDrawdownPct"` // fraction of peak
	SharpeRatio    float64 `json:"sharpeRatio"`
	SortinoRatio   float64 `json:"sortinoRatio"`

	// Trades
	TotalBuys     int      `json:"totalBuys"`
	TotalSells    int      `json:"totalSells"`
	AbortedBuys   int      `json:"abortedBuys"`
	AbortedSells  int      `json:"abortedSells"`
	NumTrades     int      `json:"numTrades"`
	Wins          int      `json:"wins"`
	Losses        int      `json:"losses"`
	WinRate       float64  `json:"winRate"`
	ProfitFactor  *float64 `json:"profitFactor"` // nil when no losing sells
	AvgBuyPrice   float64  `json:"avgBuyPrice"`
	AvgSellPrice  float64  `json:"avgSellPrice"`
	RealizedPNL   float64  `json:"realizedPnl"`
	UnrealizedPNL float64  `json:"unrealizedPnl"`

	// Capital utilization
	AvgDeployed     float64 `json:"avgDeployed"`
	MaxDeployed     float64 `json:"maxDeployed"`
	MaxExposure     float64 `json:"maxExposure"`
	UtilizationRate float64 `json:"utilizationRate"` // avg deployed / max exposure
}

// BacktestRun is the persisted summary of one simulation run.
type BacktestRun struct {
	RunID         string             `json:"runId"`
	Symbol        string             `json:"symbol"`
	StartDate     time.Time          `json:"startDate"`
	EndDate       time.Time          `json:"endDate"`
	Parameters    StrategyParameters `json:"parameters"`
	RealizedPNL   float64            `json:"realizedPnl"`
	UnrealizedPNL float64            `json:"unrealizedPnl"`
	FinalLots     []Lot              `json:"finalLots"`
	Report        PerformanceReport  `json:"report"`
	Transactions  int                `json:"transactions"`
	RegimeChanges int                `json:"regimeChanges"`
	Questionable  int                `json:"questionable"`
	CreatedAt     time.Time          `json:"createdAt"`
}
