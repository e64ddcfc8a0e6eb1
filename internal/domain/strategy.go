package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is returned when strategy parameters fail validation.
var ErrInvalidParameter = errors.New("invalid strategy parameter")

// Trailing stop order types.
const (
	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"
)

// StrategyKindLong is the only strategy kind passed to classifiers today.
const StrategyKindLong = "long"

// StrategyParameters is the static parameter set of one backtest run.
// Percentages are fractions (0.10 = 10%).
type StrategyParameters struct {
	Symbol string `yaml:"symbol" json:"symbol"`

	LotSizeUSD    float64 `yaml:"lot_size_usd" json:"lotSizeUsd"`
	MaxLots       int     `yaml:"max_lots" json:"maxLots"`
	MaxLotsToSell int     `yaml:"max_lots_to_sell" json:"maxLotsToSell"`

	GridIntervalPercent float64 `yaml:"grid_interval_percent" json:"gridIntervalPercent"`
	ProfitRequirement   float64 `yaml:"profit_requirement" json:"profitRequirement"`

	TrailingBuyActivationPercent  float64 `yaml:"trailing_buy_activation_percent" json:"trailingBuyActivationPercent"`
	TrailingBuyReboundPercent     float64 `yaml:"trailing_buy_rebound_percent" json:"trailingBuyReboundPercent"`
	TrailingSellActivationPercent float64 `yaml:"trailing_sell_activation_percent" json:"trailingSellActivationPercent"`
	TrailingSellPullbackPercent   float64 `yaml:"trailing_sell_pullback_percent" json:"trailingSellPullbackPercent"`

	EnableDynamicGrid     bool    `yaml:"enable_dynamic_grid" json:"enableDynamicGrid"`
	NormalizeToReference  bool    `yaml:"normalize_to_reference" json:"normalizeToReference"`
	DynamicGridMultiplier float64 `yaml:"dynamic_grid_multiplier" json:"dynamicGridMultiplier"`

	EnableConsecutiveIncrementalBuyGrid    bool    `yaml:"enable_consecutive_incremental_buy_grid" json:"enableConsecutiveIncrementalBuyGrid"`
	GridConsecutiveIncrement               float64 `yaml:"grid_consecutive_increment" json:"gridConsecutiveIncrement"`
	EnableConsecutiveIncrementalSellProfit bool    `yaml:"enable_consecutive_incremental_sell_profit" json:"enableConsecutiveIncrementalSellProfit"`

	TrailingStopOrderType string `yaml:"trailing_stop_order_type" json:"trailingStopOrderType"`

	HardStopLossPercent float64 `yaml:"hard_stop_loss_percent" json:"hardStopLossPercent"`
	EntryDelayDays      int     `yaml:"entry_delay_days" json:"entryDelayDays"`

	EnableAdaptiveStrategy      bool    `yaml:"enable_adaptive_strategy" json:"enableAdaptiveStrategy"`
	AdaptationCheckIntervalDays int     `yaml:"adaptation_check_interval_days" json:"adaptationCheckIntervalDays"`
	AdaptationRollingWindowDays int     `yaml:"adaptation_rolling_window_days" json:"adaptationRollingWindowDays"`
	MinDataDaysBeforeAdaptation int     `yaml:"min_data_days_before_adaptation" json:"minDataDaysBeforeAdaptation"`
	ConfidenceThreshold         float64 `yaml:"confidence_threshold" json:"confidenceThreshold"`
	WhipsawWindowDays           int     `yaml:"whipsaw_window_days" json:"whipsawWindowDays"`
	StrategyKind                string  `yaml:"strategy_kind" json:"strategyKind"`
}

// DefaultParameters returns the baseline parameter set used by the CLI.
func DefaultParameters() StrategyParameters {
	return StrategyParameters{
		LotSizeUSD:                    10000,
		MaxLots:                       10,
		MaxLotsToSell:                 1,
		GridIntervalPercent:           0.10,
		ProfitRequirement:             0.05,
		TrailingBuyActivationPercent:  0.10,
		TrailingBuyReboundPercent:     0.05,
		TrailingSellActivationPercent: 0.20,
		TrailingSellPullbackPercent:   0.10,
		DynamicGridMultiplier:         1.0,
		NormalizeToReference:          true,
		GridConsecutiveIncrement:      0.05,
		TrailingStopOrderType:         OrderTypeLimit,
		HardStopLossPercent:           0.30,
		AdaptationCheckIntervalDays:   30,
		AdaptationRollingWindowDays:   90,
		MinDataDaysBeforeAdaptation:   90,
		ConfidenceThreshold:           0.7,
		WhipsawWindowDays:             30,
		StrategyKind:                  StrategyKindLong,
	}
}

// IsMarketOrder reports whether trailing stops use market-order semantics.
func (p *StrategyParameters) IsMarketOrder() bool {
	return p.TrailingStopOrderType == OrderTypeMarket
}

// MaxExposure returns maxLots * lotSizeUsd.
func (p *StrategyParameters) MaxExposure() float64 {
	return float64(p.MaxLots) * p.LotSizeUSD
}

// Validate checks enumerated values and structural bounds.
// Any failure is fatal for the run and is reported before the loop starts.
func (p *StrategyParameters) Validate() error {
	switch p.TrailingStopOrderType {
	case OrderTypeLimit, OrderTypeMarket:
	default:
		return fmt.Errorf("%w: trailing_stop_order_type %q", ErrInvalidParameter, p.TrailingStopOrderType)
	}
	if p.LotSizeUSD <= 0 {
		return fmt.Errorf("%w: lot_size_usd must be positive", ErrInvalidParameter)
	}
	if p.MaxLots <= 0 {
		return fmt.Errorf("%w: max_lots must be positive", ErrInvalidParameter)
	}
	if p.MaxLotsToSell <= 0 {
		return fmt.Errorf("%w: max_lots_to_sell must be positive", ErrInvalidParameter)
	}
	if p.EnableAdaptiveStrategy && p.AdaptationCheckIntervalDays <= 0 {
		return fmt.Errorf("%w: adaptation_check_interval_days must be positive", ErrInvalidParameter)
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be within [0,1]", ErrInvalidParameter)
	}
	return nil
}

// LiveParameters is the adaptively overridden view of StrategyParameters
// that the order machines read every day.
type LiveParameters struct {
	GridIntervalPercent           float64 `json:"gridIntervalPercent"`
	ProfitRequirement             float64 `json:"profitRequirement"`
	MaxLots                       int     `json:"maxLots"`
	MaxLotsToSell                 int     `json:"maxLotsToSell"`
	TrailingBuyActivationPercent  float64 `json:"trailingBuyActivationPercent"`
	TrailingBuyReboundPercent     float64 `json:"trailingBuyReboundPercent"`
	TrailingSellActivationPercent float64 `json:"trailingSellActivationPercent"`
	TrailingSellPullbackPercent   float64 `json:"trailingSellPullbackPercent"`
	HardStopLossPercent           float64 `json:"hardStopLossPercent"`
	EntryDelayDays                int     `json:"entryDelayDays"`

	BuyEnabled                             bool `json:"buyEnabled"`
	SellEnabled                            bool `json:"sellEnabled"`
	EnableDynamicGrid                      bool `json:"enableDynamicGrid"`
	EnableConsecutiveIncrementalBuyGrid    bool `json:"enableConsecutiveIncrementalBuyGrid"`
	EnableConsecutiveIncrementalSellProfit bool `json:"enableConsecutiveIncrementalSellProfit"`
}

// LiveFromStatic derives the initial live view from static parameters.
// Buying and selling start enabled.
func LiveFromStatic(p StrategyParameters) LiveParameters {
	return LiveParameters{
		GridIntervalPercent:                    p.GridIntervalPercent,
		ProfitRequirement:                      p.ProfitRequirement,
		MaxLots:                                p.MaxLots,
		MaxLotsToSell:                          p.MaxLotsToSell,
		TrailingBuyActivationPercent:           p.TrailingBuyActivationPercent,
		TrailingBuyReboundPercent:              p.TrailingBuyReboundPercent,
		TrailingSellActivationPercent:          p.TrailingSellActivationPercent,
		TrailingSellPullbackPercent:            p.TrailingSellPullbackPercent,
		HardStopLossPercent:                    p.HardStopLossPercent,
		EntryDelayDays:                         p.EntryDelayDays,
		BuyEnabled:                             true,
		SellEnabled:                            true,
		EnableDynamicGrid:                      p.EnableDynamicGrid,
		EnableConsecutiveIncrementalBuyGrid:    p.EnableConsecutiveIncrementalBuyGrid,
		EnableConsecutiveIncrementalSellProfit: p.EnableConsecutiveIncrementalSellProfit,
	}
}
