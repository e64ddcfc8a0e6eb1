package adaptive

import (
	"context"
	"fmt"
	"math"

	"dca-backtest-lab/internal/domain"
)

// MinWindowPrices is the smallest window RuleClassifier accepts.
const MinWindowPrices = 5

// Key metric names reported by RuleClassifier.
const (
	MetricReturn           = "window_return"
	MetricMaxDrawdown      = "max_drawdown"
	MetricVolatility       = "volatility"
	MetricDirectionChanges = "direction_change_ratio"
	MetricDistanceFromMA   = "distance_from_ma"
	MetricBuys             = "buys"
	MetricSells            = "sells"
)

// Rule thresholds.
const (
	downtrendReturn       = -0.10
	rallyReturn           = 0.15
	rallyMaxDrawdown      = 0.10
	oscillationMinChanges = 0.40
	oscillationMinSwing   = 0.05
)

// RuleClassifier is a stateless threshold classifier over window statistics.
type RuleClassifier struct{}

// NewRuleClassifier creates a RuleClassifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// WindowStats summarizes a window.
type WindowStats struct {
	Return           float64
	MaxDrawdown      float64 // fraction of running peak
	Volatility       float64 // sample stdev of daily returns
	DirectionChanges float64 // sign flips / possible flips
	DistanceFromMA   float64 // last/ma - 1
	Buys             int
	Sells            int
}

// ComputeStats derives WindowStats. The moving average is the last point's
// MA50 when present, else the window mean.
func ComputeStats(w Window) (WindowStats, error) {
	n := len(w.Prices)
	if n < MinWindowPrices {
		return WindowStats{}, fmt.Errorf("%w: %d < %d", ErrInsufficientWindow, n, MinWindowPrices)
	}

	first := w.Prices[0].AdjustedClose
	last := w.Prices[n-1].AdjustedClose
	if first <= 0 {
		return WindowStats{}, fmt.Errorf("%w: non-positive first price", ErrInsufficientWindow)
	}

	var s WindowStats
	s.Return = last/first - 1

	peak := first
	sum := 0.0
	returns := make([]float64, 0, n-1)
	for i, p := range w.Prices {
		price := p.AdjustedClose
		sum += price
		if price > peak {
			peak = price
		}
		if peak > 0 {
			s.MaxDrawdown = math.Max(s.MaxDrawdown, (peak-price)/peak)
		}
		if i > 0 && w.Prices[i-1].AdjustedClose > 0 {
			returns = append(returns, price/w.Prices[i-1].AdjustedClose-1)
		}
	}
	s.Volatility = sampleStddev(returns)

	flips, moves := 0, 0
	prevSign := 0
	for _, r := range returns {
		sign := 0
		if r > 0 {
			sign = 1
		} else if r < 0 {
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if prevSign != 0 {
			moves++
			if sign != prevSign {
				flips++
			}
		}
		prevSign = sign
	}
	if moves > 0 {
		s.DirectionChanges = float64(flips) / float64(moves)
	}

	ma := sum / float64(n)
	if lastMA := w.Prices[n-1].MA50; lastMA != nil && *lastMA > 0 {
		ma = *lastMA
	}
	s.DistanceFromMA = last/ma - 1

	for _, tx := range w.Transactions {
		switch tx.Type {
		case domain.TransactionBuy:
			s.Buys++
		case domain.TransactionSell:
			s.Sells++
		}
	}
	return s, nil
}

// Classify implements ScenarioClassifier.
//
// Rules, first match wins:
//   - downtrend: return <= -10%
//   - missed_rally: return >= 15% with a shallow drawdown
//   - oscillating_uptrend: non-negative return with frequent reversals and real swings
//   - mixed: anything else
func (c *RuleClassifier) Classify(_ context.Context, w Window, _ string) (domain.ScenarioClassification, error) {
	s, err := ComputeStats(w)
	if err != nil {
		return domain.ScenarioClassification{}, err
	}

	cls := domain.ScenarioClassification{
		Type:       domain.ScenarioMixed,
		Confidence: FallbackConfidence,
		KeyMetrics: map[string]float64{
			MetricReturn:           s.Return,
			MetricMaxDrawdown:      s.MaxDrawdown,
			MetricVolatility:       s.Volatility,
			MetricDirectionChanges: s.DirectionChanges,
			MetricDistanceFromMA:   s.DistanceFromMA,
			MetricBuys:             float64(s.Buys),
			MetricSells:            float64(s.Sells),
		},
	}

	switch {
	case s.Return <= downtrendReturn:
		conf := 0.6 + (downtrendReturn-s.Return)*2
		if s.DistanceFromMA < 0 {
			conf += 0.1
		}
		cls.Type = domain.ScenarioDowntrend
		cls.Confidence = clampConfidence(conf)

	case s.Return >= rallyReturn && s.MaxDrawdown < rallyMaxDrawdown:
		conf := 0.6 + (s.Return-rallyReturn)*1.5
		if s.Buys == 0 {
			conf += 0.1
		}
		cls.Type = domain.ScenarioMissedRally
		cls.Confidence = clampConfidence(conf)

	case s.Return >= 0 && s.DirectionChanges >= oscillationMinChanges && s.MaxDrawdown >= oscillationMinSwing:
		conf := 0.5 + (s.DirectionChanges-oscillationMinChanges) + math.Min(s.Return, 0.2)
		if s.Sells > 0 {
			conf += 0.05
		}
		cls.Type = domain.ScenarioOscillatingUptrend
		cls.Confidence = clampConfidence(conf)
	}

	return cls, nil
}

func clampConfidence(v float64) float64 {
	return clamp(v, 0, 0.95)
}

func sampleStddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

var _ ScenarioClassifier = (*RuleClassifier)(nil)
