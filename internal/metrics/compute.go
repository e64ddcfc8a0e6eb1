package metrics

import (
	"math"
)

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computeDownsideDeviation is the sample deviation of returns below zero,
// with non-negative returns counted as zero.
func computeDownsideDeviation(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computeDailyReturns converts a value series to simple daily returns.
// Days following a non-positive value are skipped.
func computeDailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

// computeRatio annualizes mean/deviation by sqrt(252). Zero deviation yields 0.
func computeRatio(mean, deviation float64) float64 {
	if deviation == 0 {
		return 0
	}
	return mean / deviation * math.Sqrt(tradingDaysPerYear)
}

// computeMaxDrawdown calculates the worst peak-to-trough decline of a value
// series, in absolute terms and as a fraction of the peak.
// Values must be in chronological order.
func computeMaxDrawdown(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	peak := values[0]
	maxDrawdown := 0.0
	maxDrawdownPct := 0.0

	for _, v := range values {
		if v > peak {
			peak = v
		}
		drawdown := peak - v
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
		if peak > 0 && drawdown/peak > maxDrawdownPct {
			maxDrawdownPct = drawdown / peak
		}
	}
	return maxDrawdown, maxDrawdownPct
}
