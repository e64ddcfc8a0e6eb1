// Package adaptive classifies recent market behaviour into a regime and
// derives live strategy parameters from it.
package adaptive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dca-backtest-lab/internal/domain"
)

// Classification errors
var (
	ErrInsufficientWindow = errors.New("window has too few prices to classify")
	ErrUnknownScenario    = errors.New("classifier returned unknown scenario")
	ErrInvalidConfidence  = errors.New("classifier confidence outside [0,1]")
)

// FallbackConfidence is the confidence assigned to a degraded classification.
const FallbackConfidence = 0.5

// Window is the rolling slice of history handed to a classifier.
type Window struct {
	Prices       []domain.PricePoint
	Transactions []domain.Transaction
	StartDate    time.Time
	EndDate      time.Time
}

// ScenarioClassifier labels a window with a market regime.
// Implementations must be side-effect free and safe to retry.
type ScenarioClassifier interface {
	Classify(ctx context.Context, w Window, strategyKind string) (domain.ScenarioClassification, error)
}

// Result is a classification or the error that prevented it.
type Result struct {
	Classification domain.ScenarioClassification
	Err            error
}

// Failed reports whether classification did not produce a usable value.
func (r Result) Failed() bool {
	return r.Err != nil
}

// OrMixed returns the classification, or mixed at fallback confidence when
// classification failed.
func (r Result) OrMixed() domain.ScenarioClassification {
	if r.Err != nil {
		return domain.ScenarioClassification{
			Type:       domain.ScenarioMixed,
			Confidence: FallbackConfidence,
		}
	}
	return r.Classification
}

// Classify calls c and validates what it returns.
func Classify(ctx context.Context, c ScenarioClassifier, w Window, strategyKind string) Result {
	cls, err := c.Classify(ctx, w, strategyKind)
	if err != nil {
		return Result{Err: fmt.Errorf("classify window %s..%s: %w",
			w.StartDate.Format(time.DateOnly), w.EndDate.Format(time.DateOnly), err)}
	}
	if !cls.Type.IsValid() {
		return Result{Err: fmt.Errorf("%w: %q", ErrUnknownScenario, cls.Type)}
	}
	if cls.Confidence < 0 || cls.Confidence > 1 {
		return Result{Err: fmt.Errorf("%w: %v", ErrInvalidConfidence, cls.Confidence)}
	}
	return Result{Classification: cls}
}
