package domain

import "time"

// ScenarioType is a market regime label produced by a classifier.
type ScenarioType string

// Scenario types.
const (
	ScenarioOscillatingUptrend ScenarioType = "oscillating_uptrend"
	ScenarioDowntrend          ScenarioType = "downtrend"
	ScenarioMissedRally        ScenarioType = "missed_rally"
	ScenarioMixed              ScenarioType = "mixed"
)

// IsValid checks if the scenario is a known value.
func (s ScenarioType) IsValid() bool {
	switch s {
	case ScenarioOscillatingUptrend, ScenarioDowntrend, ScenarioMissedRally, ScenarioMixed:
		return true
	}
	return false
}

// ScenarioClassification is the classifier output for one rolling window.
type ScenarioClassification struct {
	Type       ScenarioType       `json:"type"`
	Confidence float64            `json:"confidence"` // [0,1]
	KeyMetrics map[string]float64 `json:"keyMetrics,omitempty"`
}

// Adaptation event kinds.
const (
	AdaptationScenarioCheck       = "scenario_check"
	AdaptationRegimeChange        = "regime_change"
	AdaptationScenarioCheckFailed = "scenario_check_failed"
)

// AdaptationEvent records one adaptive check.
type AdaptationEvent struct {
	Date         time.Time      `json:"date"`
	DayIndex     int            `json:"dayIndex"`
	Kind         string         `json:"kind"`
	From         ScenarioType   `json:"from,omitempty"`
	To           ScenarioType   `json:"to"`
	Confidence   float64        `json:"confidence"`
	RegimeChange bool           `json:"regimeChange"`
	Parameters   LiveParameters `json:"parameters"`
	Error        string         `json:"error,omitempty"`
}
