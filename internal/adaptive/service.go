package adaptive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dca-backtest-lab/internal/domain"
)

// Config holds the adaptive cadence and thresholds.
type Config struct {
	CheckIntervalDays   int
	RollingWindowDays   int
	MinDataDays         int
	ConfidenceThreshold float64
	StrategyKind        string
}

// ConfigFromParameters extracts the adaptive config from strategy parameters.
func ConfigFromParameters(p domain.StrategyParameters) Config {
	return Config{
		CheckIntervalDays:   p.AdaptationCheckIntervalDays,
		RollingWindowDays:   p.AdaptationRollingWindowDays,
		MinDataDays:         p.MinDataDaysBeforeAdaptation,
		ConfidenceThreshold: p.ConfidenceThreshold,
		StrategyKind:        p.StrategyKind,
	}
}

// Decision is the outcome of one adaptive check.
type Decision struct {
	Event        domain.AdaptationEvent
	Live         domain.LiveParameters // parameters to use from now on
	RegimeChange bool
	Err          error // classification error, already degraded to mixed
}

// Service is the stateful adaptive controller for one run.
type Service struct {
	cfg        Config
	classifier ScenarioClassifier
	logger     *zap.Logger
	windows    *windowCache

	baseline      *domain.LiveParameters
	current       *domain.ScenarioClassification
	history       []domain.AdaptationEvent
	regimeChanges int

	lastRegimeChangeDay int
	entryDelayDays      int
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Config     Config
	Classifier ScenarioClassifier
	Logger     *zap.Logger // optional
}

// NewService creates a Service. A nil classifier uses RuleClassifier.
func NewService(opts ServiceOptions) (*Service, error) {
	windows, err := newWindowCache()
	if err != nil {
		return nil, err
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewRuleClassifier()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:        opts.Config,
		classifier: classifier,
		logger:     logger,
		windows:    windows,
	}, nil
}

// ShouldCheck reports whether dayIndex is a check day:
// dayIndex >= minData and (dayIndex - minData) % interval == 0.
func (s *Service) ShouldCheck(dayIndex int) bool {
	if s.cfg.CheckIntervalDays <= 0 || dayIndex < s.cfg.MinDataDays {
		return false
	}
	return (dayIndex-s.cfg.MinDataDays)%s.cfg.CheckIntervalDays == 0
}

// Check classifies the trailing window of history and, on a regime change,
// returns live parameters re-derived from the baseline. history must end at
// dayIndex. Classification failures degrade to mixed and never return an error.
func (s *Service) Check(ctx context.Context, dayIndex int, history []domain.PricePoint, txs []domain.Transaction, live domain.LiveParameters) Decision {
	if s.baseline == nil {
		b := live
		s.baseline = &b
	}

	w := s.windows.get(history, txs, s.cfg.RollingWindowDays)
	res := Classify(ctx, s.classifier, w, s.cfg.StrategyKind)
	cls := res.OrMixed()

	var date time.Time
	if len(history) > 0 {
		date = history[len(history)-1].Date
	}

	event := domain.AdaptationEvent{
		Date:       date,
		DayIndex:   dayIndex,
		Kind:       domain.AdaptationScenarioCheck,
		To:         cls.Type,
		Confidence: cls.Confidence,
	}
	if s.current != nil {
		event.From = s.current.Type
	}

	if res.Failed() {
		event.Kind = domain.AdaptationScenarioCheckFailed
		event.Error = res.Err.Error()
		s.logger.Warn("scenario classification failed, using mixed",
			zap.Int("day_index", dayIndex),
			zap.Time("date", date),
			zap.Error(res.Err),
		)
	}

	changed := s.isRegimeChange(cls)
	if changed {
		s.current = &cls
		s.regimeChanges++
		s.lastRegimeChangeDay = dayIndex
		live = Adjust(*s.baseline, cls.Type)
		s.entryDelayDays = live.EntryDelayDays

		event.RegimeChange = true
		if !res.Failed() {
			event.Kind = domain.AdaptationRegimeChange
		}
		s.logger.Info("regime change",
			zap.String("from", string(event.From)),
			zap.String("scenario", string(cls.Type)),
			zap.Float64("confidence", cls.Confidence),
			zap.Int("day_index", dayIndex),
		)
	} else {
		s.logger.Debug("scenario check",
			zap.String("scenario", string(cls.Type)),
			zap.Float64("confidence", cls.Confidence),
			zap.Int("day_index", dayIndex),
		)
	}

	event.Parameters = live
	s.history = append(s.history, event)

	return Decision{Event: event, Live: live, RegimeChange: changed, Err: res.Err}
}

// isRegimeChange requires a different type and enough confidence.
func (s *Service) isRegimeChange(cls domain.ScenarioClassification) bool {
	if cls.Confidence < s.cfg.ConfidenceThreshold {
		return false
	}
	return s.current == nil || s.current.Type != cls.Type
}

// EntryDelayActive reports whether buys are held back at dayIndex following
// the latest regime change.
func (s *Service) EntryDelayActive(dayIndex int) bool {
	if s.regimeChanges == 0 || s.entryDelayDays <= 0 {
		return false
	}
	return dayIndex < s.lastRegimeChangeDay+s.entryDelayDays
}

// Current returns the active scenario, or nil before the first regime change.
func (s *Service) Current() *domain.ScenarioClassification {
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

// Baseline returns the parameters captured at the first check, or nil.
func (s *Service) Baseline() *domain.LiveParameters {
	if s.baseline == nil {
		return nil
	}
	b := *s.baseline
	return &b
}

// History returns all recorded checks in order.
func (s *Service) History() []domain.AdaptationEvent {
	out := make([]domain.AdaptationEvent, len(s.history))
	copy(out, s.history)
	return out
}

// RegimeChanges returns the number of regime changes so far.
func (s *Service) RegimeChanges() int {
	return s.regimeChanges
}
