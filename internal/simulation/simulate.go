// Package simulation runs the day-by-day grid DCA backtest.
package simulation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dca-backtest-lab/internal/adaptive"
	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/grid"
	"dca-backtest-lab/internal/idhash"
	"dca-backtest-lab/internal/metrics"
	"dca-backtest-lab/internal/observability"
	"dca-backtest-lab/internal/order"
	"dca-backtest-lab/internal/position"
)

// Simulation errors
var (
	ErrEmptyPriceSeries = errors.New("price series is empty")
	ErrUnsortedSeries   = errors.New("price series is not strictly ascending by date")
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrHalfOpenRange    = errors.New("date range needs both bounds or neither")
)

// Options carries the collaborators of a simulation.
type Options struct {
	Classifier adaptive.ScenarioClassifier // nil uses the rule classifier
	Logger     *zap.Logger                 // nil disables logging
	Metrics    *observability.Metrics      // nil disables metrics
}

// Result is the full output of one run.
type Result struct {
	RunID              string
	Symbol             string
	Params             domain.StrategyParameters
	Transactions       []domain.Transaction
	QuestionableEvents []domain.QuestionableEvent
	DailyValues        []domain.DailyValue
	FinalLots          []domain.Lot
	RealizedPNL        float64
	UnrealizedPNL      float64
	Report             domain.PerformanceReport
	AdaptationHistory  []domain.AdaptationEvent
	WhipsawWarnings    []adaptive.WhipsawWarning
}

// BacktestRun summarizes the result for persistence.
func (r *Result) BacktestRun() *domain.BacktestRun {
	regimeChanges := 0
	for _, e := range r.AdaptationHistory {
		if e.RegimeChange {
			regimeChanges++
		}
	}
	return &domain.BacktestRun{
		RunID:         r.RunID,
		Symbol:        r.Symbol,
		StartDate:     r.Report.StartDate,
		EndDate:       r.Report.EndDate,
		Parameters:    r.Params,
		RealizedPNL:   r.RealizedPNL,
		UnrealizedPNL: r.UnrealizedPNL,
		FinalLots:     r.FinalLots,
		Report:        r.Report,
		Transactions:  len(r.Transactions),
		RegimeChanges: regimeChanges,
		Questionable:  len(r.QuestionableEvents),
	}
}

// validateSeries checks the series before the loop starts.
func validateSeries(prices []domain.PricePoint) error {
	if len(prices) == 0 {
		return ErrEmptyPriceSeries
	}
	for i, p := range prices {
		if p.AdjustedClose <= 0 {
			return fmt.Errorf("%w: %v on %s", ErrInvalidPrice, p.AdjustedClose, p.Date.Format("2006-01-02"))
		}
		if i > 0 && !p.Date.After(prices[i-1].Date) {
			return fmt.Errorf("%w: %s after %s", ErrUnsortedSeries,
				p.Date.Format("2006-01-02"), prices[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Simulate runs the strategy over prices. Days are processed strictly in
// order: tracker update, adaptive check, sell machine, buy machine, then the
// day's portfolio value. Fatal errors are returned before or during the
// loop; rule violations become no-ops or ABORTED_* transactions.
func Simulate(ctx context.Context, prices []domain.PricePoint, params domain.StrategyParameters, opts Options) (*Result, error) {
	if err := validateSeries(prices); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	symbol := params.Symbol
	if symbol == "" {
		symbol = prices[0].Symbol
	}
	runID, err := idhash.ComputeRunID(symbol, params, prices[0].Date, prices[len(prices)-1].Date)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("run_id", runID), zap.String("symbol", symbol))

	var svc *adaptive.Service
	if params.EnableAdaptiveStrategy {
		svc, err = adaptive.NewService(adaptive.ServiceOptions{
			Config:     adaptive.ConfigFromParameters(params),
			Classifier: opts.Classifier,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
	}

	loop := &dayLoop{
		state:   NewState(runID, params),
		prices:  prices,
		adapt:   svc,
		logger:  logger,
		metrics: opts.Metrics,
	}
	for i := range prices {
		if err := loop.step(ctx, i); err != nil {
			return nil, fmt.Errorf("day %d (%s): %w", i, prices[i].Date.Format("2006-01-02"), err)
		}
	}

	s := loop.state
	last := prices[len(prices)-1].AdjustedClose
	res := &Result{
		RunID:              runID,
		Symbol:             symbol,
		Params:             params,
		Transactions:       s.Transactions,
		QuestionableEvents: s.Questionable,
		DailyValues:        s.Daily,
		FinalLots:          s.Ledger.Lots(),
		RealizedPNL:        s.RealizedPNL,
		UnrealizedPNL:      s.Ledger.UnrealizedPNL(last),
		WhipsawWarnings:    s.Whipsaw,
	}
	if svc != nil {
		res.AdaptationHistory = svc.History()
	}
	res.Report = metrics.Aggregate(metrics.Input{
		Daily:        s.Daily,
		Transactions: s.Transactions,
		OpenLots:     res.FinalLots,
		Params:       params,
	})

	logger.Info("simulation complete",
		zap.Int("days", len(prices)),
		zap.Int("transactions", len(s.Transactions)),
		zap.Float64("realized_pnl", res.RealizedPNL),
		zap.Float64("unrealized_pnl", res.UnrealizedPNL),
	)
	return res, nil
}

// dayLoop advances a State one price at a time.
type dayLoop struct {
	state   *State
	prices  []domain.PricePoint
	adapt   *adaptive.Service
	logger  *zap.Logger
	metrics *observability.Metrics
}

func (l *dayLoop) step(ctx context.Context, i int) error {
	s := l.state
	p := l.prices[i]
	price := p.AdjustedClose

	s.Tracker.Observe(price)

	if l.adapt != nil && l.adapt.ShouldCheck(i) {
		l.adaptiveCheck(ctx, i)
	}

	policy := grid.FromParameters(s.Params, s.Live, s.ReferencePrice)

	soldToday, err := l.evaluateSell(p, policy)
	if err != nil {
		return err
	}
	if err := l.evaluateBuy(i, p, policy, soldToday); err != nil {
		return err
	}

	s.Daily = append(s.Daily, s.dailyValue(p))
	return nil
}

func (l *dayLoop) adaptiveCheck(ctx context.Context, i int) {
	s := l.state
	d := l.adapt.Check(ctx, i, l.prices[:i+1], s.Transactions, s.Live)
	s.Live = d.Live

	if d.Err != nil {
		l.metrics.RecordClassificationFailure()
	}
	if !d.RegimeChange {
		return
	}
	l.metrics.RecordRegimeChange(string(d.Event.To))

	if w, ok := adaptive.DetectWhipsaw(l.adapt.History(), d.Event.Date, s.Params.WhipsawWindowDays); ok {
		s.Whipsaw = append(s.Whipsaw, w)
		l.metrics.RecordWhipsaw()
		l.logger.Warn("whipsaw detected",
			zap.Int("changes", w.Changes),
			zap.Int("window_days", w.WindowDays),
			zap.Time("date", w.Date),
		)
	}
}

func (l *dayLoop) scenario() string {
	if l.adapt == nil {
		return ""
	}
	if c := l.adapt.Current(); c != nil {
		return string(c.Type)
	}
	return ""
}

func (l *dayLoop) evaluateSell(p domain.PricePoint, policy grid.Policy) (bool, error) {
	s := l.state
	before := s.Ledger.Lots()

	res, err := s.Sell.Evaluate(order.SellInput{
		Date:        p.Date,
		Price:       p.AdjustedClose,
		Live:        s.Live,
		Grid:        policy,
		Tracker:     &s.Tracker,
		Ledger:      s.Ledger,
		Consecutive: &s.Consecutive,
	})
	if err != nil {
		return false, err
	}

	switch res.Action {
	case order.ActionExecuted:
		// each fill is its own row, so replay the removals one lot at a time
		replay := position.FromLots(s.Ledger.MaxLots(), before)
		for _, fill := range res.Fills {
			lotsBefore := replay.Lots()
			if err := replay.RemoveLots([]domain.Lot{fill.Lot}); err != nil {
				return false, fmt.Errorf("replay sell fill: %w", err)
			}
			s.RealizedPNL += fill.RealizedPNL
			tx := l.newTransaction(domain.TransactionSell, p, lotsBefore)
			tx.Shares = fill.Lot.Shares
			tx.Value = fill.Lot.Shares * p.AdjustedClose
			tx.LotPrice = fill.Lot.Price
			tx.LotDate = fill.Lot.Date
			tx.RealizedPNL = fill.RealizedPNL
			tx.HoldingDays = fill.HoldingDays
			tx.AnnualizedReturn = fill.AnnualizedReturn
			tx.ProfitRequirement = res.Order.LotProfitRequirement
			tx.StopPrice = res.Order.StopPrice
			tx.LimitPrice = res.Order.LimitPrice
			l.recordWith(tx, replay)
		}
		return true, nil

	case order.ActionAborted:
		req := s.Live.ProfitRequirement
		if s.Live.EnableConsecutiveIncrementalSellProfit {
			req += policy.SpacingAt(p.AdjustedClose)
		}
		tx := l.newTransaction(domain.TransactionAbortedSell, p, before)
		tx.Reason = res.Reason
		tx.ProfitRequirement = req
		l.record(tx)
	}
	return false, nil
}

func (l *dayLoop) evaluateBuy(i int, p domain.PricePoint, policy grid.Policy, soldToday bool) error {
	s := l.state
	before := s.Ledger.Lots()
	countBefore := s.Consecutive.BuyCount
	delay := l.adapt != nil && l.adapt.EntryDelayActive(i)

	res, err := s.Buy.Evaluate(order.BuyInput{
		Date:        p.Date,
		Price:       p.AdjustedClose,
		LotSizeUSD:  s.Params.LotSizeUSD,
		Live:        s.Live,
		Grid:        policy,
		EntryDelay:  delay,
		Tracker:     &s.Tracker,
		Ledger:      s.Ledger,
		Consecutive: &s.Consecutive,
	})
	if err != nil {
		return err
	}

	switch res.Action {
	case order.ActionExecuted:
		if s.ReferencePrice == 0 {
			s.ReferencePrice = res.Lot.Price
		}
		tx := l.newTransaction(domain.TransactionBuy, p, before)
		tx.Shares = res.Lot.Shares
		tx.Value = res.Lot.Cost()
		tx.GridSpacing = buySpacing(policy, p.AdjustedClose, before, countBefore)
		tx.StopPrice = res.Order.StopPrice
		l.record(tx)

		if soldToday {
			q := domain.QuestionableEvent{
				Date:     p.Date,
				Kind:     domain.QuestionableSameDaySellBuy,
				Severity: domain.SeverityWarning,
				Description: fmt.Sprintf("sell and buy executed on %s at %.4f",
					p.Date.Format("2006-01-02"), p.AdjustedClose),
			}
			s.Questionable = append(s.Questionable, q)
			l.metrics.RecordQuestionable()
			l.logger.Warn("questionable event",
				zap.String("kind", q.Kind),
				zap.Time("date", q.Date),
			)
		}

	case order.ActionAborted:
		tx := l.newTransaction(domain.TransactionAbortedBuy, p, before)
		tx.Reason = res.Reason
		tx.StopPrice = res.Order.StopPrice
		tx.GridSpacing = buySpacing(policy, p.AdjustedClose, before, countBefore)
		l.record(tx)
	}
	return nil
}

// buySpacing is the spacing required against the most recent lot, or the
// base spacing when no lot is held.
func buySpacing(policy grid.Policy, price float64, lots []domain.Lot, count int) float64 {
	if len(lots) == 0 {
		return policy.SpacingAt(price)
	}
	return policy.Required(price, lots[len(lots)-1].Price, true, count)
}

func (l *dayLoop) newTransaction(t domain.TransactionType, p domain.PricePoint, before []domain.Lot) domain.Transaction {
	s := l.state
	seq := len(s.Transactions)
	return domain.Transaction{
		ID:                idhash.ComputeTransactionID(s.RunID, seq, t, p.Date),
		RunID:             s.RunID,
		Seq:               seq,
		Type:              t,
		Date:              p.Date,
		Price:             p.AdjustedClose,
		LotsBefore:        before,
		ProfitRequirement: s.Live.ProfitRequirement,
		Scenario:          l.scenario(),
	}
}

// record stamps the post-trade snapshot and appends tx to the ledger.
func (l *dayLoop) record(tx domain.Transaction) {
	l.recordWith(tx, l.state.Ledger)
}

// recordWith is record with the snapshot taken from ledger.
func (l *dayLoop) recordWith(tx domain.Transaction, ledger *position.Ledger) {
	s := l.state
	s.snapshot(&tx, ledger, tx.Price)
	s.Transactions = append(s.Transactions, tx)
	l.metrics.RecordTransaction(string(tx.Type))
	l.logger.Debug("transaction",
		zap.Int("seq", tx.Seq),
		zap.String("type", string(tx.Type)),
		zap.Time("date", tx.Date),
		zap.Float64("price", tx.Price),
		zap.Float64("shares", tx.Shares),
		zap.String("reason", tx.Reason),
	)
}
