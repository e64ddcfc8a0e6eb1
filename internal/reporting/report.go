package reporting

import (
	"time"

	"dca-backtest-lab/internal/adaptive"
	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/simulation"
)

// Report is everything rendered for one run. Audit sections are only
// available straight after a simulation; a persisted run carries counts.
type Report struct {
	GeneratedAt time.Time

	Run          *domain.BacktestRun
	Transactions []*domain.Transaction

	Questionable []domain.QuestionableEvent
	Adaptation   []domain.AdaptationEvent
	Whipsaw      []adaptive.WhipsawWarning
}

// FromResult builds a report from an in-process simulation result.
func FromResult(res *simulation.Result, generatedAt time.Time) *Report {
	txs := make([]*domain.Transaction, len(res.Transactions))
	for i := range res.Transactions {
		txs[i] = &res.Transactions[i]
	}
	return &Report{
		GeneratedAt:  generatedAt,
		Run:          res.BacktestRun(),
		Transactions: txs,
		Questionable: res.QuestionableEvents,
		Adaptation:   res.AdaptationHistory,
		Whipsaw:      res.WhipsawWarnings,
	}
}

// RegimeChanges returns the adaptation events that switched regime.
func (r *Report) RegimeChanges() []domain.AdaptationEvent {
	var out []domain.AdaptationEvent
	for _, e := range r.Adaptation {
		if e.RegimeChange {
			out = append(out, e)
		}
	}
	return out
}
