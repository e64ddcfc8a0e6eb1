package reporting

import (
	"context"
	"fmt"
	"time"

	"dca-backtest-lab/internal/storage"
)

// Generator rebuilds reports for persisted runs.
type Generator struct {
	runStore         storage.RunStore
	transactionStore storage.TransactionStore
	now              func() time.Time
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore, txStore storage.TransactionStore) *Generator {
	return &Generator{
		runStore:         runStore,
		transactionStore: txStore,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a run and its ledger.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	txs, err := g.transactionStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", runID, err)
	}

	return &Report{
		GeneratedAt:  g.now(),
		Run:          run,
		Transactions: txs,
	}, nil
}

// Latest returns the report of the most recent run for symbol.
func (g *Generator) Latest(ctx context.Context, symbol string) (*Report, error) {
	runs, err := g.runStore.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", symbol, err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs for %s: %w", symbol, storage.ErrNotFound)
	}
	return g.Generate(ctx, runs[len(runs)-1].RunID)
}
