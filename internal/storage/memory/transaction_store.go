package memory

import (
	"context"
	"sort"
	"sync"

	"dca-backtest-lab/internal/domain"
	"dca-backtest-lab/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by transaction id
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	c.LotsBefore = append([]domain.Lot(nil), t.LotsBefore...)
	c.LotsAfter = append([]domain.Lot(nil), t.LotsAfter...)
	return &c
}

// InsertBulk adds multiple transactions atomically. Fails entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(_ context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(txs))

	// First pass: check for duplicates (existing + intra-batch)
	for _, t := range txs {
		if t == nil || t.ID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.ID] = struct{}{}
	}

	// Second pass: insert all
	for _, t := range txs {
		s.data[t.ID] = copyTransaction(t)
	}

	return nil
}

// GetByRunID retrieves all transactions of a run, ordered by seq ASC.
func (s *TransactionStore) GetByRunID(_ context.Context, runID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.data {
		if t.RunID == runID {
			result = append(result, copyTransaction(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
