package idhash

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"dca-backtest-lab/internal/domain"
)

// ComputeTransactionID computes a deterministic transaction_id.
// Formula: base58(SHA256(run_id|seq|type|date))
func ComputeTransactionID(runID string, seq int, txType domain.TransactionType, date time.Time) string {
	data := fmt.Sprintf("%s|%d|%s|%s",
		runID,
		seq,
		string(txType),
		date.UTC().Format(time.DateOnly),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
