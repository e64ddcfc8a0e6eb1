package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dca-backtest-lab/internal/domain"
)

// runNamespace scopes run IDs so they never collide with other UUIDv5 users.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("dca-backtest-lab/run"))

// ComputeParamsHash computes SHA256 over the JSON encoding of params.
// Returns hex-encoded hash (64 characters).
func ComputeParamsHash(params domain.StrategyParameters) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// ComputeRunID computes a deterministic run_id as a UUIDv5.
// Formula: UUIDv5(ns, symbol|params_hash|start_date|end_date)
// The same series and parameters always map to the same run.
func ComputeRunID(symbol string, params domain.StrategyParameters, start, end time.Time) (string, error) {
	paramsHash, err := ComputeParamsHash(params)
	if err != nil {
		return "", err
	}

	data := fmt.Sprintf("%s|%s|%s|%s",
		symbol,
		paramsHash,
		start.UTC().Format(time.DateOnly),
		end.UTC().Format(time.DateOnly),
	)

	return uuid.NewSHA1(runNamespace, []byte(data)).String(), nil
}
