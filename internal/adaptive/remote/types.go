package remote

import (
	"errors"
	"fmt"
	"time"

	"dca-backtest-lab/internal/adaptive"
	"dca-backtest-lab/internal/domain"
)

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      uint64         `json:"id"`
	Method  string         `json:"method"`
	Params  classifyParams `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  *classifyResult `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error reported by the classifier service. It is returned
// as-is and does not trigger a redial.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("classifier error %d: %s", e.Code, e.Message)
}

func isRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

type pricePayload struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type transactionPayload struct {
	Date  string  `json:"date"`
	Type  string  `json:"type"`
	Price float64 `json:"price"`
}

type classifyParams struct {
	StrategyKind string               `json:"strategyKind"`
	StartDate    string               `json:"startDate"`
	EndDate      string               `json:"endDate"`
	Prices       []pricePayload       `json:"prices"`
	Transactions []transactionPayload `json:"transactions"`
}

func newClassifyParams(w adaptive.Window, kind string) classifyParams {
	p := classifyParams{
		StrategyKind: kind,
		StartDate:    w.StartDate.Format(time.DateOnly),
		EndDate:      w.EndDate.Format(time.DateOnly),
		Prices:       make([]pricePayload, 0, len(w.Prices)),
		Transactions: make([]transactionPayload, 0, len(w.Transactions)),
	}
	for _, pp := range w.Prices {
		p.Prices = append(p.Prices, pricePayload{Date: pp.Date.Format(time.DateOnly), Close: pp.AdjustedClose})
	}
	for _, tx := range w.Transactions {
		p.Transactions = append(p.Transactions, transactionPayload{
			Date:  tx.Date.Format(time.DateOnly),
			Type:  string(tx.Type),
			Price: tx.Price,
		})
	}
	return p
}

type classifyResult struct {
	Scenario   string             `json:"scenario"`
	Confidence float64            `json:"confidence"`
	KeyMetrics map[string]float64 `json:"keyMetrics,omitempty"`
}

// classification is validated by adaptive.Classify, not here.
func (r *classifyResult) classification() domain.ScenarioClassification {
	return domain.ScenarioClassification{
		Type:       domain.ScenarioType(r.Scenario),
		Confidence: r.Confidence,
		KeyMetrics: r.KeyMetrics,
	}
}
