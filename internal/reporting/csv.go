package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"dca-backtest-lab/internal/domain"
)

var transactionHeader = []string{
	"seq", "id", "date", "type", "price", "shares", "value",
	"lot_price", "lot_date", "realized_pnl", "holding_days", "annualized_return",
	"stop_price", "limit_price", "reason", "lots_after", "average_cost_after", "unrealized_pnl_after", "total_realized_pnl",
	"consecutive_buys", "consecutive_sells", "grid_spacing", "profit_requirement", "scenario",
}

// RenderCSV renders the transaction ledger as CSV string.
func RenderCSV(txs []*domain.Transaction) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write(transactionHeader)
	for _, t := range txs {
		lotDate := ""
		if !t.LotDate.IsZero() {
			lotDate = t.LotDate.Format(time.DateOnly)
		}
		w.Write([]string{
			strconv.Itoa(t.Seq),
			t.ID,
			t.Date.Format(time.DateOnly),
			string(t.Type),
			num(t.Price, 6),
			num(t.Shares, 6),
			num(t.Value, 2),
			num(t.LotPrice, 6),
			lotDate,
			num(t.RealizedPNL, 2),
			strconv.Itoa(t.HoldingDays),
			num(t.AnnualizedReturn, 6),
			num(t.StopPrice, 6),
			num(t.LimitPrice, 6),
			t.Reason,
			strconv.Itoa(len(t.LotsAfter)),
			num(t.AverageCostAfter, 6),
			num(t.UnrealizedPNLAfter, 2),
			num(t.TotalRealizedPNL, 2),
			strconv.Itoa(t.ConsecutiveBuyCount),
			strconv.Itoa(t.ConsecutiveSellCount),
			num(t.GridSpacing, 6),
			num(t.ProfitRequirement, 6),
			t.Scenario,
		})
	}
	w.Flush()

	return sb.String()
}
