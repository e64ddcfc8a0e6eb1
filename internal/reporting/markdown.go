package reporting

import (
	"fmt"
	"strings"
	"time"

	"dca-backtest-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	run := r.Run
	p := run.Report

	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", run.Symbol))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", run.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Period: %s to %s (%d days)\n\n",
		p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly), p.Days))

	sb.WriteString("## Returns\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total P&L | %s |\n", money(p.TotalPNL)))
	sb.WriteString(fmt.Sprintf("| Realized P&L | %s |\n", money(p.RealizedPNL)))
	sb.WriteString(fmt.Sprintf("| Unrealized P&L | %s |\n", money(p.UnrealizedPNL)))
	sb.WriteString(fmt.Sprintf("| Total Return | %s |\n", pct(p.TotalReturn)))
	sb.WriteString(fmt.Sprintf("| Annualized Return | %s |\n", pct(p.AnnualizedReturn)))
	sb.WriteString(fmt.Sprintf("| CAGR | %s |\n", pct(p.CAGR)))
	sb.WriteString(fmt.Sprintf("| Return on Deployed | %s |\n", pct(p.ReturnOnDeployed)))
	sb.WriteString(fmt.Sprintf("| CAGR on Deployed | %s |\n", pct(p.CAGROnDeployed)))
	sb.WriteString(fmt.Sprintf("| Final Portfolio Value | %s |\n", money(p.FinalPortfolioValue)))
	sb.WriteString(fmt.Sprintf("| Avg Trade Annualized | %s |\n", pct(p.AvgTradeAnnualized)))
	sb.WriteString(fmt.Sprintf("| Avg Holding Annualized | %s |\n", pct(p.AvgHoldingAnnualized)))
	sb.WriteString("\n")

	sb.WriteString("## Risk\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %s (%s) |\n", money(p.MaxDrawdown), pct(p.MaxDrawdownPct)))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %s |\n", num(p.SharpeRatio, 2)))
	sb.WriteString(fmt.Sprintf("| Sortino Ratio | %s |\n", num(p.SortinoRatio, 2)))
	sb.WriteString("\n")

	sb.WriteString("## Trades\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Buys | %d |\n", p.TotalBuys))
	sb.WriteString(fmt.Sprintf("| Sells | %d |\n", p.TotalSells))
	sb.WriteString(fmt.Sprintf("| Aborted Buys | %d |\n", p.AbortedBuys))
	sb.WriteString(fmt.Sprintf("| Aborted Sells | %d |\n", p.AbortedSells))
	sb.WriteString(fmt.Sprintf("| Win Rate | %s (%d W / %d L) |\n", pct(p.WinRate), p.Wins, p.Losses))
	pf := "n/a"
	if p.ProfitFactor != nil {
		pf = num(*p.ProfitFactor, 2)
	}
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", pf))
	sb.WriteString(fmt.Sprintf("| Avg Buy Price | %s |\n", money(p.AvgBuyPrice)))
	sb.WriteString(fmt.Sprintf("| Avg Sell Price | %s |\n", money(p.AvgSellPrice)))
	sb.WriteString("\n")

	sb.WriteString("## Capital\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Max Exposure | %s |\n", money(p.MaxExposure)))
	sb.WriteString(fmt.Sprintf("| Avg Deployed | %s |\n", money(p.AvgDeployed)))
	sb.WriteString(fmt.Sprintf("| Max Deployed | %s |\n", money(p.MaxDeployed)))
	sb.WriteString(fmt.Sprintf("| Utilization | %s |\n", pct(p.UtilizationRate)))
	sb.WriteString("\n")

	sb.WriteString("## Open Lots\n\n")
	if len(run.FinalLots) > 0 {
		sb.WriteString("| Date | Price | Shares | Cost |\n")
		sb.WriteString("|------|-------|--------|------|\n")
		for _, l := range run.FinalLots {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				l.Date.Format(time.DateOnly), money(l.Price), num(l.Shares, 4), money(l.Cost())))
		}
	} else {
		sb.WriteString("No open lots.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Transactions\n\n")
	if len(r.Transactions) > 0 {
		sb.WriteString("| # | Date | Type | Price | Shares | Value | Realized | Lots | Note |\n")
		sb.WriteString("|---|------|------|-------|--------|-------|----------|------|------|\n")
		for _, t := range r.Transactions {
			realized := ""
			if t.Type == domain.TransactionSell {
				realized = money(t.RealizedPNL)
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %d | %s |\n",
				t.Seq, t.Date.Format(time.DateOnly), t.Type, money(t.Price), num(t.Shares, 4),
				money(t.Value), realized, len(t.LotsAfter), note(t)))
		}
	} else {
		sb.WriteString("No transactions.\n")
	}
	sb.WriteString("\n")

	if changes := r.RegimeChanges(); len(changes) > 0 {
		sb.WriteString("## Regime Changes\n\n")
		sb.WriteString("| Date | From | To | Confidence |\n")
		sb.WriteString("|------|------|----|------------|\n")
		for _, e := range changes {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				e.Date.Format(time.DateOnly), e.From, e.To, num(e.Confidence, 2)))
		}
		sb.WriteString("\n")
	} else if run.RegimeChanges > 0 {
		sb.WriteString(fmt.Sprintf("Regime changes: %d\n\n", run.RegimeChanges))
	}

	// Audit warnings are always shown when present
	if len(r.Questionable) > 0 || len(r.Whipsaw) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, q := range r.Questionable {
			sb.WriteString(fmt.Sprintf("- %s [%s] %s: %s\n", q.Date.Format(time.DateOnly), q.Severity, q.Kind, q.Description))
		}
		for _, w := range r.Whipsaw {
			sb.WriteString(fmt.Sprintf("- %s [WHIPSAW] %s\n", w.Date.Format(time.DateOnly), w.Message))
		}
		sb.WriteString("\n")
	} else if run.Questionable > 0 {
		sb.WriteString(fmt.Sprintf("Questionable events: %d\n\n", run.Questionable))
	}

	return sb.String()
}

func note(t *domain.Transaction) string {
	switch {
	case t.Reason != "":
		return t.Reason
	case t.Type == domain.TransactionSell:
		return fmt.Sprintf("lot %s @ %s, %dd", t.LotDate.Format(time.DateOnly), money(t.LotPrice), t.HoldingDays)
	case t.Scenario != "":
		return t.Scenario
	}
	return ""
}
