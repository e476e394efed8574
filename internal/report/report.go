// Package report renders backtest results as human-readable console tables.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/cwilliams712/polysim/internal/domain"
)

// Printer writes formatted run reports to an output stream.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// PrintRun renders the summary metrics and trade-by-trade detail of one run.
func (p *Printer) PrintRun(run domain.RunRecord, trades []domain.SimulatedTrade) {
	m := run.Metrics

	fmt.Fprintf(p.out, "\n=== Run %s (%s) ===\n", run.ID, run.Strategy)
	fmt.Fprintf(p.out, "replayed %d snapshots in %s\n\n",
		run.Snapshots, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	table := tablewriter.NewWriter(p.out)
	table.Header("Metric", "Value")
	table.Append("Trades", fmt.Sprintf("%d (%dW / %dL / %dBE)", m.TotalTrades, m.Wins, m.Losses, m.BreakEven))
	table.Append("Win rate", fmt.Sprintf("%.1f%%", m.WinRate*100))
	table.Append("Total PnL", fmt.Sprintf("$%.2f", m.TotalPnLUSD))
	table.Append("Avg PnL", fmt.Sprintf("$%.2f (%.2f%%)", m.AvgPnLUSD, m.AvgPnLPct))
	table.Append("Profit factor", formatRatio(m.ProfitFactor))
	table.Append("Equity", fmt.Sprintf("$%.2f -> $%.2f", m.StartingEquity, m.FinalEquity))
	table.Append("Max drawdown", fmt.Sprintf("%.1f%% ($%.2f)", m.MaxDrawdownPct, m.MaxDrawdownUSD))
	table.Append("Avg hold", fmt.Sprintf("%.1fh", m.AvgHoldHours))
	table.Append("Sharpe", fmt.Sprintf("%.2f", m.Sharpe))
	table.Append("Sortino", fmt.Sprintf("%.2f", m.Sortino))
	table.Render()

	if len(trades) > 0 {
		fmt.Fprintln(p.out)
		p.PrintTrades(trades)
	}
}

// PrintTrades renders one row per closed trade.
func (p *Printer) PrintTrades(trades []domain.SimulatedTrade) {
	table := tablewriter.NewWriter(p.out)
	table.Header("ID", "Market", "Side", "Entry", "Exit", "Reason", "Hold", "PnL", "PnL%")

	for _, t := range trades {
		side := fmt.Sprintf("%s %s", t.Direction, t.Outcome)
		table.Append(
			t.ID,
			truncate(t.MarketID, 24),
			side,
			fmt.Sprintf("%.3f", t.EntryPrice),
			fmt.Sprintf("%.3f", t.ExitPrice),
			string(t.ExitReason),
			fmt.Sprintf("%.1fh", t.HoldHours()),
			fmt.Sprintf("$%.2f", t.PnLUSD),
			fmt.Sprintf("%.1f%%", t.PnLPct),
		)
	}

	table.Render()
}

// PrintRunList renders a one-line-per-run index, newest first.
func (p *Printer) PrintRunList(runs []domain.RunRecord) {
	table := tablewriter.NewWriter(p.out)
	table.Header("Run", "Strategy", "Finished", "Trades", "Win%", "PnL", "PF", "Sharpe")

	for _, r := range runs {
		m := r.Metrics
		table.Append(
			r.ID,
			r.Strategy,
			r.FinishedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", m.TotalTrades),
			fmt.Sprintf("%.0f%%", m.WinRate*100),
			fmt.Sprintf("$%.2f", m.TotalPnLUSD),
			formatRatio(m.ProfitFactor),
			fmt.Sprintf("%.2f", m.Sharpe),
		)
	}

	table.Render()
}

// PrintTradability renders the result of a standalone pre-trade check.
func (p *Printer) PrintTradability(marketID string, tr TradabilityView) {
	fmt.Fprintf(p.out, "\n=== Tradability: %s ===\n", marketID)

	table := tablewriter.NewWriter(p.out)
	table.Header("Check", "Value", "Score")
	table.Append("Spread", fmt.Sprintf("%.2f%%", tr.SpreadPct*100), fmt.Sprintf("%.0f", tr.SpreadScore))
	table.Append("Depth", fmt.Sprintf("$%.2f", tr.DepthUSD), fmt.Sprintf("%.0f", tr.DepthScore))
	table.Append("Slippage", formatCents(tr.SlippageCents), fmt.Sprintf("%.0f", tr.SlippageScore))
	table.Append("Composite", "", fmt.Sprintf("%.0f", tr.Score))
	table.Render()

	if tr.Tradable {
		fmt.Fprintln(p.out, "verdict: TRADABLE")
	} else {
		fmt.Fprintf(p.out, "verdict: NOT TRADABLE (%v)\n", tr.Reasons)
	}
}

// TradabilityView is the subset of the tradability result the report needs,
// kept local so the report package does not import the book package.
type TradabilityView struct {
	SpreadPct     float64
	SpreadScore   float64
	DepthUSD      float64
	DepthScore    float64
	SlippageCents float64
	SlippageScore float64
	Score         float64
	Tradable      bool
	Reasons       []string
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatCents(v float64) string {
	if math.IsInf(v, 1) {
		return "unfillable"
	}
	return fmt.Sprintf("%.2fc", v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
