package notify

import (
	"context"
	"fmt"
	"math"

	"github.com/cwilliams712/polysim/internal/domain"
)

// Event types emitted by the simulation pipeline.
const (
	EventBacktestCompleted = "backtest_completed"
	EventRunFailed         = "run_failed"
)

// NotifyRunCompleted formats and dispatches a run summary notification.
func (n *Notifier) NotifyRunCompleted(ctx context.Context, run domain.RunRecord) error {
	m := run.Metrics
	pf := fmt.Sprintf("%.2f", m.ProfitFactor)
	if math.IsInf(m.ProfitFactor, 1) {
		pf = "inf"
	}

	title := fmt.Sprintf("Backtest %s completed", run.Strategy)
	message := fmt.Sprintf(
		"run %s\ntrades: %d (%.0f%% win)\npnl: $%.2f\nprofit factor: %s\nmax drawdown: %.1f%%\nsharpe: %.2f",
		run.ID, m.TotalTrades, m.WinRate*100, m.TotalPnLUSD, pf, m.MaxDrawdownPct, m.Sharpe,
	)
	return n.Notify(ctx, EventBacktestCompleted, title, message)
}

// NotifyRunFailed dispatches a failure notification for a run that did not
// finish.
func (n *Notifier) NotifyRunFailed(ctx context.Context, runID, strategy string, err error) error {
	title := fmt.Sprintf("Backtest %s failed", strategy)
	message := fmt.Sprintf("run %s\nerror: %v", runID, err)
	return n.Notify(ctx, EventRunFailed, title, message)
}
