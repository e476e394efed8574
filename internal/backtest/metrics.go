package backtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cwilliams712/polysim/internal/domain"
)

// tradingHoursPerYear annualizes per-trade returns; prediction markets
// trade around the clock.
const tradingHoursPerYear = 24 * 365

// CalculateMetrics aggregates a set of closed trades into summary
// statistics and an equity curve. Zero trades yields zero-valued metrics,
// never an error; ratios with undefined denominators fall back to the
// documented values (0, or +Inf for the profit factor when wins exist with
// no losses). Usable standalone on any slice of closed trades.
func CalculateMetrics(trades []domain.SimulatedTrade, startingEquity float64) (domain.Metrics, []domain.EquityPoint) {
	m := domain.Metrics{
		StartingEquity: startingEquity,
		FinalEquity:    startingEquity,
	}
	if len(trades) == 0 {
		return m, nil
	}

	ordered := make([]domain.SimulatedTrade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	returns := make([]float64, 0, len(ordered))
	equity := make([]domain.EquityPoint, 0, len(ordered))
	var holdSum float64

	running := startingEquity
	peak := startingEquity
	for _, t := range ordered {
		m.TotalTrades++
		switch {
		case t.PnLUSD > 0:
			m.Wins++
			m.GrossWinsUSD += t.PnLUSD
		case t.PnLUSD < 0:
			m.Losses++
			m.GrossLossesUSD += -t.PnLUSD
		default:
			m.BreakEven++
		}
		m.TotalPnLUSD += t.PnLUSD
		returns = append(returns, t.PnLPct)
		holdSum += t.HoldHours()

		running += t.PnLUSD
		if running > peak {
			peak = running
		}
		var ddPct float64
		if peak > 0 {
			ddPct = (peak - running) / peak * 100
		}
		if ddPct > m.MaxDrawdownPct {
			m.MaxDrawdownPct = ddPct
		}
		if dd := peak - running; dd > m.MaxDrawdownUSD {
			m.MaxDrawdownUSD = dd
		}
		equity = append(equity, domain.EquityPoint{
			Time:        t.ExitTime,
			TradeID:     t.ID,
			Equity:      running,
			Peak:        peak,
			DrawdownPct: ddPct,
		})
	}

	n := float64(m.TotalTrades)
	m.WinRate = float64(m.Wins) / n
	m.AvgPnLUSD = m.TotalPnLUSD / n
	m.AvgPnLPct = stat.Mean(returns, nil)
	m.FinalEquity = running
	m.AvgHoldHours = holdSum / n

	switch {
	case m.GrossLossesUSD > 0:
		m.ProfitFactor = m.GrossWinsUSD / m.GrossLossesUSD
	case m.GrossWinsUSD > 0:
		m.ProfitFactor = math.Inf(1)
	}

	m.Sharpe, m.Sortino = riskAdjusted(returns, m.AvgHoldHours)
	return m, equity
}

// riskAdjusted computes Sharpe and Sortino over per-trade percentage
// returns, annualized by sqrt(trading hours per year / average hold).
// Both are 0 with fewer than two trades or a zero deviation.
func riskAdjusted(returns []float64, avgHoldHours float64) (sharpe, sortino float64) {
	if len(returns) < 2 || avgHoldHours <= 0 {
		return 0, 0
	}

	mean := stat.Mean(returns, nil)
	annualize := math.Sqrt(tradingHoursPerYear / avgHoldHours)

	if sd := stat.StdDev(returns, nil); sd > 0 {
		sharpe = mean / sd * annualize
	}

	// Downside deviation: squared negative returns over the full sample
	// size, not just the losing count.
	var downSq float64
	for _, r := range returns {
		if r < 0 {
			downSq += r * r
		}
	}
	if dd := math.Sqrt(downSq / float64(len(returns))); dd > 0 {
		sortino = mean / dd * annualize
	}
	return sharpe, sortino
}
