package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwilliams712/polysim/internal/domain"
)

var metricsEpoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func closedAt(id string, exitOffset time.Duration, holdHours, pnlUSD, pnlPct float64) domain.SimulatedTrade {
	exit := metricsEpoch.Add(exitOffset)
	return domain.SimulatedTrade{
		ID:        id,
		Status:    domain.TradeStatusClosed,
		EntryTime: exit.Add(-time.Duration(holdHours * float64(time.Hour))),
		ExitTime:  exit,
		SizeUSD:   100,
		PnLUSD:    pnlUSD,
		PnLPct:    pnlPct,
	}
}

func TestCalculateMetrics_NoTrades(t *testing.T) {
	m, equity := CalculateMetrics(nil, 500)

	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.TotalPnLUSD)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.Sharpe)
	assert.Zero(t, m.Sortino)
	assert.InDelta(t, 500, m.StartingEquity, 1e-9)
	assert.InDelta(t, 500, m.FinalEquity, 1e-9)
	assert.Empty(t, equity)
}

func TestCalculateMetrics_SingleTrade(t *testing.T) {
	trades := []domain.SimulatedTrade{closedAt("t1", time.Hour, 1, 10, 10)}

	m, equity := CalculateMetrics(trades, 500)

	assert.Equal(t, 1, m.TotalTrades)
	assert.Equal(t, 1, m.Wins)
	assert.InDelta(t, 1.0, m.WinRate, 1e-9)
	assert.True(t, math.IsInf(m.ProfitFactor, 1))

	// Sample variance is undefined for one trade.
	assert.Zero(t, m.Sharpe)
	assert.Zero(t, m.Sortino)

	require.Len(t, equity, 1)
	assert.InDelta(t, 510, equity[0].Equity, 1e-9)
}

func TestCalculateMetrics_WinAndLoss(t *testing.T) {
	trades := []domain.SimulatedTrade{
		// Deliberately out of exit order; the aggregator sorts.
		closedAt("t2", 4*time.Hour, 4, -5, -5),
		closedAt("t1", 2*time.Hour, 2, 10, 10),
	}

	m, equity := CalculateMetrics(trades, 500)

	assert.Equal(t, 2, m.TotalTrades)
	assert.Equal(t, 1, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.InDelta(t, 10, m.GrossWinsUSD, 1e-9)
	assert.InDelta(t, 5, m.GrossLossesUSD, 1e-9)
	assert.InDelta(t, 5, m.TotalPnLUSD, 1e-9)
	assert.InDelta(t, 2.5, m.AvgPnLUSD, 1e-9)
	assert.InDelta(t, 2, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 3, m.AvgHoldHours, 1e-9)
	assert.InDelta(t, 505, m.FinalEquity, 1e-9)

	// Drawdown from the 510 peak to 505.
	assert.InDelta(t, 5, m.MaxDrawdownUSD, 1e-9)
	assert.InDelta(t, 5.0/510.0*100, m.MaxDrawdownPct, 1e-9)

	require.Len(t, equity, 2)
	assert.Equal(t, "t1", equity[0].TradeID)
	assert.Equal(t, "t2", equity[1].TradeID)
	assert.InDelta(t, 510, equity[0].Equity, 1e-9)
	assert.InDelta(t, 505, equity[1].Equity, 1e-9)
	assert.InDelta(t, 510, equity[1].Peak, 1e-9)

	// Sharpe/Sortino from returns {10, -5}, annualized over a 3h average
	// hold.
	annualize := math.Sqrt(tradingHoursPerYear / 3.0)
	sd := math.Sqrt((7.5*7.5 + 7.5*7.5) / 1.0) // sample stdev
	assert.InDelta(t, 2.5/sd*annualize, m.Sharpe, 1e-9)

	downside := math.Sqrt(25.0 / 2.0)
	assert.InDelta(t, 2.5/downside*annualize, m.Sortino, 1e-9)
}

func TestCalculateMetrics_AllWinsNoLosses(t *testing.T) {
	trades := []domain.SimulatedTrade{
		closedAt("t1", time.Hour, 1, 10, 10),
		closedAt("t2", 2*time.Hour, 1, 20, 20),
	}

	m, _ := CalculateMetrics(trades, 500)

	assert.True(t, math.IsInf(m.ProfitFactor, 1))
	assert.Zero(t, m.MaxDrawdownUSD)
	// No negative returns: downside deviation is zero, Sortino stays 0.
	assert.Zero(t, m.Sortino)
	assert.Greater(t, m.Sharpe, 0.0)
}
