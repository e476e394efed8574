package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwilliams712/polysim/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func TestEntryFill(t *testing.T) {
	snap := domain.Snapshot{PriceYes: 0.50, PriceNo: 0.50}

	// Without quotes the indicative price is adjusted against the trader.
	assert.InDelta(t, 0.50*1.02, entryFill(snap, domain.OutcomeYes, domain.DirectionBuy, 1.0), 1e-9)
	assert.InDelta(t, 0.50*0.98, entryFill(snap, domain.OutcomeYes, domain.DirectionSell, 1.0), 1e-9)

	// With quotes a buy lifts the ask.
	snap.BestAskYes = fptr(0.51)
	snap.BestBidYes = fptr(0.49)
	assert.InDelta(t, 0.51, entryFill(snap, domain.OutcomeYes, domain.DirectionBuy, 1.0), 1e-9)
	assert.InDelta(t, 0.49, entryFill(snap, domain.OutcomeYes, domain.DirectionSell, 1.0), 1e-9)
}

func TestExitFill_LongSellsIntoBid(t *testing.T) {
	trade := &domain.SimulatedTrade{Outcome: domain.OutcomeYes, Direction: domain.DirectionBuy}

	snap := domain.Snapshot{PriceYes: 0.60, BestBidYes: fptr(0.58), BestAskYes: fptr(0.62)}
	assert.InDelta(t, 0.58, exitFill(snap, trade, 1.0), 1e-9)

	// Fallback path shades the indicative price down.
	bare := domain.Snapshot{PriceYes: 0.60}
	assert.InDelta(t, 0.60*0.98, exitFill(bare, trade, 1.0), 1e-9)
}

func TestEvaluateExit_ResolutionBeatsTarget(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := &domain.SimulatedTrade{
		Outcome:     domain.OutcomeYes,
		Direction:   domain.DirectionBuy,
		EntryTime:   entry,
		TargetPrice: fptr(0.50),
	}
	res := 1.0
	market := domain.Market{Resolved: true, Resolution: &res}
	snap := domain.Snapshot{Timestamp: entry.Add(time.Hour), PriceYes: 0.55}

	price, reason, ok := evaluateExit(trade, snap, market, DefaultConfig())

	require.True(t, ok)
	assert.Equal(t, domain.ExitReasonResolution, reason)
	assert.InDelta(t, 1.0, price, 1e-9)
}

func TestEvaluateExit_Target(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := &domain.SimulatedTrade{
		Outcome:     domain.OutcomeYes,
		Direction:   domain.DirectionBuy,
		EntryTime:   entry,
		TargetPrice: fptr(0.50),
		StopPrice:   fptr(0.30),
	}
	snap := domain.Snapshot{
		Timestamp:  entry.Add(time.Hour),
		PriceYes:   0.52,
		BestBidYes: fptr(0.51),
	}

	price, reason, ok := evaluateExit(trade, snap, domain.Market{}, DefaultConfig())

	require.True(t, ok)
	assert.Equal(t, domain.ExitReasonTarget, reason)
	assert.InDelta(t, 0.51, price, 1e-9) // filled at the bid, not the print
}

func TestEvaluateExit_Stop(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := &domain.SimulatedTrade{
		Outcome:   domain.OutcomeYes,
		Direction: domain.DirectionBuy,
		EntryTime: entry,
		StopPrice: fptr(0.30),
	}
	snap := domain.Snapshot{Timestamp: entry.Add(time.Hour), PriceYes: 0.28}

	_, reason, ok := evaluateExit(trade, snap, domain.Market{}, DefaultConfig())

	require.True(t, ok)
	assert.Equal(t, domain.ExitReasonStop, reason)
}

func TestEvaluateExit_MaxHold(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := &domain.SimulatedTrade{
		Outcome:      domain.OutcomeYes,
		Direction:    domain.DirectionBuy,
		EntryTime:    entry,
		MaxHoldHours: 6,
	}

	early := domain.Snapshot{Timestamp: entry.Add(3 * time.Hour), PriceYes: 0.40}
	_, _, ok := evaluateExit(trade, early, domain.Market{}, DefaultConfig())
	assert.False(t, ok)

	late := domain.Snapshot{Timestamp: entry.Add(6 * time.Hour), PriceYes: 0.40}
	_, reason, ok := evaluateExit(trade, late, domain.Market{}, DefaultConfig())
	require.True(t, ok)
	assert.Equal(t, domain.ExitReasonTime, reason)
}

func TestEvaluateExit_ShortDirections(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := &domain.SimulatedTrade{
		Outcome:     domain.OutcomeYes,
		Direction:   domain.DirectionSell,
		EntryTime:   entry,
		TargetPrice: fptr(0.40),
		StopPrice:   fptr(0.70),
	}

	// Shorts profit when the price falls to the target.
	down := domain.Snapshot{Timestamp: entry.Add(time.Hour), PriceYes: 0.38}
	_, reason, ok := evaluateExit(trade, down, domain.Market{}, DefaultConfig())
	require.True(t, ok)
	assert.Equal(t, domain.ExitReasonTarget, reason)

	up := domain.Snapshot{Timestamp: entry.Add(time.Hour), PriceYes: 0.72}
	_, reason, ok = evaluateExit(trade, up, domain.Market{}, DefaultConfig())
	require.True(t, ok)
	assert.Equal(t, domain.ExitReasonStop, reason)
}

func TestCloseTrade_LongPnL(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := &domain.SimulatedTrade{
		Outcome:    domain.OutcomeYes,
		Direction:  domain.DirectionBuy,
		EntryTime:  entry,
		EntryPrice: 0.50,
		SizeUSD:    100,
		Shares:     200,
		Status:     domain.TradeStatusOpen,
	}
	snap := domain.Snapshot{Timestamp: entry.Add(2 * time.Hour)}

	closeTrade(trade, snap, 0.60, domain.ExitReasonTarget, 0.02)

	assert.Equal(t, domain.TradeStatusClosed, trade.Status)
	assert.InDelta(t, 20, trade.GrossPnLUSD, 1e-9) // 200 shares * 0.10
	assert.InDelta(t, 18, trade.PnLUSD, 1e-9)      // minus $2 fee
	assert.InDelta(t, 18, trade.PnLPct, 1e-9)
	assert.InDelta(t, 2, trade.HoldHours(), 1e-9)
}

func TestCloseTrade_ShortPnL(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := &domain.SimulatedTrade{
		Outcome:    domain.OutcomeYes,
		Direction:  domain.DirectionSell,
		EntryTime:  entry,
		EntryPrice: 0.50,
		SizeUSD:    100,
		Shares:     200,
		Status:     domain.TradeStatusOpen,
	}
	snap := domain.Snapshot{Timestamp: entry.Add(time.Hour)}

	closeTrade(trade, snap, 0.40, domain.ExitReasonTarget, 0.02)

	assert.InDelta(t, 20, trade.GrossPnLUSD, 1e-9) // 100 - 200*0.40
	assert.InDelta(t, 18, trade.PnLUSD, 1e-9)
}
