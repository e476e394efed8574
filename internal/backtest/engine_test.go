package backtest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwilliams712/polysim/internal/domain"
	"github.com/cwilliams712/polysim/internal/strategy"
)

var engineEpoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapAt(marketID string, offset time.Duration, priceYes float64) domain.Snapshot {
	return domain.Snapshot{
		MarketID:  marketID,
		Timestamp: engineEpoch.Add(offset),
		PriceYes:  priceYes,
		PriceNo:   1 - priceYes,
	}
}

// buyYesAt fires a buy_yes with the given target whenever the yes price is
// at or below the trigger.
func buyYesAt(trigger float64, target *float64) strategy.Func {
	return func(snap domain.Snapshot, _ []domain.Snapshot, _ domain.Market) domain.Decision {
		if snap.PriceYes > trigger {
			return domain.None()
		}
		return domain.Decision{
			Action:      domain.ActionBuyYes,
			Confidence:  1,
			TargetPrice: target,
			Reason:      "test entry",
		}
	}
}

func TestRun_CancelledContextWrapsCanceled(t *testing.T) {
	// Callers match cancellation with errors.Is, so the wrap must keep
	// context.Canceled in the chain.
	snaps := []domain.Snapshot{snapAt("m1", 0, 0.40)}
	markets := map[string]domain.Market{"m1": {ID: "m1"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := NewEngine(DefaultConfig(), testLogger())
	_, err := eng.Run(ctx, "run1", buyYesAt(0.40, fptr(0.50)), snaps, markets)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_TargetScenario(t *testing.T) {
	// Price walks 0.40 -> 0.55 over two hours; a buy at 0.40 with target
	// 0.50 must close on the 0.50 print with a positive net P&L.
	snaps := []domain.Snapshot{
		snapAt("m1", 0, 0.40),
		snapAt("m1", 30*time.Minute, 0.45),
		snapAt("m1", time.Hour, 0.50),
		snapAt("m1", 2*time.Hour, 0.55),
	}
	markets := map[string]domain.Market{"m1": {ID: "m1", Question: "test market"}}

	eng := NewEngine(DefaultConfig(), testLogger())
	res, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, fptr(0.50)), snaps, markets)

	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	trade := res.Trades[0]
	assert.Equal(t, domain.ExitReasonTarget, trade.ExitReason)
	assert.Greater(t, trade.PnLUSD, 0.0)
	assert.False(t, trade.ExitTime.Before(trade.EntryTime))
	assert.Greater(t, trade.EntryPrice, 0.0)
	assert.Less(t, trade.EntryPrice, 1.0)
	assert.Greater(t, trade.ExitPrice, 0.0)
	assert.Less(t, trade.ExitPrice, 1.0)

	// Entry paid up through the fallback spread, exit sold into it.
	assert.InDelta(t, 0.40*1.02, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 0.50*0.98, trade.ExitPrice, 1e-9)
}

func TestRun_ResolutionScenario(t *testing.T) {
	// Market resolves to No while a buy_yes position is open with no
	// target hit: the position exits at the $0 payout, losing the full
	// notional plus the fee and nothing else.
	snaps := []domain.Snapshot{
		snapAt("m1", 0, 0.40),
		snapAt("m1", time.Hour, 0.40),
	}
	res0 := 0.0
	end := engineEpoch.Add(30 * time.Minute)
	markets := map[string]domain.Market{
		"m1": {ID: "m1", EndDate: &end, Resolved: true, Resolution: &res0},
	}

	eng := NewEngine(DefaultConfig(), testLogger())
	res, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, nil), snaps, markets)

	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	trade := res.Trades[0]
	assert.Equal(t, domain.ExitReasonResolution, trade.ExitReason)
	assert.Zero(t, trade.ExitPrice)
	assert.InDelta(t, -(100 + 100*0.02), trade.PnLUSD, 1e-9)
}

func TestRun_Idempotent(t *testing.T) {
	snaps := []domain.Snapshot{
		snapAt("m1", 0, 0.40),
		snapAt("m2", 10*time.Minute, 0.38),
		snapAt("m1", time.Hour, 0.52),
		snapAt("m2", 90*time.Minute, 0.55),
		snapAt("m1", 2*time.Hour, 0.48),
	}
	markets := map[string]domain.Market{"m1": {ID: "m1"}, "m2": {ID: "m2"}}

	eng := NewEngine(DefaultConfig(), testLogger())
	first, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, fptr(0.50)), snaps, markets)
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, fptr(0.50)), snaps, markets)
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
}

func TestRun_AtMostOneOpenPerMarket(t *testing.T) {
	// Every snapshot triggers the strategy, but positions for the same
	// market must never overlap.
	snaps := []domain.Snapshot{
		snapAt("m1", 0, 0.40),
		snapAt("m1", 30*time.Minute, 0.40),
		snapAt("m1", time.Hour, 0.52),
		snapAt("m1", 2*time.Hour, 0.40),
		snapAt("m1", 3*time.Hour, 0.52),
	}
	markets := map[string]domain.Market{"m1": {ID: "m1"}}

	eng := NewEngine(DefaultConfig(), testLogger())
	res, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, fptr(0.50)), snaps, markets)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	for i := 1; i < len(res.Trades); i++ {
		prev, cur := res.Trades[i-1], res.Trades[i]
		assert.False(t, cur.EntryTime.Before(prev.ExitTime),
			"trade %d entered before trade %d exited", i, i-1)
	}
}

func TestRun_MaxConcurrentCap(t *testing.T) {
	// Two markets trigger at the same time with a single slot: only one
	// position may be open at once.
	snaps := []domain.Snapshot{
		snapAt("m1", 0, 0.40),
		snapAt("m2", time.Minute, 0.40),
		snapAt("m1", time.Hour, 0.52),
		snapAt("m2", 2*time.Hour, 0.52),
	}
	markets := map[string]domain.Market{"m1": {ID: "m1"}, "m2": {ID: "m2"}}

	cfg := DefaultConfig()
	cfg.MaxConcurrent = 1

	eng := NewEngine(cfg, testLogger())
	res, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, fptr(0.50)), snaps, markets)
	require.NoError(t, err)

	for i := 0; i < len(res.Trades); i++ {
		for j := i + 1; j < len(res.Trades); j++ {
			a, b := res.Trades[i], res.Trades[j]
			overlap := a.EntryTime.Before(b.ExitTime) && b.EntryTime.Before(a.ExitTime)
			assert.False(t, overlap, "trades %s and %s overlap", a.ID, b.ID)
		}
	}
}

func TestRun_ForceCloseAtEnd(t *testing.T) {
	snaps := []domain.Snapshot{
		snapAt("m1", 0, 0.40),
		snapAt("m1", time.Hour, 0.42),
	}
	markets := map[string]domain.Market{"m1": {ID: "m1"}}

	eng := NewEngine(DefaultConfig(), testLogger())
	res, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, fptr(0.90)), snaps, markets)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, domain.ExitReasonTime, trade.ExitReason)
	assert.Equal(t, engineEpoch.Add(time.Hour), trade.ExitTime)
	assert.InDelta(t, 0.42*0.98, trade.ExitPrice, 1e-9)
}

func TestRun_LookbackWindowNewestFirst(t *testing.T) {
	var seen []domain.Snapshot
	probe := func(snap domain.Snapshot, history []domain.Snapshot, _ domain.Market) domain.Decision {
		if snap.Timestamp.Equal(engineEpoch.Add(2 * time.Hour)) {
			seen = append([]domain.Snapshot(nil), history...)
		}
		return domain.None()
	}

	snaps := []domain.Snapshot{
		snapAt("m1", 0, 0.40),
		snapAt("m1", time.Hour, 0.45),
		snapAt("m1", 2*time.Hour, 0.50),
	}
	markets := map[string]domain.Market{"m1": {ID: "m1"}}

	eng := NewEngine(DefaultConfig(), testLogger())
	_, err := eng.Run(context.Background(), "run1", probe, snaps, markets)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.InDelta(t, 0.45, seen[0].PriceYes, 1e-9)
	assert.InDelta(t, 0.40, seen[1].PriceYes, 1e-9)
}

func TestRun_StaticFloorsSkipSnapshots(t *testing.T) {
	snaps := []domain.Snapshot{
		snapAt("m1", 0, 0.40), // no volume recorded: skipped
	}
	markets := map[string]domain.Market{"m1": {ID: "m1"}}

	cfg := DefaultConfig()
	cfg.MinVolume24hUSD = 100

	eng := NewEngine(cfg, testLogger())
	res, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, nil), snaps, markets)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestRun_RiskGateBlocksEntries(t *testing.T) {
	snaps := []domain.Snapshot{
		snapAt("m1", 0, 0.40), // BookDepthUSD zero: liquidity floor trips
		snapAt("m1", time.Hour, 0.52),
	}
	markets := map[string]domain.Market{"m1": {ID: "m1"}}

	cfg := DefaultConfig()
	cfg.RiskEnabled = true

	eng := NewEngine(cfg, testLogger())
	res, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, fptr(0.50)), snaps, markets)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PositionSizeUSD = -1
	cfg.MaxConcurrent = 0

	eng := NewEngine(cfg, testLogger())
	_, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, nil), []domain.Snapshot{snapAt("m1", 0, 0.40)}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "position_size_usd")
	assert.Contains(t, err.Error(), "max_concurrent")
}

func TestRun_NoSnapshots(t *testing.T) {
	eng := NewEngine(DefaultConfig(), testLogger())
	_, err := eng.Run(context.Background(), "run1", buyYesAt(0.40, nil), nil, nil)

	assert.ErrorIs(t, err, domain.ErrNoSnapshots)
}
