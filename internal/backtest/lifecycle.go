package backtest

import (
	"github.com/cwilliams712/polysim/internal/domain"
)

// fallbackHalfSpread is the assumed half-spread applied to indicative
// prices when a snapshot carries no top-of-book quotes. Scaled by the
// configured spread multiplier.
const fallbackHalfSpread = 0.02

// entryFill returns the spread-adjusted price a new position would pay.
// Longs lift the ask, shorts hit the bid; without quotes the indicative
// price is adjusted against the trader by the fallback half-spread.
func entryFill(snap domain.Snapshot, outcome domain.Outcome, dir domain.Direction, spreadMult float64) float64 {
	if dir == domain.DirectionBuy {
		if ask := snap.AskFor(outcome); ask != nil {
			return *ask
		}
		return snap.PriceFor(outcome) * (1 + fallbackHalfSpread*spreadMult)
	}
	if bid := snap.BidFor(outcome); bid != nil {
		return *bid
	}
	return snap.PriceFor(outcome) * (1 - fallbackHalfSpread*spreadMult)
}

// exitFill returns the spread-adjusted price a position would receive when
// unwound: longs sell into the bid, shorts buy back at the ask. The raw
// indicative price is never used directly, which keeps backtested exits
// from being unrealistically favorable.
func exitFill(snap domain.Snapshot, t *domain.SimulatedTrade, spreadMult float64) float64 {
	if t.Direction == domain.DirectionBuy {
		if bid := snap.BidFor(t.Outcome); bid != nil {
			return *bid
		}
		return snap.PriceFor(t.Outcome) * (1 - fallbackHalfSpread*spreadMult)
	}
	if ask := snap.AskFor(t.Outcome); ask != nil {
		return *ask
	}
	return snap.PriceFor(t.Outcome) * (1 + fallbackHalfSpread*spreadMult)
}

// evaluateExit checks the lifecycle transition for one open trade against a
// new snapshot. Conditions are evaluated in fixed precedence: resolution,
// target, stop, time. Returns the fill price and reason for the first
// condition that fires, or ok=false when the trade stays open.
func evaluateExit(t *domain.SimulatedTrade, snap domain.Snapshot, market domain.Market, cfg Config) (price float64, reason domain.ExitReason, ok bool) {
	// 1. Resolution payout beats every market-priced exit.
	if cfg.ExitOnResolution && market.ResolvedAt(snap.Timestamp) {
		if payout, resolved := market.PayoutFor(t.Outcome); resolved {
			return payout, domain.ExitReasonResolution, true
		}
	}

	current := snap.PriceFor(t.Outcome)

	// 2. Target.
	if t.TargetPrice != nil {
		if (t.Direction == domain.DirectionBuy && current >= *t.TargetPrice) ||
			(t.Direction == domain.DirectionSell && current <= *t.TargetPrice) {
			return exitFill(snap, t, cfg.SpreadMultiplier), domain.ExitReasonTarget, true
		}
	}

	// 3. Stop.
	if t.StopPrice != nil {
		if (t.Direction == domain.DirectionBuy && current <= *t.StopPrice) ||
			(t.Direction == domain.DirectionSell && current >= *t.StopPrice) {
			return exitFill(snap, t, cfg.SpreadMultiplier), domain.ExitReasonStop, true
		}
	}

	// 4. Max hold time.
	if t.MaxHoldHours > 0 && snap.Timestamp.Sub(t.EntryTime).Hours() >= t.MaxHoldHours {
		return exitFill(snap, t, cfg.SpreadMultiplier), domain.ExitReasonTime, true
	}

	return 0, "", false
}

// closeTrade finalizes an open trade in place: records the exit, then
// settles P&L per the long/short formulas with the round-trip fee charged
// on notional. Closed trades are never mutated again.
func closeTrade(t *domain.SimulatedTrade, snap domain.Snapshot, price float64, reason domain.ExitReason, feePct float64) {
	t.Status = domain.TradeStatusClosed
	t.ExitTime = snap.Timestamp
	t.ExitPrice = price
	t.ExitReason = reason

	exitValue := t.Shares * price
	if t.Direction == domain.DirectionBuy {
		t.GrossPnLUSD = exitValue - t.SizeUSD
	} else {
		t.GrossPnLUSD = t.SizeUSD - exitValue
	}
	t.PnLUSD = t.GrossPnLUSD - t.SizeUSD*feePct
	if t.SizeUSD > 0 {
		t.PnLPct = t.PnLUSD / t.SizeUSD * 100
	}
}
