// Package risk implements the pre-trade gate: a pure function that accepts,
// rejects, or shrinks a proposed trade given the current portfolio state.
// The gate never mutates anything; callers record the opened position
// themselves.
package risk

import (
	"fmt"
	"strings"
)

// Limits holds every threshold the gate enforces. Zero values disable
// nothing: construct via DefaultLimits and override.
type Limits struct {
	BankrollUSD float64
	// BlacklistTerms rejects any market whose question contains one of
	// these, case-insensitive.
	BlacklistTerms []string
	// MinLiquidityUSD is the liquidity floor per market.
	MinLiquidityUSD float64
	// MinHoursToResolution avoids late-stage illiquid markets.
	MinHoursToResolution float64
	// DailyLossLimitPct is the circuit-breaker floor for today's realized
	// P&L as a fraction of bankroll. Stored positive: a value of 0.05
	// trips when today's P&L is at or below -5%.
	DailyLossLimitPct float64
	// MaxConsecutiveLosses trips the second circuit breaker.
	MaxConsecutiveLosses int
	// MaxTotalExposureUSD caps total open notional.
	MaxTotalExposureUSD float64
	// MaxPositionPctBankroll caps one trade as a fraction of bankroll.
	MaxPositionPctBankroll float64
	// MaxPositionUSD is the absolute per-trade cap.
	MaxPositionUSD float64
	// MaxPctOfLiquidity caps one trade as a fraction of market liquidity
	// to bound book impact.
	MaxPctOfLiquidity float64
	// MinTradeUSD rejects trades that shrink below viability.
	MinTradeUSD float64
}

// DefaultLimits returns a conservative gate for a $1000 bankroll.
func DefaultLimits() Limits {
	return Limits{
		BankrollUSD:            1000,
		MinLiquidityUSD:        1000,
		MinHoursToResolution:   6,
		DailyLossLimitPct:      0.05,
		MaxConsecutiveLosses:   4,
		MaxTotalExposureUSD:    500,
		MaxPositionPctBankroll: 0.05,
		MaxPositionUSD:         100,
		MaxPctOfLiquidity:      0.02,
		MinTradeUSD:            10,
	}
}

// Proposal is one trade as it arrives at the gate, before sizing.
type Proposal struct {
	MarketID          string
	Question          string
	EntryPrice        float64
	SizeUSD           float64
	LiquidityUSD      float64
	HoursToResolution float64
}

// PortfolioState is the caller's view of the account at decision time.
type PortfolioState struct {
	// DailyPnLPct is today's realized P&L as a fraction of bankroll
	// (negative on a down day).
	DailyPnLPct float64
	// ConsecutiveLosses counts the most-recent-first run of losing trades.
	ConsecutiveLosses int
	// OpenExposureUSD is total open notional across all markets.
	OpenExposureUSD float64
	// OpenByMarketUSD is open notional per market.
	OpenByMarketUSD map[string]float64
}

// Result is the gate's verdict. ApprovedUSD is meaningful only when
// Approved is true; Reason only when it is false.
type Result struct {
	Approved    bool
	ApprovedUSD float64
	Reason      string
}

func reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// CheckTradeRisk applies the ordered checks and returns the first failure,
// or the approved (possibly reduced) size. The order is fixed: content
// blacklist, liquidity floor, resolution-proximity floor, daily-loss
// breaker, consecutive-loss breaker, exposure cap, then sizing.
func CheckTradeRisk(p Proposal, state PortfolioState, lim Limits) Result {
	// Check 1: content blacklist.
	question := strings.ToLower(p.Question)
	for _, term := range lim.BlacklistTerms {
		if term != "" && strings.Contains(question, strings.ToLower(term)) {
			return reject("blacklisted term %q in market question", term)
		}
	}

	// Check 2: liquidity floor.
	if p.LiquidityUSD < lim.MinLiquidityUSD {
		return reject("liquidity $%.0f below floor $%.0f", p.LiquidityUSD, lim.MinLiquidityUSD)
	}

	// Check 3: resolution proximity.
	if p.HoursToResolution < lim.MinHoursToResolution {
		return reject("%.1fh to resolution below floor %.1fh", p.HoursToResolution, lim.MinHoursToResolution)
	}

	// Check 4: daily-loss circuit breaker. Trips only once the day's loss
	// is strictly below the limit; sitting exactly at it still trades.
	if state.DailyPnLPct < -lim.DailyLossLimitPct {
		return reject("daily loss %.2f%% beyond limit %.2f%%",
			state.DailyPnLPct*100, -lim.DailyLossLimitPct*100)
	}

	// Check 5: consecutive-loss circuit breaker.
	if lim.MaxConsecutiveLosses > 0 && state.ConsecutiveLosses >= lim.MaxConsecutiveLosses {
		return reject("%d consecutive losses at limit %d", state.ConsecutiveLosses, lim.MaxConsecutiveLosses)
	}

	// Check 6: total exposure cap.
	if state.OpenExposureUSD >= lim.MaxTotalExposureUSD {
		return reject("open exposure $%.0f at cap $%.0f", state.OpenExposureUSD, lim.MaxTotalExposureUSD)
	}

	// Check 7: sizing. The allowed size is the tightest of the requested
	// size, the bankroll cap, the absolute cap, the book-impact cap, and
	// the remaining exposure headroom.
	size := p.SizeUSD
	size = min(size, lim.MaxPositionPctBankroll*lim.BankrollUSD)
	size = min(size, lim.MaxPositionUSD)
	size = min(size, lim.MaxPctOfLiquidity*p.LiquidityUSD)
	size = min(size, lim.MaxTotalExposureUSD-state.OpenExposureUSD)
	if size < lim.MinTradeUSD {
		return reject("size $%.2f too small after adjustment (min $%.2f)", size, lim.MinTradeUSD)
	}

	return Result{Approved: true, ApprovedUSD: size}
}
