// Package book implements the order-book depth and tradability model: it
// turns raw bid/ask levels into an estimated execution price for a
// hypothetical order and a composite verdict on whether a market is
// economically executable at all.
package book

import (
	"fmt"
	"math"

	"github.com/cwilliams712/polysim/internal/domain"
)

// Thresholds holds the gating limits for the tradability verdict.
type Thresholds struct {
	// MaxSpreadPct is the maximum bid-ask spread as a fraction of the
	// midpoint (0.08 = 8%).
	MaxSpreadPct float64
	// MinDepthUSD is the minimum notional resting within DepthRangePct of
	// the midpoint, summed across both outcomes.
	MinDepthUSD float64
	// MaxSlippageCents is the maximum acceptable slippage for the probe
	// order, in cents per dollar of the best price.
	MaxSlippageCents float64
	// ProbeOrderUSD is the hypothetical order size used for the slippage
	// sub-check.
	ProbeOrderUSD float64
	// DepthRangePct is the half-width of the near-mid depth window as a
	// fraction of the midpoint (0.01 = +/-1%).
	DepthRangePct float64
}

// DefaultThresholds returns the standard gating limits: 8% max spread,
// $250 min depth, 3c max slippage on a $250 probe within +/-1% of mid.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxSpreadPct:     0.08,
		MinDepthUSD:      250,
		MaxSlippageCents: 3,
		ProbeOrderUSD:    250,
		DepthRangePct:    0.01,
	}
}

// TopOfBook is the best bid/ask and midpoint per outcome. Fields are nil
// where the corresponding book side is empty; a single missing book yields
// partial results, not an error.
type TopOfBook struct {
	BestBidYes *float64
	BestAskYes *float64
	BestBidNo  *float64
	BestAskNo  *float64
	MidYes     *float64
	MidNo      *float64
}

// ExtractTopOfBook reads the best levels and midpoints from both outcome
// books. Either book may be nil.
func ExtractTopOfBook(bookYes, bookNo *domain.Book) TopOfBook {
	return TopOfBook{
		BestBidYes: bookYes.BestBid(),
		BestAskYes: bookYes.BestAsk(),
		BestBidNo:  bookNo.BestBid(),
		BestAskNo:  bookNo.BestAsk(),
		MidYes:     bookYes.Mid(),
		MidNo:      bookNo.Mid(),
	}
}

// DepthNearMid sums price*size notional for levels whose price falls within
// mid*(1 +/- rangePct), inclusive.
func DepthNearMid(levels []domain.PriceLevel, mid, rangePct float64) float64 {
	if mid <= 0 {
		return 0
	}
	lo := mid * (1 - rangePct)
	hi := mid * (1 + rangePct)
	var depth float64
	for _, lvl := range levels {
		if lvl.Price >= lo && lvl.Price <= hi {
			depth += lvl.Price * lvl.Size
		}
	}
	return depth
}

// EstimateSlippage walks the given side of a book best-price-first,
// consuming levels until orderSizeUSD of notional is filled, proportionally
// filling the last level. Contracts pay $1 at resolution, so a level's
// notional capacity is its Size. It returns the difference between the
// average fill price and the best price as a percentage of the best price,
// i.e. in cents per dollar. Returns +Inf when the book is empty or its
// total notional cannot fill the order.
//
// Levels must already be ordered best first: ascending asks for
// DirectionBuy, descending bids for DirectionSell.
func EstimateSlippage(levels []domain.PriceLevel, orderSizeUSD float64, side domain.Direction) float64 {
	if len(levels) == 0 || orderSizeUSD <= 0 {
		return math.Inf(1)
	}

	best := levels[0].Price
	if best <= 0 {
		return math.Inf(1)
	}

	remaining := orderSizeUSD
	var filledCost, filledShares float64
	for _, lvl := range levels {
		if lvl.Price <= 0 || lvl.Size <= 0 {
			continue
		}
		take := math.Min(lvl.Size, remaining)
		filledCost += take * lvl.Price
		filledShares += take
		remaining -= take
		if remaining <= 0 {
			break
		}
	}
	if remaining > 1e-9 {
		// Book too thin to absorb the order.
		return math.Inf(1)
	}

	avg := filledCost / filledShares
	var slip float64
	if side == domain.DirectionSell {
		slip = (best - avg) / best
	} else {
		slip = (avg - best) / best
	}
	return slip * 100
}

// Tradability is the composite verdict for one market's book pair. The
// Score is advisory; Tradable is true only when every individual threshold
// passes.
type Tradability struct {
	SpreadPct     float64
	DepthUSD      float64
	SlippageCents float64

	SpreadScore    float64
	DepthScore     float64
	SlippageScore  float64
	Score          float64
	Tradable       bool
	FailureReasons []string
}

// ComputeTradability requires both outcome books and fails closed (score 0,
// untradeable, reason recorded) when either book or its midpoint is
// missing. Spread is measured on the Yes outcome; near-mid depth is summed
// across both outcomes; slippage is probed with a fixed-size buy against
// the Yes asks.
func ComputeTradability(bookYes, bookNo *domain.Book, th Thresholds) Tradability {
	var t Tradability

	fail := func(reason string) Tradability {
		t.SlippageCents = math.Inf(1)
		t.Score = 0
		t.Tradable = false
		t.FailureReasons = append(t.FailureReasons, reason)
		return t
	}

	if bookYes == nil {
		return fail("yes book missing")
	}
	if bookNo == nil {
		return fail("no book missing")
	}
	midYes := bookYes.Mid()
	if midYes == nil {
		return fail("yes midpoint unavailable (one-sided book)")
	}
	midNo := bookNo.Mid()
	if midNo == nil {
		return fail("no midpoint unavailable (one-sided book)")
	}

	t.SpreadPct = (*bookYes.BestAsk() - *bookYes.BestBid()) / *midYes
	t.DepthUSD = DepthNearMid(bookYes.Bids, *midYes, th.DepthRangePct) +
		DepthNearMid(bookYes.Asks, *midYes, th.DepthRangePct) +
		DepthNearMid(bookNo.Bids, *midNo, th.DepthRangePct) +
		DepthNearMid(bookNo.Asks, *midNo, th.DepthRangePct)
	t.SlippageCents = EstimateSlippage(bookYes.Asks, th.ProbeOrderUSD, domain.DirectionBuy)

	// Each sub-score is linearly scaled so that exactly meeting the
	// threshold yields 50, with 0/100 at double/zero the threshold.
	t.SpreadScore = clampScore(100 - 50*t.SpreadPct/th.MaxSpreadPct)
	t.DepthScore = clampScore(50 * t.DepthUSD / th.MinDepthUSD)
	if math.IsInf(t.SlippageCents, 1) {
		t.SlippageScore = 0
	} else {
		t.SlippageScore = clampScore(100 - 50*t.SlippageCents/th.MaxSlippageCents)
	}
	t.Score = 0.4*t.SpreadScore + 0.3*t.DepthScore + 0.3*t.SlippageScore

	if t.SpreadPct > th.MaxSpreadPct {
		t.FailureReasons = append(t.FailureReasons,
			fmt.Sprintf("spread %.2f%% exceeds max %.2f%%", t.SpreadPct*100, th.MaxSpreadPct*100))
	}
	if t.DepthUSD < th.MinDepthUSD {
		t.FailureReasons = append(t.FailureReasons,
			fmt.Sprintf("depth $%.0f below min $%.0f", t.DepthUSD, th.MinDepthUSD))
	}
	if t.SlippageCents > th.MaxSlippageCents {
		t.FailureReasons = append(t.FailureReasons,
			fmt.Sprintf("slippage %.2fc exceeds max %.2fc", t.SlippageCents, th.MaxSlippageCents))
	}

	t.Tradable = len(t.FailureReasons) == 0
	return t
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
