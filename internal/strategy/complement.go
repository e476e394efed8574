package strategy

import (
	"fmt"
	"math"

	"github.com/cwilliams712/polysim/internal/domain"
)

// ComplementParams tunes the complement-pair mispricing strategy.
type ComplementParams struct {
	// MinEdgeCents is the minimum deviation of price_yes + price_no from
	// $1.00, in cents, before a signal fires. Must clear the round-trip
	// fee (~2c) with margin.
	MinEdgeCents float64
	// MaxEdgeCents caps confidence scaling; gaps at or beyond this are
	// treated as maximum-confidence signals.
	MaxEdgeCents float64
	// TargetPct is the fraction of the gap expected to close, used to set
	// the exit target.
	TargetPct float64
}

// DefaultComplementParams requires a 3 cent gap, twice the typical fee.
func DefaultComplementParams() ComplementParams {
	return ComplementParams{
		MinEdgeCents: 3,
		MaxEdgeCents: 10,
		TargetPct:    0.8,
	}
}

// Complement trades violations of the complement-pair identity: the Yes and
// No prices of one market should sum to ~$1.00. When the pair sums below
// $1, both sides are underpriced and the cheaper side is bought with a
// target at its complement-implied fair value. Sums above $1 mean the pair
// is overpriced; the richer side is sold.
func Complement(p ComplementParams) Func {
	return func(snap domain.Snapshot, _ []domain.Snapshot, _ domain.Market) domain.Decision {
		if snap.PriceYes <= 0 || snap.PriceNo <= 0 {
			return domain.None()
		}

		gapCents := (1 - (snap.PriceYes + snap.PriceNo)) * 100
		if math.Abs(gapCents) < p.MinEdgeCents {
			return domain.None()
		}

		conf := clamp01(math.Abs(gapCents) / p.MaxEdgeCents)
		move := math.Abs(gapCents) / 100 * p.TargetPct

		var action domain.Action
		var target float64
		if gapCents > 0 {
			// Pair sums below $1: buy the cheaper outcome.
			if snap.PriceYes <= snap.PriceNo {
				action = domain.ActionBuyYes
				target = clamp01(snap.PriceYes + move)
			} else {
				action = domain.ActionBuyNo
				target = clamp01(snap.PriceNo + move)
			}
		} else {
			// Pair sums above $1: sell the richer outcome.
			if snap.PriceYes >= snap.PriceNo {
				action = domain.ActionSellYes
				target = clamp01(snap.PriceYes - move)
			} else {
				action = domain.ActionSellNo
				target = clamp01(snap.PriceNo - move)
			}
		}

		return domain.Decision{
			Action:      action,
			Confidence:  conf,
			TargetPrice: ptr(target),
			Reason:      fmt.Sprintf("complement gap %.2fc (yes %.3f + no %.3f)", gapCents, snap.PriceYes, snap.PriceNo),
		}
	}
}
