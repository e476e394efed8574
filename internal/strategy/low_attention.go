package strategy

import (
	"fmt"
	"math"

	"github.com/cwilliams712/polysim/internal/domain"
)

// LowAttentionParams tunes the stale-quote strategy for thin markets.
type LowAttentionParams struct {
	// MaxVolume24h is the attention ceiling: markets trading more than
	// this in 24h are assumed to be repriced promptly.
	MaxVolume24h float64
	// MinGap is the minimum distance between the book midpoint and the
	// stale indicative price before a signal fires.
	MinGap float64
	// MaxGap caps confidence scaling.
	MaxGap float64
}

func DefaultLowAttentionParams() LowAttentionParams {
	return LowAttentionParams{
		MaxVolume24h: 500,
		MinGap:       0.04,
		MaxGap:       0.12,
	}
}

// LowAttention looks for thin markets whose indicative price has gone stale
// relative to where the book actually sits. When 24h volume is low and the
// Yes midpoint has pulled away from the last indicative price, the price is
// expected to catch up to the book: buy Yes when the mid is above the
// price, buy No when below.
func LowAttention(p LowAttentionParams) Func {
	return func(snap domain.Snapshot, _ []domain.Snapshot, _ domain.Market) domain.Decision {
		if snap.Volume24h > p.MaxVolume24h {
			return domain.None()
		}
		if snap.MidYes == nil || snap.PriceYes <= 0 {
			return domain.None()
		}

		gap := *snap.MidYes - snap.PriceYes
		if math.Abs(gap) < p.MinGap {
			return domain.None()
		}

		conf := clamp01(math.Abs(gap) / p.MaxGap)

		if gap > 0 {
			return domain.Decision{
				Action:      domain.ActionBuyYes,
				Confidence:  conf,
				TargetPrice: ptr(clamp01(*snap.MidYes)),
				Reason:      fmt.Sprintf("low attention: mid %.3f above stale price %.3f, vol24h %.0f", *snap.MidYes, snap.PriceYes, snap.Volume24h),
			}
		}
		return domain.Decision{
			Action:      domain.ActionBuyNo,
			Confidence:  conf,
			TargetPrice: ptr(clamp01(1 - *snap.MidYes)),
			Reason:      fmt.Sprintf("low attention: mid %.3f below stale price %.3f, vol24h %.0f", *snap.MidYes, snap.PriceYes, snap.Volume24h),
		}
	}
}
