package strategy

import (
	"fmt"
	"math"

	"github.com/cwilliams712/polysim/internal/domain"
)

// AnchoringParams tunes the anchored-price mean-reversion strategy.
type AnchoringParams struct {
	// MinHistory is the minimum number of lookback snapshots required
	// before the anchor (lookback mean) is trusted.
	MinHistory int
	// MinDeviation is the minimum absolute distance between the current
	// price and the anchor before a signal fires.
	MinDeviation float64
	// MaxDeviation caps confidence scaling.
	MaxDeviation float64
	// VolumeSpikeMult suppresses the signal when 24h volume exceeds this
	// multiple of the lookback average: a volume-backed move is news, not
	// an overreaction.
	VolumeSpikeMult float64
}

func DefaultAnchoringParams() AnchoringParams {
	return AnchoringParams{
		MinHistory:      6,
		MinDeviation:    0.05,
		MaxDeviation:    0.15,
		VolumeSpikeMult: 3,
	}
}

// Anchoring bets that prices revert to their recent anchor. When the
// current Yes price has moved away from the lookback mean without a
// matching volume spike, the move is treated as noise and faded back toward
// the anchor: buy No after an unexplained jump, buy Yes after an
// unexplained drop.
func Anchoring(p AnchoringParams) Func {
	return func(snap domain.Snapshot, history []domain.Snapshot, _ domain.Market) domain.Decision {
		if len(history) < p.MinHistory {
			return domain.None()
		}

		anchor, ok := meanYesPrice(history)
		if !ok || anchor <= 0 || anchor >= 1 {
			return domain.None()
		}

		dev := snap.PriceYes - anchor
		if math.Abs(dev) < p.MinDeviation {
			return domain.None()
		}

		// A move carried by real volume is information, not anchoring bias.
		var volSum float64
		for _, s := range history {
			volSum += s.Volume24h
		}
		avgVol := volSum / float64(len(history))
		if avgVol > 0 && snap.Volume24h > avgVol*p.VolumeSpikeMult {
			return domain.None()
		}

		conf := clamp01(math.Abs(dev) / p.MaxDeviation)

		if dev > 0 {
			// Yes overshot the anchor: hold No, which profits as Yes
			// reverts down.
			return domain.Decision{
				Action:      domain.ActionBuyNo,
				Confidence:  conf,
				TargetPrice: ptr(clamp01(1 - anchor)),
				Reason:      fmt.Sprintf("anchoring: yes %.3f overshot anchor %.3f without volume", snap.PriceYes, anchor),
			}
		}
		return domain.Decision{
			Action:      domain.ActionBuyYes,
			Confidence:  conf,
			TargetPrice: ptr(clamp01(anchor)),
			Reason:      fmt.Sprintf("anchoring: yes %.3f undershot anchor %.3f without volume", snap.PriceYes, anchor),
		}
	}
}
