package strategy

import (
	"fmt"

	"github.com/cwilliams712/polysim/internal/domain"
)

// DeadlineParams tunes the resolution-convergence strategy.
type DeadlineParams struct {
	// MaxHoursToResolution is the entry window: signals fire only inside
	// this many hours of the deadline.
	MaxHoursToResolution float64
	// MinPrice is the conviction floor: the favored outcome must already
	// trade at or above this price.
	MinPrice float64
	// TargetPrice is where convergence is expected to be captured, short
	// of $1 to stay fillable.
	TargetPrice float64
}

func DefaultDeadlineParams() DeadlineParams {
	return DeadlineParams{
		MaxHoursToResolution: 48,
		MinPrice:             0.80,
		TargetPrice:          0.97,
	}
}

// Deadline rides resolution convergence: in the final hours before a
// market's deadline, a clearly favored outcome tends to drift toward $1
// faster than the remaining time-value justifies. Buys whichever outcome
// already trades above the conviction floor.
func Deadline(p DeadlineParams) Func {
	return func(snap domain.Snapshot, _ []domain.Snapshot, market domain.Market) domain.Decision {
		// Resolution must be judged as of the snapshot, not from metadata:
		// historical markets carry their eventual Resolved flag, and checking
		// it directly would blind the strategy to exactly the pre-deadline
		// window it trades.
		if market.EndDate == nil || market.ResolvedAt(snap.Timestamp) {
			return domain.None()
		}

		hours := market.HoursToResolution(snap.Timestamp)
		if hours <= 0 || hours > p.MaxHoursToResolution {
			return domain.None()
		}

		var action domain.Action
		var price float64
		switch {
		case snap.PriceYes >= p.MinPrice && snap.PriceYes < p.TargetPrice:
			action, price = domain.ActionBuyYes, snap.PriceYes
		case snap.PriceNo >= p.MinPrice && snap.PriceNo < p.TargetPrice:
			action, price = domain.ActionBuyNo, snap.PriceNo
		default:
			return domain.None()
		}

		// Conviction grows with price; time remaining caps hold length.
		conf := clamp01((price - p.MinPrice) / (p.TargetPrice - p.MinPrice))
		if conf == 0 {
			conf = 0.1
		}

		return domain.Decision{
			Action:       action,
			Confidence:   conf,
			TargetPrice:  ptr(p.TargetPrice),
			MaxHoldHours: ptr(hours),
			Reason:       fmt.Sprintf("deadline: %.1fh to resolution, favorite at %.3f", hours, price),
		}
	}
}
