package domain

// Action is the closed set of moves a strategy may request on a snapshot.
type Action string

const (
	ActionNone    Action = "none"
	ActionBuyYes  Action = "buy_yes"
	ActionBuyNo   Action = "buy_no"
	ActionSellYes Action = "sell_yes"
	ActionSellNo  Action = "sell_no"
)

// Outcome returns which outcome the action trades. The second return is
// false for ActionNone and unknown values.
func (a Action) Outcome() (Outcome, bool) {
	switch a {
	case ActionBuyYes, ActionSellYes:
		return OutcomeYes, true
	case ActionBuyNo, ActionSellNo:
		return OutcomeNo, true
	default:
		return "", false
	}
}

// Direction returns whether the action opens a long or a short. The second
// return is false for ActionNone and unknown values.
func (a Action) Direction() (Direction, bool) {
	switch a {
	case ActionBuyYes, ActionBuyNo:
		return DirectionBuy, true
	case ActionSellYes, ActionSellNo:
		return DirectionSell, true
	default:
		return "", false
	}
}

// Decision is the output of a strategy function for one snapshot. Decisions
// must be derivable solely from the snapshot, the bounded history window,
// and market metadata, never from future data.
type Decision struct {
	Action     Action
	Confidence float64 // [0,1]

	// Optional exit parameters; nil leaves the engine defaults in force.
	TargetPrice  *float64
	StopPrice    *float64
	MaxHoldHours *float64

	Reason string
}

// None is the zero decision: take no action on this snapshot.
func None() Decision {
	return Decision{Action: ActionNone}
}
