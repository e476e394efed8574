package domain

import "time"

// Outcome identifies which side of the binary pair a trade holds.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// Opposite returns the complementary outcome.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Direction indicates whether a position is long or short the outcome.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// ExitReason is the closed set of reasons a simulated trade can close.
type ExitReason string

const (
	ExitReasonTarget     ExitReason = "target"
	ExitReasonStop       ExitReason = "stop"
	ExitReasonTime       ExitReason = "time"
	ExitReasonResolution ExitReason = "resolution"
)

// TradeStatus tracks the two lifecycle states of a simulated trade.
// There is no reopening: open transitions to closed exactly once.
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

// SimulatedTrade is one position opened and closed by the replay engine.
// While open it is exclusively owned by the engine's open-position table;
// once closed it is never mutated again.
type SimulatedTrade struct {
	ID       string `json:"id"`
	RunID    string `json:"run_id"`
	MarketID string `json:"market_id"`
	Question string `json:"question,omitempty"`
	Strategy string `json:"strategy,omitempty"`

	Outcome   Outcome   `json:"outcome"`
	Direction Direction `json:"direction"`

	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"` // spread-adjusted, in (0,1) exclusive
	SizeUSD    float64   `json:"size_usd"`
	Shares     float64   `json:"shares"` // SizeUSD / EntryPrice

	TargetPrice  *float64 `json:"target_price,omitempty"`
	StopPrice    *float64 `json:"stop_price,omitempty"`
	MaxHoldHours float64  `json:"max_hold_hours"`

	Status     TradeStatus `json:"status"`
	ExitTime   time.Time   `json:"exit_time"`
	ExitPrice  float64     `json:"exit_price"`
	ExitReason ExitReason  `json:"exit_reason"`

	GrossPnLUSD float64 `json:"gross_pnl_usd"`
	PnLUSD      float64 `json:"pnl_usd"` // net of fees
	PnLPct      float64 `json:"pnl_pct"` // PnLUSD / SizeUSD * 100

	Reason string `json:"reason,omitempty"` // strategy rationale recorded at entry
}

// HoldHours returns the holding period of a closed trade in hours.
func (t SimulatedTrade) HoldHours() float64 {
	if t.Status != TradeStatusClosed {
		return 0
	}
	return t.ExitTime.Sub(t.EntryTime).Hours()
}

// EquityPoint is one row of the equity curve: the running account state
// immediately after a trade closed. Points are strictly ordered by exit
// timestamp.
type EquityPoint struct {
	Time        time.Time `json:"time"`
	TradeID     string    `json:"trade_id"`
	Equity      float64   `json:"equity"`
	Peak        float64   `json:"peak"`
	DrawdownPct float64   `json:"drawdown_pct"`
}
