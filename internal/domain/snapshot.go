package domain

import "time"

// PriceLevel is a single price+size entry on one side of an order book.
// Size is denominated in contracts paying $1 at resolution, so Size is the
// level's face-value notional and Price*Size its cost in USD.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Book holds the resting orders for one outcome. Both sides are ordered
// best price first: descending for bids, ascending for asks.
type Book struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// BestBid returns the highest resting bid, or nil when the side is empty.
func (b *Book) BestBid() *float64 {
	if b == nil || len(b.Bids) == 0 {
		return nil
	}
	p := b.Bids[0].Price
	return &p
}

// BestAsk returns the lowest resting ask, or nil when the side is empty.
func (b *Book) BestAsk() *float64 {
	if b == nil || len(b.Asks) == 0 {
		return nil
	}
	p := b.Asks[0].Price
	return &p
}

// Mid returns the midpoint between best bid and best ask, or nil when
// either side is empty.
func (b *Book) Mid() *float64 {
	bid := b.BestBid()
	ask := b.BestAsk()
	if bid == nil || ask == nil {
		return nil
	}
	m := (*bid + *ask) / 2
	return &m
}

// Snapshot is an immutable point-in-time observation of one market.
// Best bid/ask and midpoints are nil when the corresponding book side had
// no resting orders at capture time. Snapshots for a market are strictly
// increasing in Timestamp.
type Snapshot struct {
	MarketID  string    `json:"market_id"`
	Timestamp time.Time `json:"timestamp"`

	// Indicative prices for the two outcomes; their sum is ideally ~1.0.
	PriceYes float64 `json:"price_yes"`
	PriceNo  float64 `json:"price_no"`

	BestBidYes *float64 `json:"best_bid_yes,omitempty"`
	BestAskYes *float64 `json:"best_ask_yes,omitempty"`
	BestBidNo  *float64 `json:"best_bid_no,omitempty"`
	BestAskNo  *float64 `json:"best_ask_no,omitempty"`
	MidYes     *float64 `json:"mid_yes,omitempty"`
	MidNo      *float64 `json:"mid_no,omitempty"`

	Volume24h    float64 `json:"volume_24h"`
	BookDepthUSD float64 `json:"book_depth_usd"`

	// Full order books when the capture included depth; nil otherwise.
	BookYes *Book `json:"book_yes,omitempty"`
	BookNo  *Book `json:"book_no,omitempty"`
}

// PriceFor returns the indicative price for the given outcome.
func (s Snapshot) PriceFor(o Outcome) float64 {
	if o == OutcomeYes {
		return s.PriceYes
	}
	return s.PriceNo
}

// BidFor returns the best bid for the given outcome, or nil.
func (s Snapshot) BidFor(o Outcome) *float64 {
	if o == OutcomeYes {
		return s.BestBidYes
	}
	return s.BestBidNo
}

// AskFor returns the best ask for the given outcome, or nil.
func (s Snapshot) AskFor(o Outcome) *float64 {
	if o == OutcomeYes {
		return s.BestAskYes
	}
	return s.BestAskNo
}
