package book

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwilliams712/polysim/internal/domain"
)

func makeBook(bids, asks []domain.PriceLevel) *domain.Book {
	return &domain.Book{Bids: bids, Asks: asks}
}

func TestExtractTopOfBook_PartialWhenOneBookMissing(t *testing.T) {
	yes := makeBook(
		[]domain.PriceLevel{{Price: 0.48, Size: 100}},
		[]domain.PriceLevel{{Price: 0.52, Size: 100}},
	)

	top := ExtractTopOfBook(yes, nil)

	require.NotNil(t, top.BestBidYes)
	require.NotNil(t, top.BestAskYes)
	require.NotNil(t, top.MidYes)
	assert.InDelta(t, 0.48, *top.BestBidYes, 1e-9)
	assert.InDelta(t, 0.52, *top.BestAskYes, 1e-9)
	assert.InDelta(t, 0.50, *top.MidYes, 1e-9)

	assert.Nil(t, top.BestBidNo)
	assert.Nil(t, top.BestAskNo)
	assert.Nil(t, top.MidNo)
}

func TestDepthNearMid_WindowInclusive(t *testing.T) {
	levels := []domain.PriceLevel{
		{Price: 0.505, Size: 100}, // upper edge, included
		{Price: 0.500, Size: 100},
		{Price: 0.495, Size: 100}, // lower edge, included
		{Price: 0.490, Size: 100}, // outside
	}

	depth := DepthNearMid(levels, 0.50, 0.01)

	assert.InDelta(t, 0.505*100+0.500*100+0.495*100, depth, 1e-9)
	assert.Zero(t, DepthNearMid(levels, 0, 0.01))
}

func TestEstimateSlippage_FilledInFirstLevel(t *testing.T) {
	asks := []domain.PriceLevel{
		{Price: 0.50, Size: 100},
		{Price: 0.52, Size: 200},
	}

	// $60 fits entirely in the 100-contract level at 0.50: no slippage.
	slip := EstimateSlippage(asks, 60, domain.DirectionBuy)
	assert.InDelta(t, 0, slip, 1e-9)
}

func TestEstimateSlippage_WalksLevels(t *testing.T) {
	asks := []domain.PriceLevel{
		{Price: 0.50, Size: 100},
		{Price: 0.52, Size: 200},
	}

	// $150: 100 contracts at 0.50, 50 at 0.52. Avg 0.506667 against best
	// 0.50 is 1.3333 cents.
	slip := EstimateSlippage(asks, 150, domain.DirectionBuy)
	assert.InDelta(t, 4.0/3.0, slip, 1e-6)
}

func TestEstimateSlippage_SellSide(t *testing.T) {
	bids := []domain.PriceLevel{
		{Price: 0.50, Size: 100},
		{Price: 0.48, Size: 200},
	}

	slip := EstimateSlippage(bids, 150, domain.DirectionSell)
	assert.InDelta(t, 4.0/3.0, slip, 1e-6)
}

func TestEstimateSlippage_CannotFill(t *testing.T) {
	asks := []domain.PriceLevel{
		{Price: 0.50, Size: 100},
		{Price: 0.52, Size: 200},
	}

	assert.True(t, math.IsInf(EstimateSlippage(asks, 600, domain.DirectionBuy), 1))
	assert.True(t, math.IsInf(EstimateSlippage(nil, 60, domain.DirectionBuy), 1))
}

func TestComputeTradability_Passes(t *testing.T) {
	// 4% spread on the yes book; the no book carries $1000 of resting
	// notional inside its +/-1% window.
	yes := makeBook(
		[]domain.PriceLevel{{Price: 0.49, Size: 1000}},
		[]domain.PriceLevel{{Price: 0.51, Size: 1000}},
	)
	no := makeBook(
		[]domain.PriceLevel{{Price: 0.498, Size: 1004.016064}},
		[]domain.PriceLevel{{Price: 0.502, Size: 996.0159363}},
	)

	tr := ComputeTradability(yes, no, DefaultThresholds())

	require.True(t, tr.Tradable, "reasons: %v", tr.FailureReasons)
	assert.Empty(t, tr.FailureReasons)
	assert.InDelta(t, 0.04, tr.SpreadPct, 1e-9)
	assert.InDelta(t, 1000, tr.DepthUSD, 0.01)
	assert.InDelta(t, 0, tr.SlippageCents, 1e-9)

	// Sub-scores: spread halfway to the cap scores 75, depth and
	// slippage are saturated.
	assert.InDelta(t, 75, tr.SpreadScore, 1e-9)
	assert.InDelta(t, 100, tr.DepthScore, 1e-9)
	assert.InDelta(t, 100, tr.SlippageScore, 1e-9)
	assert.InDelta(t, 90, tr.Score, 1e-9)
}

func TestComputeTradability_WideSpreadRejected(t *testing.T) {
	// 10% spread fails regardless of how healthy depth and slippage are.
	yes := makeBook(
		[]domain.PriceLevel{{Price: 0.475, Size: 5000}},
		[]domain.PriceLevel{{Price: 0.525, Size: 5000}},
	)
	no := makeBook(
		[]domain.PriceLevel{{Price: 0.498, Size: 5000}},
		[]domain.PriceLevel{{Price: 0.502, Size: 5000}},
	)

	tr := ComputeTradability(yes, no, DefaultThresholds())

	assert.False(t, tr.Tradable)
	require.Len(t, tr.FailureReasons, 1)
	assert.Contains(t, tr.FailureReasons[0], "spread")
	assert.InDelta(t, 0.10, tr.SpreadPct, 1e-9)
}

func TestComputeTradability_FailsClosedOnMissingBook(t *testing.T) {
	yes := makeBook(
		[]domain.PriceLevel{{Price: 0.49, Size: 1000}},
		[]domain.PriceLevel{{Price: 0.51, Size: 1000}},
	)

	tr := ComputeTradability(yes, nil, DefaultThresholds())

	assert.False(t, tr.Tradable)
	assert.Zero(t, tr.Score)
	require.Len(t, tr.FailureReasons, 1)
	assert.Contains(t, tr.FailureReasons[0], "no book missing")
}

func TestComputeTradability_FailsClosedOnOneSidedBook(t *testing.T) {
	yes := makeBook(nil, []domain.PriceLevel{{Price: 0.51, Size: 1000}})
	no := makeBook(
		[]domain.PriceLevel{{Price: 0.498, Size: 1000}},
		[]domain.PriceLevel{{Price: 0.502, Size: 1000}},
	)

	tr := ComputeTradability(yes, no, DefaultThresholds())

	assert.False(t, tr.Tradable)
	assert.Zero(t, tr.Score)
	require.Len(t, tr.FailureReasons, 1)
	assert.Contains(t, tr.FailureReasons[0], "midpoint")
}
