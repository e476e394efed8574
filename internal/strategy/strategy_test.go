package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwilliams712/polysim/internal/domain"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{"anchoring", "complement", "deadline", "low_attention"}, r.Names())

	fn, err := r.Get("complement")
	require.NoError(t, err)
	require.NotNil(t, fn)

	_, err = r.Get("momentum")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestComplement_BuysCheapSideOnUnderpricedPair(t *testing.T) {
	fn := Complement(DefaultComplementParams())

	// 0.45 + 0.48 = 0.93: a 7 cent gap, yes is the cheaper side.
	d := fn(domain.Snapshot{PriceYes: 0.45, PriceNo: 0.48}, nil, domain.Market{})

	assert.Equal(t, domain.ActionBuyYes, d.Action)
	assert.InDelta(t, 0.7, d.Confidence, 1e-9)
	require.NotNil(t, d.TargetPrice)
	assert.InDelta(t, 0.45+0.07*0.8, *d.TargetPrice, 1e-9)
}

func TestComplement_SellsRichSideOnOverpricedPair(t *testing.T) {
	fn := Complement(DefaultComplementParams())

	d := fn(domain.Snapshot{PriceYes: 0.55, PriceNo: 0.52}, nil, domain.Market{})

	assert.Equal(t, domain.ActionSellYes, d.Action)
}

func TestComplement_IgnoresGapsInsideFee(t *testing.T) {
	fn := Complement(DefaultComplementParams())

	d := fn(domain.Snapshot{PriceYes: 0.50, PriceNo: 0.49}, nil, domain.Market{})

	assert.Equal(t, domain.ActionNone, d.Action)
}

func anchoredHistory(n int, price, vol float64) []domain.Snapshot {
	hist := make([]domain.Snapshot, n)
	for i := range hist {
		hist[i] = domain.Snapshot{PriceYes: price, Volume24h: vol}
	}
	return hist
}

func TestAnchoring_FadesUnexplainedJump(t *testing.T) {
	fn := Anchoring(DefaultAnchoringParams())

	hist := anchoredHistory(6, 0.50, 100)
	d := fn(domain.Snapshot{PriceYes: 0.60, Volume24h: 100}, hist, domain.Market{})

	assert.Equal(t, domain.ActionBuyNo, d.Action)
	require.NotNil(t, d.TargetPrice)
	assert.InDelta(t, 0.50, *d.TargetPrice, 1e-9)
}

func TestAnchoring_RespectsVolumeSpike(t *testing.T) {
	fn := Anchoring(DefaultAnchoringParams())

	hist := anchoredHistory(6, 0.50, 100)
	d := fn(domain.Snapshot{PriceYes: 0.60, Volume24h: 1000}, hist, domain.Market{})

	assert.Equal(t, domain.ActionNone, d.Action)
}

func TestAnchoring_NeedsHistory(t *testing.T) {
	fn := Anchoring(DefaultAnchoringParams())

	hist := anchoredHistory(3, 0.50, 100)
	d := fn(domain.Snapshot{PriceYes: 0.60, Volume24h: 100}, hist, domain.Market{})

	assert.Equal(t, domain.ActionNone, d.Action)
}

func TestLowAttention_BuysTowardBook(t *testing.T) {
	fn := LowAttention(DefaultLowAttentionParams())

	mid := 0.56
	d := fn(domain.Snapshot{PriceYes: 0.50, MidYes: &mid, Volume24h: 100}, nil, domain.Market{})

	assert.Equal(t, domain.ActionBuyYes, d.Action)
	require.NotNil(t, d.TargetPrice)
	assert.InDelta(t, 0.56, *d.TargetPrice, 1e-9)
}

func TestLowAttention_SkipsActiveMarkets(t *testing.T) {
	fn := LowAttention(DefaultLowAttentionParams())

	mid := 0.56
	d := fn(domain.Snapshot{PriceYes: 0.50, MidYes: &mid, Volume24h: 5000}, nil, domain.Market{})

	assert.Equal(t, domain.ActionNone, d.Action)
}

func TestLowAttention_NeedsMid(t *testing.T) {
	fn := LowAttention(DefaultLowAttentionParams())

	d := fn(domain.Snapshot{PriceYes: 0.50, Volume24h: 100}, nil, domain.Market{})

	assert.Equal(t, domain.ActionNone, d.Action)
}

func TestDeadline_RidesFavoriteIntoResolution(t *testing.T) {
	fn := Deadline(DefaultDeadlineParams())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(24 * time.Hour)
	market := domain.Market{EndDate: &end}

	d := fn(domain.Snapshot{Timestamp: now, PriceYes: 0.85, PriceNo: 0.15}, nil, market)

	assert.Equal(t, domain.ActionBuyYes, d.Action)
	require.NotNil(t, d.TargetPrice)
	assert.InDelta(t, 0.97, *d.TargetPrice, 1e-9)
	require.NotNil(t, d.MaxHoldHours)
	assert.InDelta(t, 24, *d.MaxHoldHours, 1e-6)
}

func TestDeadline_BuysNoSideFavorite(t *testing.T) {
	fn := Deadline(DefaultDeadlineParams())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(12 * time.Hour)
	market := domain.Market{EndDate: &end}

	d := fn(domain.Snapshot{Timestamp: now, PriceYes: 0.12, PriceNo: 0.88}, nil, market)

	assert.Equal(t, domain.ActionBuyNo, d.Action)
}

func TestDeadline_OutsideWindow(t *testing.T) {
	fn := Deadline(DefaultDeadlineParams())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(1000 * time.Hour)
	market := domain.Market{EndDate: &end}

	d := fn(domain.Snapshot{Timestamp: now, PriceYes: 0.85, PriceNo: 0.15}, nil, market)
	assert.Equal(t, domain.ActionNone, d.Action)

	market.Resolved = true
	market.EndDate = nil
	d = fn(domain.Snapshot{Timestamp: now, PriceYes: 0.85, PriceNo: 0.15}, nil, market)
	assert.Equal(t, domain.ActionNone, d.Action)
}

func TestDeadline_FiresBeforeDeadlineOnEventuallyResolvedMarket(t *testing.T) {
	// Historical markets carry Resolved=true in metadata even for snapshots
	// taken before the deadline. The strategy must judge resolution as of
	// the snapshot, or it never trades the window it exists for.
	fn := Deadline(DefaultDeadlineParams())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(10 * time.Hour)
	resolution := 1.0
	market := domain.Market{EndDate: &end, Resolved: true, Resolution: &resolution}

	d := fn(domain.Snapshot{Timestamp: now, PriceYes: 0.90, PriceNo: 0.10}, nil, market)

	assert.Equal(t, domain.ActionBuyYes, d.Action)

	// At or past the deadline the market is resolved and the signal stops.
	at := fn(domain.Snapshot{Timestamp: end, PriceYes: 0.90, PriceNo: 0.10}, nil, market)
	assert.Equal(t, domain.ActionNone, at.Action)
}
