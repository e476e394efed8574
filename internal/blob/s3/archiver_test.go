package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwilliams712/polysim/internal/domain"
)

// memBlob is an in-memory BlobReader/BlobWriter for tests.
type memBlob struct {
	objects map[string][]byte
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = buf
	return nil
}

func (m *memBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlob) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, data := range m.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{Path: path, Size: int64(len(data))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (m *memBlob) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

func archiveEpoch() time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
}

func TestSnapshotArchiveListSnapshots(t *testing.T) {
	blob := newMemBlob()
	ctx := context.Background()

	snaps := []domain.Snapshot{
		{MarketID: "mkt-a", Timestamp: archiveEpoch().Add(2 * time.Hour), PriceYes: 0.55, PriceNo: 0.45},
		{MarketID: "mkt-b", Timestamp: archiveEpoch().Add(1 * time.Hour), PriceYes: 0.30, PriceNo: 0.70},
		{MarketID: "mkt-a", Timestamp: archiveEpoch(), PriceYes: 0.50, PriceNo: 0.50},
	}
	buf, err := marshalJSONL(snaps)
	require.NoError(t, err)
	require.NoError(t, blob.Put(ctx, "snapshots/snapshots/2025-06.jsonl", bytes.NewReader(buf), "application/x-ndjson"))

	archive := NewSnapshotArchive(blob, "snapshots/")

	t.Run("all sorted by timestamp", func(t *testing.T) {
		got, err := archive.ListSnapshots(ctx, domain.SnapshotFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "mkt-a", got[0].MarketID)
		assert.True(t, got[0].Timestamp.Equal(archiveEpoch()))
		assert.Equal(t, "mkt-b", got[1].MarketID)
		assert.Equal(t, 0.55, got[2].PriceYes)
	})

	t.Run("market filter", func(t *testing.T) {
		got, err := archive.ListSnapshots(ctx, domain.SnapshotFilter{MarketIDs: []string{"mkt-b"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "mkt-b", got[0].MarketID)
	})

	t.Run("time range and limit", func(t *testing.T) {
		since := archiveEpoch().Add(30 * time.Minute)
		got, err := archive.ListSnapshots(ctx, domain.SnapshotFilter{Since: &since, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "mkt-b", got[0].MarketID)
	})
}

func TestSnapshotArchiveMarkets(t *testing.T) {
	blob := newMemBlob()
	ctx := context.Background()

	end := archiveEpoch().Add(72 * time.Hour)
	res := 1.0
	markets := []domain.Market{
		{ID: "mkt-a", Question: "Will it resolve yes?", EndDate: &end, Resolved: true, Resolution: &res},
		{ID: "mkt-b", Question: "Another market"},
	}
	buf, err := marshalJSONL(markets)
	require.NoError(t, err)
	require.NoError(t, blob.Put(ctx, "snapshots/markets/markets.jsonl", bytes.NewReader(buf), "application/x-ndjson"))

	archive := NewSnapshotArchive(blob, "snapshots")

	got, err := archive.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	m, err := archive.GetMarket(ctx, "mkt-a")
	require.NoError(t, err)
	assert.True(t, m.Resolved)
	require.NotNil(t, m.Resolution)
	assert.Equal(t, 1.0, *m.Resolution)

	_, err = archive.GetMarket(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunArchiverWritesAllObjects(t *testing.T) {
	blob := newMemBlob()
	ctx := context.Background()

	run := domain.RunRecord{
		ID:         "run-1",
		Strategy:   "complement",
		StartedAt:  archiveEpoch(),
		FinishedAt: archiveEpoch().Add(time.Minute),
		Snapshots:  10,
		Metrics: domain.Metrics{
			TotalTrades:  2,
			Wins:         2,
			WinRate:      1.0,
			TotalPnLUSD:  40,
			ProfitFactor: math.Inf(1),
		},
	}
	trades := []domain.SimulatedTrade{
		{ID: "run-1-0001", RunID: "run-1", MarketID: "mkt-a", PnLUSD: 20},
		{ID: "run-1-0002", RunID: "run-1", MarketID: "mkt-b", PnLUSD: 20},
	}
	equity := []domain.EquityPoint{
		{TradeID: "run-1-0001", Equity: 520, Peak: 520},
		{TradeID: "run-1-0002", Equity: 540, Peak: 540},
	}

	archiver := NewRunArchiver(blob)
	require.NoError(t, archiver.ArchiveRun(ctx, run, trades, equity))

	// Infinite profit factor must serialize as null, not break encoding.
	var summary map[string]any
	require.NoError(t, json.Unmarshal(blob.objects["runs/run-1/summary.json"], &summary))
	assert.Equal(t, "run-1", summary["id"])
	assert.Nil(t, summary["profit_factor"])
	assert.Equal(t, float64(2), summary["total_trades"])

	tradeLines := bytes.Split(bytes.TrimSpace(blob.objects["runs/run-1/trades.jsonl"]), []byte("\n"))
	assert.Len(t, tradeLines, 2)
	equityLines := bytes.Split(bytes.TrimSpace(blob.objects["runs/run-1/equity.jsonl"]), []byte("\n"))
	assert.Len(t, equityLines, 2)
}

func TestRunArchiverFiniteProfitFactor(t *testing.T) {
	blob := newMemBlob()
	run := domain.RunRecord{
		ID:      "run-2",
		Metrics: domain.Metrics{ProfitFactor: 1.75},
	}

	archiver := NewRunArchiver(blob)
	require.NoError(t, archiver.ArchiveRun(context.Background(), run, nil, nil))

	var summary map[string]any
	require.NoError(t, json.Unmarshal(blob.objects["runs/run-2/summary.json"], &summary))
	assert.Equal(t, 1.75, summary["profit_factor"])
}
