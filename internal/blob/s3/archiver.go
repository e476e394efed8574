package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/cwilliams712/polysim/internal/domain"
)

// SnapshotArchive reads market metadata and snapshot history from JSONL
// archives in blob storage, serving as an alternative snapshot source when
// no database is available.
//
// Archive layout under the configured prefix:
//
//	{prefix}/markets/*.jsonl    - one domain.Market per line
//	{prefix}/snapshots/*.jsonl  - one domain.Snapshot per line
type SnapshotArchive struct {
	reader domain.BlobReader
	prefix string
}

// NewSnapshotArchive creates a SnapshotArchive rooted at the given prefix.
func NewSnapshotArchive(reader domain.BlobReader, prefix string) *SnapshotArchive {
	return &SnapshotArchive{reader: reader, prefix: strings.TrimSuffix(prefix, "/")}
}

// ListSnapshots reads every snapshot archive under the prefix, applies the
// filter in memory, and returns the matches ordered by timestamp.
func (a *SnapshotArchive) ListSnapshots(ctx context.Context, f domain.SnapshotFilter) ([]domain.Snapshot, error) {
	var snaps []domain.Snapshot
	err := a.readJSONL(ctx, a.prefix+"/snapshots/", func(line []byte) error {
		var snap domain.Snapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			return err
		}
		if !matchesFilter(snap, f) {
			return nil
		}
		snaps = append(snaps, snap)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.Before(snaps[j].Timestamp)
	})
	if f.Limit > 0 && len(snaps) > f.Limit {
		snaps = snaps[:f.Limit]
	}
	return snaps, nil
}

// ListMarkets reads every market archive under the prefix.
func (a *SnapshotArchive) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	var markets []domain.Market
	err := a.readJSONL(ctx, a.prefix+"/markets/", func(line []byte) error {
		var m domain.Market
		if err := json.Unmarshal(line, &m); err != nil {
			return err
		}
		markets = append(markets, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return markets, nil
}

// GetMarket returns a single market by ID, or domain.ErrNotFound.
func (a *SnapshotArchive) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	markets, err := a.ListMarkets(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	for _, m := range markets {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

// readJSONL streams every .jsonl object under the given prefix line by line.
func (a *SnapshotArchive) readJSONL(ctx context.Context, prefix string, fn func(line []byte) error) error {
	infos, err := a.reader.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("s3blob: list archive %s: %w", prefix, err)
	}

	for _, info := range infos {
		if !strings.HasSuffix(info.Path, ".jsonl") {
			continue
		}
		rc, err := a.reader.Get(ctx, info.Path)
		if err != nil {
			return fmt.Errorf("s3blob: open archive %s: %w", info.Path, err)
		}

		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			if err := fn(line); err != nil {
				rc.Close()
				return fmt.Errorf("s3blob: decode %s line %d: %w", info.Path, lineNo, err)
			}
		}
		scanErr := scanner.Err()
		rc.Close()
		if scanErr != nil {
			return fmt.Errorf("s3blob: read archive %s: %w", info.Path, scanErr)
		}
	}
	return nil
}

func matchesFilter(snap domain.Snapshot, f domain.SnapshotFilter) bool {
	if len(f.MarketIDs) > 0 {
		found := false
		for _, id := range f.MarketIDs {
			if snap.MarketID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && snap.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && snap.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

// RunArchiver uploads completed run results to blob storage for long-term
// retention independent of the database.
//
// Layout per run:
//
//	runs/{runID}/summary.json
//	runs/{runID}/trades.jsonl
//	runs/{runID}/equity.jsonl
type RunArchiver struct {
	writer domain.BlobWriter
}

// NewRunArchiver creates a new RunArchiver.
func NewRunArchiver(writer domain.BlobWriter) *RunArchiver {
	return &RunArchiver{writer: writer}
}

// runSummary is the JSON shape of summary.json. ProfitFactor is a pointer
// because +Inf cannot be represented in JSON; nil means infinite.
type runSummary struct {
	ID         string    `json:"id"`
	Strategy   string    `json:"strategy"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Snapshots  int       `json:"snapshots"`

	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	BreakEven   int     `json:"break_even"`
	WinRate     float64 `json:"win_rate"`

	GrossWinsUSD   float64  `json:"gross_wins_usd"`
	GrossLossesUSD float64  `json:"gross_losses_usd"`
	TotalPnLUSD    float64  `json:"total_pnl_usd"`
	AvgPnLUSD      float64  `json:"avg_pnl_usd"`
	AvgPnLPct      float64  `json:"avg_pnl_pct"`
	ProfitFactor   *float64 `json:"profit_factor"`

	StartingEquity float64 `json:"starting_equity"`
	FinalEquity    float64 `json:"final_equity"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	MaxDrawdownUSD float64 `json:"max_drawdown_usd"`

	AvgHoldHours float64 `json:"avg_hold_hours"`
	Sharpe       float64 `json:"sharpe"`
	Sortino      float64 `json:"sortino"`
}

func summaryFromRun(run domain.RunRecord) runSummary {
	m := run.Metrics
	s := runSummary{
		ID:         run.ID,
		Strategy:   run.Strategy,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Snapshots:  run.Snapshots,

		TotalTrades: m.TotalTrades,
		Wins:        m.Wins,
		Losses:      m.Losses,
		BreakEven:   m.BreakEven,
		WinRate:     m.WinRate,

		GrossWinsUSD:   m.GrossWinsUSD,
		GrossLossesUSD: m.GrossLossesUSD,
		TotalPnLUSD:    m.TotalPnLUSD,
		AvgPnLUSD:      m.AvgPnLUSD,
		AvgPnLPct:      m.AvgPnLPct,

		StartingEquity: m.StartingEquity,
		FinalEquity:    m.FinalEquity,
		MaxDrawdownPct: m.MaxDrawdownPct,
		MaxDrawdownUSD: m.MaxDrawdownUSD,

		AvgHoldHours: m.AvgHoldHours,
		Sharpe:       m.Sharpe,
		Sortino:      m.Sortino,
	}
	if !math.IsInf(m.ProfitFactor, 1) {
		pf := m.ProfitFactor
		s.ProfitFactor = &pf
	}
	return s
}

// ArchiveRun uploads the run summary, trades, and equity curve. Uploads are
// sequential; a failure leaves earlier objects in place, and re-running the
// archive overwrites them.
func (a *RunArchiver) ArchiveRun(ctx context.Context, run domain.RunRecord, trades []domain.SimulatedTrade, equity []domain.EquityPoint) error {
	base := path.Join("runs", run.ID)

	summary, err := json.MarshalIndent(summaryFromRun(run), "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal run summary %s: %w", run.ID, err)
	}
	if err := a.writer.Put(ctx, base+"/summary.json", bytes.NewReader(summary), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive run summary %s: %w", run.ID, err)
	}

	tradesBuf, err := marshalJSONL(trades)
	if err != nil {
		return fmt.Errorf("s3blob: marshal run trades %s: %w", run.ID, err)
	}
	if err := a.writer.Put(ctx, base+"/trades.jsonl", bytes.NewReader(tradesBuf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive run trades %s: %w", run.ID, err)
	}

	equityBuf, err := marshalJSONL(equity)
	if err != nil {
		return fmt.Errorf("s3blob: marshal run equity %s: %w", run.ID, err)
	}
	if err := a.writer.Put(ctx, base+"/equity.jsonl", bytes.NewReader(equityBuf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive run equity %s: %w", run.ID, err)
	}

	return nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
