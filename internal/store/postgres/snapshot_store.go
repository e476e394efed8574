package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwilliams712/polysim/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
// Full order books are stored as JSONB alongside the flattened quote
// columns the replay engine reads most often.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotCols = `market_id, ts, price_yes, price_no,
	best_bid_yes, best_ask_yes, best_bid_no, best_ask_no,
	mid_yes, mid_no, volume_24h, book_depth_usd, book_yes, book_no`

const snapshotInsert = `
	INSERT INTO market_snapshots (` + snapshotCols + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// InsertBatch inserts a batch of snapshots in a single round trip.
func (s *SnapshotStore) InsertBatch(ctx context.Context, snaps []domain.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		batch.Queue(snapshotInsert,
			snap.MarketID, snap.Timestamp, snap.PriceYes, snap.PriceNo,
			snap.BestBidYes, snap.BestAskYes, snap.BestBidNo, snap.BestAskNo,
			snap.MidYes, snap.MidNo, snap.Volume24h, snap.BookDepthUSD,
			snap.BookYes, snap.BookNo,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range snaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert snapshot batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListSnapshots returns snapshots matching the filter, ordered by timestamp
// ascending so the replay engine sees them in capture order.
func (s *SnapshotStore) ListSnapshots(ctx context.Context, f domain.SnapshotFilter) ([]domain.Snapshot, error) {
	query := `SELECT ` + snapshotCols + ` FROM market_snapshots WHERE 1=1`
	args := []any{}
	argIdx := 1

	if len(f.MarketIDs) > 0 {
		query += fmt.Sprintf(" AND market_id = ANY($%d)", argIdx)
		args = append(args, f.MarketIDs)
		argIdx++
	}
	if f.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *f.Since)
		argIdx++
	}
	if f.Until != nil {
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, *f.Until)
		argIdx++
	}

	query += " ORDER BY ts, market_id"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot
	for rows.Next() {
		var snap domain.Snapshot
		if err := rows.Scan(
			&snap.MarketID, &snap.Timestamp, &snap.PriceYes, &snap.PriceNo,
			&snap.BestBidYes, &snap.BestAskYes, &snap.BestBidNo, &snap.BestAskNo,
			&snap.MidYes, &snap.MidNo, &snap.Volume24h, &snap.BookDepthUSD,
			&snap.BookYes, &snap.BookNo,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list snapshots rows: %w", err)
	}
	return snaps, nil
}

// Count returns the total number of stored snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM market_snapshots").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count snapshots: %w", err)
	}
	return count, nil
}
