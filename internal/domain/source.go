package domain

import (
	"context"
	"io"
	"time"
)

// SnapshotFilter narrows a snapshot query to a set of markets and an
// optional time range. An empty MarketIDs slice means all markets.
type SnapshotFilter struct {
	MarketIDs []string
	Since     *time.Time
	Until     *time.Time
	Limit     int
}

// SnapshotSource supplies the ordered snapshot sequence the replay engine
// consumes. Implementations must return snapshots sortable by timestamp;
// the engine performs its own stable sort before replay.
type SnapshotSource interface {
	ListSnapshots(ctx context.Context, f SnapshotFilter) ([]Snapshot, error)
}

// SnapshotStore extends SnapshotSource with write access, used when
// importing archived snapshot batches into the database.
type SnapshotStore interface {
	SnapshotSource
	InsertBatch(ctx context.Context, snaps []Snapshot) error
}

// MarketSource supplies read-only market metadata for a run.
type MarketSource interface {
	GetMarket(ctx context.Context, id string) (Market, error)
	ListMarkets(ctx context.Context) ([]Market, error)
}

// MarketStore extends MarketSource with write access for imports.
type MarketStore interface {
	MarketSource
	UpsertBatch(ctx context.Context, markets []Market) error
}

// BookCache caches the most recent snapshot per market for standalone
// pre-trade checks against live data.
type BookCache interface {
	SetLatest(ctx context.Context, snap Snapshot) error
	GetLatest(ctx context.Context, marketID string) (Snapshot, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves and enumerates objects in blob storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}
