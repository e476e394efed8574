package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cwilliams712/polysim/internal/domain"
)

// defaultSnapshotTTL bounds how long a cached snapshot is considered live.
// Pre-trade checks against stale books are worse than no check at all.
const defaultSnapshotTTL = 5 * time.Minute

// BookCache implements domain.BookCache using Redis. The most recent
// snapshot per market is stored as a JSON blob under
// polysim:snapshot:latest:{marketID} with a short TTL.
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying(), ttl: defaultSnapshotTTL}
}

func latestSnapshotKey(marketID string) string {
	return "polysim:snapshot:latest:" + marketID
}

// SetLatest stores the given snapshot as the latest for its market.
func (bc *BookCache) SetLatest(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.MarketID, err)
	}
	if err := bc.rdb.Set(ctx, latestSnapshotKey(snap.MarketID), data, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set latest snapshot %s: %w", snap.MarketID, err)
	}
	return nil
}

// GetLatest returns the most recent cached snapshot for a market. It returns
// domain.ErrNotFound when no snapshot is cached or the TTL has expired.
func (bc *BookCache) GetLatest(ctx context.Context, marketID string) (domain.Snapshot, error) {
	data, err := bc.rdb.Get(ctx, latestSnapshotKey(marketID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.Snapshot{}, domain.ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("redis: get latest snapshot %s: %w", marketID, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", marketID, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
