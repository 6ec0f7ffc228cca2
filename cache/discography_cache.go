package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fmsync/model"

	"github.com/go-redis/redis/v8"
)

// discographyTTL bounds staleness of the cached relation rows; the MySQL
// rows remain the source of truth.
const discographyTTL = 24 * time.Hour

// DiscographyCache mirrors the ordered artist→albums relation in a Redis
// sorted set per artist, scored by order index. It is a read-side
// accelerator: all writes are best-effort and the caller falls back to the
// database when the cache misses.
type DiscographyCache struct {
	client *redis.Client
}

// NewDiscographyCache creates a new discography cache.
func NewDiscographyCache(client *redis.Client) *DiscographyCache {
	return &DiscographyCache{client: client}
}

// GetDiscographyKey generates the Redis key for an artist's album rows.
func GetDiscographyKey(artistID string) string {
	return fmt.Sprintf("discography:%s", artistID)
}

// ReplaceRows clears the artist's cached rows and writes the given rows.
func (c *DiscographyCache) ReplaceRows(ctx context.Context, artistID string, rows []model.AlbumRow) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	key := GetDiscographyKey(artistID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear cached discography: %w", err)
	}

	return c.AppendRows(ctx, artistID, rows)
}

// AppendRows adds rows to the artist's cached relation, scored by their
// order index.
func (c *DiscographyCache) AppendRows(ctx context.Context, artistID string, rows []model.AlbumRow) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if len(rows) == 0 {
		return nil
	}

	key := GetDiscographyKey(artistID)
	members := make([]*redis.Z, 0, len(rows))
	for _, row := range rows {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal album row: %w", err)
		}
		members = append(members, &redis.Z{
			Score:  float64(row.Position),
			Member: rowJSON,
		})
	}

	if err := c.client.ZAdd(ctx, key, members...).Err(); err != nil {
		return fmt.Errorf("failed to add album rows to cache: %w", err)
	}

	if err := c.client.Expire(ctx, key, discographyTTL).Err(); err != nil {
		return fmt.Errorf("failed to set discography expiration: %w", err)
	}

	return nil
}

// GetRows returns the artist's cached rows in order index order. A cache
// miss returns an empty slice, not an error.
func (c *DiscographyCache) GetRows(ctx context.Context, artistID string) ([]model.AlbumRow, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	key := GetDiscographyKey(artistID)
	result, err := c.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.AlbumRow{}, nil
		}
		return nil, fmt.Errorf("failed to get cached discography: %w", err)
	}

	rows := make([]model.AlbumRow, 0, len(result))
	for _, rowJSON := range result {
		var row model.AlbumRow
		if err := json.Unmarshal([]byte(rowJSON), &row); err != nil {
			return nil, fmt.Errorf("failed to unmarshal album row: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Clear removes the artist's cached rows.
func (c *DiscographyCache) Clear(ctx context.Context, artistID string) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	return c.client.Del(ctx, GetDiscographyKey(artistID)).Err()
}
