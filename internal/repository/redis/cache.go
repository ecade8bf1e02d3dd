package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Rrens/appstruct/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	blueprintCachePrefix   = "blueprints:user:"
	blueprintVersionPrefix = "blueprints:version:"
	blueprintCacheTTL      = 5 * time.Minute
	blueprintVersionTTL    = 24 * time.Hour
)

var errStaleListing = errors.New("listing version superseded")

// BlueprintCache caches a user's blueprint listing in Redis. Each user has a
// version counter that Invalidate bumps; Set only writes while the counter
// still matches the version the caller read.
type BlueprintCache struct {
	client *Client
	ttl    time.Duration
}

// NewBlueprintCache creates a new blueprint cache
func NewBlueprintCache(client *Client) *BlueprintCache {
	return &BlueprintCache{client: client, ttl: blueprintCacheTTL}
}

func (c *BlueprintCache) key(userID string) string {
	return blueprintCachePrefix + userID
}

func (c *BlueprintCache) versionKey(userID string) string {
	return blueprintVersionPrefix + userID
}

// Get returns the cached listing and the current version; ok is false on a cache miss
func (c *BlueprintCache) Get(ctx context.Context, userID string) ([]domain.Blueprint, bool, int64, error) {
	values, err := c.client.rdb.MGet(ctx, c.key(userID), c.versionKey(userID)).Result()
	if err != nil {
		return nil, false, 0, fmt.Errorf("failed to read blueprint cache: %w", err)
	}

	version, err := parseVersion(values[1])
	if err != nil {
		return nil, false, 0, err
	}

	raw, ok := values[0].(string)
	if !ok {
		return nil, false, version, nil
	}

	var blueprints []domain.Blueprint
	if err := json.Unmarshal([]byte(raw), &blueprints); err != nil {
		return nil, false, 0, fmt.Errorf("failed to unmarshal blueprints: %w", err)
	}

	return blueprints, true, version, nil
}

// Set caches the listing for userID unless the version has moved past version
func (c *BlueprintCache) Set(ctx context.Context, userID string, version int64, blueprints []domain.Blueprint) error {
	data, err := json.Marshal(blueprints)
	if err != nil {
		return fmt.Errorf("failed to marshal blueprints: %w", err)
	}

	versionKey := c.versionKey(userID)
	err = c.client.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleListing
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(userID), data, c.ttl)
			return nil
		})
		return err
	}, versionKey)

	// a concurrent Invalidate won; the listing is stale and is dropped
	if errors.Is(err, errStaleListing) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate removes the cached listing for userID and bumps its version
func (c *BlueprintCache) Invalidate(ctx context.Context, userID string) error {
	versionKey := c.versionKey(userID)
	_, err := c.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, blueprintVersionTTL)
		pipe.Del(ctx, c.key(userID))
		return nil
	})
	return err
}

func parseVersion(value any) (int64, error) {
	if value == nil {
		return 0, nil
	}
	s, ok := value.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected blueprint version type %T", value)
	}
	version, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid blueprint version %q: %w", s, err)
	}
	return version, nil
}
