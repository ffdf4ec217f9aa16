package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const leaderboardVersionKey = "dailyquiz:lb:version"

// LeaderboardCache stores computed leaderboards under a shared generation
// number. Recording any attempt bumps the generation, which orphans every
// cached board at once; orphans expire on their own TTL.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ app.LeaderboardCache = (*LeaderboardCache)(nil)

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) Get(ctx context.Context, key string) (domain.Leaderboard, bool, error) {
	full, err := c.versionedKey(ctx, key)
	if err != nil {
		return domain.Leaderboard{}, false, err
	}
	raw, err := c.client.Get(ctx, full).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Leaderboard{}, false, nil
	}
	if err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("get %s: %w", full, err)
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("decode %s: %w", full, err)
	}
	return lb, true, nil
}

func (c *LeaderboardCache) Set(ctx context.Context, key string, lb domain.Leaderboard) error {
	full, err := c.versionedKey(ctx, key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(lb)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, full, raw, c.ttl).Err()
}

// AttemptRecorded invalidates every cached board.
func (c *LeaderboardCache) AttemptRecorded(ctx context.Context, _ domain.AttemptEvent) error {
	return c.client.Incr(ctx, leaderboardVersionKey).Err()
}

func (c *LeaderboardCache) versionedKey(ctx context.Context, key string) (string, error) {
	version, err := c.client.Get(ctx, leaderboardVersionKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		version = "0"
	case err != nil:
		return "", fmt.Errorf("read leaderboard version: %w", err)
	}
	return "dailyquiz:lb:" + version + ":" + key, nil
}
