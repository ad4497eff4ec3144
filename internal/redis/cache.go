// Package redis holds the leaderboard cache. Aggregates are cheap to
// recompute, so everything here is best effort with short TTLs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"shiftlog/internal/domain"
)

const (
	// LeaderboardTTL bounds staleness between explicit invalidations.
	LeaderboardTTL = 30 * time.Second

	leaderboardKey = "cache:leaderboard"
)

// StatsCache caches computed leaderboards in Redis.
type StatsCache struct {
	client *redis.Client
}

// NewStatsCache creates a new StatsCache.
func NewStatsCache(client *redis.Client) *StatsCache {
	return &StatsCache{client: client}
}

// cachedStats is the stored shape of one leaderboard row.
type cachedStats struct {
	DriverID      string    `json:"driver_id"`
	Name          string    `json:"name"`
	TripCount     int       `json:"trip_count"`
	TotalDistance float64   `json:"total_distance"`
	LastTripEnd   time.Time `json:"last_trip_end"`
}

// GetLeaderboard retrieves the cached leaderboard. Returns nil, nil on miss.
func (c *StatsCache) GetLeaderboard(ctx context.Context) ([]domain.DriverStats, error) {
	data, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var rows []cachedStats
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	stats := make([]domain.DriverStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, domain.DriverStats{
			DriverID:      r.DriverID,
			Name:          r.Name,
			TripCount:     r.TripCount,
			TotalDistance: r.TotalDistance,
			LastTripEnd:   r.LastTripEnd,
		})
	}
	return stats, nil
}

// SetLeaderboard stores the leaderboard.
func (c *StatsCache) SetLeaderboard(ctx context.Context, stats []domain.DriverStats) error {
	rows := make([]cachedStats, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, cachedStats{
			DriverID:      s.DriverID,
			Name:          s.Name,
			TripCount:     s.TripCount,
			TotalDistance: s.TotalDistance,
			LastTripEnd:   s.LastTripEnd,
		})
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, leaderboardKey, data, LeaderboardTTL).Err()
}

// InvalidateLeaderboard drops the cached leaderboard.
func (c *StatsCache) InvalidateLeaderboard(ctx context.Context) error {
	return c.client.Del(ctx, leaderboardKey).Err()
}
