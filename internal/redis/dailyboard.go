// Package redis caches each group's daily-high scores in sorted sets so
// the "today" query does not hit the record store on the hot path. The
// cache is best-effort: the record store stays the source of truth and
// callers fall back to it on a miss.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/config"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/stats"
)

// DailyBoard provides Redis-based daily-high score caching
type DailyBoard struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewDailyBoard creates a new Redis daily board
func NewDailyBoard(cfg *config.RedisConfig, logger *slog.Logger) (*DailyBoard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &DailyBoard{
		client: client,
		ttl:    cfg.CacheTTL,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (b *DailyBoard) Close() error {
	return b.client.Close()
}

// scoresKey returns the Redis key for a group's daily sorted set
func (b *DailyBoard) scoresKey(groupID, gameDate string) string {
	return fmt.Sprintf("scores:%s:%s:daily", groupID, gameDate)
}

// namesKey returns the Redis key for a group's daily display-name hash
func (b *DailyBoard) namesKey(groupID, gameDate string) string {
	return fmt.Sprintf("scores:%s:%s:names", groupID, gameDate)
}

// RecordScore registers a player's score for a given date. ZADD GT
// keeps only the player's best submission of the day, matching
// daily-high semantics. Both keys expire after the configured TTL so
// stale days clean themselves up.
func (b *DailyBoard) RecordScore(ctx context.Context, groupID, gameDate, playerID, playerName string, score int) error {
	scoresKey := b.scoresKey(groupID, gameDate)
	namesKey := b.namesKey(groupID, gameDate)

	pipe := b.client.Pipeline()
	pipe.ZAddGT(ctx, scoresKey, redis.Z{
		Score:  float64(score),
		Member: playerID,
	})
	pipe.HSet(ctx, namesKey, playerID, playerName)
	pipe.Expire(ctx, scoresKey, b.ttl)
	pipe.Expire(ctx, namesKey, b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording daily score: %w", err)
	}
	return nil
}

// TopScores returns a date's daily-high leaderboard, ranked descending
// by score. ok is false on a cache miss; the caller should fall back to
// the record store.
func (b *DailyBoard) TopScores(ctx context.Context, groupID, gameDate string, limit int) ([]stats.DailyHigh, bool, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	results, err := b.client.ZRevRangeWithScores(ctx, b.scoresKey(groupID, gameDate), 0, stop).Result()
	if err != nil {
		return nil, false, fmt.Errorf("getting daily scores: %w", err)
	}
	if len(results) == 0 {
		return nil, false, nil
	}

	names, err := b.client.HGetAll(ctx, b.namesKey(groupID, gameDate)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("getting player names: %w", err)
	}

	highs := make([]stats.DailyHigh, len(results))
	for i, result := range results {
		playerID, _ := result.Member.(string)
		highs[i] = stats.DailyHigh{
			PlayerID:   playerID,
			PlayerName: names[playerID],
			Score:      int(result.Score),
		}
	}
	return highs, true, nil
}

// Warm repopulates a date's cache from store rows, for recovery after a
// cache flush.
func (b *DailyBoard) Warm(ctx context.Context, groupID, gameDate string, highs []stats.DailyHigh) error {
	if len(highs) == 0 {
		return nil
	}

	scoresKey := b.scoresKey(groupID, gameDate)
	namesKey := b.namesKey(groupID, gameDate)

	pipe := b.client.Pipeline()
	for _, high := range highs {
		pipe.ZAddGT(ctx, scoresKey, redis.Z{
			Score:  float64(high.Score),
			Member: high.PlayerID,
		})
		pipe.HSet(ctx, namesKey, high.PlayerID, high.PlayerName)
	}
	pipe.Expire(ctx, scoresKey, b.ttl)
	pipe.Expire(ctx, namesKey, b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("warming daily cache: %w", err)
	}
	return nil
}
