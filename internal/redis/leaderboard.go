package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/trophy-arena/internal/config"
	"github.com/trophy-arena/internal/domain"
)

// trophyKey is the sorted set holding every player's trophy total
const trophyKey = "arena:trophies"

// TrophyBoard provides Redis-based trophy leaderboard operations
type TrophyBoard struct {
	client *redis.Client
	logger *slog.Logger
}

// NewTrophyBoard creates a new Redis trophy board
func NewTrophyBoard(cfg *config.RedisConfig, logger *slog.Logger) (*TrophyBoard, error) {
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

	return &TrophyBoard{
		client: client,
		logger: logger,
	}, nil
}

// NewTrophyBoardWithClient wraps an existing Redis client (for tests)
func NewTrophyBoardWithClient(client *redis.Client, logger *slog.Logger) *TrophyBoard {
	return &TrophyBoard{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (b *TrophyBoard) Close() error {
	return b.client.Close()
}

// Client returns the underlying Redis client
func (b *TrophyBoard) Client() *redis.Client {
	return b.client
}

// SetTrophies sets a player's trophy total
func (b *TrophyBoard) SetTrophies(ctx context.Context, playerID string, trophies int64) error {
	err := b.client.ZAdd(ctx, trophyKey, redis.Z{
		Score:  float64(trophies),
		Member: playerID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting trophies: %w", err)
	}
	return nil
}

// IncrementTrophies adjusts a player's trophy total by the given delta
// and returns the new total, floored at zero.
func (b *TrophyBoard) IncrementTrophies(ctx context.Context, playerID string, delta int64) (int64, error) {
	total, err := b.client.ZIncrBy(ctx, trophyKey, float64(delta), playerID).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing trophies: %w", err)
	}
	if total < 0 {
		if err := b.SetTrophies(ctx, playerID, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return int64(total), nil
}

// RemovePlayer removes a player from the trophy board
func (b *TrophyBoard) RemovePlayer(ctx context.Context, playerID string) error {
	err := b.client.ZRem(ctx, trophyKey, playerID).Err()
	if err != nil {
		return fmt.Errorf("removing player: %w", err)
	}
	return nil
}

// GetTopN returns the top N players by trophy count
func (b *TrophyBoard) GetTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	results, err := b.client.ZRevRangeWithScores(ctx, trophyKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, result := range results {
		entries[i] = domain.LeaderboardEntry{
			Rank:     int64(i + 1),
			PlayerID: result.Member.(string),
			Trophies: int64(result.Score),
		}
	}
	return entries, nil
}

// GetPlayerRank returns a player's rank and trophy total
func (b *TrophyBoard) GetPlayerRank(ctx context.Context, playerID string) (*domain.LeaderboardEntry, error) {
	// Use pipeline to get both rank and score
	pipe := b.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, trophyKey, playerID)
	scoreCmd := pipe.ZScore(ctx, trophyKey, playerID)
	_, err := pipe.Exec(ctx)

	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting rank result: %w", err)
	}

	trophies, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting trophies result: %w", err)
	}

	return &domain.LeaderboardEntry{
		Rank:     rank + 1, // Convert 0-indexed to 1-indexed
		PlayerID: playerID,
		Trophies: int64(trophies),
	}, nil
}

// GetRange returns players within a specific rank range (0-indexed)
func (b *TrophyBoard) GetRange(ctx context.Context, start, end int) ([]domain.LeaderboardEntry, error) {
	results, err := b.client.ZRevRangeWithScores(ctx, trophyKey, int64(start), int64(end)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting range: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, result := range results {
		entries[i] = domain.LeaderboardEntry{
			Rank:     int64(start + i + 1), // Convert to 1-indexed rank
			PlayerID: result.Member.(string),
			Trophies: int64(result.Score),
		}
	}
	return entries, nil
}

// GetCount returns the total number of players on the board
func (b *TrophyBoard) GetCount(ctx context.Context) (int64, error) {
	count, err := b.client.ZCard(ctx, trophyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// BatchSetTrophies sets multiple trophy totals using pipelining
func (b *TrophyBoard) BatchSetTrophies(ctx context.Context, trophies map[string]int) error {
	if len(trophies) == 0 {
		return nil
	}

	pipe := b.client.Pipeline()
	for playerID, total := range trophies {
		pipe.ZAdd(ctx, trophyKey, redis.Z{
			Score:  float64(total),
			Member: playerID,
		})
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("batch setting trophies: %w", err)
	}
	return nil
}
