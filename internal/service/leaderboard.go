package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trophy-arena/internal/config"
	"github.com/trophy-arena/internal/domain"
	"github.com/trophy-arena/internal/postgres"
	"github.com/trophy-arena/internal/redis"
)

// LeaderboardService provides read and rating-adjustment logic over the
// trophy board. PostgreSQL is the source of truth for trophy totals;
// Redis serves ranked reads.
type LeaderboardService struct {
	board    *redis.TrophyBoard
	postgres *postgres.Repository
	config   *config.LeaderboardConfig
	logger   *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	board *redis.TrophyBoard,
	pg *postgres.Repository,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		board:    board,
		postgres: pg,
		config:   cfg,
		logger:   logger,
	}
}

// GetTopN returns the top N players by trophy count
func (s *LeaderboardService) GetTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	// Validate limit
	if n <= 0 {
		n = s.config.DefaultLimit
	}
	if n > s.config.MaxLimit {
		n = s.config.MaxLimit
	}

	entries, err := s.board.GetTopN(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("getting top n from redis: %w", err)
	}

	return entries, nil
}

// GetPlayerRank returns a player's rank and trophy total
func (s *LeaderboardService) GetPlayerRank(ctx context.Context, playerID string) (*domain.LeaderboardEntry, error) {
	entry, err := s.board.GetPlayerRank(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetRange returns players within a specific rank range
func (s *LeaderboardService) GetRange(ctx context.Context, start, end int) ([]domain.LeaderboardEntry, error) {
	// Validate range
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	if end-start > s.config.MaxLimit {
		end = start + s.config.MaxLimit
	}

	entries, err := s.board.GetRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("getting range from redis: %w", err)
	}
	return entries, nil
}

// GetCount returns the total number of players on the board
func (s *LeaderboardService) GetCount(ctx context.Context) (int64, error) {
	return s.board.GetCount(ctx)
}

// GetPlayer returns a player's profile from the source of truth
func (s *LeaderboardService) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	return s.postgres.GetPlayer(ctx, playerID)
}

// UpdateRating applies a trophy delta to a player. PostgreSQL is
// updated first; a Redis failure afterwards is logged and left for the
// refresh worker to reconcile.
func (s *LeaderboardService) UpdateRating(ctx context.Context, playerID string, delta int) (int, error) {
	trophies, err := s.postgres.UpdatePlayerRating(ctx, playerID, delta)
	if err != nil {
		return 0, err
	}

	if err := s.board.SetTrophies(ctx, playerID, int64(trophies)); err != nil {
		s.logger.Warn("failed to update trophy board", "player_id", playerID, "error", err)
	}

	return trophies, nil
}

// ListRecentMatches returns a player's most recent matches
func (s *LeaderboardService) ListRecentMatches(ctx context.Context, playerID string, limit int) ([]domain.MatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	return s.postgres.ListRecentMatches(ctx, playerID, limit)
}
