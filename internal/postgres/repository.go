package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trophy-arena/internal/config"
	"github.com/trophy-arena/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			trophies INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id VARCHAR(64) PRIMARY KEY,
			player1_id VARCHAR(64) NOT NULL,
			player2_id VARCHAR(64) NOT NULL,
			winner_id VARCHAR(64) NOT NULL,
			player1_delta INT NOT NULL,
			player2_delta INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_trophies ON players(trophies DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches(player1_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches(player2_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// UpsertPlayer creates a player row or refreshes its display name
func (r *Repository) UpsertPlayer(ctx context.Context, playerID, displayName string) error {
	query := `
		INSERT INTO players (id, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id)
		DO UPDATE SET display_name = $2, updated_at = $3
	`
	now := time.Now()
	_, err := r.pool.Exec(ctx, query, playerID, displayName, now)
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

// GetPlayer retrieves a player by ID
func (r *Repository) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	query := `
		SELECT id, display_name, trophies, created_at, updated_at
		FROM players
		WHERE id = $1
	`
	var player domain.Player
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&player.ID,
		&player.DisplayName,
		&player.Trophies,
		&player.CreatedAt,
		&player.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &player, nil
}

// UpdatePlayerRating applies a trophy delta to a player. The stored
// total never goes below zero.
func (r *Repository) UpdatePlayerRating(ctx context.Context, playerID string, delta int) (int, error) {
	query := `
		UPDATE players
		SET trophies = GREATEST(0, trophies + $2), updated_at = $3
		WHERE id = $1
		RETURNING trophies
	`
	var trophies int
	err := r.pool.QueryRow(ctx, query, playerID, delta, time.Now()).Scan(&trophies)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrPlayerNotFound
		}
		return 0, fmt.Errorf("updating player rating: %w", err)
	}
	return trophies, nil
}

// PersistMatch records a concluded match. It writes the match row only:
// trophy totals are mutated exclusively through UpdatePlayerRating, which
// clients invoke via the stats endpoint after receiving their delta.
// Replays of the same match id are harmless.
func (r *Repository) PersistMatch(ctx context.Context, record domain.MatchRecord) error {
	query := `
		INSERT INTO matches (id, player1_id, player2_id, winner_id, player1_delta, player2_delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.Player1ID,
		record.Player2ID,
		record.WinnerID,
		record.Player1Delta,
		record.Player2Delta,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

// ListRecentMatches retrieves a player's most recent matches
func (r *Repository) ListRecentMatches(ctx context.Context, playerID string, limit int) ([]domain.MatchRecord, error) {
	query := `
		SELECT id, player1_id, player2_id, winner_id, player1_delta, player2_delta, created_at
		FROM matches
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var records []domain.MatchRecord
	for rows.Next() {
		var rec domain.MatchRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Player1ID,
			&rec.Player2ID,
			&rec.WinnerID,
			&rec.Player1Delta,
			&rec.Player2Delta,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetAllTrophies retrieves every player's trophy total (for sync)
func (r *Repository) GetAllTrophies(ctx context.Context) (map[string]int, error) {
	query := `SELECT id, trophies FROM players`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting all trophies: %w", err)
	}
	defer rows.Close()

	trophies := make(map[string]int)
	for rows.Next() {
		var playerID string
		var total int
		if err := rows.Scan(&playerID, &total); err != nil {
			return nil, fmt.Errorf("scanning trophies: %w", err)
		}
		trophies[playerID] = total
	}
	return trophies, nil
}

// GetPlayerCount returns the total number of known players
func (r *Repository) GetPlayerCount(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM players`
	var count int64
	err := r.pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("getting player count: %w", err)
	}
	return count, nil
}
