package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/trophy-arena/internal/config"
	"github.com/trophy-arena/internal/postgres"
	"github.com/trophy-arena/internal/redis"
)

// RefreshWorker periodically rebuilds the Redis trophy board from
// PostgreSQL. Match persistence writes both stores, so this worker only
// repairs drift after Redis outages or missed writes.
type RefreshWorker struct {
	board    *redis.TrophyBoard
	postgres *postgres.Repository
	config   *config.RefreshConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewRefreshWorker creates a new refresh worker
func NewRefreshWorker(
	board *redis.TrophyBoard,
	pg *postgres.Repository,
	cfg *config.RefreshConfig,
	logger *slog.Logger,
) *RefreshWorker {
	return &RefreshWorker{
		board:    board,
		postgres: pg,
		config:   cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background refresh process
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("refresh worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background refresh process
func (w *RefreshWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("refresh worker stopped")
	return nil
}

// run is the main worker loop
func (w *RefreshWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.RefreshBoard(ctx); err != nil {
				w.logger.Error("refresh cycle failed", "error", err)
			}
		}
	}
}

// RefreshBoard rebuilds the trophy board from PostgreSQL. Also used at
// startup to recover the board after a cold start.
func (w *RefreshWorker) RefreshBoard(ctx context.Context) error {
	startTime := time.Now()

	trophies, err := w.postgres.GetAllTrophies(ctx)
	if err != nil {
		return err
	}

	if len(trophies) == 0 {
		w.logger.Debug("no trophy totals to refresh")
		return nil
	}

	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	batch := make(map[string]int, batchSize)
	for playerID, total := range trophies {
		batch[playerID] = total

		if len(batch) >= batchSize {
			if err := w.board.BatchSetTrophies(ctx, batch); err != nil {
				return err
			}
			batch = make(map[string]int, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := w.board.BatchSetTrophies(ctx, batch); err != nil {
			return err
		}
	}

	w.logger.Info("trophy board refreshed",
		"duration", time.Since(startTime),
		"player_count", len(trophies),
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *RefreshWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
