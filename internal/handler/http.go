package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/trophy-arena/internal/arena"
	"github.com/trophy-arena/internal/domain"
	"github.com/trophy-arena/internal/service"
	"github.com/trophy-arena/internal/websocket"
)

// Handler provides HTTP handlers for the arena API
type Handler struct {
	coordinator *arena.Coordinator
	leaderboard *service.LeaderboardService
	hub         *websocket.Hub
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	coordinator *arena.Coordinator,
	leaderboard *service.LeaderboardService,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		coordinator: coordinator,
		leaderboard: leaderboard,
		hub:         hub,
		logger:      logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint for players
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Trophy leaderboard
		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/top", h.GetTop)
			r.Get("/range", h.GetRange)
			r.Get("/count", h.GetCount)
			r.Get("/player/{playerID}", h.GetPlayerRank)
		})

		// Player operations
		r.Route("/players/{playerID}", func(r chi.Router) {
			r.Get("/", h.GetPlayer)
			r.Post("/rating", h.UpdateRating)
			r.Get("/matches", h.GetPlayerMatches)
		})

		// Arena diagnostics
		r.Get("/arena/stats", h.GetArenaStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.coordinator, h.logger, w, r)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// GetTop returns the top N players by trophy count
func (h *Handler) GetTop(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.leaderboard.GetTopN(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get top", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}

// GetRange returns players within a specific rank range
func (h *Handler) GetRange(w http.ResponseWriter, r *http.Request) {
	start := 0
	end := 10
	if startStr := r.URL.Query().Get("start"); startStr != "" {
		if s, err := strconv.Atoi(startStr); err == nil && s >= 0 {
			start = s
		}
	}
	if endStr := r.URL.Query().Get("end"); endStr != "" {
		if e, err := strconv.Atoi(endStr); err == nil && e >= start {
			end = e
		}
	}

	entries, err := h.leaderboard.GetRange(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to get range", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}

// GetCount returns the total number of ranked players
func (h *Handler) GetCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.leaderboard.GetCount(r.Context())
	if err != nil {
		h.logger.Error("failed to get count", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]int64{"count": count})
}

// GetPlayerRank returns a player's rank and trophy total
func (h *Handler) GetPlayerRank(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	entry, err := h.leaderboard.GetPlayerRank(r.Context(), playerID)
	if err != nil {
		if err == domain.ErrPlayerNotFound {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get player rank", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entry)
}

// GetPlayer returns a player's profile
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.leaderboard.GetPlayer(r.Context(), playerID)
	if err != nil {
		if err == domain.ErrPlayerNotFound {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get player", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, player)
}

// UpdateRating applies a trophy delta to a player
func (h *Handler) UpdateRating(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req domain.RatingUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	trophies, err := h.leaderboard.UpdateRating(r.Context(), playerID, req.Delta)
	if err != nil {
		if err == domain.ErrPlayerNotFound {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to update rating", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"player_id": playerID,
		"trophies":  trophies,
	})
}

// GetPlayerMatches returns a player's most recent matches
func (h *Handler) GetPlayerMatches(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	records, err := h.leaderboard.ListRecentMatches(r.Context(), playerID, limit)
	if err != nil {
		h.logger.Error("failed to list matches", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, records)
}

// GetArenaStats returns a snapshot of the matchmaking core
func (h *Handler) GetArenaStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, domain.ArenaStats{
		QueueDepth:     h.coordinator.QueueDepth(),
		ActiveSessions: h.coordinator.ActiveSessions(),
		Connections:    h.hub.TotalConnections(),
	})
}
