package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/importer"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/service"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/stats"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/websocket"
)

// ScoreAPI is the slice of the score service the HTTP layer needs.
type ScoreAPI interface {
	RecordMessage(ctx context.Context, msg domain.ChatMessage) (service.IngestResult, error)
	Leaderboard(ctx context.Context, groupID string, window service.Window) ([]stats.PlayerSummary, error)
	TodayScores(ctx context.Context, groupID string) ([]stats.DailyHigh, error)
	PlayerStats(ctx context.Context, groupID, playerID string) (service.PlayerStats, error)
}

// StoreHealth reports whether the record store is reachable.
type StoreHealth interface {
	Ping(ctx context.Context) error
}

var errUnauthorized = errors.New("unauthorized")

// Handler provides HTTP handlers for the score tracker API
type Handler struct {
	service  ScoreAPI
	importer *importer.Importer
	hub      *websocket.Hub
	health   StoreHealth
	token    string
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler. token guards the mutating
// endpoints; requests must carry it as a bearer token.
func NewHandler(service ScoreAPI, imp *importer.Importer, hub *websocket.Hub, health StoreHealth, token string, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		importer: imp,
		hub:      hub,
		health:   health,
		token:    token,
		logger:   logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ImportRequest carries a bounded window of historical chat messages,
// oldest first, to replay through the ingestion path.
type ImportRequest struct {
	Limit    int                  `json:"limit,omitempty"`
	Messages []domain.ChatMessage `json:"messages"`
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

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Message ingestion
		r.With(h.requireToken).Post("/messages", h.SubmitMessage)

		// Group queries
		r.Route("/groups/{groupID}", func(r chi.Router) {
			r.Get("/leaderboard", h.GetLeaderboard)
			r.Get("/today", h.GetTodayScores)
			r.Get("/players/{playerID}/stats", h.GetPlayerStats)

			r.With(h.requireToken).Post("/import", h.RunImport)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireToken rejects mutating requests without the configured bearer token.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || h.token == "" || token != h.token {
			h.writeError(w, http.StatusUnauthorized, errUnauthorized)
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

// writeServiceError maps service errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNoRecords):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrStoreUnavailable)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status. The store must be
// reachable for the tracker to accept scores.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, domain.ErrStoreUnavailable)
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// SubmitMessage runs one chat message through score ingestion. Messages
// without a recognizable score are acknowledged, not rejected; only a
// score that matches the pattern but fails to parse is an error.
func (h *Handler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var msg domain.ChatMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.RecordMessage(r.Context(), msg)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if result.Outcome == service.OutcomeMalformed {
		h.writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Data:    result,
			Error:   `score did not parse, expected a result like "#120 46,415/50,000"`,
		})
		return
	}

	h.writeSuccess(w, result)
}

// GetLeaderboard returns the average-score ranking for a group. The
// window query parameter selects all, week or month.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	window, err := service.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	board, err := h.service.Leaderboard(r.Context(), groupID, window)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, board)
}

// GetTodayScores returns the best score per player for today's game
func (h *Handler) GetTodayScores(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	scores, err := h.service.TodayScores(r.Context(), groupID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, scores)
}

// GetPlayerStats returns a player's personal statistics and streaks
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	playerID := chi.URLParam(r, "playerID")
	if groupID == "" || playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	playerStats, err := h.service.PlayerStats(r.Context(), groupID, playerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeSuccess(w, playerStats)
}

// RunImport replays a submitted window of historical messages through
// ingestion. Replaying already imported history is safe; duplicates are
// counted, not re-recorded.
func (h *Handler) RunImport(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if len(req.Messages) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	for i := range req.Messages {
		if req.Messages[i].GroupID == "" {
			req.Messages[i].GroupID = groupID
		}
	}

	report, err := h.importer.Run(r.Context(), importer.SliceSource(req.Messages), req.Limit, func(p importer.Report) {
		h.logger.Info("import progress",
			"group_id", groupID,
			"processed", p.Processed,
			"imported", p.Imported,
		)
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("import finished",
		"group_id", groupID,
		"processed", report.Processed,
		"imported", report.Imported,
		"skipped_duplicates", report.SkippedDuplicates,
		"skipped_non_scores", report.SkippedNonScores,
	)
	h.writeSuccess(w, report)
}
