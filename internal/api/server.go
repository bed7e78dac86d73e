// Package api exposes the bot's HTTP surface: webhook delivery from
// Telegram, the custom input endpoint, health, and metrics.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/api/middleware"
	"github.com/dvloznov/budget-bot/internal/config"
	"github.com/dvloznov/budget-bot/internal/logger"
	"github.com/dvloznov/budget-bot/internal/telegram"
)

// UpdateHandler consumes Telegram updates, however they arrive.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd telegram.Update)
}

// Server is the bot's HTTP surface.
type Server struct {
	bot      UpdateHandler
	cfg      *config.Config
	registry *prometheus.Registry
	log      zerolog.Logger
}

// NewServer creates a Server. registry backs the /metrics endpoint.
func NewServer(bot UpdateHandler, cfg *config.Config, registry *prometheus.Registry, log zerolog.Logger) *Server {
	return &Server{bot: bot, cfg: cfg, registry: registry, log: log}
}

// Handler builds the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.log))
	r.Use(middleware.Recovery(s.log))

	r.Post("/webhook", s.handleWebhook)
	r.Post("/input", s.handleInput)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// handleWebhook accepts an update pushed by Telegram. The handler is
// expected to be an enqueue, so Telegram gets its 200 immediately and
// does not redeliver on slow pipelines.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var upd telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		log := logger.FromContext(r.Context())
		log.Warn().Err(err).Msg("malformed webhook payload")
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.bot.HandleUpdate(r.Context(), upd)

	w.WriteHeader(http.StatusOK)
}

// handleInput accepts free text from outside Telegram. The message is
// routed through the same update path, so the reply lands in the
// user's Telegram chat.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		UserID int64  `json:"user_id"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !s.cfg.Authorized(req.UserID) {
		log := logger.FromContext(r.Context())
		log.Debug().Int64("user_id", req.UserID).Msg("custom input denied: unknown user ID")
		middleware.WriteError(w, http.StatusForbidden, "Forbidden")
		return
	}

	upd := telegram.Update{
		Message: &telegram.Message{
			From: &telegram.User{ID: req.UserID},
			Chat: telegram.Chat{ID: req.UserID, Type: "private"},
			Text: req.Text,
		},
	}
	s.bot.HandleUpdate(r.Context(), upd)

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) authorized(r *http.Request) bool {
	if !s.cfg.InputAPIEnabled() {
		log := logger.FromContext(r.Context())
		log.Debug().Msg("custom input denied: endpoint disabled")
		return false
	}
	key := r.Header.Get("X-API-Key")
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.InputAPIKey)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
