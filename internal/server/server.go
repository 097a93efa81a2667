// Package server exposes the Telegram webhook and the internal endpoints
// the web application calls.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/ishbor-bot/internal/models"
	"go.uber.org/zap"
)

const (
	secretTokenHeader     = "X-Telegram-Bot-Api-Secret-Token"
	defaultHandlerTimeout = 25 * time.Second
	maxUpdateSize         = 1 << 20
	shutdownTimeout       = 10 * time.Second
)

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// ChannelSyncer schedules a background channel sync.
type ChannelSyncer interface {
	SyncAsync(entityType models.EntityType, id int64)
}

type Config struct {
	Addr           string
	WebhookSecret  string
	InternalSecret string
	HandlerTimeout time.Duration
}

type Server struct {
	cfg     Config
	updates UpdateHandler
	syncer  ChannelSyncer
	logger  *zap.Logger
}

func New(cfg Config, updates UpdateHandler, syncer ChannelSyncer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = defaultHandlerTimeout
	}
	return &Server{cfg: cfg, updates: updates, syncer: syncer, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthz)
	r.Post("/telegram/webhook", s.webhook)
	r.Route("/internal", func(r chi.Router) {
		r.Use(s.internalAuth)
		r.Post("/channel-sync/{type}/{id}", s.channelSync)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// webhook always answers 200 once the caller is authenticated, so
// Telegram never redelivers an update the bot already saw.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookSecret != "" && !secretEqual(r.Header.Get(secretTokenHeader), s.cfg.WebhookSecret) {
		writeError(w, http.StatusUnauthorized, "invalid secret token")
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateSize)).Decode(&update); err != nil {
		s.logger.Warn("undecodable update",
			zap.String("request_id", requestIDFromContext(r.Context())), zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.HandlerTimeout)
	defer cancel()

	if err := s.updates.HandleUpdate(ctx, update); err != nil {
		s.logger.Error("update failed",
			zap.Int("update_id", update.UpdateID),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err))
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) internalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.cfg.InternalSecret == "" || !ok || !secretEqual(token, s.cfg.InternalSecret) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) channelSync(w http.ResponseWriter, r *http.Request) {
	entityType := models.EntityType(chi.URLParam(r, "type"))
	if entityType != models.EntityJob && entityType != models.EntityResume {
		writeError(w, http.StatusBadRequest, "unknown entity type")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	s.syncer.SyncAsync(entityType, id)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "accepted",
		"entity_type": entityType,
		"entity_id":   id,
	})
}

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"status": "error", "message": message})
}
