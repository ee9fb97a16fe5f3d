// Package api exposes the profile listing, swipe sessions, decisions and
// idea matching over HTTP, plus the MCP tool surface.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/creatorswipe/internal/catalog"
	"github.com/kalambet/creatorswipe/internal/matcher"
	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/relay"
	"github.com/kalambet/creatorswipe/internal/session"
	"github.com/kalambet/creatorswipe/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// DecisionReader reads persisted decisions.
type DecisionReader interface {
	ListDecisions(limit, offset int) ([]storage.Decision, error)
	DecisionCounts(profileID string) (storage.DecisionCounts, error)
}

type Deps struct {
	Catalog   *catalog.Catalog
	Profiles  *profile.Manager
	Sessions  *session.Manager
	Decisions DecisionReader
	Recorder  *relay.Recorder
	Matcher   *matcher.Matcher
	// StaticDir holds the built web client. Empty disables static serving.
	StaticDir string
	Logger    *slog.Logger
}

// NewHandler returns the HTTP handler for the whole service.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(requestLogger(deps.Logger))

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/profiles", handleListProfiles(deps))
		r.Post("/profiles", handleCreateProfile(deps))
		r.Get("/profiles/{id}", handleGetProfile(deps))

		r.Get("/ideas", handleListIdeas(deps))
		r.Post("/match", handleMatch(deps))

		r.Post("/sessions", handleCreateSession(deps))
		r.Get("/sessions/{id}", handleGetSession(deps))
		r.Delete("/sessions/{id}", handleDeleteSession(deps))
		r.Post("/sessions/{id}/gestures", handleGesture(deps))
		r.Post("/sessions/{id}/like", handleSessionDecision(deps, "like"))
		r.Post("/sessions/{id}/reject", handleSessionDecision(deps, "reject"))
		r.Post("/sessions/{id}/profiles", handleAddSessionProfile(deps))
		r.Post("/sessions/{id}/refresh", handleRefreshSession(deps))
		r.Get("/sessions/{id}/ws", handleSessionSocket(deps))

		r.Post("/decisions", handleCreateDecision(deps))
		r.Get("/decisions", handleListDecisions(deps))

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpError(w, http.StatusNotFound, "not_found", "no route for %s %s", r.Method, r.URL.Path)
		})
	})

	r.NotFound(newSPAHandler(deps.StaticDir).ServeHTTP)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if strings.HasPrefix(r.URL.Path, "/api/") {
				logger.Debug("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
