package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/chainwatch/internal/httpapi/middleware"
	"github.com/hamed0406/chainwatch/internal/repo"
)

const version = "0.1.0"

// Server exposes the read-only status API consumed by the dashboard. It
// never triggers checks; it only reads what the worker wrote.
type Server struct {
	Logger   *zap.Logger
	Catalog  repo.CatalogStore
	Checks   repo.CheckStore
	Statuses repo.StatusStore
}

func NewServer(l *zap.Logger, cat repo.CatalogStore, cs repo.CheckStore, ss repo.StatusStore) *Server {
	return &Server{Logger: l, Catalog: cat, Checks: cs, Statuses: ss}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.RateLimit(240, 60))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "service": "chainwatch", "version": version})
	})

	r.Get("/api/projects", s.handleListProjects)
	r.Get("/api/projects/{slug}/networks", s.handleListNetworks)
	r.Get("/api/projects/{slug}/{networkType}/endpoints", s.handleListEndpoints)
	r.Get("/api/projects/{slug}/{networkType}/summary", s.handleNetworkSummary)
	r.Get("/api/endpoints/{id}/checks", s.handleListChecks)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
