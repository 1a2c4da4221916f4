package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/chainwatch/internal/domain"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ps, err := s.Catalog.ListProjects(r.Context())
	if err != nil {
		s.fail(w, "list projects", err)
		return
	}
	out := make([]map[string]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, map[string]string{"slug": p.Slug, "name": p.Name})
	}
	writeJSON(w, out)
}

func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	p, err := s.Catalog.GetProjectBySlug(r.Context(), slug)
	if err != nil {
		s.fail(w, "get project", err)
		return
	}
	if p == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	ns, err := s.Catalog.ListNetworks(r.Context(), p.ID)
	if err != nil {
		s.fail(w, "list networks", err)
		return
	}
	out := make([]map[string]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, map[string]string{
			"slug":         n.Slug,
			"name":         n.Name,
			"chain_id":     n.ChainID,
			"network_type": string(n.Type),
		})
	}
	writeJSON(w, out)
}

type endpointView struct {
	ID      domain.EndpointID      `json:"id"`
	Network string                 `json:"network"`
	ChainID string                 `json:"chain_id"`
	Name    string                 `json:"name"`
	Kind    domain.EndpointKind    `json:"kind"`
	URL     string                 `json:"url"`
	Enabled bool                   `json:"enabled"`
	Status  *domain.EndpointStatus `json:"status"`
}

// handleListEndpoints returns endpoints of every network of the project that
// matches the requested network type, each with its last known status. When
// checks are currently failing this still serves the stored status with its
// staleness flag rather than an error.
func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	netType := domain.NetworkType(chi.URLParam(r, "networkType"))
	onlyEnabled := r.URL.Query().Get("only_enabled") == "true"

	p, err := s.Catalog.GetProjectBySlug(r.Context(), slug)
	if err != nil {
		s.fail(w, "get project", err)
		return
	}
	if p == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	ns, err := s.Catalog.ListNetworks(r.Context(), p.ID)
	if err != nil {
		s.fail(w, "list networks", err)
		return
	}

	var views []endpointView
	var ids []domain.EndpointID
	for _, n := range ns {
		if n.Type != netType {
			continue
		}
		eps, err := s.Catalog.ListEndpoints(r.Context(), n.ID)
		if err != nil {
			s.fail(w, "list endpoints", err)
			return
		}
		for _, e := range eps {
			if onlyEnabled && !e.Enabled {
				continue
			}
			views = append(views, endpointView{
				ID:      e.ID,
				Network: n.Slug,
				ChainID: n.ChainID,
				Name:    e.Name,
				Kind:    e.Kind,
				URL:     e.URL,
				Enabled: e.Enabled,
			})
			ids = append(ids, e.ID)
		}
	}
	if len(views) == 0 {
		http.Error(w, "no networks with this type", http.StatusNotFound)
		return
	}

	statuses, err := s.Statuses.ListStatuses(r.Context(), ids)
	if err != nil {
		s.fail(w, "list statuses", err)
		return
	}
	for i := range views {
		views[i].Status = statuses[views[i].ID]
	}
	writeJSON(w, views)
}

type networkSummary struct {
	Slug      string             `json:"slug"`
	ChainID   string             `json:"chain_id"`
	Type      domain.NetworkType `json:"network_type"`
	Endpoints []endpointView     `json:"endpoints"`
}

type projectSummary struct {
	Project  string             `json:"project"`
	Type     domain.NetworkType `json:"network_type"`
	Networks []networkSummary   `json:"networks"`
}

// handleNetworkSummary groups every network of the requested type with its
// endpoints and their current statuses. ?max_delay=N drops endpoints whose
// block_delay exceeds N blocks; endpoints without a known delay stay in.
func (s *Server) handleNetworkSummary(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	netType := domain.NetworkType(chi.URLParam(r, "networkType"))

	var maxDelay *int64
	if v := r.URL.Query().Get("max_delay"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, "bad max_delay", http.StatusBadRequest)
			return
		}
		maxDelay = &n
	}

	p, err := s.Catalog.GetProjectBySlug(r.Context(), slug)
	if err != nil {
		s.fail(w, "get project", err)
		return
	}
	if p == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	ns, err := s.Catalog.ListNetworks(r.Context(), p.ID)
	if err != nil {
		s.fail(w, "list networks", err)
		return
	}

	type group struct {
		net *domain.Network
		eps []*domain.Endpoint
	}
	var groups []group
	var ids []domain.EndpointID
	for _, n := range ns {
		if n.Type != netType {
			continue
		}
		eps, err := s.Catalog.ListEndpoints(r.Context(), n.ID)
		if err != nil {
			s.fail(w, "list endpoints", err)
			return
		}
		groups = append(groups, group{net: n, eps: eps})
		for _, e := range eps {
			ids = append(ids, e.ID)
		}
	}
	if len(groups) == 0 {
		http.Error(w, "no networks with this type", http.StatusNotFound)
		return
	}

	statuses, err := s.Statuses.ListStatuses(r.Context(), ids)
	if err != nil {
		s.fail(w, "list statuses", err)
		return
	}

	out := projectSummary{Project: p.Slug, Type: netType}
	for _, g := range groups {
		sum := networkSummary{
			Slug:      g.net.Slug,
			ChainID:   g.net.ChainID,
			Type:      g.net.Type,
			Endpoints: []endpointView{},
		}
		for _, e := range g.eps {
			st := statuses[e.ID]
			if maxDelay != nil && st != nil && st.BlockDelay != nil && *st.BlockDelay > *maxDelay {
				continue
			}
			sum.Endpoints = append(sum.Endpoints, endpointView{
				ID:      e.ID,
				Network: g.net.Slug,
				ChainID: g.net.ChainID,
				Name:    e.Name,
				Kind:    e.Kind,
				URL:     e.URL,
				Enabled: e.Enabled,
				Status:  st,
			})
		}
		out.Networks = append(out.Networks, sum)
	}
	writeJSON(w, out)
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	id := domain.EndpointID(chi.URLParam(r, "id"))

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "bad from", http.StatusBadRequest)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "bad to", http.StatusBadRequest)
			return
		}
		to = t
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	checks, err := s.Checks.ListChecks(r.Context(), id, from, to, limit)
	if err != nil {
		s.fail(w, "list checks", err)
		return
	}
	if checks == nil {
		checks = []*domain.Check{}
	}
	writeJSON(w, checks)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.Logger.Warn("api_error", zap.String("op", op), zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}
