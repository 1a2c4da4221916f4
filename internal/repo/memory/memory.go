package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/chainwatch/internal/domain"
	"github.com/hamed0406/chainwatch/internal/repo"
)

// Store keeps everything in maps; used when DATABASE_URL is empty and in
// tests. All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	projects  map[domain.ProjectID]*domain.Project
	networks  map[domain.NetworkID]*domain.Network
	endpoints map[domain.EndpointID]*domain.Endpoint
	checks    []*domain.Check
	statuses  map[domain.EndpointID]*domain.EndpointStatus
	nextCheck int64
}

func New() *Store {
	return &Store{
		projects:  make(map[domain.ProjectID]*domain.Project),
		networks:  make(map[domain.NetworkID]*domain.Network),
		endpoints: make(map[domain.EndpointID]*domain.Endpoint),
		checks:    make([]*domain.Check, 0, 128),
		statuses:  make(map[domain.EndpointID]*domain.EndpointStatus),
	}
}

var _ repo.CatalogStore = (*Store)(nil)
var _ repo.CheckStore = (*Store)(nil)
var _ repo.StatusStore = (*Store)(nil)

// ---- CatalogStore ----

func (m *Store) UpsertProject(ctx context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.projects[p.ID]; ok {
		p.CreatedAt = cur.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *Store) UpsertNetwork(ctx context.Context, n *domain.Network) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.networks[n.ID]; ok {
		n.CreatedAt = cur.CreatedAt
	} else if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	m.networks[n.ID] = &cp
	return nil
}

func (m *Store) UpsertEndpoint(ctx context.Context, e *domain.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.endpoints[e.ID]; ok {
		e.CreatedAt = cur.CreatedAt
	} else if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	m.endpoints[e.ID] = &cp
	return nil
}

func (m *Store) DisableEndpoint(ctx context.Context, id domain.EndpointID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.endpoints[id]; ok {
		e.Enabled = false
	}
	return nil
}

func (m *Store) GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.projects {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *Store) ListNetworks(ctx context.Context, projectID domain.ProjectID) ([]*domain.Network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Network
	for _, n := range m.networks {
		if n.ProjectID == projectID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *Store) ListEndpoints(ctx context.Context, networkID domain.NetworkID) ([]*domain.Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Endpoint
	for _, e := range m.endpoints {
		if e.NetworkID == networkID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

func (m *Store) ListEnabledEndpoints(ctx context.Context) ([]repo.EndpointRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []repo.EndpointRow
	for _, e := range m.endpoints {
		if !e.Enabled {
			continue
		}
		n := m.networks[e.NetworkID]
		if n == nil {
			continue
		}
		out = append(out, repo.EndpointRow{Endpoint: *e, Network: *n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint.ID < out[j].Endpoint.ID })
	return out, nil
}

// ---- CheckStore ----

func (m *Store) AppendCheck(ctx context.Context, c *domain.Check) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCheck++
	cp := *c
	cp.ID = m.nextCheck
	c.ID = m.nextCheck
	m.checks = append(m.checks, &cp)
	return nil
}

func (m *Store) ListChecks(ctx context.Context, id domain.EndpointID, from, to time.Time, limit int) ([]*domain.Check, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Check
	for _, c := range m.checks {
		if c.EndpointID != id {
			continue
		}
		if !from.IsZero() && c.CheckedAt.Before(from) {
			continue
		}
		if !to.IsZero() && c.CheckedAt.After(to) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedAt.After(out[j].CheckedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- StatusStore ----

func (m *Store) GetStatus(ctx context.Context, id domain.EndpointID) (*domain.EndpointStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *Store) UpsertStatus(ctx context.Context, s *domain.EndpointStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.statuses[s.EndpointID] = &cp
	return nil
}

func (m *Store) ListStatuses(ctx context.Context, ids []domain.EndpointID) (map[domain.EndpointID]*domain.EndpointStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.EndpointID]*domain.EndpointStatus, len(ids))
	for _, id := range ids {
		if s, ok := m.statuses[id]; ok {
			cp := *s
			out[id] = &cp
		}
	}
	return out, nil
}
