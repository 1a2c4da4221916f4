package repo

import (
	"context"
	"time"

	"github.com/hamed0406/chainwatch/internal/domain"
)

// Ports (interfaces) — swap in any DB adapter later.

// EndpointRow joins an endpoint with its owning network; the scheduler needs
// both (chain id, interval and thresholds live on the network).
type EndpointRow struct {
	Endpoint domain.Endpoint
	Network  domain.Network
}

// CatalogStore holds projects, networks and endpoints. Upserts are keyed by
// ID; catalog sync derives IDs deterministically from slugs/URLs so that
// re-applying the same configuration is a no-op.
type CatalogStore interface {
	UpsertProject(ctx context.Context, p *domain.Project) error
	UpsertNetwork(ctx context.Context, n *domain.Network) error
	UpsertEndpoint(ctx context.Context, e *domain.Endpoint) error
	// DisableEndpoint flips enabled off without touching history.
	DisableEndpoint(ctx context.Context, id domain.EndpointID) error

	GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]*domain.Project, error)
	ListNetworks(ctx context.Context, projectID domain.ProjectID) ([]*domain.Network, error)
	ListEndpoints(ctx context.Context, networkID domain.NetworkID) ([]*domain.Endpoint, error)
	ListEnabledEndpoints(ctx context.Context) ([]EndpointRow, error)
}

// CheckStore is append-only history.
type CheckStore interface {
	AppendCheck(ctx context.Context, c *domain.Check) error
	// ListChecks returns checks for one endpoint in [from, to], newest first,
	// capped at limit (limit <= 0 means no cap).
	ListChecks(ctx context.Context, id domain.EndpointID, from, to time.Time, limit int) ([]*domain.Check, error)
}

// StatusStore holds the one-row-per-endpoint current summary.
type StatusStore interface {
	// GetStatus returns nil, nil when the endpoint has never been checked.
	GetStatus(ctx context.Context, id domain.EndpointID) (*domain.EndpointStatus, error)
	UpsertStatus(ctx context.Context, s *domain.EndpointStatus) error
	ListStatuses(ctx context.Context, ids []domain.EndpointID) (map[domain.EndpointID]*domain.EndpointStatus, error)
}
