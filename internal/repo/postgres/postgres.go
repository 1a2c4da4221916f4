package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/chainwatch/internal/domain"
	"github.com/hamed0406/chainwatch/internal/repo"
)

var _ repo.CatalogStore = (*Store)(nil)
var _ repo.CheckStore = (*Store)(nil)
var _ repo.StatusStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist yet. Mirrors what the
// deploy scripts do; handy for fresh databases and tests against a throwaway
// instance.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id         TEXT PRIMARY KEY,
    slug       TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS networks (
    id             TEXT PRIMARY KEY,
    project_id     TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    slug           TEXT NOT NULL,
    name           TEXT NOT NULL,
    chain_id       TEXT NOT NULL,
    network_type   TEXT NOT NULL,
    check_interval BIGINT NOT NULL DEFAULT 0,
    stale_after    BIGINT NOT NULL DEFAULT 0,
    max_block_lag  BIGINT NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL,
    UNIQUE (project_id, slug)
);
CREATE TABLE IF NOT EXISTS endpoints (
    id         TEXT PRIMARY KEY,
    network_id TEXT NOT NULL REFERENCES networks(id) ON DELETE CASCADE,
    name       TEXT NOT NULL,
    kind       TEXT NOT NULL,
    url        TEXT NOT NULL,
    enabled    BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL,
    UNIQUE (network_id, url)
);
CREATE TABLE IF NOT EXISTS checks (
    id           BIGSERIAL PRIMARY KEY,
    endpoint_id  TEXT NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
    success      BOOLEAN NOT NULL,
    http_status  INT,
    latency_ms   DOUBLE PRECISION NOT NULL,
    block_height BIGINT,
    block_time   TIMESTAMPTZ,
    error_kind   TEXT,
    error_detail TEXT,
    checked_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS checks_endpoint_time ON checks (endpoint_id, checked_at DESC);
CREATE TABLE IF NOT EXISTS endpoint_statuses (
    endpoint_id    TEXT PRIMARY KEY REFERENCES endpoints(id) ON DELETE CASCADE,
    classification TEXT NOT NULL,
    success        BOOLEAN NOT NULL,
    http_status    INT,
    latency_ms     DOUBLE PRECISION NOT NULL,
    block_height   BIGINT,
    block_time     TIMESTAMPTZ,
    block_delay    BIGINT,
    is_stale       BOOLEAN NOT NULL,
    error_kind     TEXT,
    error_detail   TEXT,
    last_checked   TIMESTAMPTZ NOT NULL
);
`

// ---- CatalogStore ----

func (s *Store) UpsertProject(ctx context.Context, p *domain.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, slug, name, created_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, name = EXCLUDED.name`,
		string(p.ID), p.Slug, p.Name, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

func (s *Store) UpsertNetwork(ctx context.Context, n *domain.Network) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO networks
		   (id, project_id, slug, name, chain_id, network_type,
		    check_interval, stale_after, max_block_lag, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   chain_id = EXCLUDED.chain_id,
		   network_type = EXCLUDED.network_type,
		   check_interval = EXCLUDED.check_interval,
		   stale_after = EXCLUDED.stale_after,
		   max_block_lag = EXCLUDED.max_block_lag`,
		string(n.ID), string(n.ProjectID), n.Slug, n.Name, n.ChainID, string(n.Type),
		int64(n.CheckInterval), int64(n.StaleAfter), n.MaxBlockLag, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert network: %w", err)
	}
	return nil
}

func (s *Store) UpsertEndpoint(ctx context.Context, e *domain.Endpoint) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO endpoints (id, network_id, name, kind, url, enabled, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   kind = EXCLUDED.kind,
		   enabled = EXCLUDED.enabled`,
		string(e.ID), string(e.NetworkID), e.Name, string(e.Kind), e.URL, e.Enabled, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert endpoint: %w", err)
	}
	return nil
}

func (s *Store) DisableEndpoint(ctx context.Context, id domain.EndpointID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE endpoints SET enabled = FALSE WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("disable endpoint: %w", err)
	}
	return nil
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, slug, name, created_at FROM projects WHERE slug = $1`, slug)
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, slug, name, created_at FROM projects ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Store) ListNetworks(ctx context.Context, projectID domain.ProjectID) ([]*domain.Network, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, slug, name, chain_id, network_type,
		        check_interval, stale_after, max_block_lag, created_at
		   FROM networks
		  WHERE project_id = $1
		  ORDER BY slug`, string(projectID))
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Network
	for rows.Next() {
		n, err := scanNetwork(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNetwork(row pgx.Row) (*domain.Network, error) {
	var n domain.Network
	var interval, staleAfter int64
	if err := row.Scan(&n.ID, &n.ProjectID, &n.Slug, &n.Name, &n.ChainID, &n.Type,
		&interval, &staleAfter, &n.MaxBlockLag, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan network: %w", err)
	}
	n.CheckInterval = time.Duration(interval)
	n.StaleAfter = time.Duration(staleAfter)
	return &n, nil
}

func (s *Store) ListEndpoints(ctx context.Context, networkID domain.NetworkID) ([]*domain.Endpoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, network_id, name, kind, url, enabled, created_at
		   FROM endpoints
		  WHERE network_id = $1
		  ORDER BY url`, string(networkID))
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []*domain.Endpoint
	for rows.Next() {
		var e domain.Endpoint
		if err := rows.Scan(&e.ID, &e.NetworkID, &e.Name, &e.Kind, &e.URL, &e.Enabled, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) ListEnabledEndpoints(ctx context.Context) ([]repo.EndpointRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT e.id, e.network_id, e.name, e.kind, e.url, e.enabled, e.created_at,
       n.id, n.project_id, n.slug, n.name, n.chain_id, n.network_type,
       n.check_interval, n.stale_after, n.max_block_lag, n.created_at
  FROM endpoints e
  JOIN networks n ON n.id = e.network_id
 WHERE e.enabled
 ORDER BY e.id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled endpoints: %w", err)
	}
	defer rows.Close()

	var out []repo.EndpointRow
	for rows.Next() {
		var r repo.EndpointRow
		var interval, staleAfter int64
		if err := rows.Scan(
			&r.Endpoint.ID, &r.Endpoint.NetworkID, &r.Endpoint.Name, &r.Endpoint.Kind,
			&r.Endpoint.URL, &r.Endpoint.Enabled, &r.Endpoint.CreatedAt,
			&r.Network.ID, &r.Network.ProjectID, &r.Network.Slug, &r.Network.Name,
			&r.Network.ChainID, &r.Network.Type,
			&interval, &staleAfter, &r.Network.MaxBlockLag, &r.Network.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan endpoint row: %w", err)
		}
		r.Network.CheckInterval = time.Duration(interval)
		r.Network.StaleAfter = time.Duration(staleAfter)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- CheckStore ----

func (s *Store) AppendCheck(ctx context.Context, c *domain.Check) error {
	if c.CheckedAt.IsZero() {
		c.CheckedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO checks
		   (endpoint_id, success, http_status, latency_ms, block_height,
		    block_time, error_kind, error_detail, checked_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING id`,
		string(c.EndpointID), c.Success, c.HTTPStatus, c.LatencyMS, c.BlockHeight,
		c.BlockTime, nullKind(c.ErrorKind), c.ErrorDetail, c.CheckedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *Store) ListChecks(ctx context.Context, id domain.EndpointID, from, to time.Time, limit int) ([]*domain.Check, error) {
	q := `SELECT id, endpoint_id, success, http_status, latency_ms, block_height,
	             block_time, error_kind, error_detail, checked_at
	        FROM checks
	       WHERE endpoint_id = $1
	         AND ($2::timestamptz IS NULL OR checked_at >= $2)
	         AND ($3::timestamptz IS NULL OR checked_at <= $3)
	       ORDER BY checked_at DESC`
	args := []any{string(id), nullTime(from), nullTime(to)}
	if limit > 0 {
		q += ` LIMIT $4`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Check
	for rows.Next() {
		var c domain.Check
		var kind *string
		if err := rows.Scan(&c.ID, &c.EndpointID, &c.Success, &c.HTTPStatus, &c.LatencyMS,
			&c.BlockHeight, &c.BlockTime, &kind, &c.ErrorDetail, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		if kind != nil {
			c.ErrorKind = domain.ErrorKind(*kind)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ---- StatusStore ----

func (s *Store) GetStatus(ctx context.Context, id domain.EndpointID) (*domain.EndpointStatus, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT endpoint_id, classification, success, http_status, latency_ms,
		        block_height, block_time, block_delay, is_stale,
		        error_kind, error_detail, last_checked
		   FROM endpoint_statuses
		  WHERE endpoint_id = $1`, string(id))
	st, err := scanStatus(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return st, err
}

func (s *Store) UpsertStatus(ctx context.Context, st *domain.EndpointStatus) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO endpoint_statuses
		   (endpoint_id, classification, success, http_status, latency_ms,
		    block_height, block_time, block_delay, is_stale,
		    error_kind, error_detail, last_checked)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (endpoint_id) DO UPDATE SET
		   classification = EXCLUDED.classification,
		   success = EXCLUDED.success,
		   http_status = EXCLUDED.http_status,
		   latency_ms = EXCLUDED.latency_ms,
		   block_height = EXCLUDED.block_height,
		   block_time = EXCLUDED.block_time,
		   block_delay = EXCLUDED.block_delay,
		   is_stale = EXCLUDED.is_stale,
		   error_kind = EXCLUDED.error_kind,
		   error_detail = EXCLUDED.error_detail,
		   last_checked = EXCLUDED.last_checked`,
		string(st.EndpointID), string(st.Classification), st.Success, st.HTTPStatus,
		st.LatencyMS, st.BlockHeight, st.BlockTime, st.BlockDelay, st.Stale,
		nullKind(st.ErrorKind), st.ErrorDetail, st.CheckedAt)
	if err != nil {
		return fmt.Errorf("upsert status: %w", err)
	}
	return nil
}

func (s *Store) ListStatuses(ctx context.Context, ids []domain.EndpointID) (map[domain.EndpointID]*domain.EndpointStatus, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT endpoint_id, classification, success, http_status, latency_ms,
		        block_height, block_time, block_delay, is_stale,
		        error_kind, error_detail, last_checked
		   FROM endpoint_statuses
		  WHERE endpoint_id = ANY($1)`, raw)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.EndpointID]*domain.EndpointStatus, len(ids))
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out[st.EndpointID] = st
	}
	return out, rows.Err()
}

func scanStatus(row pgx.Row) (*domain.EndpointStatus, error) {
	var st domain.EndpointStatus
	var kind *string
	err := row.Scan(&st.EndpointID, &st.Classification, &st.Success, &st.HTTPStatus,
		&st.LatencyMS, &st.BlockHeight, &st.BlockTime, &st.BlockDelay, &st.Stale,
		&kind, &st.ErrorDetail, &st.CheckedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan status: %w", err)
	}
	if kind != nil {
		st.ErrorKind = domain.ErrorKind(*kind)
	}
	return &st, nil
}

func nullKind(k domain.ErrorKind) *string {
	if k == "" {
		return nil
	}
	s := string(k)
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
