package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sightline-ai/sightline/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS brands (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL,
	context    JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_brands_tenant ON brands(tenant_id);

CREATE TABLE IF NOT EXISTS competitors (
	id              TEXT PRIMARY KEY,
	brand_id        TEXT NOT NULL REFERENCES brands(id),
	name            TEXT NOT NULL,
	domain          TEXT NOT NULL DEFAULT '',
	entity_type     TEXT NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT false,
	auto_discovered BOOLEAN NOT NULL DEFAULT false,
	context         JSONB NOT NULL DEFAULT '{}',
	deleted_at      TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (brand_id, name)
);

CREATE INDEX IF NOT EXISTS idx_competitors_brand ON competitors(brand_id);

CREATE TABLE IF NOT EXISTS queries (
	id              TEXT PRIMARY KEY,
	brand_id        TEXT NOT NULL REFERENCES brands(id),
	query_text      TEXT NOT NULL,
	query_type      TEXT NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT true,
	excluded_at     TIMESTAMPTZ,
	excluded_reason TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (brand_id, query_text)
);

CREATE INDEX IF NOT EXISTS idx_queries_brand ON queries(brand_id);

CREATE TABLE IF NOT EXISTS scan_results (
	id                    TEXT PRIMARY KEY,
	brand_id              TEXT NOT NULL REFERENCES brands(id),
	query_id              TEXT NOT NULL REFERENCES queries(id),
	model                 TEXT NOT NULL,
	response_text         TEXT NOT NULL DEFAULT '',
	brand_mentioned       BOOLEAN NOT NULL,
	brand_in_citations    BOOLEAN NOT NULL,
	competitors_mentioned JSONB NOT NULL DEFAULT '[]',
	citations             JSONB NOT NULL DEFAULT '[]',
	scanned_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scan_results_brand ON scan_results(brand_id, scanned_at DESC);

CREATE TABLE IF NOT EXISTS content_gaps (
	id              TEXT PRIMARY KEY,
	brand_id        TEXT NOT NULL REFERENCES brands(id),
	competitor_id   TEXT NOT NULL,
	competitor_name TEXT NOT NULL,
	query_id        TEXT NOT NULL,
	query_text      TEXT NOT NULL,
	analysis        JSONB NOT NULL DEFAULT '{}',
	status          TEXT NOT NULL DEFAULT 'identified',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_content_gaps_brand ON content_gaps(brand_id, created_at DESC);

CREATE TABLE IF NOT EXISTS brand_loops (
	brand_id   TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'idle',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feed_events (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	brand_id         TEXT NOT NULL,
	workflow         TEXT NOT NULL,
	severity         TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	data             JSONB,
	action_available JSONB NOT NULL DEFAULT '[]',
	action_taken     TEXT,
	is_read          BOOLEAN NOT NULL DEFAULT false,
	is_dismissed     BOOLEAN NOT NULL DEFAULT false,
	is_pinned        BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_feed_events_tenant ON feed_events(tenant_id, created_at DESC, id DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateBrand(ctx context.Context, b model.Brand) (*model.Brand, error) {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	ctxJSON, err := json.Marshal(b.Context)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal brand context")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO brands (id, tenant_id, name, domain, context, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.TenantID, b.Name, b.Domain, ctxJSON, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert brand")
	}
	return &b, nil
}

func (s *PostgresStore) GetBrand(ctx context.Context, id string) (*model.Brand, error) {
	var b model.Brand
	var ctxJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, domain, context, created_at, updated_at FROM brands WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.TenantID, &b.Name, &b.Domain, &ctxJSON, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get brand %s", id)
	}
	if err := json.Unmarshal(ctxJSON, &b.Context); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal brand context")
	}
	return &b, nil
}

func (s *PostgresStore) UpdateBrandContext(ctx context.Context, id string, bc model.BrandContext) error {
	ctxJSON, err := json.Marshal(bc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal brand context")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE brands SET context = $1, updated_at = $2 WHERE id = $3`,
		ctxJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update brand context %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("brand not found: %s", id)
	}
	return nil
}
