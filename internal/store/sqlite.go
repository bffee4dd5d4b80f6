package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sightline-ai/sightline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS brands (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL,
	context    TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_brands_tenant ON brands(tenant_id);

CREATE TABLE IF NOT EXISTS competitors (
	id              TEXT PRIMARY KEY,
	brand_id        TEXT NOT NULL REFERENCES brands(id),
	name            TEXT NOT NULL,
	domain          TEXT NOT NULL DEFAULT '',
	entity_type     TEXT NOT NULL,
	is_active       INTEGER NOT NULL DEFAULT 0,
	auto_discovered INTEGER NOT NULL DEFAULT 0,
	context         TEXT NOT NULL DEFAULT '{}',
	deleted_at      DATETIME,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	UNIQUE (brand_id, name)
);

CREATE INDEX IF NOT EXISTS idx_competitors_brand ON competitors(brand_id);

CREATE TABLE IF NOT EXISTS queries (
	id              TEXT PRIMARY KEY,
	brand_id        TEXT NOT NULL REFERENCES brands(id),
	query_text      TEXT NOT NULL,
	query_type      TEXT NOT NULL,
	is_active       INTEGER NOT NULL DEFAULT 1,
	excluded_at     DATETIME,
	excluded_reason TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	UNIQUE (brand_id, query_text)
);

CREATE INDEX IF NOT EXISTS idx_queries_brand ON queries(brand_id);

CREATE TABLE IF NOT EXISTS scan_results (
	id                    TEXT PRIMARY KEY,
	brand_id              TEXT NOT NULL REFERENCES brands(id),
	query_id              TEXT NOT NULL REFERENCES queries(id),
	model                 TEXT NOT NULL,
	response_text         TEXT NOT NULL DEFAULT '',
	brand_mentioned       INTEGER NOT NULL,
	brand_in_citations    INTEGER NOT NULL,
	competitors_mentioned TEXT NOT NULL DEFAULT '[]',
	citations             TEXT NOT NULL DEFAULT '[]',
	scanned_at            DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scan_results_brand ON scan_results(brand_id, scanned_at DESC);

CREATE TABLE IF NOT EXISTS content_gaps (
	id              TEXT PRIMARY KEY,
	brand_id        TEXT NOT NULL REFERENCES brands(id),
	competitor_id   TEXT NOT NULL,
	competitor_name TEXT NOT NULL,
	query_id        TEXT NOT NULL,
	query_text      TEXT NOT NULL,
	analysis        TEXT NOT NULL DEFAULT '{}',
	status          TEXT NOT NULL DEFAULT 'identified',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_content_gaps_brand ON content_gaps(brand_id, created_at DESC);

CREATE TABLE IF NOT EXISTS brand_loops (
	brand_id   TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'idle',
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS feed_events (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	brand_id         TEXT NOT NULL,
	workflow         TEXT NOT NULL,
	severity         TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	data             TEXT,
	action_available TEXT NOT NULL DEFAULT '[]',
	action_taken     TEXT,
	is_read          INTEGER NOT NULL DEFAULT 0,
	is_dismissed     INTEGER NOT NULL DEFAULT 0,
	is_pinned        INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feed_events_tenant ON feed_events(tenant_id, created_at DESC, id DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBrand(ctx context.Context, b model.Brand) (*model.Brand, error) {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	ctxJSON, err := json.Marshal(b.Context)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal brand context")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO brands (id, tenant_id, name, domain, context, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.TenantID, b.Name, b.Domain, string(ctxJSON), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert brand")
	}
	return &b, nil
}

func (s *SQLiteStore) GetBrand(ctx context.Context, id string) (*model.Brand, error) {
	var b model.Brand
	var ctxJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, domain, context, created_at, updated_at FROM brands WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.TenantID, &b.Name, &b.Domain, &ctxJSON, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get brand %s", id)
	}
	if err := json.Unmarshal([]byte(ctxJSON), &b.Context); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal brand context")
	}
	return &b, nil
}

func (s *SQLiteStore) UpdateBrandContext(ctx context.Context, id string, bc model.BrandContext) error {
	ctxJSON, err := json.Marshal(bc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal brand context")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE brands SET context = ?, updated_at = ? WHERE id = ?`,
		string(ctxJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update brand context %s", id)
	}
	return checkRowsAffected(res, "brand", id)
}

func (s *SQLiteStore) UpsertCompetitor(ctx context.Context, c model.Competitor) (*model.Competitor, error) {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	ctxJSON, err := json.Marshal(c.Context)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal competitor context")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO competitors (id, brand_id, name, domain, entity_type, is_active, auto_discovered, context, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (brand_id, name) DO UPDATE SET
			domain = excluded.domain,
			entity_type = excluded.entity_type,
			context = excluded.context,
			updated_at = excluded.updated_at`,
		c.ID, c.BrandID, c.Name, c.Domain, string(c.EntityType), c.IsActive, c.AutoDiscovered,
		string(ctxJSON), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert competitor %s", c.Name)
	}

	var out model.Competitor
	var outCtx string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, name, domain, entity_type, is_active, auto_discovered, context, deleted_at, created_at, updated_at
		 FROM competitors WHERE brand_id = ? AND name = ?`,
		c.BrandID, c.Name,
	).Scan(&out.ID, &out.BrandID, &out.Name, &out.Domain, &out.EntityType, &out.IsActive,
		&out.AutoDiscovered, &outCtx, &out.DeletedAt, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read back competitor %s", c.Name)
	}
	if err := json.Unmarshal([]byte(outCtx), &out.Context); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal competitor context")
	}
	return &out, nil
}

func (s *SQLiteStore) ListCompetitors(ctx context.Context, brandID string, onlyActive bool) ([]model.Competitor, error) {
	q := `SELECT id, brand_id, name, domain, entity_type, is_active, auto_discovered, context, deleted_at, created_at, updated_at
	      FROM competitors WHERE brand_id = ? AND deleted_at IS NULL`
	if onlyActive {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q, brandID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list competitors")
	}
	defer rows.Close()

	var out []model.Competitor
	for rows.Next() {
		var c model.Competitor
		var ctxJSON string
		if err := rows.Scan(&c.ID, &c.BrandID, &c.Name, &c.Domain, &c.EntityType, &c.IsActive,
			&c.AutoDiscovered, &ctxJSON, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan competitor row")
		}
		if err := json.Unmarshal([]byte(ctxJSON), &c.Context); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal competitor context")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate competitors")
}

func (s *SQLiteStore) ListRejectedCompetitorNames(ctx context.Context, brandID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM competitors WHERE brand_id = ? AND deleted_at IS NOT NULL ORDER BY name`,
		brandID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rejected competitor names")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rejected name")
		}
		names = append(names, n)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: iterate rejected names")
}

func (s *SQLiteStore) SetCompetitorActive(ctx context.Context, id string, active bool) error {
	now := time.Now().UTC()
	var err error
	if active {
		_, err = s.db.ExecContext(ctx,
			`UPDATE competitors SET is_active = 1, deleted_at = NULL, updated_at = ? WHERE id = ?`,
			now, id,
		)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE competitors SET is_active = 0, deleted_at = ?, updated_at = ? WHERE id = ?`,
			now, now, id,
		)
	}
	return eris.Wrapf(err, "sqlite: set competitor active %s", id)
}

func (s *SQLiteStore) UpsertQuery(ctx context.Context, q model.Query) (*model.Query, error) {
	q.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (id, brand_id, query_text, query_type, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (brand_id, query_text) DO UPDATE SET
			query_type = excluded.query_type`,
		q.ID, q.BrandID, q.QueryText, string(q.QueryType), q.IsActive, q.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert query")
	}
	return s.GetQueryByText(ctx, q.BrandID, q.QueryText)
}

func (s *SQLiteStore) ListQueries(ctx context.Context, brandID string, onlyActive bool) ([]model.Query, error) {
	q := `SELECT id, brand_id, query_text, query_type, is_active, excluded_at, excluded_reason, created_at
	      FROM queries WHERE brand_id = ?`
	if onlyActive {
		q += ` AND is_active = 1 AND excluded_at IS NULL`
	}
	q += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, q, brandID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list queries")
	}
	defer rows.Close()

	var out []model.Query
	for rows.Next() {
		var item model.Query
		if err := rows.Scan(&item.ID, &item.BrandID, &item.QueryText, &item.QueryType,
			&item.IsActive, &item.ExcludedAt, &item.ExcludedReason, &item.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan query row")
		}
		out = append(out, item)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate queries")
}

func (s *SQLiteStore) GetQueryByText(ctx context.Context, brandID, queryText string) (*model.Query, error) {
	var out model.Query
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, query_text, query_type, is_active, excluded_at, excluded_reason, created_at
		 FROM queries WHERE brand_id = ? AND query_text = ?`,
		brandID, queryText,
	).Scan(&out.ID, &out.BrandID, &out.QueryText, &out.QueryType, &out.IsActive,
		&out.ExcludedAt, &out.ExcludedReason, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get query by text")
	}
	return &out, nil
}

func (s *SQLiteStore) SetQueryExcluded(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queries SET excluded_at = ?, excluded_reason = ?, is_active = 0 WHERE id = ?`,
		time.Now().UTC(), reason, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: exclude query %s", id)
	}
	return checkRowsAffected(res, "query", id)
}

func (s *SQLiteStore) ReenableQuery(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queries SET excluded_at = NULL, excluded_reason = '', is_active = 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: re-enable query %s", id)
	}
	return checkRowsAffected(res, "query", id)
}

func (s *SQLiteStore) InsertScanResult(ctx context.Context, r model.ScanResult) (*model.ScanResult, error) {
	if r.ScannedAt.IsZero() {
		r.ScannedAt = time.Now().UTC()
	}
	if r.CompetitorsMentioned == nil {
		r.CompetitorsMentioned = []string{}
	}
	if r.Citations == nil {
		r.Citations = []model.Citation{}
	}

	mentioned, err := json.Marshal(r.CompetitorsMentioned)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal competitors mentioned")
	}
	citations, err := json.Marshal(r.Citations)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal citations")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scan_results (id, brand_id, query_id, model, response_text, brand_mentioned, brand_in_citations, competitors_mentioned, citations, scanned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BrandID, r.QueryID, r.Model, r.ResponseText, r.BrandMentioned, r.BrandInCitations,
		string(mentioned), string(citations), r.ScannedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert scan result")
	}
	return &r, nil
}

func (s *SQLiteStore) ListScanResults(ctx context.Context, brandID string, limit int) ([]model.ScanResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brand_id, query_id, model, response_text, brand_mentioned, brand_in_citations, competitors_mentioned, citations, scanned_at
		 FROM scan_results WHERE brand_id = ? ORDER BY scanned_at DESC LIMIT ?`,
		brandID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scan results")
	}
	defer rows.Close()

	var out []model.ScanResult
	for rows.Next() {
		var r model.ScanResult
		var mentioned, citations string
		if err := rows.Scan(&r.ID, &r.BrandID, &r.QueryID, &r.Model, &r.ResponseText,
			&r.BrandMentioned, &r.BrandInCitations, &mentioned, &citations, &r.ScannedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result row")
		}
		if err := json.Unmarshal([]byte(mentioned), &r.CompetitorsMentioned); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal competitors mentioned")
		}
		if err := json.Unmarshal([]byte(citations), &r.Citations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal citations")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate scan results")
}

func (s *SQLiteStore) GetScanResult(ctx context.Context, id string) (*model.ScanResult, error) {
	var r model.ScanResult
	var mentioned, citations string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, query_id, model, response_text, brand_mentioned, brand_in_citations, competitors_mentioned, citations, scanned_at
		 FROM scan_results WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.BrandID, &r.QueryID, &r.Model, &r.ResponseText,
		&r.BrandMentioned, &r.BrandInCitations, &mentioned, &citations, &r.ScannedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get scan result %s", id)
	}
	if err := json.Unmarshal([]byte(mentioned), &r.CompetitorsMentioned); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal competitors mentioned")
	}
	if err := json.Unmarshal([]byte(citations), &r.Citations); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal citations")
	}
	return &r, nil
}

func (s *SQLiteStore) InsertGap(ctx context.Context, g model.ContentGap) (*model.ContentGap, error) {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	if g.Status == "" {
		g.Status = model.GapStatusIdentified
	}

	analysis, err := json.Marshal(g.Analysis)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal gap analysis")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO content_gaps (id, brand_id, competitor_id, competitor_name, query_id, query_text, analysis, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.BrandID, g.CompetitorID, g.CompetitorName, g.QueryID, g.QueryText,
		string(analysis), string(g.Status), g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert gap")
	}
	return &g, nil
}

func (s *SQLiteStore) ProgressGapStatus(ctx context.Context, id string, next model.GapStatus) error {
	var cur model.GapStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM content_gaps WHERE id = ?`, id).Scan(&cur)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eris.Errorf("gap not found: %s", id)
		}
		return eris.Wrapf(err, "sqlite: get gap status %s", id)
	}

	if !cur.CanProgress(next) {
		return eris.Errorf("gap %s: illegal status transition %s -> %s", id, cur, next)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE content_gaps SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(next), time.Now().UTC(), id, string(cur),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: progress gap %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("gap %s: concurrent status change", id)
	}
	return nil
}

func (s *SQLiteStore) ListGaps(ctx context.Context, brandID string, limit int) ([]model.ContentGap, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brand_id, competitor_id, competitor_name, query_id, query_text, analysis, status, created_at, updated_at
		 FROM content_gaps WHERE brand_id = ? ORDER BY created_at DESC LIMIT ?`,
		brandID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list gaps")
	}
	defer rows.Close()

	var out []model.ContentGap
	for rows.Next() {
		var g model.ContentGap
		var analysis string
		if err := rows.Scan(&g.ID, &g.BrandID, &g.CompetitorID, &g.CompetitorName,
			&g.QueryID, &g.QueryText, &analysis, &g.Status, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan gap row")
		}
		if err := json.Unmarshal([]byte(analysis), &g.Analysis); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal gap analysis")
		}
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate gaps")
}

func (s *SQLiteStore) SetLoopStatus(ctx context.Context, brandID string, status LoopStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO brand_loops (brand_id, status, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (brand_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		brandID, string(status), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set loop status %s", brandID)
}

func (s *SQLiteStore) GetLoopStatus(ctx context.Context, brandID string) (LoopStatus, error) {
	var status LoopStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM brand_loops WHERE brand_id = ?`, brandID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LoopStatusIdle, nil
		}
		return "", eris.Wrapf(err, "sqlite: get loop status %s", brandID)
	}
	return status, nil
}

func (s *SQLiteStore) InsertFeedEvent(ctx context.Context, e model.FeedEvent) (*model.FeedEvent, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ActionAvailable == nil {
		e.ActionAvailable = []model.FeedAction{}
	}

	actions, err := json.Marshal(e.ActionAvailable)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal feed actions")
	}

	var data any
	if len(e.Data) > 0 {
		data = string(e.Data)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feed_events (id, tenant_id, brand_id, workflow, severity, title, data, action_available, is_read, is_dismissed, is_pinned, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.BrandID, string(e.Workflow), string(e.Severity), e.Title,
		data, string(actions), e.Read, e.Dismissed, e.Pinned, e.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert feed event")
	}
	return &e, nil
}

func (s *SQLiteStore) GetFeedEvent(ctx context.Context, id string) (*model.FeedEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, brand_id, workflow, severity, title, data, action_available, action_taken, is_read, is_dismissed, is_pinned, created_at
		 FROM feed_events WHERE id = ?`,
		id,
	)
	e, err := sqliteFeedEventRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get feed event %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListFeedEvents(ctx context.Context, filter FeedFilter) ([]model.FeedEvent, error) {
	q := `SELECT id, tenant_id, brand_id, workflow, severity, title, data, action_available, action_taken, is_read, is_dismissed, is_pinned, created_at
	      FROM feed_events WHERE tenant_id = ?`
	args := []any{filter.TenantID}

	if filter.BrandID != "" {
		q += ` AND brand_id = ?`
		args = append(args, filter.BrandID)
	}
	if filter.Workflow != "" {
		q += ` AND workflow = ?`
		args = append(args, string(filter.Workflow))
	}
	if filter.Severity != "" {
		q += ` AND severity = ?`
		args = append(args, string(filter.Severity))
	}
	if filter.UnreadOnly {
		q += ` AND is_read = 0`
	}
	if !filter.IncludeDismissed {
		q += ` AND is_dismissed = 0`
	}
	if filter.Cursor != nil {
		if filter.Cursor.ID != "" {
			q += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
			args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
		} else {
			q += ` AND created_at < ?`
			args = append(args, filter.Cursor.CreatedAt)
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list feed events")
	}
	defer rows.Close()

	var out []model.FeedEvent
	for rows.Next() {
		e, err := sqliteFeedEventRow(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feed event row")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate feed events")
}

func (s *SQLiteStore) UpdateFeedState(ctx context.Context, tenantID string, eventIDs []string, action FeedStateAction) (int, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}

	var set string
	switch action {
	case FeedMarkRead:
		set = `is_read = 1`
	case FeedMarkUnread:
		set = `is_read = 0`
	case FeedDismiss:
		set = `is_dismissed = 1, is_read = 1`
	case FeedPin:
		set = `is_pinned = 1`
	case FeedUnpin:
		set = `is_pinned = 0`
	default:
		return 0, eris.Errorf("unknown feed state action: %s", action)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventIDs)), ",")
	q := `UPDATE feed_events SET ` + set + ` WHERE tenant_id = ? AND id IN (` + placeholders + `)`
	if action == FeedMarkUnread {
		q += ` AND is_dismissed = 0`
	}

	args := make([]any, 0, len(eventIDs)+1)
	args = append(args, tenantID)
	for _, id := range eventIDs {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: feed state %s", action)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) RecordFeedAction(ctx context.Context, tenantID, eventID string, action model.FeedAction) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feed_events SET action_taken = ?, is_read = 1
		 WHERE id = ? AND tenant_id = ? AND action_taken IS NULL`,
		string(action), eventID, tenantID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: record feed action %s", eventID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM feed_events WHERE id = ? AND tenant_id = ?`,
		eventID, tenantID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, eris.Errorf("feed event not found: %s", eventID)
		}
		return false, eris.Wrapf(err, "sqlite: check feed event %s", eventID)
	}
	return false, nil
}

func sqliteFeedEventRow(scan func(dest ...any) error) (*model.FeedEvent, error) {
	var e model.FeedEvent
	var data, taken sql.NullString
	var actions string
	if err := scan(&e.ID, &e.TenantID, &e.BrandID, &e.Workflow, &e.Severity, &e.Title,
		&data, &actions, &taken, &e.Read, &e.Dismissed, &e.Pinned, &e.CreatedAt); err != nil {
		return nil, err
	}
	if data.Valid && data.String != "" {
		e.Data = json.RawMessage(data.String)
	}
	if err := json.Unmarshal([]byte(actions), &e.ActionAvailable); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal feed actions")
	}
	if taken.Valid {
		fa := model.FeedAction(taken.String)
		e.ActionTaken = &fa
	}
	return &e, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
