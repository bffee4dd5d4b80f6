package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sightline-ai/sightline/internal/model"
)

// UpsertCompetitor inserts or refreshes a competitor keyed by (brand_id, name).
// Re-discovery updates the assessment fields but never flips is_active or
// resurrects a soft-deleted row.
func (s *PostgresStore) UpsertCompetitor(ctx context.Context, c model.Competitor) (*model.Competitor, error) {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	ctxJSON, err := json.Marshal(c.Context)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal competitor context")
	}

	var out model.Competitor
	var outCtx []byte
	err = s.pool.QueryRow(ctx,
		`INSERT INTO competitors (id, brand_id, name, domain, entity_type, is_active, auto_discovered, context, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (brand_id, name) DO UPDATE SET
			domain = EXCLUDED.domain,
			entity_type = EXCLUDED.entity_type,
			context = EXCLUDED.context,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, brand_id, name, domain, entity_type, is_active, auto_discovered, context, deleted_at, created_at, updated_at`,
		c.ID, c.BrandID, c.Name, c.Domain, string(c.EntityType), c.IsActive, c.AutoDiscovered, ctxJSON, c.CreatedAt, c.UpdatedAt,
	).Scan(&out.ID, &out.BrandID, &out.Name, &out.Domain, &out.EntityType, &out.IsActive,
		&out.AutoDiscovered, &outCtx, &out.DeletedAt, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert competitor %s", c.Name)
	}
	if err := json.Unmarshal(outCtx, &out.Context); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal competitor context")
	}
	return &out, nil
}

func (s *PostgresStore) ListCompetitors(ctx context.Context, brandID string, onlyActive bool) ([]model.Competitor, error) {
	q := `SELECT id, brand_id, name, domain, entity_type, is_active, auto_discovered, context, deleted_at, created_at, updated_at
	      FROM competitors WHERE brand_id = $1 AND deleted_at IS NULL`
	if onlyActive {
		q += ` AND is_active = true`
	}
	q += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, q, brandID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list competitors")
	}
	defer rows.Close()

	var out []model.Competitor
	for rows.Next() {
		var c model.Competitor
		var ctxJSON []byte
		if err := rows.Scan(&c.ID, &c.BrandID, &c.Name, &c.Domain, &c.EntityType, &c.IsActive,
			&c.AutoDiscovered, &ctxJSON, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan competitor row")
		}
		if err := json.Unmarshal(ctxJSON, &c.Context); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal competitor context")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate competitors")
}

// ListRejectedCompetitorNames returns the names of soft-deleted competitors,
// fed back into discovery prompts so they are not re-suggested.
func (s *PostgresStore) ListRejectedCompetitorNames(ctx context.Context, brandID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name FROM competitors WHERE brand_id = $1 AND deleted_at IS NOT NULL ORDER BY name`,
		brandID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rejected competitor names")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rejected name")
		}
		names = append(names, n)
	}
	return names, eris.Wrap(rows.Err(), "postgres: iterate rejected names")
}

// SetCompetitorActive toggles scanning eligibility. Deactivating records a
// soft delete so the name feeds back into discovery as rejected.
func (s *PostgresStore) SetCompetitorActive(ctx context.Context, id string, active bool) error {
	now := time.Now().UTC()
	var tag string
	var err error
	if active {
		_, err = s.pool.Exec(ctx,
			`UPDATE competitors SET is_active = true, deleted_at = NULL, updated_at = $1 WHERE id = $2`,
			now, id,
		)
		tag = "activate"
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE competitors SET is_active = false, deleted_at = $1, updated_at = $1 WHERE id = $2`,
			now, id,
		)
		tag = "deactivate"
	}
	return eris.Wrapf(err, "postgres: %s competitor %s", tag, id)
}

// UpsertQuery inserts a query keyed by (brand_id, query_text). Regeneration of
// an existing query refreshes its type but leaves exclusion state alone.
func (s *PostgresStore) UpsertQuery(ctx context.Context, q model.Query) (*model.Query, error) {
	q.CreatedAt = time.Now().UTC()

	var out model.Query
	err := s.pool.QueryRow(ctx,
		`INSERT INTO queries (id, brand_id, query_text, query_type, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (brand_id, query_text) DO UPDATE SET
			query_type = EXCLUDED.query_type
		 RETURNING id, brand_id, query_text, query_type, is_active, excluded_at, excluded_reason, created_at`,
		q.ID, q.BrandID, q.QueryText, string(q.QueryType), q.IsActive, q.CreatedAt,
	).Scan(&out.ID, &out.BrandID, &out.QueryText, &out.QueryType, &out.IsActive,
		&out.ExcludedAt, &out.ExcludedReason, &out.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert query")
	}
	return &out, nil
}

func (s *PostgresStore) ListQueries(ctx context.Context, brandID string, onlyActive bool) ([]model.Query, error) {
	q := `SELECT id, brand_id, query_text, query_type, is_active, excluded_at, excluded_reason, created_at
	      FROM queries WHERE brand_id = $1`
	if onlyActive {
		q += ` AND is_active = true AND excluded_at IS NULL`
	}
	q += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, brandID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list queries")
	}
	defer rows.Close()

	var out []model.Query
	for rows.Next() {
		var item model.Query
		if err := rows.Scan(&item.ID, &item.BrandID, &item.QueryText, &item.QueryType,
			&item.IsActive, &item.ExcludedAt, &item.ExcludedReason, &item.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan query row")
		}
		out = append(out, item)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate queries")
}

func (s *PostgresStore) GetQueryByText(ctx context.Context, brandID, queryText string) (*model.Query, error) {
	var out model.Query
	err := s.pool.QueryRow(ctx,
		`SELECT id, brand_id, query_text, query_type, is_active, excluded_at, excluded_reason, created_at
		 FROM queries WHERE brand_id = $1 AND query_text = $2`,
		brandID, queryText,
	).Scan(&out.ID, &out.BrandID, &out.QueryText, &out.QueryType, &out.IsActive,
		&out.ExcludedAt, &out.ExcludedReason, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get query by text")
	}
	return &out, nil
}

func (s *PostgresStore) SetQueryExcluded(ctx context.Context, id, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queries SET excluded_at = $1, excluded_reason = $2, is_active = false WHERE id = $3`,
		time.Now().UTC(), reason, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: exclude query %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("query not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ReenableQuery(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queries SET excluded_at = NULL, excluded_reason = '', is_active = true WHERE id = $1`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: re-enable query %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("query not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) InsertScanResult(ctx context.Context, r model.ScanResult) (*model.ScanResult, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal competitors mentioned")
	}
	citations, err := json.Marshal(r.Citations)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal citations")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO scan_results (id, brand_id, query_id, model, response_text, brand_mentioned, brand_in_citations, competitors_mentioned, citations, scanned_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.BrandID, r.QueryID, r.Model, r.ResponseText, r.BrandMentioned, r.BrandInCitations,
		mentioned, citations, r.ScannedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert scan result")
	}
	return &r, nil
}

func (s *PostgresStore) ListScanResults(ctx context.Context, brandID string, limit int) ([]model.ScanResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, brand_id, query_id, model, response_text, brand_mentioned, brand_in_citations, competitors_mentioned, citations, scanned_at
		 FROM scan_results WHERE brand_id = $1 ORDER BY scanned_at DESC LIMIT $2`,
		brandID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scan results")
	}
	defer rows.Close()

	var out []model.ScanResult
	for rows.Next() {
		r, err := scanResultRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate scan results")
}

func (s *PostgresStore) GetScanResult(ctx context.Context, id string) (*model.ScanResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, brand_id, query_id, model, response_text, brand_mentioned, brand_in_citations, competitors_mentioned, citations, scanned_at
		 FROM scan_results WHERE id = $1`,
		id,
	)
	r, err := scanResultRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func scanResultRow(row pgx.Row) (*model.ScanResult, error) {
	var r model.ScanResult
	var mentioned, citations []byte
	if err := row.Scan(&r.ID, &r.BrandID, &r.QueryID, &r.Model, &r.ResponseText,
		&r.BrandMentioned, &r.BrandInCitations, &mentioned, &citations, &r.ScannedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, eris.Wrap(err, "postgres: scan result row")
	}
	if err := json.Unmarshal(mentioned, &r.CompetitorsMentioned); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal competitors mentioned")
	}
	if err := json.Unmarshal(citations, &r.Citations); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal citations")
	}
	return &r, nil
}

func (s *PostgresStore) InsertGap(ctx context.Context, g model.ContentGap) (*model.ContentGap, error) {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	if g.Status == "" {
		g.Status = model.GapStatusIdentified
	}

	analysis, err := json.Marshal(g.Analysis)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal gap analysis")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO content_gaps (id, brand_id, competitor_id, competitor_name, query_id, query_text, analysis, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		g.ID, g.BrandID, g.CompetitorID, g.CompetitorName, g.QueryID, g.QueryText,
		analysis, string(g.Status), g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert gap")
	}
	return &g, nil
}

// ProgressGapStatus moves a gap forward in its lifecycle. Backward or
// sideways transitions are rejected; the update is optimistic on the status
// read to survive concurrent progressions.
func (s *PostgresStore) ProgressGapStatus(ctx context.Context, id string, next model.GapStatus) error {
	var cur model.GapStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM content_gaps WHERE id = $1`, id).Scan(&cur)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Errorf("gap not found: %s", id)
		}
		return eris.Wrapf(err, "postgres: get gap status %s", id)
	}

	if !cur.CanProgress(next) {
		return eris.Errorf("gap %s: illegal status transition %s -> %s", id, cur, next)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE content_gaps SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(next), time.Now().UTC(), id, string(cur),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: progress gap %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("gap %s: concurrent status change", id)
	}
	return nil
}

func (s *PostgresStore) ListGaps(ctx context.Context, brandID string, limit int) ([]model.ContentGap, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, brand_id, competitor_id, competitor_name, query_id, query_text, analysis, status, created_at, updated_at
		 FROM content_gaps WHERE brand_id = $1 ORDER BY created_at DESC LIMIT $2`,
		brandID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list gaps")
	}
	defer rows.Close()

	var out []model.ContentGap
	for rows.Next() {
		var g model.ContentGap
		var analysis []byte
		if err := rows.Scan(&g.ID, &g.BrandID, &g.CompetitorID, &g.CompetitorName,
			&g.QueryID, &g.QueryText, &analysis, &g.Status, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan gap row")
		}
		if err := json.Unmarshal(analysis, &g.Analysis); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal gap analysis")
		}
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate gaps")
}

func (s *PostgresStore) SetLoopStatus(ctx context.Context, brandID string, status LoopStatus) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO brand_loops (brand_id, status, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (brand_id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		brandID, string(status), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: set loop status %s", brandID)
}

func (s *PostgresStore) GetLoopStatus(ctx context.Context, brandID string) (LoopStatus, error) {
	var status LoopStatus
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM brand_loops WHERE brand_id = $1`, brandID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoopStatusIdle, nil
		}
		return "", eris.Wrapf(err, "postgres: get loop status %s", brandID)
	}
	return status, nil
}
