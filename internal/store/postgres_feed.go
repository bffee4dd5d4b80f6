package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sightline-ai/sightline/internal/model"
)

func (s *PostgresStore) InsertFeedEvent(ctx context.Context, e model.FeedEvent) (*model.FeedEvent, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ActionAvailable == nil {
		e.ActionAvailable = []model.FeedAction{}
	}

	actions, err := json.Marshal(e.ActionAvailable)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal feed actions")
	}

	var data []byte
	if len(e.Data) > 0 {
		data = e.Data
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO feed_events (id, tenant_id, brand_id, workflow, severity, title, data, action_available, is_read, is_dismissed, is_pinned, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.TenantID, e.BrandID, string(e.Workflow), string(e.Severity), e.Title,
		data, actions, e.Read, e.Dismissed, e.Pinned, e.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert feed event")
	}
	return &e, nil
}

func (s *PostgresStore) GetFeedEvent(ctx context.Context, id string) (*model.FeedEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, brand_id, workflow, severity, title, data, action_available, action_taken, is_read, is_dismissed, is_pinned, created_at
		 FROM feed_events WHERE id = $1`,
		id,
	)
	e, err := feedEventRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// ListFeedEvents returns a page ordered by (created_at DESC, id DESC). The
// composite cursor comparison guarantees same-timestamp rows are returned
// exactly once across pages; an ID-less cursor falls back to a strict
// created_at comparison.
func (s *PostgresStore) ListFeedEvents(ctx context.Context, filter FeedFilter) ([]model.FeedEvent, error) {
	q := `SELECT id, tenant_id, brand_id, workflow, severity, title, data, action_available, action_taken, is_read, is_dismissed, is_pinned, created_at
	      FROM feed_events WHERE tenant_id = $1`
	args := []any{filter.TenantID}

	if filter.BrandID != "" {
		args = append(args, filter.BrandID)
		q += fmt.Sprintf(` AND brand_id = $%d`, len(args))
	}
	if filter.Workflow != "" {
		args = append(args, string(filter.Workflow))
		q += fmt.Sprintf(` AND workflow = $%d`, len(args))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		q += fmt.Sprintf(` AND severity = $%d`, len(args))
	}
	if filter.UnreadOnly {
		q += ` AND is_read = false`
	}
	if !filter.IncludeDismissed {
		q += ` AND is_dismissed = false`
	}
	if filter.Cursor != nil {
		if filter.Cursor.ID != "" {
			args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
			q += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, len(args)-1, len(args))
		} else {
			args = append(args, filter.Cursor.CreatedAt)
			q += fmt.Sprintf(` AND created_at < $%d`, len(args))
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list feed events")
	}
	defer rows.Close()

	var out []model.FeedEvent
	for rows.Next() {
		e, err := feedEventRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate feed events")
}

// UpdateFeedState applies one bulk state action to the tenant's events and
// returns how many rows changed. Dismiss implies read; mark_unread never
// un-dismisses, so dismissed events are skipped for it.
func (s *PostgresStore) UpdateFeedState(ctx context.Context, tenantID string, eventIDs []string, action FeedStateAction) (int, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}

	var set string
	switch action {
	case FeedMarkRead:
		set = `is_read = true`
	case FeedMarkUnread:
		set = `is_read = false`
	case FeedDismiss:
		set = `is_dismissed = true, is_read = true`
	case FeedPin:
		set = `is_pinned = true`
	case FeedUnpin:
		set = `is_pinned = false`
	default:
		return 0, eris.Errorf("unknown feed state action: %s", action)
	}

	q := `UPDATE feed_events SET ` + set + ` WHERE tenant_id = $1 AND id = ANY($2)`
	if action == FeedMarkUnread {
		q += ` AND is_dismissed = false`
	}

	tag, err := s.pool.Exec(ctx, q, tenantID, eventIDs)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: feed state %s", action)
	}
	return int(tag.RowsAffected()), nil
}

// RecordFeedAction sets action_taken exactly once. Returns false without
// error when the action was already recorded; an unknown or foreign event is
// an error.
func (s *PostgresStore) RecordFeedAction(ctx context.Context, tenantID, eventID string, action model.FeedAction) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE feed_events SET action_taken = $1, is_read = true
		 WHERE id = $2 AND tenant_id = $3 AND action_taken IS NULL`,
		string(action), eventID, tenantID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: record feed action %s", eventID)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT true FROM feed_events WHERE id = $1 AND tenant_id = $2`,
		eventID, tenantID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, eris.Errorf("feed event not found: %s", eventID)
		}
		return false, eris.Wrapf(err, "postgres: check feed event %s", eventID)
	}
	return false, nil
}

func feedEventRow(row pgx.Row) (*model.FeedEvent, error) {
	var e model.FeedEvent
	var data, actions []byte
	var taken *string
	if err := row.Scan(&e.ID, &e.TenantID, &e.BrandID, &e.Workflow, &e.Severity, &e.Title,
		&data, &actions, &taken, &e.Read, &e.Dismissed, &e.Pinned, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, eris.Wrap(err, "postgres: feed event row")
	}
	if len(data) > 0 {
		e.Data = json.RawMessage(data)
	}
	if err := json.Unmarshal(actions, &e.ActionAvailable); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal feed actions")
	}
	if taken != nil {
		fa := model.FeedAction(*taken)
		e.ActionTaken = &fa
	}
	return &e, nil
}
