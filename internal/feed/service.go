// Package feed exposes the user-facing notification surface: listing with
// cursor pagination, bulk read/dismiss/pin state changes and one-shot event
// actions that feed back into the pipeline.
package feed

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/events"
	"github.com/sightline-ai/sightline/internal/model"
	"github.com/sightline-ai/sightline/internal/store"
)

// Sentinel errors the HTTP layer maps onto status codes.
var (
	ErrNotFound     = eris.New("feed: event not found")
	ErrForbidden    = eris.New("feed: event belongs to another tenant")
	ErrBadAction    = eris.New("feed: action not offered by this event")
	ErrBadCursor    = eris.New("feed: malformed cursor")
	ErrUnknownState = eris.New("feed: unknown state action")
)

// Publisher emits pipeline triggers for feed actions.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Page is one page of feed events plus the cursor for the next page. An
// empty NextCursor means the feed is exhausted.
type Page struct {
	Events     []model.FeedEvent `json:"events"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// ActionOutcome reports a one-shot event action. Applied is false when the
// action had already been taken; repeats are caller-visible no-ops.
type ActionOutcome struct {
	Applied     bool             `json:"applied"`
	ActionTaken model.FeedAction `json:"action_taken"`
}

// Service implements the feed surface over the store.
type Service struct {
	store           store.Store
	publisher       Publisher
	maxPageSize     int
	defaultPageSize int
}

// NewService creates a feed Service. publisher may be nil; rescan actions
// then fail.
func NewService(st store.Store, publisher Publisher, maxPageSize, defaultPageSize int) *Service {
	if maxPageSize <= 0 {
		maxPageSize = 50
	}
	if defaultPageSize <= 0 || defaultPageSize > maxPageSize {
		defaultPageSize = 20
	}
	return &Service{
		store:           st,
		publisher:       publisher,
		maxPageSize:     maxPageSize,
		defaultPageSize: defaultPageSize,
	}
}

// List returns one page of the tenant's feed, newest first.
func (s *Service) List(ctx context.Context, filter store.FeedFilter, cursor string) (*Page, error) {
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return nil, ErrBadCursor
		}
		filter.Cursor = c
	}
	if filter.Limit <= 0 {
		filter.Limit = s.defaultPageSize
	}
	if filter.Limit > s.maxPageSize {
		filter.Limit = s.maxPageSize
	}

	items, err := s.store.ListFeedEvents(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &Page{Events: items}
	if len(items) == filter.Limit {
		last := items[len(items)-1]
		page.NextCursor = EncodeCursor(store.FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// BulkUpdate applies one state action to many events and returns the number
// of rows changed. Events owned by other tenants are silently unaffected.
func (s *Service) BulkUpdate(ctx context.Context, tenantID string, eventIDs []string, action store.FeedStateAction) (int, error) {
	if !store.ValidFeedStateAction(action) {
		return 0, ErrUnknownState
	}
	return s.store.UpdateFeedState(ctx, tenantID, eventIDs, action)
}

// actionData is the event payload fields the one-shot actions consume.
type actionData struct {
	BrandID      string `json:"brand_id"`
	CompetitorID string `json:"competitor_id"`
	QueryID      string `json:"query_id"`
	QueryText    string `json:"query_text"`
	GapID        string `json:"gap_id"`
}

// TakeAction records action_taken exactly once and executes the action's
// pipeline side effect. A repeat returns Applied=false with no side effect.
func (s *Service) TakeAction(ctx context.Context, tenantID, eventID string, action model.FeedAction) (*ActionOutcome, error) {
	event, err := s.store.GetFeedEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrNotFound
	}
	if event.TenantID != tenantID {
		return nil, ErrForbidden
	}
	if !event.Offers(action) {
		return nil, ErrBadAction
	}

	applied, err := s.store.RecordFeedAction(ctx, tenantID, eventID, action)
	if err != nil {
		return nil, err
	}
	if !applied {
		taken := action
		if event.ActionTaken != nil {
			taken = *event.ActionTaken
		}
		return &ActionOutcome{Applied: false, ActionTaken: taken}, nil
	}

	if err := s.execute(ctx, event, action); err != nil {
		return nil, err
	}
	return &ActionOutcome{Applied: true, ActionTaken: action}, nil
}

func (s *Service) execute(ctx context.Context, event *model.FeedEvent, action model.FeedAction) error {
	var data actionData
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return eris.Wrap(err, "feed: parse event data")
		}
	}
	brandID := data.BrandID
	if brandID == "" {
		brandID = event.BrandID
	}

	switch action {
	case model.ActionEnableCompetitor:
		if data.CompetitorID == "" {
			return eris.New("feed: event data has no competitor_id")
		}
		return s.store.SetCompetitorActive(ctx, data.CompetitorID, true)

	case model.ActionExcludeQuery:
		queryID := data.QueryID
		if queryID == "" && data.QueryText != "" {
			q, err := s.store.GetQueryByText(ctx, brandID, data.QueryText)
			if err != nil {
				return err
			}
			if q == nil {
				return eris.Errorf("feed: no query matching %q", data.QueryText)
			}
			queryID = q.ID
		}
		if queryID == "" {
			return eris.New("feed: event data has no query reference")
		}
		return s.store.SetQueryExcluded(ctx, queryID, "excluded via feed action")

	case model.ActionRescan:
		if s.publisher == nil {
			return eris.New("feed: rescan unavailable without a publisher")
		}
		return s.publisher.Publish(ctx, events.ScanRun{BrandID: brandID})

	case model.ActionCreateContent:
		if data.GapID != "" {
			return s.store.ProgressGapStatus(ctx, data.GapID, model.GapStatusContentCreated)
		}
		return nil

	case model.ActionDismissGap:
		_, err := s.store.UpdateFeedState(ctx, event.TenantID, []string{event.ID}, store.FeedDismiss)
		return err

	default:
		return eris.Errorf("feed: unhandled action %s", action)
	}
}

// EncodeCursor serializes a cursor for the wire.
func EncodeCursor(c store.FeedCursor) string {
	raw, err := json.Marshal(c)
	if err != nil {
		zap.L().Warn("feed: encode cursor", zap.Error(err))
		return ""
	}
	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a wire cursor.
func DecodeCursor(s string) (*store.FeedCursor, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, eris.Wrap(err, "feed: decode cursor")
	}
	var c store.FeedCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, eris.Wrap(err, "feed: parse cursor")
	}
	if c.CreatedAt.IsZero() {
		return nil, eris.New("feed: cursor missing created_at")
	}
	return &c, nil
}
