// Package store persists pipeline entities. The datastore is the single
// source of truth: writes use row-level upserts with explicit conflict keys
// (brand_id + name for competitors, brand_id + query_text for queries), no
// client-side locking.
package store

import (
	"context"
	"time"

	"github.com/sightline-ai/sightline/internal/model"
)

// FeedCursor is the composite pagination cursor: the (created_at, id) pair of
// the last item returned. The composite form returns same-timestamp rows
// exactly once; an ID-less cursor degrades to strict created_at comparison.
type FeedCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id,omitempty"`
}

// FeedFilter specifies criteria for listing feed events.
type FeedFilter struct {
	TenantID         string
	BrandID          string
	Workflow         model.FeedWorkflow
	Severity         model.Severity
	UnreadOnly       bool
	IncludeDismissed bool
	Cursor           *FeedCursor
	Limit            int
}

// FeedStateAction is a bulk read/dismiss/pin mutation.
type FeedStateAction string

const (
	FeedMarkRead   FeedStateAction = "mark_read"
	FeedMarkUnread FeedStateAction = "mark_unread"
	FeedDismiss    FeedStateAction = "dismiss"
	FeedPin        FeedStateAction = "pin"
	FeedUnpin      FeedStateAction = "unpin"
)

// ValidFeedStateAction reports whether a is a known bulk action.
func ValidFeedStateAction(a FeedStateAction) bool {
	switch a {
	case FeedMarkRead, FeedMarkUnread, FeedDismiss, FeedPin, FeedUnpin:
		return true
	}
	return false
}

// LoopStatus tracks a brand's citation loop.
type LoopStatus string

const (
	LoopStatusIdle    LoopStatus = "idle"
	LoopStatusRunning LoopStatus = "running"
	LoopStatusStopped LoopStatus = "stopped"
)

// Store defines the persistence interface for the visibility pipeline.
type Store interface {
	// Brands
	GetBrand(ctx context.Context, id string) (*model.Brand, error)
	CreateBrand(ctx context.Context, b model.Brand) (*model.Brand, error)
	UpdateBrandContext(ctx context.Context, id string, bc model.BrandContext) error

	// Competitors
	UpsertCompetitor(ctx context.Context, c model.Competitor) (*model.Competitor, error)
	ListCompetitors(ctx context.Context, brandID string, onlyActive bool) ([]model.Competitor, error)
	ListRejectedCompetitorNames(ctx context.Context, brandID string) ([]string, error)
	SetCompetitorActive(ctx context.Context, id string, active bool) error

	// Queries
	UpsertQuery(ctx context.Context, q model.Query) (*model.Query, error)
	ListQueries(ctx context.Context, brandID string, onlyActive bool) ([]model.Query, error)
	GetQueryByText(ctx context.Context, brandID, queryText string) (*model.Query, error)
	SetQueryExcluded(ctx context.Context, id, reason string) error
	ReenableQuery(ctx context.Context, id string) error

	// Scan results (append-only)
	InsertScanResult(ctx context.Context, r model.ScanResult) (*model.ScanResult, error)
	ListScanResults(ctx context.Context, brandID string, limit int) ([]model.ScanResult, error)
	GetScanResult(ctx context.Context, id string) (*model.ScanResult, error)

	// Content gaps
	InsertGap(ctx context.Context, g model.ContentGap) (*model.ContentGap, error)
	ProgressGapStatus(ctx context.Context, id string, next model.GapStatus) error
	ListGaps(ctx context.Context, brandID string, limit int) ([]model.ContentGap, error)

	// Citation loop status
	SetLoopStatus(ctx context.Context, brandID string, status LoopStatus) error
	GetLoopStatus(ctx context.Context, brandID string) (LoopStatus, error)

	// Feed projection
	InsertFeedEvent(ctx context.Context, e model.FeedEvent) (*model.FeedEvent, error)
	GetFeedEvent(ctx context.Context, id string) (*model.FeedEvent, error)
	ListFeedEvents(ctx context.Context, filter FeedFilter) ([]model.FeedEvent, error)
	UpdateFeedState(ctx context.Context, tenantID string, eventIDs []string, action FeedStateAction) (int, error)
	RecordFeedAction(ctx context.Context, tenantID, eventID string, action model.FeedAction) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
