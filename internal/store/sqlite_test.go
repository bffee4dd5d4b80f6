package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-ai/sightline/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func brandContextFixture() model.BrandContext {
	return model.BrandContext{
		Description:  "Project management software for agencies",
		Products:     []string{"Boards", "Timesheets"},
		Markets:      []string{"US", "EU"},
		HomepageText: "WidgetCo is the best alternative to TaskFlow for agencies.",
	}
}

func seedBrand(t *testing.T, s Store) *model.Brand {
	t.Helper()
	b, err := s.CreateBrand(context.Background(), model.Brand{
		ID:       uuid.New().String(),
		TenantID: "tenant-1",
		Name:     "WidgetCo",
		Domain:   "widgetco.com",
		Context:  brandContextFixture(),
	})
	require.NoError(t, err)
	return b
}

func TestSQLiteStore_BrandRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	b := seedBrand(t, s)

	got, err := s.GetBrand(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "WidgetCo", got.Name)
	assert.Equal(t, []string{"Boards", "Timesheets"}, got.Context.Products)

	missing, err := s.GetBrand(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	updated := brandContextFixture()
	updated.Description = "Updated"
	require.NoError(t, s.UpdateBrandContext(ctx, b.ID, updated))

	got, err = s.GetBrand(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Context.Description)

	err = s.UpdateBrandContext(ctx, "nope", updated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteStore_UpsertCompetitor_PreservesStateOnRediscovery(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	b := seedBrand(t, s)

	first, err := s.UpsertCompetitor(ctx, model.Competitor{
		ID:             uuid.New().String(),
		BrandID:        b.ID,
		Name:           "TaskFlow",
		Domain:         "taskflow.io",
		EntityType:     model.EntityProductCompetitor,
		IsActive:       true,
		AutoDiscovered: true,
		Context:        model.CompetitorContext{Confidence: model.ConfidenceHigh},
	})
	require.NoError(t, err)

	// Tenant deactivates; a later discovery pass must not reactivate.
	require.NoError(t, s.SetCompetitorActive(ctx, first.ID, false))

	second, err := s.UpsertCompetitor(ctx, model.Competitor{
		ID:             uuid.New().String(),
		BrandID:        b.ID,
		Name:           "TaskFlow",
		Domain:         "taskflow.com",
		EntityType:     model.EntityProductCompetitor,
		IsActive:       true,
		AutoDiscovered: true,
		Context:        model.CompetitorContext{Confidence: model.ConfidenceMedium},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "taskflow.com", second.Domain)
	assert.False(t, second.IsActive)
	assert.NotNil(t, second.DeletedAt)

	// Soft-deleted names feed back into discovery.
	rejected, err := s.ListRejectedCompetitorNames(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"TaskFlow"}, rejected)

	active, err := s.ListCompetitors(ctx, b.ID, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, s.SetCompetitorActive(ctx, first.ID, true))
	active, err = s.ListCompetitors(ctx, b.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Nil(t, active[0].DeletedAt)
}

func TestSQLiteStore_QueryExclusionLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	b := seedBrand(t, s)

	q, err := s.UpsertQuery(ctx, model.Query{
		ID:        uuid.New().String(),
		BrandID:   b.ID,
		QueryText: "best project management software for agencies",
		QueryType: model.QueryTypeDiscovery,
		IsActive:  true,
	})
	require.NoError(t, err)

	// Same text upserts onto the same row.
	dup, err := s.UpsertQuery(ctx, model.Query{
		ID:        uuid.New().String(),
		BrandID:   b.ID,
		QueryText: "best project management software for agencies",
		QueryType: model.QueryTypeGeneral,
		IsActive:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, q.ID, dup.ID)
	assert.Equal(t, model.QueryTypeGeneral, dup.QueryType)

	require.NoError(t, s.SetQueryExcluded(ctx, q.ID, "off topic"))

	active, err := s.ListQueries(ctx, b.ID, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	byText, err := s.GetQueryByText(ctx, b.ID, "best project management software for agencies")
	require.NoError(t, err)
	require.NotNil(t, byText)
	require.NotNil(t, byText.ExcludedAt)
	assert.Equal(t, "off topic", byText.ExcludedReason)

	require.NoError(t, s.ReenableQuery(ctx, q.ID))
	active, err = s.ListQueries(ctx, b.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Nil(t, active[0].ExcludedAt)
}

func TestSQLiteStore_ScanResultsAppendOnly(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	b := seedBrand(t, s)

	q, err := s.UpsertQuery(ctx, model.Query{
		ID:        uuid.New().String(),
		BrandID:   b.ID,
		QueryText: "widgetco vs taskflow",
		QueryType: model.QueryTypeComparison,
		IsActive:  true,
	})
	require.NoError(t, err)

	r1, err := s.InsertScanResult(ctx, model.ScanResult{
		ID:                   uuid.New().String(),
		BrandID:              b.ID,
		QueryID:              q.ID,
		Model:                "claude-haiku-4-5-20251001",
		ResponseText:         "TaskFlow is a popular choice.",
		BrandMentioned:       false,
		BrandInCitations:     false,
		CompetitorsMentioned: []string{"TaskFlow"},
		Citations:            []model.Citation{{URL: "https://taskflow.io/pricing"}},
	})
	require.NoError(t, err)

	got, err := s.GetScanResult(ctx, r1.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"TaskFlow"}, got.CompetitorsMentioned)
	assert.True(t, got.CompetitorWin("TaskFlow"))

	list, err := s.ListScanResults(ctx, b.ID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing, err := s.GetScanResult(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_GapStatusIsMonotonic(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	b := seedBrand(t, s)

	g, err := s.InsertGap(ctx, model.ContentGap{
		ID:             uuid.New().String(),
		BrandID:        b.ID,
		CompetitorID:   "comp-1",
		CompetitorName: "TaskFlow",
		QueryID:        "query-1",
		QueryText:      "widgetco vs taskflow",
		Analysis: model.CitationAnalysis{
			ContentType:    model.ContentTypeComparison,
			KeyFactors:     []string{"pricing table"},
			Recommendation: "Publish a comparison page",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.GapStatusIdentified, g.Status)

	require.NoError(t, s.ProgressGapStatus(ctx, g.ID, model.GapStatusContentCreated))

	// Backwards is rejected.
	err = s.ProgressGapStatus(ctx, g.ID, model.GapStatusIdentified)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal status transition")

	require.NoError(t, s.ProgressGapStatus(ctx, g.ID, model.GapStatusVerified))

	gapsList, err := s.ListGaps(ctx, b.ID, 10)
	require.NoError(t, err)
	require.Len(t, gapsList, 1)
	assert.Equal(t, model.GapStatusVerified, gapsList[0].Status)
}

func TestSQLiteStore_LoopStatus(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	status, err := s.GetLoopStatus(ctx, "brand-x")
	require.NoError(t, err)
	assert.Equal(t, LoopStatusIdle, status)

	require.NoError(t, s.SetLoopStatus(ctx, "brand-x", LoopStatusRunning))
	require.NoError(t, s.SetLoopStatus(ctx, "brand-x", LoopStatusStopped))

	status, err = s.GetLoopStatus(ctx, "brand-x")
	require.NoError(t, err)
	assert.Equal(t, LoopStatusStopped, status)
}

func seedFeedEvent(t *testing.T, s Store, tenantID string, createdAt time.Time, id string) model.FeedEvent {
	t.Helper()
	e, err := s.InsertFeedEvent(context.Background(), model.FeedEvent{
		ID:              id,
		TenantID:        tenantID,
		BrandID:         "brand-1",
		Workflow:        model.WorkflowCompetitiveResponse,
		Severity:        model.SeverityWarning,
		Title:           "gap found",
		ActionAvailable: []model.FeedAction{model.ActionRescan},
		CreatedAt:       createdAt,
	})
	require.NoError(t, err)
	return *e
}

func TestSQLiteStore_FeedStateMachine(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	e := seedFeedEvent(t, s, "tenant-1", now, "evt-1")

	n, err := s.UpdateFeedState(ctx, "tenant-1", []string{e.ID}, FeedDismiss)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetFeedEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Dismissed)
	assert.True(t, got.Read, "dismiss implies read")

	// mark_unread never un-dismisses.
	n, err = s.UpdateFeedState(ctx, "tenant-1", []string{e.ID}, FeedMarkUnread)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err = s.GetFeedEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Dismissed)
	assert.True(t, got.Read)

	// Pin is orthogonal to read/dismiss state.
	n, err = s.UpdateFeedState(ctx, "tenant-1", []string{e.ID}, FeedPin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Another tenant's bulk update touches nothing.
	n, err = s.UpdateFeedState(ctx, "tenant-2", []string{e.ID}, FeedMarkRead)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLiteStore_RecordFeedActionOnce(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	e := seedFeedEvent(t, s, "tenant-1", time.Now().UTC(), "evt-1")

	applied, err := s.RecordFeedAction(ctx, "tenant-1", e.ID, model.ActionRescan)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.RecordFeedAction(ctx, "tenant-1", e.ID, model.ActionRescan)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.GetFeedEvent(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActionTaken)
	assert.Equal(t, model.ActionRescan, *got.ActionTaken)

	_, err = s.RecordFeedAction(ctx, "tenant-1", "ghost", model.ActionRescan)
	require.Error(t, err)
}

func TestSQLiteStore_FeedCursorPagination(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	// Three events share one timestamp; the composite cursor must return
	// each exactly once across pages.
	at := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	seedFeedEvent(t, s, "tenant-1", at, "evt-a")
	seedFeedEvent(t, s, "tenant-1", at, "evt-b")
	seedFeedEvent(t, s, "tenant-1", at, "evt-c")
	seedFeedEvent(t, s, "tenant-1", at.Add(time.Hour), "evt-d")

	var seen []string
	cursor := (*FeedCursor)(nil)
	for {
		page, err := s.ListFeedEvents(ctx, FeedFilter{
			TenantID: "tenant-1",
			Cursor:   cursor,
			Limit:    2,
		})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, e := range page {
			seen = append(seen, e.ID)
		}
		last := page[len(page)-1]
		cursor = &FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	assert.Equal(t, []string{"evt-d", "evt-c", "evt-b", "evt-a"}, seen)
}

func TestSQLiteStore_FeedFilters(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedFeedEvent(t, s, "tenant-1", now, "evt-1")
	seedFeedEvent(t, s, "tenant-1", now.Add(time.Second), "evt-2")
	seedFeedEvent(t, s, "tenant-2", now, "evt-3")

	_, err := s.UpdateFeedState(ctx, "tenant-1", []string{"evt-1"}, FeedDismiss)
	require.NoError(t, err)

	// Dismissed events are hidden by default.
	page, err := s.ListFeedEvents(ctx, FeedFilter{TenantID: "tenant-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "evt-2", page[0].ID)

	page, err = s.ListFeedEvents(ctx, FeedFilter{TenantID: "tenant-1", IncludeDismissed: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = s.ListFeedEvents(ctx, FeedFilter{TenantID: "tenant-1", UnreadOnly: true, IncludeDismissed: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "evt-2", page[0].ID)
}
