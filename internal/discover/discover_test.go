package discover

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-ai/sightline/internal/ai"
	"github.com/sightline-ai/sightline/internal/events"
	"github.com/sightline-ai/sightline/internal/model"
	"github.com/sightline-ai/sightline/internal/store"
)

type fakeAI struct {
	responses []string
	calls     int
	err       error
}

func (f *fakeAI) Complete(_ context.Context, _ ai.CompletionRequest) (*ai.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	text := f.responses[len(f.responses)-1]
	if f.calls < len(f.responses) {
		text = f.responses[f.calls]
	}
	f.calls++
	return &ai.Completion{Text: text}, nil
}

type fakePublisher struct {
	published []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	f.published = append(f.published, ev)
	return nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedBrand(t *testing.T, s store.Store, homepage string) *model.Brand {
	t.Helper()
	b, err := s.CreateBrand(context.Background(), model.Brand{
		ID:       uuid.New().String(),
		TenantID: "tenant-1",
		Name:     "WidgetCo",
		Domain:   "widgetco.com",
		Context: model.BrandContext{
			Description:  "Project management for agencies",
			Products:     []string{"Boards"},
			HomepageText: homepage,
		},
	})
	require.NoError(t, err)
	return b
}

func TestDiscoverer_FailsFastWithoutBrandContext(t *testing.T) {
	s := newTestStore(t)
	b, err := s.CreateBrand(context.Background(), model.Brand{
		ID:       uuid.New().String(),
		TenantID: "tenant-1",
		Name:     "Bare",
		Domain:   "bare.com",
	})
	require.NoError(t, err)

	d := New(s, &fakeAI{}, nil, nil, "claude-sonnet-4-5-20250929")
	_, err = d.Run(context.Background(), b.ID)
	require.ErrorIs(t, err, ErrNoBrandContext)
}

func TestDiscoverer_UnknownBrand(t *testing.T) {
	s := newTestStore(t)
	d := New(s, &fakeAI{}, nil, nil, "claude-sonnet-4-5-20250929")
	_, err := d.Run(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brand not found")
}

func TestDiscoverer_FiltersAndPersists(t *testing.T) {
	s := newTestStore(t)
	b := seedBrand(t, s, "WidgetCo is an alternative to TaskFlow.")

	client := &fakeAI{responses: []string{`[
		{"name": "TaskFlow", "domain": "taskflow.io", "entity_type": "product_competitor", "confidence": "high", "reasoning": "direct competitor"},
		{"name": "the platform", "domain": "", "entity_type": "product_competitor", "confidence": "high", "reasoning": "junk"},
		{"name": "G2", "domain": "g2.com", "entity_type": "product_competitor", "confidence": "high", "reasoning": "review site"},
		{"name": "SketchyCo", "domain": "sketchy.co", "entity_type": "product_competitor", "confidence": "low", "reasoning": "maybe"}
	]`}}
	pub := &fakePublisher{}

	d := New(s, client, nil, pub, "claude-sonnet-4-5-20250929")
	res, err := d.Run(context.Background(), b.ID)
	require.NoError(t, err)

	// TaskFlow appears twice (AI + homepage mention) but dedupes; "the
	// platform" is rejected.
	assert.Equal(t, 3, res.Persisted)
	assert.Equal(t, 1, res.Filtered)

	all, err := s.ListCompetitors(context.Background(), b.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)

	byName := map[string]model.Competitor{}
	for _, c := range all {
		byName[c.Name] = c
	}

	assert.True(t, byName["TaskFlow"].IsActive)
	assert.True(t, byName["TaskFlow"].AutoDiscovered)
	assert.Equal(t, model.EntityProductCompetitor, byName["TaskFlow"].EntityType)

	// Review site reclassified by domain and never auto-activated.
	assert.Equal(t, model.EntityMarketplace, byName["G2"].EntityType)
	assert.False(t, byName["G2"].IsActive)

	// Low confidence persists inactive.
	assert.False(t, byName["SketchyCo"].IsActive)

	require.Len(t, pub.published, 1)
	assert.Equal(t, events.QueryGenerate{BrandID: b.ID}, pub.published[0])
}

func TestDiscoverer_SkipsPreviouslyRejectedNames(t *testing.T) {
	s := newTestStore(t)
	b := seedBrand(t, s, "")
	ctx := context.Background()

	seeded, err := s.UpsertCompetitor(ctx, model.Competitor{
		ID:         uuid.New().String(),
		BrandID:    b.ID,
		Name:       "OldRival",
		EntityType: model.EntityProductCompetitor,
	})
	require.NoError(t, err)
	require.NoError(t, s.SetCompetitorActive(ctx, seeded.ID, false))

	client := &fakeAI{responses: []string{`[
		{"name": "OldRival", "domain": "oldrival.com", "entity_type": "product_competitor", "confidence": "high", "reasoning": "again"}
	]`}}

	d := New(s, client, nil, nil, "claude-sonnet-4-5-20250929")
	res, err := d.Run(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Persisted)
	assert.Equal(t, 1, res.Filtered)

	// Still soft-deleted.
	active, err := s.ListCompetitors(ctx, b.ID, false)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDiscoverer_UnparseableResponse(t *testing.T) {
	s := newTestStore(t)
	b := seedBrand(t, s, "")

	d := New(s, &fakeAI{responses: []string{"I could not find any competitors."}}, nil, nil, "claude-sonnet-4-5-20250929")
	_, err := d.Run(context.Background(), b.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse classification response")
}

func TestQueryGenerator_UpsertsAndEmitsScan(t *testing.T) {
	s := newTestStore(t)
	b := seedBrand(t, s, "")
	ctx := context.Background()

	client := &fakeAI{responses: []string{`[
		{"query_text": "best project management software for agencies", "query_type": "discovery"},
		{"query_text": "widgetco vs taskflow", "query_type": "comparison"},
		{"query_text": "", "query_type": "general"},
		{"query_text": "how do agencies track time", "query_type": "bogus_type"}
	]`}}
	pub := &fakePublisher{}

	g := NewQueryGenerator(s, client, pub, "claude-sonnet-4-5-20250929")
	res, err := g.Run(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Upserted)
	assert.Equal(t, 1, res.Skipped)

	queries, err := s.ListQueries(ctx, b.ID, true)
	require.NoError(t, err)
	require.Len(t, queries, 3)

	byText := map[string]model.Query{}
	for _, q := range queries {
		byText[q.QueryText] = q
	}
	assert.Equal(t, model.QueryTypeGeneral, byText["how do agencies track time"].QueryType)

	require.Len(t, pub.published, 1)
	assert.Equal(t, events.ScanRun{BrandID: b.ID}, pub.published[0])
}

func TestQueryGenerator_NeverResurrectsExcludedQueries(t *testing.T) {
	s := newTestStore(t)
	b := seedBrand(t, s, "")
	ctx := context.Background()

	q, err := s.UpsertQuery(ctx, model.Query{
		ID:        uuid.New().String(),
		BrandID:   b.ID,
		QueryText: "widgetco pricing",
		QueryType: model.QueryTypePurchase,
		IsActive:  true,
	})
	require.NoError(t, err)
	require.NoError(t, s.SetQueryExcluded(ctx, q.ID, "tenant opted out"))

	client := &fakeAI{responses: []string{`[
		{"query_text": "widgetco pricing", "query_type": "purchase"}
	]`}}

	g := NewQueryGenerator(s, client, nil, "claude-sonnet-4-5-20250929")
	res, err := g.Run(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Upserted)
	assert.Equal(t, 1, res.Skipped)

	got, err := s.GetQueryByText(ctx, b.ID, "widgetco pricing")
	require.NoError(t, err)
	require.NotNil(t, got.ExcludedAt)
	assert.False(t, got.IsActive)
}
