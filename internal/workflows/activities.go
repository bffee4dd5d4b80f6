package workflows

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/temporal"

	"github.com/sightline-ai/sightline/internal/discover"
	"github.com/sightline-ai/sightline/internal/events"
	"github.com/sightline-ai/sightline/internal/gaps"
	"github.com/sightline-ai/sightline/internal/memo"
	"github.com/sightline-ai/sightline/internal/model"
	"github.com/sightline-ai/sightline/internal/scan"
	"github.com/sightline-ai/sightline/internal/store"
)

// LoopCaps bounds one citation loop cycle.
type LoopCaps struct {
	MaxCompetitors int
	MaxQueries     int
}

// Activities holds the stage implementations the workflows call. Each
// activity is a memoized step: the engine records its result, so a replayed
// workflow never re-executes a completed stage.
type Activities struct {
	Store      store.Store
	Discoverer *discover.Discoverer
	Queries    *discover.QueryGenerator
	Scanner    *scan.Scanner
	Analyzer   *gaps.Analyzer
	Memos      *memo.Writer
	Caps       LoopCaps
}

// ScanInput selects the scan scope. LoopCapped applies the configured
// per-cycle query cap.
type ScanInput struct {
	BrandID    string `json:"brand_id"`
	LoopCapped bool   `json:"loop_capped,omitempty"`
}

// AnalyzeInput selects the analysis scope.
type AnalyzeInput struct {
	BrandID      string `json:"brand_id"`
	ScanResultID string `json:"scan_result_id"`
	LoopCapped   bool   `json:"loop_capped,omitempty"`
}

// LoopStatusInput sets a brand's loop status.
type LoopStatusInput struct {
	BrandID string           `json:"brand_id"`
	Status  store.LoopStatus `json:"status"`
}

// LoopSummaryInput is the batch summary posted to the feed when a loop ends.
type LoopSummaryInput struct {
	BrandID         string `json:"brand_id"`
	Cycles          int    `json:"cycles"`
	ResultsRecorded int    `json:"results_recorded"`
	GapsCreated     int    `json:"gaps_created"`
	Stopped         bool   `json:"stopped"`
}

// Discover runs the entity discovery stage.
func (a *Activities) Discover(ctx context.Context, in events.CompetitorDiscover) (*discover.Result, error) {
	res, err := a.Discoverer.Run(ctx, in.BrandID)
	if err != nil {
		if eris.Is(err, discover.ErrNoBrandContext) {
			// Retrying cannot conjure a brand context.
			return nil, temporal.NewNonRetryableApplicationError("brand context not available", "BrandContextMissing", err)
		}
		return nil, err
	}
	return res, nil
}

// GenerateQueries runs the query generation stage.
func (a *Activities) GenerateQueries(ctx context.Context, in events.QueryGenerate) (*discover.QueryGenResult, error) {
	res, err := a.Queries.Run(ctx, in.BrandID)
	if err != nil {
		if eris.Is(err, discover.ErrNoBrandContext) {
			return nil, temporal.NewNonRetryableApplicationError("brand context not available", "BrandContextMissing", err)
		}
		return nil, err
	}
	return res, nil
}

// Scan runs one scan pass.
func (a *Activities) Scan(ctx context.Context, in ScanInput) (*scan.Summary, error) {
	maxQueries := 0
	if in.LoopCapped {
		maxQueries = a.Caps.MaxQueries
	}
	return a.Scanner.Run(ctx, in.BrandID, maxQueries)
}

// AnalyzeCitations runs the secondary analysis for one scan result.
func (a *Activities) AnalyzeCitations(ctx context.Context, in AnalyzeInput) (*gaps.AnalysisResult, error) {
	maxCompetitors := 0
	if in.LoopCapped {
		maxCompetitors = a.Caps.MaxCompetitors
	}
	return a.Analyzer.Analyze(ctx, in.BrandID, in.ScanResultID, maxCompetitors)
}

// GenerateMemo composes a visibility memo.
func (a *Activities) GenerateMemo(ctx context.Context, in events.MemoGenerate) (*memo.Result, error) {
	return a.Memos.Generate(ctx, in.BrandID, in.QueryID, in.MemoType)
}

// SetLoopStatus records the loop lifecycle in the store.
func (a *Activities) SetLoopStatus(ctx context.Context, in LoopStatusInput) error {
	return a.Store.SetLoopStatus(ctx, in.BrandID, in.Status)
}

// EmitLoopSummary posts the loop's batch summary feed event.
func (a *Activities) EmitLoopSummary(ctx context.Context, in LoopSummaryInput) error {
	brand, err := a.Store.GetBrand(ctx, in.BrandID)
	if err != nil {
		return err
	}
	if brand == nil {
		return eris.Errorf("workflows: brand not found: %s", in.BrandID)
	}

	data, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "workflows: marshal loop summary")
	}

	severity := model.SeverityInfo
	if in.GapsCreated > 0 {
		severity = model.SeverityWarning
	}
	title := fmt.Sprintf("Citation loop finished for %s: %d cycles, %d gaps", brand.Name, in.Cycles, in.GapsCreated)
	if in.Stopped {
		title = fmt.Sprintf("Citation loop stopped for %s after %d cycles", brand.Name, in.Cycles)
	}

	_, err = a.Store.InsertFeedEvent(ctx, model.FeedEvent{
		ID:       uuid.New().String(),
		TenantID: brand.TenantID,
		BrandID:  brand.ID,
		Workflow: model.WorkflowCompetitiveResponse,
		Severity: severity,
		Title:    title,
		Data:     data,
		ActionAvailable: []model.FeedAction{
			model.ActionRescan,
		},
	})
	return err
}
