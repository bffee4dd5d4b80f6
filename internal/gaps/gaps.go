// Package gaps turns competitor wins into content gaps. A win is a scan
// result where a competitor shows up and the brand does not; the analyzer
// asks a model why the competitor earned the citation and records the answer
// as an actionable gap.
package gaps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/ai"
	"github.com/sightline-ai/sightline/internal/model"
	"github.com/sightline-ai/sightline/internal/store"
)

// AnalysisResult summarizes one analysis pass over a scan result.
type AnalysisResult struct {
	ScanResultID string `json:"scan_result_id"`
	Wins         int    `json:"wins"`
	GapsCreated  int    `json:"gaps_created"`
	Skipped      int    `json:"skipped"`
}

// Analyzer runs the citation analysis and gap persistence stage.
type Analyzer struct {
	store store.Store
	ai    ai.Client
	model string
}

// NewAnalyzer creates an Analyzer using the given analysis model.
func NewAnalyzer(st store.Store, client ai.Client, analysisModel string) *Analyzer {
	return &Analyzer{store: st, ai: client, model: analysisModel}
}

type analysisResponse struct {
	CitedURL         string   `json:"cited_url"`
	ContentType      string   `json:"content_type"`
	ContentStructure string   `json:"content_structure"`
	KeyFactors       []string `json:"key_factors"`
	Recommendation   string   `json:"recommendation"`
}

const analysisSystem = `You analyze why a competitor's content was cited by an AI assistant when the brand's was not. You respond only with JSON.`

// Analyze inspects one scan result, runs the secondary analysis call for each
// winning competitor and persists the resulting gaps. maxCompetitors caps the
// pass for loop cycles; zero means all winners. A failed or unparseable
// analysis, or a failed gap insert, skips that competitor; the batch
// continues and reports reduced counts rather than surfacing an error that
// would re-run the paid calls.
func (a *Analyzer) Analyze(ctx context.Context, brandID, scanResultID string, maxCompetitors int) (*AnalysisResult, error) {
	result, err := a.store.GetScanResult(ctx, scanResultID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, eris.Errorf("gaps: scan result not found: %s", scanResultID)
	}

	brand, err := a.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, eris.Errorf("gaps: brand not found: %s", brandID)
	}

	competitors, err := a.store.ListCompetitors(ctx, brandID, true)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]model.Competitor, len(competitors))
	for _, c := range competitors {
		byName[c.Name] = c
	}

	queries, err := a.store.ListQueries(ctx, brandID, false)
	if err != nil {
		return nil, err
	}
	queryText := ""
	for _, q := range queries {
		if q.ID == result.QueryID {
			queryText = q.QueryText
			break
		}
	}

	res := &AnalysisResult{ScanResultID: scanResultID}
	var gaps []model.ContentGap

	analyzed := 0
	for _, name := range result.CompetitorsMentioned {
		if !result.CompetitorWin(name) {
			continue
		}
		res.Wins++
		if maxCompetitors > 0 && analyzed >= maxCompetitors {
			res.Skipped++
			continue
		}
		analyzed++

		comp, ok := byName[name]
		if !ok {
			res.Skipped++
			continue
		}

		analysis, err := a.analyzeWin(ctx, brand, comp, queryText, result)
		if err != nil {
			zap.L().Warn("gaps: analysis skipped",
				zap.String("scan_result_id", scanResultID),
				zap.String("competitor", name),
				zap.Error(err),
			)
			res.Skipped++
			continue
		}

		gap, err := a.store.InsertGap(ctx, model.ContentGap{
			ID:             uuid.New().String(),
			BrandID:        brandID,
			CompetitorID:   comp.ID,
			CompetitorName: comp.Name,
			QueryID:        result.QueryID,
			QueryText:      queryText,
			Analysis:       *analysis,
			Status:         model.GapStatusIdentified,
		})
		if err != nil {
			// Erroring out here would make the engine retry the whole batch
			// and re-bill every analysis call already made, including the
			// winners whose gaps did land.
			zap.L().Warn("gaps: gap insert skipped",
				zap.String("scan_result_id", scanResultID),
				zap.String("competitor", name),
				zap.Error(err),
			)
			res.Skipped++
			continue
		}
		gaps = append(gaps, *gap)
		res.GapsCreated++
	}

	if res.GapsCreated > 0 {
		a.notify(ctx, brand, gaps)
	}

	zap.L().Info("gaps: analysis complete",
		zap.String("scan_result_id", scanResultID),
		zap.Int("wins", res.Wins),
		zap.Int("gaps_created", res.GapsCreated),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (a *Analyzer) analyzeWin(ctx context.Context, brand *model.Brand, comp model.Competitor, queryText string, result *model.ScanResult) (*model.CitationAnalysis, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n", queryText)
	fmt.Fprintf(&sb, "Brand: %s (%s)\n", brand.Name, brand.Domain)
	fmt.Fprintf(&sb, "Winning competitor: %s (%s)\n", comp.Name, comp.Domain)
	if len(result.Citations) > 0 {
		sb.WriteString("Cited sources:\n")
		for _, c := range result.Citations {
			fmt.Fprintf(&sb, "- %s\n", c.URL)
		}
	}
	fmt.Fprintf(&sb, "\nAnswer excerpt:\n%s\n", excerpt(result.ResponseText, 2000))
	sb.WriteString(`
Explain why the competitor earned visibility here and what content the brand should create.

Respond with a JSON object only:
{"cited_url": "... or null", "content_type": "faq|comparison|how_to|product_page|blog_post|landing_page|documentation|unknown", "content_structure": "...", "key_factors": ["..."], "recommendation": "..."}`)

	completion, err := a.ai.Complete(ctx, ai.CompletionRequest{
		Model:     a.model,
		System:    analysisSystem,
		Prompt:    sb.String(),
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gaps: analysis call")
	}

	var resp analysisResponse
	if err := json.Unmarshal([]byte(ai.CleanJSON(completion.Text)), &resp); err != nil {
		return nil, eris.Wrap(err, "gaps: parse analysis response")
	}

	contentType := model.ContentType(resp.ContentType)
	valid := false
	for _, ct := range model.AllContentTypes() {
		if ct == contentType {
			valid = true
			break
		}
	}
	if !valid {
		contentType = model.ContentTypeUnknown
	}

	return &model.CitationAnalysis{
		CitedURL:         resp.CitedURL,
		ContentType:      contentType,
		ContentStructure: resp.ContentStructure,
		KeyFactors:       resp.KeyFactors,
		Recommendation:   resp.Recommendation,
	}, nil
}

// notify writes the summary feed event. Notification is secondary to the
// persisted gaps, so a failure here is logged and swallowed.
func (a *Analyzer) notify(ctx context.Context, brand *model.Brand, gaps []model.ContentGap) {
	competitorSet := make(map[string]struct{})
	for _, g := range gaps {
		competitorSet[g.CompetitorName] = struct{}{}
	}
	names := make([]string, 0, len(competitorSet))
	for n := range competitorSet {
		names = append(names, n)
	}

	data, err := json.Marshal(map[string]any{
		"gap_count":   len(gaps),
		"competitors": names,
	})
	if err != nil {
		zap.L().Warn("gaps: marshal feed data", zap.Error(err))
		return
	}

	_, err = a.store.InsertFeedEvent(ctx, model.FeedEvent{
		ID:       uuid.New().String(),
		TenantID: brand.TenantID,
		BrandID:  brand.ID,
		Workflow: model.WorkflowCompetitiveResponse,
		Severity: model.SeverityWarning,
		Title:    fmt.Sprintf("%d content gaps identified for %s", len(gaps), brand.Name),
		Data:     data,
		ActionAvailable: []model.FeedAction{
			model.ActionCreateContent,
			model.ActionDismissGap,
		},
	})
	if err != nil {
		zap.L().Warn("gaps: feed notification failed",
			zap.String("brand_id", brand.ID),
			zap.Error(err),
		)
	}
}

// excerpt truncates to at most max bytes without splitting a rune.
func excerpt(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max] + "..."
}
