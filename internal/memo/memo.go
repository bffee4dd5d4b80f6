// Package memo composes tenant-readable visibility memos from recorded scan
// facts and gaps, and delivers them through the feed.
package memo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/ai"
	"github.com/sightline-ai/sightline/internal/model"
	"github.com/sightline-ai/sightline/internal/store"
)

// Result summarizes one memo generation.
type Result struct {
	BrandID     string `json:"brand_id"`
	FeedEventID string `json:"feed_event_id"`
}

// Writer generates memos.
type Writer struct {
	store store.Store
	ai    ai.Client
	model string
}

// NewWriter creates a memo Writer.
func NewWriter(st store.Store, client ai.Client, memoModel string) *Writer {
	return &Writer{store: st, ai: client, model: memoModel}
}

const memoSystem = `You write short, factual visibility memos for marketing teams based on AI answer scan data. You never invent numbers.`

// Generate writes one memo for a brand from its recent scan results and
// gaps, optionally scoped to a single query, and posts it to the feed.
func (w *Writer) Generate(ctx context.Context, brandID, queryID, memoType string) (*Result, error) {
	brand, err := w.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, eris.Errorf("memo: brand not found: %s", brandID)
	}

	results, err := w.store.ListScanResults(ctx, brandID, 50)
	if err != nil {
		return nil, err
	}
	if queryID != "" {
		filtered := results[:0]
		for _, r := range results {
			if r.QueryID == queryID {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	gaps, err := w.store.ListGaps(ctx, brandID, 20)
	if err != nil {
		return nil, err
	}

	var mentioned, cited int
	for _, r := range results {
		if r.BrandMentioned {
			mentioned++
		}
		if r.BrandInCitations {
			cited++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Brand: %s\n", brand.Name)
	fmt.Fprintf(&sb, "Scan results: %d total, brand mentioned in %d, brand cited in %d\n", len(results), mentioned, cited)
	fmt.Fprintf(&sb, "Open content gaps: %d\n", len(gaps))
	for i, g := range gaps {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&sb, "- %s wins %q (%s): %s\n", g.CompetitorName, g.QueryText, g.Analysis.ContentType, g.Analysis.Recommendation)
	}
	if memoType != "" {
		fmt.Fprintf(&sb, "\nMemo type: %s\n", memoType)
	}
	sb.WriteString("\nWrite a concise memo (under 200 words) summarizing this brand's AI answer visibility and the top actions.")

	completion, err := w.ai.Complete(ctx, ai.CompletionRequest{
		Model:     w.model,
		System:    memoSystem,
		Prompt:    sb.String(),
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, eris.Wrap(err, "memo: generation call")
	}

	data, err := json.Marshal(map[string]any{
		"memo":         completion.Text,
		"memo_type":    memoType,
		"scan_results": len(results),
		"gaps":         len(gaps),
	})
	if err != nil {
		return nil, eris.Wrap(err, "memo: marshal feed data")
	}

	event, err := w.store.InsertFeedEvent(ctx, model.FeedEvent{
		ID:       uuid.New().String(),
		TenantID: brand.TenantID,
		BrandID:  brandID,
		Workflow: model.WorkflowVerification,
		Severity: model.SeverityInfo,
		Title:    fmt.Sprintf("Visibility memo for %s", brand.Name),
		Data:     data,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("memo: generated",
		zap.String("brand_id", brandID),
		zap.String("feed_event_id", event.ID),
	)
	return &Result{BrandID: brandID, FeedEventID: event.ID}, nil
}
