// Package scan asks the configured AI models each of a brand's active
// queries and records what came back as append-only facts. A failed query is
// logged and skipped; one bad answer never aborts the batch.
package scan

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sightline-ai/sightline/internal/ai"
	"github.com/sightline-ai/sightline/internal/events"
	"github.com/sightline-ai/sightline/internal/model"
	"github.com/sightline-ai/sightline/internal/store"
)

// Publisher emits follow-on pipeline triggers.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Summary reports one scan pass. WinIDs are the scan result IDs with at
// least one competitor win, in recording order.
type Summary struct {
	BrandID   string   `json:"brand_id"`
	Queries   int      `json:"queries"`
	Requested int      `json:"requested"`
	Recorded  int      `json:"recorded"`
	Skipped   int      `json:"skipped"`
	Wins      int      `json:"wins"`
	WinIDs    []string `json:"win_ids,omitempty"`
}

// Scanner runs the scan stage for a brand.
type Scanner struct {
	store       store.Store
	ai          ai.Client
	publisher   Publisher
	models      []string
	limiter     *rate.Limiter
	maxParallel int
}

// New creates a Scanner. callsPerSecond paces provider requests across all
// goroutines; maxParallel bounds in-flight requests.
func New(st store.Store, client ai.Client, publisher Publisher, models []string, callsPerSecond float64, maxParallel int) *Scanner {
	if callsPerSecond <= 0 {
		callsPerSecond = 0.5
	}
	if maxParallel <= 0 {
		maxParallel = 2
	}
	return &Scanner{
		store:       st,
		ai:          client,
		publisher:   publisher,
		models:      models,
		limiter:     rate.NewLimiter(rate.Limit(callsPerSecond), 1),
		maxParallel: maxParallel,
	}
}

// Run scans active queries against every configured model. maxQueries caps
// the pass for loop cycles; zero means all active queries. Each
// (query, model) pair yields at most one new scan result per pass.
func (s *Scanner) Run(ctx context.Context, brandID string, maxQueries int) (*Summary, error) {
	brand, err := s.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, eris.Errorf("scan: brand not found: %s", brandID)
	}

	queries, err := s.store.ListQueries(ctx, brandID, true)
	if err != nil {
		return nil, err
	}
	if maxQueries > 0 && len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	competitors, err := s.store.ListCompetitors(ctx, brandID, true)
	if err != nil {
		return nil, err
	}

	summary := &Summary{BrandID: brandID, Queries: len(queries)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for _, q := range queries {
		for _, m := range s.models {
			q, m := q, m
			summary.Requested++
			g.Go(func() error {
				result, err := s.scanOne(gctx, brand, competitors, q, m)
				if err != nil {
					// Skip-and-continue: a single flaky answer must not
					// lose the rest of the batch.
					zap.L().Warn("scan: query skipped",
						zap.String("brand_id", brandID),
						zap.String("query_id", q.ID),
						zap.String("model", m),
						zap.Error(err),
					)
					mu.Lock()
					summary.Skipped++
					mu.Unlock()
					return nil
				}

				mu.Lock()
				summary.Recorded++
				for _, comp := range result.CompetitorsMentioned {
					if result.CompetitorWin(comp) {
						summary.Wins++
						summary.WinIDs = append(summary.WinIDs, result.ID)
						break
					}
				}
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "scan: batch")
	}

	zap.L().Info("scan: pass complete",
		zap.String("brand_id", brandID),
		zap.Int("recorded", summary.Recorded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("wins", summary.Wins),
	)

	if s.publisher != nil {
		for _, id := range summary.WinIDs {
			if err := s.publisher.Publish(ctx, events.CitationAnalyze{BrandID: brandID, ScanResultID: id}); err != nil {
				// Analysis is a follow-on concern; the recorded facts stand.
				zap.L().Warn("scan: analysis trigger failed",
					zap.String("scan_result_id", id),
					zap.Error(err),
				)
			}
		}
	}
	return summary, nil
}

func (s *Scanner) scanOne(ctx context.Context, brand *model.Brand, competitors []model.Competitor, q model.Query, aiModel string) (*model.ScanResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "scan: rate limit wait")
	}

	completion, err := s.ai.Complete(ctx, ai.CompletionRequest{
		Model:     aiModel,
		Prompt:    q.QueryText,
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, eris.Wrap(err, "scan: answer call")
	}

	brandMentioned, brandInCitations, mentioned := Classify(brand, competitors, completion.Text, completion.Citations)

	citations := make([]model.Citation, 0, len(completion.Citations))
	for _, c := range completion.Citations {
		citations = append(citations, model.Citation{URL: c.URL, Title: c.Title})
	}

	return s.store.InsertScanResult(ctx, model.ScanResult{
		ID:                   uuid.New().String(),
		BrandID:              brand.ID,
		QueryID:              q.ID,
		Model:                aiModel,
		ResponseText:         completion.Text,
		BrandMentioned:       brandMentioned,
		BrandInCitations:     brandInCitations,
		CompetitorsMentioned: mentioned,
		Citations:            citations,
	})
}
