package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/ai"
	"github.com/sightline-ai/sightline/internal/events"
	"github.com/sightline-ai/sightline/internal/model"
	"github.com/sightline-ai/sightline/internal/store"
)

// QueryGenResult summarizes one query generation pass.
type QueryGenResult struct {
	BrandID   string `json:"brand_id"`
	Generated int    `json:"generated"`
	Upserted  int    `json:"upserted"`
	Skipped   int    `json:"skipped"`
}

// QueryGenerator produces the search prompts the scan stage replays.
type QueryGenerator struct {
	store     store.Store
	ai        ai.Client
	publisher Publisher
	model     string
}

// NewQueryGenerator creates a QueryGenerator. publisher may be nil.
func NewQueryGenerator(st store.Store, client ai.Client, publisher Publisher, genModel string) *QueryGenerator {
	return &QueryGenerator{store: st, ai: client, publisher: publisher, model: genModel}
}

type generatedQuery struct {
	QueryText string          `json:"query_text"`
	QueryType model.QueryType `json:"query_type"`
}

const queryGenSystem = `You generate the questions real buyers ask AI assistants when researching a product category. You respond only with JSON.`

// Run generates queries for a brand. Manually excluded queries are never
// resurrected by regeneration. Emits scan/run on success.
func (g *QueryGenerator) Run(ctx context.Context, brandID string) (*QueryGenResult, error) {
	brand, err := g.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, eris.Errorf("discover: brand not found: %s", brandID)
	}
	if brand.Context.Empty() {
		return nil, ErrNoBrandContext
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Brand: %s (%s)\n", brand.Name, brand.Domain)
	fmt.Fprintf(&sb, "Description: %s\n", brand.Context.Description)
	if len(brand.Context.Products) > 0 {
		fmt.Fprintf(&sb, "Products: %s\n", strings.Join(brand.Context.Products, ", "))
	}
	sb.WriteString(`
Generate the queries a prospective buyer in this category would ask an AI assistant. Cover discovery ("best X for Y"), comparisons, how-to questions and purchase-intent questions.

Respond with a JSON array only:
[{"query_text": "...", "query_type": "discovery|comparison|how_to|purchase|general"}]`)

	completion, err := g.ai.Complete(ctx, ai.CompletionRequest{
		Model:     g.model,
		System:    queryGenSystem,
		Prompt:    sb.String(),
		MaxTokens: 2048,
	})
	if err != nil {
		return nil, eris.Wrap(err, "discover: query generation call")
	}

	var generated []generatedQuery
	if err := json.Unmarshal([]byte(ai.CleanJSON(completion.Text)), &generated); err != nil {
		return nil, eris.Wrap(err, "discover: parse query generation response")
	}

	res := &QueryGenResult{BrandID: brandID, Generated: len(generated)}
	for _, gq := range generated {
		text := strings.TrimSpace(gq.QueryText)
		if text == "" {
			res.Skipped++
			continue
		}

		existing, err := g.store.GetQueryByText(ctx, brandID, text)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ExcludedAt != nil {
			res.Skipped++
			continue
		}

		qt := gq.QueryType
		switch qt {
		case model.QueryTypeDiscovery, model.QueryTypeComparison, model.QueryTypeHowTo, model.QueryTypePurchase, model.QueryTypeGeneral:
		default:
			qt = model.QueryTypeGeneral
		}

		if _, err := g.store.UpsertQuery(ctx, model.Query{
			ID:        uuid.New().String(),
			BrandID:   brandID,
			QueryText: text,
			QueryType: qt,
			IsActive:  true,
		}); err != nil {
			return nil, err
		}
		res.Upserted++
	}

	zap.L().Info("discover: queries generated",
		zap.String("brand_id", brandID),
		zap.Int("generated", res.Generated),
		zap.Int("upserted", res.Upserted),
		zap.Int("skipped", res.Skipped),
	)

	if g.publisher != nil {
		if err := g.publisher.Publish(ctx, events.ScanRun{BrandID: brandID}); err != nil {
			return nil, err
		}
	}
	return res, nil
}
