// Package discover finds the entities that compete with a brand for AI
// answer visibility. Candidates come from two signals, the brand's own
// homepage copy and an AI classification call, then pass through the policy
// filter before persistence.
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
	"github.com/sightline-ai/sightline/internal/policy"
	"github.com/sightline-ai/sightline/internal/store"
)

// ErrNoBrandContext is returned when discovery runs before the brand's
// context has been captured. Discovery cannot classify against an empty
// profile, so this fails fast instead of producing junk candidates.
var ErrNoBrandContext = eris.New("discover: brand context not available")

// Publisher emits follow-on pipeline triggers.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Result summarizes one discovery pass.
type Result struct {
	BrandID    string `json:"brand_id"`
	Candidates int    `json:"candidates"`
	Persisted  int    `json:"persisted"`
	Filtered   int    `json:"filtered"`
}

// Discoverer runs the entity discovery stage.
type Discoverer struct {
	store     store.Store
	ai        ai.Client
	policy    *policy.Policy
	publisher Publisher
	model     string
}

// New creates a Discoverer. publisher may be nil, in which case no follow-on
// trigger is emitted.
func New(st store.Store, client ai.Client, pol *policy.Policy, publisher Publisher, discoveryModel string) *Discoverer {
	if pol == nil {
		pol = policy.Default()
	}
	return &Discoverer{
		store:     st,
		ai:        client,
		policy:    pol,
		publisher: publisher,
		model:     discoveryModel,
	}
}

type candidate struct {
	Name       string           `json:"name"`
	Domain     string           `json:"domain"`
	EntityType model.EntityType `json:"entity_type"`
	Confidence model.Confidence `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
}

// Run executes one discovery pass for a brand and emits query/generate on
// success.
func (d *Discoverer) Run(ctx context.Context, brandID string) (*Result, error) {
	brand, err := d.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, eris.Errorf("discover: brand not found: %s", brandID)
	}
	if brand.Context.Empty() {
		return nil, ErrNoBrandContext
	}

	rejected, err := d.store.ListRejectedCompetitorNames(ctx, brandID)
	if err != nil {
		return nil, err
	}
	rejectedSet := make(map[string]struct{}, len(rejected))
	for _, n := range rejected {
		rejectedSet[policy.Normalize(n)] = struct{}{}
	}

	candidates, err := d.classify(ctx, brand, rejected)
	if err != nil {
		return nil, err
	}

	// Homepage cue-phrase mentions are a strong signal: the brand itself
	// named the entity. They merge in ahead of the filter with medium
	// confidence.
	for _, name := range ExtractMentions(brand.Context.HomepageText) {
		candidates = append(candidates, candidate{
			Name:       name,
			EntityType: model.EntityProductCompetitor,
			Confidence: model.ConfidenceMedium,
			Reasoning:  "mentioned on brand homepage",
		})
	}

	res := &Result{BrandID: brandID, Candidates: len(candidates)}
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := policy.Normalize(c.Name)
		if key == "" {
			res.Filtered++
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, wasRejected := rejectedSet[key]; wasRejected {
			res.Filtered++
			continue
		}

		entityType, ok := d.policy.Filter(c.Name, c.Domain, c.EntityType)
		if !ok {
			res.Filtered++
			continue
		}

		active := entityType == model.EntityProductCompetitor && c.Confidence != model.ConfidenceLow

		_, err := d.store.UpsertCompetitor(ctx, model.Competitor{
			ID:             uuid.New().String(),
			BrandID:        brandID,
			Name:           c.Name,
			Domain:         c.Domain,
			EntityType:     entityType,
			IsActive:       active,
			AutoDiscovered: true,
			Context: model.CompetitorContext{
				Confidence: c.Confidence,
				Reasoning:  c.Reasoning,
			},
		})
		if err != nil {
			return nil, err
		}
		res.Persisted++
	}

	zap.L().Info("discover: pass complete",
		zap.String("brand_id", brandID),
		zap.Int("candidates", res.Candidates),
		zap.Int("persisted", res.Persisted),
		zap.Int("filtered", res.Filtered),
	)

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, events.QueryGenerate{BrandID: brandID}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

const discoverySystem = `You identify entities relevant to a brand's visibility in AI-generated answers. You classify each entity by its relationship to the brand and respond only with JSON.`

func (d *Discoverer) classify(ctx context.Context, brand *model.Brand, rejected []string) ([]candidate, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Brand: %s (%s)\n", brand.Name, brand.Domain)
	fmt.Fprintf(&sb, "Description: %s\n", brand.Context.Description)
	if len(brand.Context.Products) > 0 {
		fmt.Fprintf(&sb, "Products: %s\n", strings.Join(brand.Context.Products, ", "))
	}
	if len(brand.Context.Markets) > 0 {
		fmt.Fprintf(&sb, "Markets: %s\n", strings.Join(brand.Context.Markets, ", "))
	}
	if len(rejected) > 0 {
		fmt.Fprintf(&sb, "\nDo not suggest any of these previously rejected names: %s\n", strings.Join(rejected, ", "))
	}
	sb.WriteString(`
List entities that compete with this brand for visibility in AI answers about its category. Include direct product competitors plus the publishers, analyst firms and marketplaces that get cited for this category.

Respond with a JSON array only:
[{"name": "...", "domain": "...", "entity_type": "product_competitor|publisher|analyst|marketplace|partner|other", "confidence": "low|medium|high", "reasoning": "..."}]`)

	completion, err := d.ai.Complete(ctx, ai.CompletionRequest{
		Model:     d.model,
		System:    discoverySystem,
		Prompt:    sb.String(),
		MaxTokens: 2048,
	})
	if err != nil {
		return nil, eris.Wrap(err, "discover: classification call")
	}

	var out []candidate
	if err := json.Unmarshal([]byte(ai.CleanJSON(completion.Text)), &out); err != nil {
		return nil, eris.Wrap(err, "discover: parse classification response")
	}
	return out, nil
}
