package model

import "time"

// EntityType classifies a discovered entity in relation to a brand.
type EntityType string

const (
	EntityProductCompetitor EntityType = "product_competitor"
	EntityPublisher         EntityType = "publisher"
	EntityAnalyst           EntityType = "analyst"
	EntityMarketplace       EntityType = "marketplace"
	EntityPartner           EntityType = "partner"
	EntityOther             EntityType = "other"
)

// AllEntityTypes returns all defined entity types.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityProductCompetitor,
		EntityPublisher,
		EntityAnalyst,
		EntityMarketplace,
		EntityPartner,
		EntityOther,
	}
}

// ValidEntityType reports whether t is a known entity type.
func ValidEntityType(t EntityType) bool {
	for _, e := range AllEntityTypes() {
		if e == t {
			return true
		}
	}
	return false
}

// Confidence expresses how sure the discovery model was about a candidate.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// CompetitorContext carries the discovery model's assessment of an entity.
type CompetitorContext struct {
	Confidence Confidence `json:"confidence,omitempty"`
	Reasoning  string     `json:"reasoning,omitempty"`
}

// Competitor is a named organization discovered in relation to a brand.
// Name is the upsert key within a brand; a soft-deleted competitor's name
// is fed back into discovery so it is not re-suggested.
type Competitor struct {
	ID             string            `json:"id"`
	BrandID        string            `json:"brand_id"`
	Name           string            `json:"name"`
	Domain         string            `json:"domain,omitempty"`
	EntityType     EntityType        `json:"entity_type"`
	IsActive       bool              `json:"is_active"`
	AutoDiscovered bool              `json:"auto_discovered"`
	Context        CompetitorContext `json:"context"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
