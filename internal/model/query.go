package model

import "time"

// QueryType categorizes a generated query by intent.
type QueryType string

const (
	QueryTypeDiscovery  QueryType = "discovery"
	QueryTypeComparison QueryType = "comparison"
	QueryTypeHowTo      QueryType = "how_to"
	QueryTypePurchase   QueryType = "purchase"
	QueryTypeGeneral    QueryType = "general"
)

// Query is a search prompt generated for a brand and consumed repeatedly by
// the scan stage. Tenants can exclude a query from scanning without deleting
// it; re-enabling clears the exclusion.
type Query struct {
	ID             string     `json:"id"`
	BrandID        string     `json:"brand_id"`
	QueryText      string     `json:"query_text"`
	QueryType      QueryType  `json:"query_type"`
	IsActive       bool       `json:"is_active"`
	ExcludedAt     *time.Time `json:"excluded_at,omitempty"`
	ExcludedReason string     `json:"excluded_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
