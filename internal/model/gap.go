package model

import "time"

// ContentType is the kind of content a citation analysis identified at the
// cited URL.
type ContentType string

const (
	ContentTypeFAQ           ContentType = "faq"
	ContentTypeComparison    ContentType = "comparison"
	ContentTypeHowTo         ContentType = "how_to"
	ContentTypeProductPage   ContentType = "product_page"
	ContentTypeBlogPost      ContentType = "blog_post"
	ContentTypeLandingPage   ContentType = "landing_page"
	ContentTypeDocumentation ContentType = "documentation"
	ContentTypeUnknown       ContentType = "unknown"
)

// AllContentTypes returns all defined content types.
func AllContentTypes() []ContentType {
	return []ContentType{
		ContentTypeFAQ,
		ContentTypeComparison,
		ContentTypeHowTo,
		ContentTypeProductPage,
		ContentTypeBlogPost,
		ContentTypeLandingPage,
		ContentTypeDocumentation,
		ContentTypeUnknown,
	}
}

// CitationAnalysis is the fixed-shape output of the secondary analysis call
// that explains why a competitor, not the brand, was cited for a query.
type CitationAnalysis struct {
	CitedURL         string      `json:"cited_url,omitempty"`
	ContentType      ContentType `json:"content_type"`
	ContentStructure string      `json:"content_structure,omitempty"`
	KeyFactors       []string    `json:"key_factors"`
	Recommendation   string      `json:"recommendation"`
}

// GapStatus tracks a gap's lifecycle. Transitions move forward only:
// identified -> content_created -> verified.
type GapStatus string

const (
	GapStatusIdentified     GapStatus = "identified"
	GapStatusContentCreated GapStatus = "content_created"
	GapStatusVerified       GapStatus = "verified"
)

// gapStatusRank orders statuses for the monotonic-progress check.
var gapStatusRank = map[GapStatus]int{
	GapStatusIdentified:     0,
	GapStatusContentCreated: 1,
	GapStatusVerified:       2,
}

// CanProgress reports whether moving from to next is a legal forward step.
func (s GapStatus) CanProgress(next GapStatus) bool {
	cur, ok := gapStatusRank[s]
	if !ok {
		return false
	}
	nxt, ok := gapStatusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// ContentGap links a brand, a competitor, a source query and the citation
// analysis that explains the competitor's win. Gaps are a time-series of
// observations; no write-time dedup against prior runs.
type ContentGap struct {
	ID             string           `json:"id"`
	BrandID        string           `json:"brand_id"`
	CompetitorID   string           `json:"competitor_id"`
	CompetitorName string           `json:"competitor_name"`
	QueryID        string           `json:"query_id"`
	QueryText      string           `json:"query_text"`
	Analysis       CitationAnalysis `json:"analysis"`
	Status         GapStatus        `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
