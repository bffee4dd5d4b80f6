package model

import "time"

// BrandContext holds the free-form attributes extracted for a brand during
// onboarding. It is populated asynchronously and may be empty until the
// extraction job has run.
type BrandContext struct {
	Description  string   `json:"description,omitempty"`
	Products     []string `json:"products,omitempty"`
	Markets      []string `json:"markets,omitempty"`
	HomepageText string   `json:"homepage_text,omitempty"`
}

// Empty reports whether the context carries no usable signal.
func (c BrandContext) Empty() bool {
	return c.Description == "" && len(c.Products) == 0 &&
		len(c.Markets) == 0 && c.HomepageText == ""
}

// Brand is a tenant-owned monitored entity.
type Brand struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenant_id"`
	Name      string       `json:"name"`
	Domain    string       `json:"domain"`
	Context   BrandContext `json:"context"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
