package scan

import (
	"net/url"
	"strings"

	"github.com/sightline-ai/sightline/internal/ai"
	"github.com/sightline-ai/sightline/internal/model"
)

// MentionedIn reports whether name appears in text, case-insensitively.
func MentionedIn(text, name string) bool {
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(name))
}

// DomainCited reports whether any citation resolves to the given domain.
// Subdomains count: docs.example.com cites example.com.
func DomainCited(citations []ai.Citation, domain string) bool {
	want := normalizeHost(domain)
	if want == "" {
		return false
	}
	for _, c := range citations {
		host := citationHost(c.URL)
		if host == want || strings.HasSuffix(host, "."+want) {
			return true
		}
	}
	return false
}

// Classify derives the fact fields of a scan result from one model answer.
func Classify(brand *model.Brand, competitors []model.Competitor, text string, citations []ai.Citation) (brandMentioned, brandInCitations bool, mentioned []string) {
	brandMentioned = MentionedIn(text, brand.Name)
	brandInCitations = DomainCited(citations, brand.Domain)

	for _, comp := range competitors {
		if MentionedIn(text, comp.Name) || DomainCited(citations, comp.Domain) {
			mentioned = append(mentioned, comp.Name)
		}
	}
	return brandMentioned, brandInCitations, mentioned
}

func citationHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return normalizeHost(raw)
	}
	return normalizeHost(u.Host)
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "https://")
	h = strings.TrimPrefix(h, "http://")
	h = strings.TrimPrefix(h, "www.")
	if idx := strings.IndexAny(h, "/:"); idx >= 0 {
		h = h[:idx]
	}
	return h
}
