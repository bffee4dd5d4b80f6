// Package policy decides which discovered entity candidates may be persisted
// and how domain ownership reclassifies them. Rejections are not errors: the
// pipeline filters silently with a log line.
package policy

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sightline-ai/sightline/internal/model"
)

// blockedNames are never valid competitors regardless of what the discovery
// model claims: common SaaS tooling and short generic English words that show
// up constantly in AI answers about any product category.
var blockedNames = map[string]struct{}{
	"google":       {},
	"microsoft":    {},
	"apple":        {},
	"amazon":       {},
	"slack":        {},
	"zoom":         {},
	"notion":       {},
	"salesforce":   {},
	"hubspot":      {},
	"excel":        {},
	"gmail":        {},
	"outlook":      {},
	"chatgpt":      {},
	"the platform": {},
	"platform":     {},
	"software":     {},
	"solution":     {},
	"tool":         {},
	"tools":        {},
	"service":      {},
	"app":          {},
	"website":      {},
	"company":      {},
	"product":      {},
	"system":       {},
	"business":     {},
	"others":       {},
	"various":      {},
	"alternative":  {},
}

// genericWords are common English words under the length threshold that AI
// answers emit as pseudo-names ("the best data tool" -> "data"). Only single
// words are checked against this set; multi-word names pass.
var genericWords = map[string]struct{}{
	"data": {}, "cloud": {}, "sales": {}, "search": {}, "email": {},
	"chat": {}, "team": {}, "teams": {}, "docs": {}, "web": {},
	"site": {}, "shop": {}, "store": {}, "code": {}, "pay": {},
	"bank": {}, "ai": {}, "crm": {}, "erp": {}, "api": {},
	"best": {}, "top": {}, "free": {}, "online": {}, "mobile": {},
	"digital": {}, "smart": {}, "pro": {}, "plus": {}, "suite": {},
}

// marketplaceDomains are review/listing sites: real citation sources, never
// product competitors.
var marketplaceDomains = map[string]struct{}{
	"g2.com":             {},
	"capterra.com":       {},
	"getapp.com":         {},
	"trustradius.com":    {},
	"softwareadvice.com": {},
	"producthunt.com":    {},
	"amazon.com":         {},
	"etsy.com":           {},
}

// analystDomains are research firms.
var analystDomains = map[string]struct{}{
	"gartner.com":    {},
	"forrester.com":  {},
	"idc.com":        {},
	"cbinsights.com": {},
}

// publisherDomains are media outlets that get cited for category roundups.
var publisherDomains = map[string]struct{}{
	"techcrunch.com":      {},
	"forbes.com":          {},
	"businessinsider.com": {},
	"zdnet.com":           {},
	"pcmag.com":           {},
	"wired.com":           {},
	"theverge.com":        {},
	"nytimes.com":         {},
	"medium.com":          {},
	"reddit.com":          {},
	"wikipedia.org":       {},
}

// Policy filters and reclassifies discovery candidates.
type Policy struct {
	blocked      map[string]struct{}
	marketplaces map[string]struct{}
	analysts     map[string]struct{}
	publishers   map[string]struct{}
}

// Overrides extends the built-in sets from a YAML file.
type Overrides struct {
	BlockedNames       []string `yaml:"blocked_names"`
	MarketplaceDomains []string `yaml:"marketplace_domains"`
	AnalystDomains     []string `yaml:"analyst_domains"`
	PublisherDomains   []string `yaml:"publisher_domains"`
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{
		blocked:      blockedNames,
		marketplaces: marketplaceDomains,
		analysts:     analystDomains,
		publishers:   publisherDomains,
	}
}

// LoadOverrides returns the default policy extended with entries from the
// YAML file at path. A missing file yields the default policy.
func LoadOverrides(path string) (*Policy, error) {
	p := clone(Default())
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, err
	}

	var ov Overrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, err
	}
	for _, n := range ov.BlockedNames {
		p.blocked[Normalize(n)] = struct{}{}
	}
	for _, d := range ov.MarketplaceDomains {
		p.marketplaces[normalizeDomain(d)] = struct{}{}
	}
	for _, d := range ov.AnalystDomains {
		p.analysts[normalizeDomain(d)] = struct{}{}
	}
	for _, d := range ov.PublisherDomains {
		p.publishers[normalizeDomain(d)] = struct{}{}
	}
	return p, nil
}

func clone(p *Policy) *Policy {
	cp := &Policy{
		blocked:      make(map[string]struct{}, len(p.blocked)),
		marketplaces: make(map[string]struct{}, len(p.marketplaces)),
		analysts:     make(map[string]struct{}, len(p.analysts)),
		publishers:   make(map[string]struct{}, len(p.publishers)),
	}
	for k := range p.blocked {
		cp.blocked[k] = struct{}{}
	}
	for k := range p.marketplaces {
		cp.marketplaces[k] = struct{}{}
	}
	for k := range p.analysts {
		cp.analysts[k] = struct{}{}
	}
	for k := range p.publishers {
		cp.publishers[k] = struct{}{}
	}
	return cp
}

// Normalize lowercases and trims a candidate name for matching.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if idx := strings.Index(d, "/"); idx >= 0 {
		d = d[:idx]
	}
	return d
}

// Rejected reports whether a candidate name must never be persisted as a
// competitor, with a reason for the log line. Matching is case and
// whitespace insensitive.
func (p *Policy) Rejected(name string) (string, bool) {
	n := Normalize(name)
	if n == "" {
		return "empty name", true
	}
	if _, ok := p.blocked[n]; ok {
		return "blocklisted name", true
	}
	if !strings.Contains(n, " ") {
		if _, ok := genericWords[n]; ok {
			return "generic single word", true
		}
	}
	return "", false
}

// Reclassify returns the entity type a candidate's domain dictates, if any.
// Known marketplaces, analyst firms and publishers are never product
// competitors no matter what the discovery model said.
func (p *Policy) Reclassify(domain string) (model.EntityType, bool) {
	d := normalizeDomain(domain)
	if d == "" {
		return "", false
	}
	if _, ok := p.marketplaces[d]; ok {
		return model.EntityMarketplace, true
	}
	if _, ok := p.analysts[d]; ok {
		return model.EntityAnalyst, true
	}
	if _, ok := p.publishers[d]; ok {
		return model.EntityPublisher, true
	}
	return "", false
}

// Filter applies the full policy to a candidate: rejection, then domain
// reclassification. Returns the (possibly reclassified) entity type and
// whether the candidate survives.
func (p *Policy) Filter(name, domain string, claimed model.EntityType) (model.EntityType, bool) {
	if reason, rejected := p.Rejected(name); rejected {
		zap.L().Debug("policy: rejected candidate",
			zap.String("name", name),
			zap.String("reason", reason),
		)
		return "", false
	}

	if !model.ValidEntityType(claimed) {
		claimed = model.EntityOther
	}
	if et, ok := p.Reclassify(domain); ok {
		if et != claimed {
			zap.L().Debug("policy: reclassified candidate by domain",
				zap.String("name", name),
				zap.String("domain", domain),
				zap.String("from", string(claimed)),
				zap.String("to", string(et)),
			)
		}
		return et, true
	}
	return claimed, true
}
