package discover

import (
	"regexp"
	"strings"
)

// Cue phrases that brands use on their own pages when positioning against a
// named competitor. The capture is the competitor name.
var mentionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\balternative to ([A-Za-z][\w.&-]*(?:\s+[A-Z][\w.&-]*){0,2})`),
	regexp.MustCompile(`(?i)\bswitch(?:ing)? from ([A-Za-z][\w.&-]*(?:\s+[A-Z][\w.&-]*){0,2})`),
	regexp.MustCompile(`\b([A-Z][\w.&-]*(?:\s+[A-Z][\w.&-]*){0,2})\s+(?i:vs\.?)\s`),
	regexp.MustCompile(`(?i)\bcompared? (?:to|with) ([A-Za-z][\w.&-]*(?:\s+[A-Z][\w.&-]*){0,2})`),
}

// ExtractMentions pulls competitor names out of homepage copy using cue
// phrases. Results keep their original casing and are deduplicated
// case-insensitively in first-seen order.
func ExtractMentions(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, pat := range mentionPatterns {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			name := strings.Trim(m[1], " .,;:!?\"'")
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
