package model

import "time"

// Citation is a source URL returned by an AI provider for an answer.
type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ScanResult is an immutable fact row recording one query-and-classify cycle
// against one AI-model backend. Rows are append-only: corrections are made by
// writing a new row with a later ScannedAt, never by mutating history.
type ScanResult struct {
	ID                   string     `json:"id"`
	BrandID              string     `json:"brand_id"`
	QueryID              string     `json:"query_id"`
	Model                string     `json:"model"`
	ResponseText         string     `json:"response_text"`
	BrandMentioned       bool       `json:"brand_mentioned"`
	BrandInCitations     bool       `json:"brand_in_citations"`
	CompetitorsMentioned []string   `json:"competitors_mentioned"`
	Citations            []Citation `json:"citations"`
	ScannedAt            time.Time  `json:"scanned_at"`
}

// CompetitorWin reports whether the result is a win for the named competitor:
// the competitor shows up while the brand fails to hold both a mention in the
// answer text and a spot in the citation list. A mentioned-but-uncited brand
// still lost the citation.
func (r ScanResult) CompetitorWin(competitor string) bool {
	if r.BrandMentioned && r.BrandInCitations {
		return false
	}
	for _, c := range r.CompetitorsMentioned {
		if c == competitor {
			return true
		}
	}
	return false
}
