// Package reconcile turns raw retrieval output into display-ready values:
// cleaned excerpts, relevance tiers, and answers whose inline chunk
// references are renumbered against the citation list.
//
// Everything here is a pure function of its inputs.
package reconcile

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultExcerptLength is the preview budget used when callers have no preference.
	DefaultExcerptLength = 400
	// HitPreviewLength bounds prose previews in result lists.
	HitPreviewLength = 500
	// CitationExcerptLength bounds excerpts shown next to a numbered citation.
	CitationExcerptLength = 200

	Ellipsis = "…"
)

var (
	headingRe = regexp.MustCompile(`(?m)^(?:#+\s+)+`)
	boldRe    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe  = regexp.MustCompile(`_(.*?)_`)
	linkRe    = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// CleanMarkdown strips heading markers, bold/italic markers and link targets
// and trims the result. A run of heading markers such as "# # " goes in one
// pass. Every rule shortens the text when it fires, so the
// loop stops once a pass leaves the text unchanged; that fixpoint is what
// makes CleanMarkdown idempotent.
func CleanMarkdown(text string) string {
	for {
		next := cleanOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func cleanOnce(s string) string {
	s = headingRe.ReplaceAllString(s, "")
	s = boldRe.ReplaceAllString(s, "${1}")
	s = italicRe.ReplaceAllString(s, "${1}")
	s = linkRe.ReplaceAllString(s, "${1}")
	return strings.TrimSpace(s)
}

// TruncateExcerpt cleans text and cuts it to at most maxLength runes,
// appending an ellipsis when anything was dropped. Markup removed by the
// cleaning step does not count against the budget.
func TruncateExcerpt(text string, maxLength int) string {
	cleaned := CleanMarkdown(text)
	if maxLength < 0 {
		maxLength = 0
	}
	if utf8.RuneCountInString(cleaned) <= maxLength {
		return cleaned
	}
	cut := string([]rune(cleaned)[:maxLength])
	return strings.TrimRightFunc(cut, unicode.IsSpace) + Ellipsis
}
