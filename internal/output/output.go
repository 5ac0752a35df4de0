// Package output renders search and ask results for the terminal, for other
// programs (JSON), or as an HTML fragment.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/courseshera/coursesearch/internal/reconcile"
	"github.com/courseshera/coursesearch/pkg/models"
	"github.com/yuin/goldmark"
)

// Format is the output format for results.
type Format string

const (
	// FormatText is human-readable text (default).
	FormatText Format = "text"
	// FormatJSON is structured JSON for machine consumption.
	FormatJSON Format = "json"
	// FormatHTML is a standalone HTML fragment.
	FormatHTML Format = "html"
)

// ParseFormat accepts a format name in any case. An empty name means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or html)", s)
	}
}

type Writer struct {
	Format Format
	// Color enables ANSI colors in text output.
	Color bool

	md goldmark.Markdown
}

func NewWriter(format Format, color bool) *Writer {
	return &Writer{
		Format: format,
		Color:  color,
		md:     newMarkdown(),
	}
}

type hitsDocument struct {
	Query string              `json:"query"`
	Total int                 `json:"total"`
	Hits  []reconcile.HitView `json:"hits"`
}

type askDocument struct {
	Question string `json:"question"`
	reconcile.AskView
}

// WriteHits writes search results to w.
func (wr *Writer) WriteHits(w io.Writer, query string, hits []reconcile.HitView) error {
	if hits == nil {
		hits = []reconcile.HitView{}
	}
	switch wr.Format {
	case FormatJSON:
		return writeJSON(w, hitsDocument{Query: query, Total: len(hits), Hits: hits})
	case FormatHTML:
		return wr.writeHitsHTML(w, query, hits)
	default:
		return wr.writeHitsText(w, query, hits)
	}
}

// WriteAsk writes a reconciled answer, its sources and the hits it was
// grounded on.
func (wr *Writer) WriteAsk(w io.Writer, question string, view reconcile.AskView) error {
	switch wr.Format {
	case FormatJSON:
		return writeJSON(w, askDocument{Question: question, AskView: view})
	case FormatHTML:
		return wr.writeAskHTML(w, question, view)
	default:
		return wr.writeAskText(w, question, view)
	}
}

// WriteCourses writes the course list.
func (wr *Writer) WriteCourses(w io.Writer, courses []models.Course) error {
	if courses == nil {
		courses = []models.Course{}
	}
	switch wr.Format {
	case FormatJSON:
		return writeJSON(w, courses)
	case FormatHTML:
		return wr.writeCoursesHTML(w, courses)
	default:
		return wr.writeCoursesText(w, courses)
	}
}

// WriteMaterials writes the material library.
func (wr *Writer) WriteMaterials(w io.Writer, materials []models.Material) error {
	if materials == nil {
		materials = []models.Material{}
	}
	switch wr.Format {
	case FormatJSON:
		return writeJSON(w, materials)
	case FormatHTML:
		return wr.writeMaterialsHTML(w, materials)
	default:
		return wr.writeMaterialsText(w, materials)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// location renders "python merge L10–L24" for code hits. Missing line bounds
// print as "?"; the range is omitted when both are missing.
func location(language, symbol string, start, end int) string {
	var parts []string
	if language != "" {
		parts = append(parts, language)
	}
	if symbol != "" {
		parts = append(parts, symbol)
	}
	if start > 0 || end > 0 {
		parts = append(parts, "L"+lineNumber(start)+"–L"+lineNumber(end))
	}
	return strings.Join(parts, " ")
}

func lineNumber(n int) string {
	if n <= 0 {
		return "?"
	}
	return fmt.Sprint(n)
}
