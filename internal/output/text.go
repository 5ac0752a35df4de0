package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/courseshera/coursesearch/internal/reconcile"
	"github.com/courseshera/coursesearch/pkg/models"
)

const (
	separator = "─────────────────────────────────────────────────────────"
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
)

var ansiColors = map[reconcile.Color]string{
	reconcile.ColorGreen:  "\x1b[32m",
	reconcile.ColorBlue:   "\x1b[34m",
	reconcile.ColorYellow: "\x1b[33m",
	reconcile.ColorOrange: "\x1b[38;5;208m",
}

func (wr *Writer) paint(code, s string) string {
	if !wr.Color || code == "" {
		return s
	}
	return code + s + ansiReset
}

// ew remembers the first write error so the text writers can stay linear.
type ew struct {
	w   io.Writer
	err error
}

func (e *ew) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (wr *Writer) writeHitsText(w io.Writer, query string, hits []reconcile.HitView) error {
	out := &ew{w: w}
	if len(hits) == 0 {
		out.printf("No results for %q. Try a different query or ensure materials are ingested.\n", query)
		return out.err
	}
	out.printf("Found %d results for %q\n\n", len(hits), query)
	for _, h := range hits {
		wr.writeHitText(out, h)
	}
	return out.err
}

func (wr *Writer) writeHitText(out *ew, h reconcile.HitView) {
	rel := h.Relevance
	out.printf("%s\n", separator)
	header := fmt.Sprintf("#%d  %s", h.Rank, wr.paint(ansiColors[rel.Color], rel.Percent+" "+rel.Label))
	if h.Cited {
		header += "  " + wr.paint(ansiBold, "★ cited")
	}
	out.printf("%s\n", header)
	out.printf("%s (%s)\n", wr.paint(ansiBold, h.MaterialTitle), h.Category)
	if loc := location(h.Language, h.SymbolName, h.StartLine, h.EndLine); loc != "" {
		out.printf("%s\n", wr.paint(ansiDim, loc))
	}
	out.printf("\n%s\n\n", h.Preview)
}

func (wr *Writer) writeAskText(w io.Writer, question string, view reconcile.AskView) error {
	out := &ew{w: w}
	if question != "" {
		out.printf("Q: %s\n\n", question)
	}
	if strings.TrimSpace(view.Answer) == "" {
		out.printf("No answer.\n")
	} else {
		out.printf("%s\n", view.Answer)
	}

	if len(view.Citations) > 0 {
		out.printf("\nSources:\n")
		for _, c := range view.Citations {
			if !c.Found {
				out.printf("  [%d] %s\n", c.Number, wr.paint(ansiDim, "source "+c.ChunkID+" not among results"))
				continue
			}
			line := fmt.Sprintf("  [%d] %s (%s)", c.Number, wr.paint(ansiBold, c.MaterialTitle), c.Category)
			if loc := location(c.Language, c.SymbolName, c.StartLine, c.EndLine); loc != "" {
				line += " " + wr.paint(ansiDim, loc)
			}
			out.printf("%s\n", line)
			if c.Excerpt != "" {
				out.printf("      %s\n", strings.ReplaceAll(c.Excerpt, "\n", "\n      "))
			}
		}
	}

	if len(view.Hits) > 0 {
		out.printf("\n")
		for _, h := range view.Hits {
			wr.writeHitText(out, h)
		}
	}
	return out.err
}

func (wr *Writer) writeCoursesText(w io.Writer, courses []models.Course) error {
	out := &ew{w: w}
	if len(courses) == 0 {
		out.printf("No courses.\n")
		return out.err
	}
	for _, c := range courses {
		line := c.ID + "  " + wr.paint(ansiBold, c.Title)
		var extra []string
		if c.Code != "" {
			extra = append(extra, c.Code)
		}
		if c.Term != "" {
			extra = append(extra, c.Term)
		}
		if len(extra) > 0 {
			line += " (" + strings.Join(extra, ", ") + ")"
		}
		out.printf("%s\n", line)
	}
	return out.err
}

func (wr *Writer) writeMaterialsText(w io.Writer, materials []models.Material) error {
	out := &ew{w: w}
	if len(materials) == 0 {
		out.printf("No materials yet.\n")
		return out.err
	}
	for _, m := range materials {
		out.printf("%s  %s\n", m.ID, wr.paint(ansiBold, m.Title))

		meta := []string{string(m.Category)}
		if m.Type != "" {
			meta = append(meta, m.Type)
		}
		if m.Week > 0 {
			meta = append(meta, fmt.Sprintf("Week %d", m.Week))
		}
		out.printf("    %s\n", wr.paint(ansiDim, strings.Join(meta, " · ")))
		if m.Topic != "" {
			out.printf("    Topic: %s\n", m.Topic)
		}
		if m.StorageURL != "" {
			out.printf("    Open file: %s\n", m.StorageURL)
		}
	}
	return out.err
}
