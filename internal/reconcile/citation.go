package reconcile

import (
	"strconv"
	"strings"

	"github.com/courseshera/coursesearch/pkg/models"
)

// Citation is one numbered source card. Found is false when the cited chunk
// is not among the hits; the slot is kept so numbering stays aligned with
// the markers in the answer.
type Citation struct {
	Number        int             `json:"number"`
	ChunkID       string          `json:"chunk_id"`
	Found         bool            `json:"found"`
	MaterialTitle string          `json:"material_title,omitempty"`
	Category      models.Category `json:"category,omitempty"`
	Excerpt       string          `json:"excerpt,omitempty"`
	Language      string          `json:"language,omitempty"`
	SymbolName    string          `json:"symbol_name,omitempty"`
	StartLine     int             `json:"start_line,omitempty"`
	EndLine       int             `json:"end_line,omitempty"`
}

// ordinal is a distinct citation id and its 1-based position in the raw
// citation list.
type ordinal struct {
	id     string
	number int
}

// firstOccurrences keeps the first position of every id. Repeated ids do
// not shift later positions, so [a b a c] yields a=1 b=2 c=4.
func firstOccurrences(citations []string) []ordinal {
	seen := make(map[string]struct{}, len(citations))
	out := make([]ordinal, 0, len(citations))
	for i, id := range citations {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, ordinal{id: id, number: i + 1})
	}
	return out
}

// Numbering maps each citation id to its 1-based position in citations. When
// an id repeats, its first position wins.
func Numbering(citations []string) map[string]int {
	ords := firstOccurrences(citations)
	out := make(map[string]int, len(ords))
	for _, o := range ords {
		out[o.id] = o.number
	}
	return out
}

// RewriteAnswer replaces every "[id]" for a cited id with "[n]". The answer is
// scanned once from left to right and ids are compared literally, so ids
// containing regex metacharacters need no escaping and a substituted "[n]"
// is never matched again. Brackets around anything else are left alone.
func RewriteAnswer(answer string, citations []string) string {
	numbers := Numbering(citations)
	if len(numbers) == 0 || !strings.Contains(answer, "[") {
		return answer
	}
	maxID := 0
	for id := range numbers {
		if len(id) > maxID {
			maxID = len(id)
		}
	}

	var b strings.Builder
	last := 0
	for i := 0; i < len(answer); i++ {
		if answer[i] != '[' {
			continue
		}
		// '[' and ']' are ASCII, so byte offsets never split a rune.
		limit := min(len(answer)-1, i+1+maxID)
		for j := i + 1; j <= limit; j++ {
			if answer[j] != ']' {
				continue
			}
			n, ok := numbers[answer[i+1:j]]
			if !ok {
				continue
			}
			if last == 0 {
				b.Grow(len(answer))
			}
			b.WriteString(answer[last:i])
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(n))
			b.WriteByte(']')
			last = j + 1
			i = j
			break
		}
	}
	if last == 0 {
		return answer
	}
	b.WriteString(answer[last:])
	return b.String()
}

// Citations resolves each distinct citation against hits by exact chunk id.
// A card carries the same number its id gets in the rewritten answer.
func Citations(citations []string, hits []models.SearchHit) []Citation {
	byID := make(map[string]models.SearchHit, len(hits))
	for _, h := range hits {
		if _, dup := byID[h.ChunkID]; !dup {
			byID[h.ChunkID] = h
		}
	}

	ords := firstOccurrences(citations)
	out := make([]Citation, 0, len(ords))
	for _, o := range ords {
		c := Citation{Number: o.number, ChunkID: o.id}
		if h, ok := byID[o.id]; ok {
			c.Found = true
			c.MaterialTitle = h.MaterialTitle
			c.Category = h.Category
			c.Excerpt = TruncateExcerpt(h.Excerpt, CitationExcerptLength)
			c.Language = h.Language
			c.SymbolName = h.SymbolName
			c.StartLine = h.StartLine
			c.EndLine = h.EndLine
		}
		out = append(out, c)
	}
	return out
}

// CitedSet is the set of chunk ids referenced by an answer.
type CitedSet map[string]struct{}

func NewCitedSet(citations []string) CitedSet {
	s := make(CitedSet, len(citations))
	for _, id := range citations {
		s[id] = struct{}{}
	}
	return s
}

func (s CitedSet) Has(chunkID string) bool {
	_, ok := s[chunkID]
	return ok
}
