package reconcile

import "github.com/courseshera/coursesearch/pkg/models"

// HitView is a search hit decorated for display.
type HitView struct {
	models.SearchHit
	Rank      int           `json:"rank"`
	Cited     bool          `json:"cited"`
	Relevance RelevanceInfo `json:"relevance"`
	Preview   string        `json:"preview"`
}

// IsCode reports whether the hit came from a source file rather than prose.
func (h HitView) IsCode() bool { return h.Language != "" }

// AskView is an ask result with its answer renumbered and its citations resolved.
type AskView struct {
	Answer    string     `json:"answer"`
	RawAnswer string     `json:"raw_answer"`
	Citations []Citation `json:"citations"`
	Hits      []HitView  `json:"hits"`
}

// Hits decorates hits in their original order. A hit is cited iff its chunk
// id appears in citations.
func Hits(hits []models.SearchHit, citations []string) []HitView {
	cited := NewCitedSet(citations)
	out := make([]HitView, 0, len(hits))
	for i, h := range hits {
		out = append(out, HitView{
			SearchHit: h,
			Rank:      i + 1,
			Cited:     cited.Has(h.ChunkID),
			Relevance: Relevance(h.Score),
			Preview:   preview(h),
		})
	}
	return out
}

// preview keeps code verbatim; prose is cleaned and shortened.
func preview(h models.SearchHit) string {
	if h.Language != "" {
		return h.Excerpt
	}
	return TruncateExcerpt(h.Excerpt, HitPreviewLength)
}

// Reconcile builds the display view of an ask result.
func Reconcile(res models.AskResult) AskView {
	return AskView{
		Answer:    RewriteAnswer(res.Answer, res.Citations),
		RawAnswer: res.Answer,
		Citations: Citations(res.Citations, res.Hits),
		Hits:      Hits(res.Hits, res.Citations),
	}
}
