package output

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/courseshera/coursesearch/internal/reconcile"
	"github.com/courseshera/coursesearch/pkg/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghhtml "github.com/yuin/goldmark/renderer/html"
)

// newMarkdown renders answers. Raw HTML in an answer is dropped rather than
// passed through.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
		),
		goldmark.WithRendererOptions(
			ghhtml.WithHardWraps(),
		),
	)
}

var htmlTemplates = template.Must(template.New("output").Funcs(template.FuncMap{
	"location": location,
}).Parse(`
{{define "hit"}}<article class="hit tier-{{.Relevance.Color}}{{if .Cited}} cited{{end}}" data-chunk-id="{{.ChunkID}}">
  <header>
    <span class="rank">{{.Rank}}</span>
    <h3>{{.MaterialTitle}}</h3>
    <span class="category">{{.Category}}</span>
    {{- with location .Language .SymbolName .StartLine .EndLine}}
    <span class="location">{{.}}</span>
    {{- end}}
    {{- if .Cited}}
    <span class="badge">Cited</span>
    {{- end}}
    <span class="relevance">{{.Relevance.Label}} {{.Relevance.Percent}}</span>
  </header>
  {{if .IsCode}}<pre><code class="language-{{.Language}}">{{.Preview}}</code></pre>{{else}}<p>{{.Preview}}</p>{{end}}
</article>
{{end}}

{{define "hits"}}<section class="results">
{{- if .Hits}}
<p class="summary">{{len .Hits}} results for &ldquo;{{.Query}}&rdquo;</p>
{{range .Hits}}{{template "hit" .}}{{end}}
{{- else}}
<p class="empty">No results. Try a different query or ensure materials are ingested.</p>
{{- end}}
</section>
{{end}}

{{define "ask"}}<section class="ask">
{{- if .Question}}
<h2 class="question">{{.Question}}</h2>
{{- end}}
<div class="answer">{{.Answer}}</div>
{{- if .Citations}}
<ol class="sources">
{{- range .Citations}}
  <li value="{{.Number}}" data-chunk-id="{{.ChunkID}}">
  {{- if .Found}}
    <strong>{{.MaterialTitle}}</strong> <span class="category">{{.Category}}</span>
    {{- with location .Language .SymbolName .StartLine .EndLine}} <span class="location">{{.}}</span>{{end}}
    <p>{{.Excerpt}}</p>
  {{- else}}
    <span class="missing">Source {{.ChunkID}} not among results</span>
  {{- end}}
  </li>
{{- end}}
</ol>
{{- end}}
{{range .Hits}}{{template "hit" .}}{{end}}
</section>
{{end}}

{{define "materials"}}<section class="library">
{{- range .}}
<article class="material" data-material-id="{{.ID}}">
  <h3>{{.Title}}</h3>
  <span class="category">{{.Category}}</span>
  {{- with .Type}} <span class="type">{{.}}</span>{{end}}
  {{- with .Week}} <span class="week">Week {{.}}</span>{{end}}
  {{- with .Topic}}
  <p class="topic">Topic: {{.}}</p>
  {{- end}}
  {{- with .StorageURL}}
  <a class="open" href="{{.}}">Open file</a>
  {{- end}}
</article>
{{- else}}
<p class="empty">No materials yet.</p>
{{- end}}
</section>
{{end}}

{{define "courses"}}<ul class="courses">
{{- range .}}
  <li data-course-id="{{.ID}}">{{.Title}}{{with .Code}} <span class="code">{{.}}</span>{{end}}{{with .Term}} <span class="term">{{.}}</span>{{end}}</li>
{{- end}}
</ul>
{{end}}
`))

type askPage struct {
	Question  string
	Answer    template.HTML
	Citations []reconcile.Citation
	Hits      []reconcile.HitView
}

func (wr *Writer) renderMarkdown(content string) (template.HTML, error) {
	md := wr.md
	if md == nil {
		md = newMarkdown()
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func (wr *Writer) writeHitsHTML(w io.Writer, query string, hits []reconcile.HitView) error {
	return htmlTemplates.ExecuteTemplate(w, "hits", struct {
		Query string
		Hits  []reconcile.HitView
	}{query, hits})
}

func (wr *Writer) writeAskHTML(w io.Writer, question string, view reconcile.AskView) error {
	answer, err := wr.renderMarkdown(view.Answer)
	if err != nil {
		return err
	}
	return htmlTemplates.ExecuteTemplate(w, "ask", askPage{
		Question:  question,
		Answer:    answer,
		Citations: view.Citations,
		Hits:      view.Hits,
	})
}

func (wr *Writer) writeCoursesHTML(w io.Writer, courses []models.Course) error {
	return htmlTemplates.ExecuteTemplate(w, "courses", courses)
}

func (wr *Writer) writeMaterialsHTML(w io.Writer, materials []models.Material) error {
	return htmlTemplates.ExecuteTemplate(w, "materials", materials)
}
