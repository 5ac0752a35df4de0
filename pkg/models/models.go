package models

// Category splits course materials into lecture content and lab work.
type Category string

const (
	CategoryTheory Category = "theory"
	CategoryLab    Category = "lab"
)

// Valid reports whether c is one of the categories the API filters on.
func (c Category) Valid() bool {
	return c == CategoryTheory || c == CategoryLab
}

type Course struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Code  string `json:"code,omitempty"`
	Term  string `json:"term,omitempty"`
}

// Material is an uploaded file in a course library. CreatedAt is kept as the
// server sent it since timestamps may lack a zone.
type Material struct {
	ID         string   `json:"id"`
	CourseID   string   `json:"course_id"`
	Category   Category `json:"category"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	StorageURL string   `json:"storage_url"`
	Week       int      `json:"week,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

// SearchHit is one scored chunk returned by the retrieval API.
type SearchHit struct {
	ChunkID       string   `json:"chunk_id"`
	MaterialID    string   `json:"material_id"`
	MaterialTitle string   `json:"material_title"`
	Category      Category `json:"category"`
	Excerpt       string   `json:"excerpt"`
	Score         float64  `json:"score"`
	Language      string   `json:"language,omitempty"`
	SymbolName    string   `json:"symbol_name,omitempty"`
	StartLine     int      `json:"start_line,omitempty"`
	EndLine       int      `json:"end_line,omitempty"`
}

type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}

// AskResult is a grounded answer. Answer references hits inline as [chunk_id].
type AskResult struct {
	Answer    string      `json:"answer"`
	Citations []string    `json:"citations"`
	Hits      []SearchHit `json:"hits"`
}

type SearchRequest struct {
	Query     string   `json:"query"`
	CourseID  string   `json:"course_id,omitempty"`
	Category  Category `json:"category,omitempty"`
	TopK      int      `json:"top_k"`
	Language  string   `json:"language,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	UseHybrid bool     `json:"use_hybrid"`
}

type AskRequest struct {
	Query    string   `json:"query"`
	CourseID string   `json:"course_id,omitempty"`
	Category Category `json:"category,omitempty"`
	TopK     int      `json:"top_k"`
}
