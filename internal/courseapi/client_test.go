package courseapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/courseshera/coursesearch/internal/resilience"
	"github.com/courseshera/coursesearch/pkg/models"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, srv *httptest.Server, token string, attempts int) *Client {
	t.Helper()
	exec := resilience.NewExecutor(resilience.Config{
		Attempts: attempts,
		Backoff:  resilience.Backoff{Initial: time.Millisecond, Max: time.Millisecond},
		Breaker:  resilience.BreakerConfig{Disabled: true},
	}, zerolog.Nop())
	c, err := New(Config{BaseURL: srv.URL + "/", Token: token, Timeout: 5 * time.Second}, exec, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"localhost:8000", "ftp://example.com", "http://", "::"} {
		if _, err := New(Config{BaseURL: raw}, nil, zerolog.Nop()); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
	c, err := New(Config{}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("default url rejected: %v", err)
	}
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if req["query"] != "merge sort" || req["top_k"] != float64(5) || req["use_hybrid"] != true {
			t.Errorf("unexpected body: %v", req)
		}
		if _, ok := req["course_id"]; ok {
			t.Errorf("empty course_id should be omitted: %v", req)
		}
		if req["category"] != "lab" {
			t.Errorf("category = %v", req["category"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":[{"chunk_id":"c1","material_id":"m1","material_title":"Lab 2","category":"lab","excerpt":"def f(): pass","score":0.71,"language":"python","symbol_name":"f","start_line":3,"end_line":4}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "secret", 1)
	hits, err := c.Search(context.Background(), models.SearchRequest{
		Query:     "merge sort",
		Category:  models.CategoryLab,
		TopK:      5,
		UseHybrid: true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	h := hits[0]
	if h.ChunkID != "c1" || h.Category != models.CategoryLab || h.Score != 0.71 || h.SymbolName != "f" || h.StartLine != 3 || h.EndLine != 4 {
		t.Errorf("unexpected hit: %+v", h)
	}
}

func TestSearchNullHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":null}`))
	}))
	defer srv.Close()

	hits, err := newTestClient(t, srv, "", 1).Search(context.Background(), models.SearchRequest{Query: "x"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("expected empty non-nil hits, got %#v", hits)
	}
}

func TestNoTokenNoAuthorizationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	courses, err := newTestClient(t, srv, "", 1).ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if courses == nil || len(courses) != 0 {
		t.Errorf("expected empty courses, got %#v", courses)
	}
}

func TestListCourses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/courses" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":"a","title":"Algorithms","code":"CS201","term":null},{"id":"b","title":"Networks"}]`))
	}))
	defer srv.Close()

	courses, err := newTestClient(t, srv, "", 1).ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if len(courses) != 2 || courses[0].Code != "CS201" || courses[0].Term != "" || courses[1].Title != "Networks" {
		t.Errorf("unexpected courses: %+v", courses)
	}
}

func TestListMaterials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/materials" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"id":"m1","course_id":"a","category":"lab","title":"Lab 3","type":"pdf","storage_url":"/files/lab3.pdf","week":3,"topic":"Heaps","tags":["trees"],"created_at":"2024-02-01T10:00:00"},
			{"id":"m2","course_id":"b","category":"theory","title":"Intro","type":"md","storage_url":"/files/intro.md","week":null,"topic":null,"tags":null,"created_at":"2024-02-02T10:00:00"}
		]`))
	}))
	defer srv.Close()

	materials, err := newTestClient(t, srv, "", 1).ListMaterials(context.Background())
	if err != nil {
		t.Fatalf("ListMaterials: %v", err)
	}
	if len(materials) != 2 {
		t.Fatalf("expected 2 materials, got %d", len(materials))
	}
	if m := materials[0]; m.Week != 3 || m.Topic != "Heaps" || m.Category != models.CategoryLab || m.StorageURL != "/files/lab3.pdf" {
		t.Errorf("unexpected first material: %+v", m)
	}
	if m := materials[1]; m.Week != 0 || m.Topic != "" || m.Tags != nil {
		t.Errorf("null optional fields should decode to zero values: %+v", m)
	}
}

func TestListMaterialsNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	materials, err := newTestClient(t, srv, "", 1).ListMaterials(context.Background())
	if err != nil {
		t.Fatalf("ListMaterials: %v", err)
	}
	if materials == nil || len(materials) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", materials)
	}
}

func TestAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/ask" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req models.AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if req.Query != "what is a heap?" || req.TopK != 10 {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"answer":"A heap [c4].","citations":["c4"],"hits":null}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv, "", 1).Ask(context.Background(), models.AskRequest{Query: "what is a heap?", TopK: 10})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != "A heap [c4]." || len(res.Citations) != 1 || res.Hits == nil {
		t.Errorf("unexpected result: %#v", res)
	}
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"fastapi detail", 404, `{"detail":"Course not found"}`, "Course not found"},
		{"validation list", 422, `{"detail":[{"loc":["body","query"],"msg":"field required"}]}`, `[{"loc":["body","query"],"msg":"field required"}]`},
		{"empty detail", 400, `{"detail":""}`, "Request failed (400)"},
		{"null detail", 400, `{"detail":null}`, "Request failed (400)"},
		{"not json", 502, `<html>Bad Gateway</html>`, "Request failed (502)"},
		{"empty body", 500, ``, "Request failed (500)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorDetail(tt.status, []byte(tt.body)); got != tt.expected {
				t.Errorf("errorDetail = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Course not found"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "", 3).Search(context.Background(), models.SearchRequest{Query: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Detail != "Course not found" || apiErr.Operation != "search" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"hits":[]}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv, "", 3).Search(context.Background(), models.SearchRequest{Query: "x"}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":`))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv, "", 1).Search(context.Background(), models.SearchRequest{Query: "x"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want resilience.Verdict
	}{
		{"cancelled", context.Canceled, resilience.ClientFault},
		{"deadline", context.DeadlineExceeded, resilience.ClientFault},
		{"rate limited", &APIError{StatusCode: 429}, resilience.Transient},
		{"timeout status", &APIError{StatusCode: 408}, resilience.Transient},
		{"bad gateway", &APIError{StatusCode: 502}, resilience.Transient},
		{"not found", &APIError{StatusCode: 404}, resilience.ClientFault},
		{"unprocessable", &APIError{StatusCode: 422}, resilience.ClientFault},
		{"connection refused", &net.OpError{Op: "dial", Err: errors.New("refused")}, resilience.Transient},
		{"other", errors.New("boom"), resilience.Permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBreakersReportOperations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	exec := resilience.NewExecutor(resilience.Config{Attempts: 1}, zerolog.Nop())
	c, err := New(Config{BaseURL: srv.URL}, exec, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.ListMaterials(context.Background()); err != nil {
		t.Fatalf("ListMaterials: %v", err)
	}

	states := c.Breakers()
	if len(states) != 1 || states[0].Operation != "list_materials" || states[0].State != "closed" {
		t.Errorf("unexpected breakers: %+v", states)
	}
}
