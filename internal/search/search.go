package search

import (
	"context"
	"strings"

	"github.com/courseshera/coursesearch/internal/reconcile"
	"github.com/courseshera/coursesearch/pkg/models"
	"github.com/rs/zerolog"
)

const (
	// DefaultTopK is the page size used when the caller does not set one.
	DefaultTopK = 12
	// MaxAskTopK caps how many hits an answer may be grounded on.
	MaxAskTopK = 10
)

// Client is the subset of the course API the service depends on.
type Client interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	ListMaterials(ctx context.Context) ([]models.Material, error)
	Search(ctx context.Context, req models.SearchRequest) ([]models.SearchHit, error)
	Ask(ctx context.Context, req models.AskRequest) (models.AskResult, error)
}

// Options filter a query. Empty strings mean "any".
type Options struct {
	CourseID string
	Category models.Category
	TopK     int
	Language string
	Symbol   string
}

func (o Options) topK() int {
	if o.TopK <= 0 {
		return DefaultTopK
	}
	return o.TopK
}

type Service struct {
	Client Client
	Logger zerolog.Logger
}

// NewService creates a new search service backed by the provided API client
func NewService(client Client, logger zerolog.Logger) *Service {
	return &Service{
		Client: client,
		Logger: logger,
	}
}

// Query runs a hybrid search and returns the hits decorated for display.
// A blank query returns no hits without calling the API.
func (s *Service) Query(ctx context.Context, q string, opt Options) ([]reconcile.HitView, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []reconcile.HitView{}, nil
	}

	hits, err := s.Client.Search(ctx, models.SearchRequest{
		Query:     q,
		CourseID:  opt.CourseID,
		Category:  opt.Category,
		TopK:      opt.topK(),
		Language:  opt.Language,
		Symbol:    opt.Symbol,
		UseHybrid: true,
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Debug().Str("query", q).Int("hits", len(hits)).Msg("search complete")
	return reconcile.Hits(hits, nil), nil
}

// Ask requests a grounded answer and reconciles its citations against the
// returned hits. A blank question returns an empty view.
func (s *Service) Ask(ctx context.Context, q string, opt Options) (reconcile.AskView, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return reconcile.Reconcile(models.AskResult{}), nil
	}

	res, err := s.Client.Ask(ctx, models.AskRequest{
		Query:    q,
		CourseID: opt.CourseID,
		Category: opt.Category,
		TopK:     min(opt.topK(), MaxAskTopK),
	})
	if err != nil {
		return reconcile.AskView{}, err
	}

	view := reconcile.Reconcile(res)
	unresolved := 0
	for _, c := range view.Citations {
		if !c.Found {
			unresolved++
		}
	}
	if unresolved > 0 {
		s.Logger.Warn().Int("unresolved", unresolved).Int("citations", len(view.Citations)).Msg("answer cites chunks missing from hits")
	}
	return view, nil
}

// Courses lists the courses a query can be scoped to.
func (s *Service) Courses(ctx context.Context) ([]models.Course, error) {
	return s.Client.ListCourses(ctx)
}

// Materials lists uploaded materials narrowed to opt.CourseID and
// opt.Category. The API has no server-side filter for this listing.
func (s *Service) Materials(ctx context.Context, opt Options) ([]models.Material, error) {
	all, err := s.Client.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Material, 0, len(all))
	for _, m := range all {
		if opt.CourseID != "" && m.CourseID != opt.CourseID {
			continue
		}
		if opt.Category != "" && m.Category != opt.Category {
			continue
		}
		out = append(out, m)
	}
	s.Logger.Debug().Int("total", len(all)).Int("matched", len(out)).Msg("materials listed")
	return out, nil
}
