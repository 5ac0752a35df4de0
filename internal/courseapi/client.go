// Package courseapi is a JSON client for the course materials API.
package courseapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/courseshera/coursesearch/internal/resilience"
	"github.com/courseshera/coursesearch/pkg/models"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is read for its detail.
	maxErrorBody = 64 << 10
)

type Config struct {
	BaseURL            string
	Token              string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	exec    *resilience.Executor
	logger  zerolog.Logger
}

// New builds a client. A nil executor runs every call exactly once.
func New(cfg Config, exec *resilience.Executor, logger zerolog.Logger) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("api url must be an absolute http(s) url, got %q", base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if exec == nil {
		exec = resilience.NewExecutor(resilience.Once, logger)
	}

	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout, Transport: transport},
		exec:    exec,
		logger:  logger,
	}, nil
}

// Breakers reports the state of each operation's circuit breaker.
func (c *Client) Breakers() []resilience.BreakerState {
	return c.exec.States()
}

// ListCourses returns every course known to the API.
func (c *Client) ListCourses(ctx context.Context) ([]models.Course, error) {
	var out []models.Course
	if err := c.doJSON(ctx, "list_courses", http.MethodGet, "/courses", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Course{}
	}
	return out, nil
}

// ListMaterials returns every uploaded material across courses.
func (c *Client) ListMaterials(ctx context.Context) ([]models.Material, error) {
	var out []models.Material
	if err := c.doJSON(ctx, "list_materials", http.MethodGet, "/materials", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Material{}
	}
	return out, nil
}

// Search runs a retrieval query.
func (c *Client) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchHit, error) {
	var out models.SearchResponse
	if err := c.doJSON(ctx, "search", http.MethodPost, "/search", req, &out); err != nil {
		return nil, err
	}
	if out.Hits == nil {
		out.Hits = []models.SearchHit{}
	}
	return out.Hits, nil
}

// Ask requests a grounded answer together with the hits it cites.
func (c *Client) Ask(ctx context.Context, req models.AskRequest) (models.AskResult, error) {
	var out models.AskResult
	if err := c.doJSON(ctx, "ask", http.MethodPost, "/search/ask", req, &out); err != nil {
		return models.AskResult{}, err
	}
	if out.Citations == nil {
		out.Citations = []string{}
	}
	if out.Hits == nil {
		out.Hits = []models.SearchHit{}
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = b
	}

	start := time.Now()
	err := c.exec.Do(ctx, op, Classify, func(ctx context.Context) error {
		return c.roundTrip(ctx, op, method, path, body, out)
	})

	event := c.logger.Debug()
	if err != nil {
		event = c.logger.Warn().Err(err)
	}
	event.Str("operation", op).
		Str("method", method).
		Str("path", path).
		Dur("elapsed", time.Since(start)).
		Msg("course api call")
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     errorDetail(resp.StatusCode, raw),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("decode %s response: empty body", op)
		}
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// setHeaders sets common headers for API requests
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
