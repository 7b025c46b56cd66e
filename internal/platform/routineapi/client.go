// Package routineapi is the HTTP client for the upstream routine-task
// service. It launches generation jobs, reads their status and lists
// routine-task templates on behalf of an authenticated user.
package routineapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/phrazzld/habits-api/internal/generation"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit is the default sustained request rate per second.
	DefaultRateLimit = 10

	// DefaultBurst is the default limiter burst.
	DefaultBurst = 20

	maxErrorBody = 4 << 10
)

// Client talks to the routine-task service. A Client without a token is a
// template for per-user clients created with WithToken; all of them share
// one HTTP client and one rate limiter.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var (
	_ generation.JobClient      = (*Client)(nil)
	_ generation.TemplateLister = (*Client)(nil)
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit bounds the request rate shared by every derived client.
func WithRateLimit(requestsPerSecond float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "routine_api_client")

	return c
}

// WithToken returns a client that authenticates as the holder of token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// StartGeneration launches a generation job for templateID.
func (c *Client) StartGeneration(ctx context.Context, templateID string) (*generation.GenerationJob, error) {
	path := "/routine-tasks/" + url.PathEscape(templateID) + "/generate"

	var resp jobResponse
	if err := c.do(ctx, http.MethodPost, path, &resp); err != nil {
		return nil, err
	}
	job := resp.toJob(templateID)
	return &job, nil
}

// FetchStatus reads the current state of a generation job.
func (c *Client) FetchStatus(
	ctx context.Context,
	templateID, jobID string,
) (*generation.GenerationJob, error) {
	path := "/routine-tasks/" + url.PathEscape(templateID) + "/generate/" + url.PathEscape(jobID)

	var resp jobResponse
	if err := c.do(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	job := resp.toJob(templateID)
	if job.JobID == "" {
		job.JobID = jobID
	}
	return &job, nil
}

// ListTemplates returns the user's routine-task templates.
func (c *Client) ListTemplates(ctx context.Context) ([]generation.Template, error) {
	var resp []templateResponse
	if err := c.do(ctx, http.MethodGet, "/routine-tasks", &resp); err != nil {
		return nil, err
	}

	templates := make([]generation.Template, 0, len(resp))
	for _, t := range resp {
		templates = append(templates, t.toTemplate())
	}
	return templates, nil
}

func (c *Client) do(ctx context.Context, method, path string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("routine api request",
		"method", method,
		"path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.Status),
			Method:     method,
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
