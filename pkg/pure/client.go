// Package pure provides a client for the Pure research-information system
// research output API.
package pure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crossref-sync/internal/resilience"
)

// Client defines the research output operations.
type Client interface {
	// Get fetches one research output.
	Get(ctx context.Context, id string) (*ResearchOutput, error)
	// Update sends a partial update carrying the record's version token.
	Update(ctx context.Context, id string, payload UpdatePayload) error
	// RecordURL is the endpoint URL for id, used in error logs.
	RecordURL(id string) string
}

// APIError is a non-2xx response from the repository.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pure: %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// HTTPStatus implements resilience.StatusCoder.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// IsNotFound reports whether err is a 404 from the repository.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Conflict reports whether the version token was stale.
func (e *APIError) Conflict() bool {
	return e.StatusCode == http.StatusConflict
}

// Option configures the Pure client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetry sets the retry policy for GET requests. Updates are sent once.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithCircuitBreaker guards every request with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

// NewClient creates a client for the research output endpoint, e.g.
// https://pure.example.ac.uk/ws/api/research-outputs.
func NewClient(endpoint, apiKey string, opts ...Option) Client {
	c := &httpClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) RecordURL(id string) string {
	return c.endpoint + "/" + url.PathEscape(id)
}

func (c *httpClient) Get(ctx context.Context, id string) (*ResearchOutput, error) {
	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("pure", "get", id)

	body, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
			return c.do(ctx, http.MethodGet, id, nil)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pure: get %s", id)
	}

	var out ResearchOutput
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrapf(resilience.ErrInvalidResponse, "pure: decode %s: %v", id, err)
	}
	return &out, nil
}

func (c *httpClient) Update(ctx context.Context, id string, payload UpdatePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "pure: marshal update")
	}

	_, err = resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodPut, id, body)
	})
	return eris.Wrapf(err, "pure: update %s", id)
}

func (c *httpClient) do(ctx context.Context, method, id string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	reqURL := c.RecordURL(id)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, eris.Wrap(err, "pure: create request")
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "pure: %s request failed", strings.ToLower(method))
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pure: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			URL:        reqURL,
			Body:       truncate(string(respBody), 300),
		}
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
