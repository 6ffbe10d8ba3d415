// Package crossref provides a client for the CrossRef REST API works and
// agency endpoints.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/crossref-sync/internal/resilience"
)

// DefaultBaseURL is the public CrossRef REST API.
const DefaultBaseURL = "https://api.crossref.org"

// Client defines the CrossRef operations used to resolve a DOI.
type Client interface {
	// Agency returns the registration agency of doi.
	Agency(ctx context.Context, doi string) (*Agency, error)
	// Work returns the work record of doi.
	Work(ctx context.Context, doi string) (*Work, error)
}

// APIError is a non-2xx CrossRef response.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crossref: %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// HTTPStatus implements resilience.StatusCoder.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Option configures the CrossRef client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

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

// WithMailto identifies the caller for CrossRef's polite pool.
func WithMailto(addr string) Option {
	return func(c *httpClient) {
		c.mailto = addr
	}
}

// WithRateLimit caps requests per second. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the retry policy for transient failures.
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
	baseURL string
	mailto  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a CrossRef client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WorkURL returns the work endpoint for doi with the DOI fully path-escaped.
func WorkURL(baseURL, doi string) string {
	return strings.TrimRight(baseURL, "/") + "/works/" + url.PathEscape(doi)
}

func (c *httpClient) Agency(ctx context.Context, doi string) (*Agency, error) {
	var resp agencyResponse
	if err := c.get(ctx, WorkURL(c.baseURL, doi)+"/agency", "agency", doi, &resp); err != nil {
		return nil, err
	}
	return &resp.Message.Agency, nil
}

func (c *httpClient) Work(ctx context.Context, doi string) (*Work, error) {
	var resp workResponse
	if err := c.get(ctx, WorkURL(c.baseURL, doi), "work", doi, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

func (c *httpClient) get(ctx context.Context, reqURL, op, doi string, out any) error {
	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("crossref", op, doi)

	body, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
			return c.do(ctx, reqURL)
		})
	})
	if err != nil {
		return eris.Wrapf(err, "crossref: %s %s", op, doi)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(resilience.ErrInvalidResponse, "crossref: decode %s %s: %v", op, doi, err)
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, reqURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "crossref: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "crossref: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "crossref: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "crossref: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, URL: reqURL, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func (c *httpClient) userAgent() string {
	if c.mailto == "" {
		return "crossref-sync/1.0"
	}
	return "crossref-sync/1.0 (mailto:" + c.mailto + ")"
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
