// Package serper provides a client for the Serper Google Search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/candidate-profiler/internal/resilience"
)

const defaultBaseURL = "https://google.serper.dev"

// Client performs Serper web searches.
type Client interface {
	Search(ctx context.Context, query string, num int) (*SearchResponse, error)
}

// SearchResponse is the subset of the Serper response the pipeline reads.
type SearchResponse struct {
	Organic []OrganicResult `json:"organic"`
}

// OrganicResult is a single organic search hit.
type OrganicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithMinInterval spaces requests at least d apart. Zero disables throttling.
func WithMinInterval(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

// WithBreaker routes calls through a circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
	breaker *resilience.Breaker
}

// NewClient creates a Serper client. Requests are spaced one second apart
// unless WithMinInterval says otherwise.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

func (c *httpClient) Search(ctx context.Context, query string, num int) (*SearchResponse, error) {
	if num <= 0 {
		num = 10
	}
	body, err := json.Marshal(searchRequest{Q: query, Num: num})
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	return resilience.Do(ctx, c.retry, "serper.search", func(ctx context.Context) (*SearchResponse, error) {
		return resilience.Call(ctx, c.breaker, func(ctx context.Context) (*SearchResponse, error) {
			return c.search(ctx, body)
		})
	})
}

func (c *httpClient) search(ctx context.Context, body []byte) (*SearchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "serper: rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serper: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("serper", resp); err != nil {
		return nil, err
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, eris.Wrap(err, "serper: decode response")
	}
	return &result, nil
}
