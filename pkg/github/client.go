// Package github provides a minimal GitHub REST API client for user activity.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/candidate-profiler/internal/resilience"
)

const defaultBaseURL = "https://api.github.com"

// Client reads public GitHub user data.
type Client interface {
	GetUser(ctx context.Context, username string) (*User, error)
	ListRepos(ctx context.Context, username string, limit int) ([]Repo, error)
	ListEvents(ctx context.Context, username string) ([]Event, error)
}

// User is a GitHub user.
type User struct {
	Login       string    `json:"login"`
	Name        string    `json:"name"`
	Bio         string    `json:"bio"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"public_repos"`
	HTMLURL     string    `json:"html_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repo is a public repository.
type Repo struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	Fork            bool   `json:"fork"`
	Archived        bool   `json:"archived"`
}

// Event is a public activity event.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default rate limit (5 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
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
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
	breaker *resilience.Breaker
}

// NewClient creates a GitHub client. An empty token makes unauthenticated
// requests, which GitHub limits to 60 per hour.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(5, 5),
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	if err := c.get(ctx, "github.user", "/users/"+url.PathEscape(username), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListRepos returns up to limit repositories, most recently pushed first.
func (c *httpClient) ListRepos(ctx context.Context, username string, limit int) ([]Repo, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	path := fmt.Sprintf("/users/%s/repos?per_page=%d&sort=pushed", url.PathEscape(username), limit)
	var repos []Repo
	if err := c.get(ctx, "github.repos", path, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// ListEvents returns the user's recent public events (the API caps these at
// 90 days and 300 events).
func (c *httpClient) ListEvents(ctx context.Context, username string) ([]Event, error) {
	var events []Event
	if err := c.get(ctx, "github.events", "/users/"+url.PathEscape(username)+"/events?per_page=100", &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *httpClient) get(ctx context.Context, op, path string, out any) error {
	_, err := resilience.Do(ctx, c.retry, op, func(ctx context.Context) (struct{}, error) {
		return resilience.Call(ctx, c.breaker, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.doGet(ctx, path, out)
		})
	})
	return err
}

func (c *httpClient) doGet(ctx context.Context, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "github: rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "github: create request")
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "github: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("github", resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "github: decode response")
	}
	return nil
}
