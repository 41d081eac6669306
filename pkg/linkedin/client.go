// Package linkedin provides a client for the RapidAPI LinkedIn Data API.
package linkedin

import (
	"bytes"
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

const (
	defaultBaseURL = "https://linkedin-data-api.p.rapidapi.com"
	defaultHost    = "linkedin-data-api.p.rapidapi.com"
)

// ErrProfileNotFound is returned when the API answers without a profile.
var ErrProfileNotFound = eris.New("linkedin: profile not found")

// Client fetches LinkedIn profiles.
type Client interface {
	GetProfile(ctx context.Context, username string) (*Profile, error)
}

// Profile is the raw profile payload.
type Profile struct {
	ID            FlexString  `json:"id"`
	Username      string      `json:"username"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	Headline      string      `json:"headline"`
	Summary       string      `json:"summary"`
	Geo           Geo         `json:"geo"`
	Educations    []Education `json:"educations"`
	FullPositions []Position  `json:"fullPositions"`
	Skills        []Skill     `json:"skills"`
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Geo is the profile location.
type Geo struct {
	Full string `json:"full"`
}

// Education is one education entry.
type Education struct {
	SchoolName   string    `json:"schoolName"`
	Degree       string    `json:"degree"`
	FieldOfStudy string    `json:"fieldOfStudy"`
	Start        YearMonth `json:"start"`
	End          YearMonth `json:"end"`
}

// Position is one work position.
type Position struct {
	CompanyName string    `json:"companyName"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Start       YearMonth `json:"start"`
	End         YearMonth `json:"end"`
}

// YearMonth is a partial date. Zero year means unknown or present.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// String renders the year, or "" when unknown.
func (ym YearMonth) String() string {
	if ym.Year == 0 {
		return ""
	}
	return fmt.Sprintf("%d", ym.Year)
}

// Skill is one listed skill.
type Skill struct {
	Name string `json:"name"`
}

// FlexString decodes either a JSON string or number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(b)
	return nil
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHost overrides the x-rapidapi-host header.
func WithHost(host string) Option {
	return func(c *httpClient) {
		c.host = host
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default rate limit (1 req/s).
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
	apiKey  string
	baseURL string
	host    string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
	breaker *resilience.Breaker
}

// NewClient creates a LinkedIn Data API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		host:    defaultHost,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(1, 1),
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetProfile(ctx context.Context, username string) (*Profile, error) {
	if username == "" {
		return nil, eris.New("linkedin: username is required")
	}
	return resilience.Do(ctx, c.retry, "linkedin.profile", func(ctx context.Context) (*Profile, error) {
		return resilience.Call(ctx, c.breaker, func(ctx context.Context) (*Profile, error) {
			return c.getProfile(ctx, username)
		})
	})
}

func (c *httpClient) getProfile(ctx context.Context, username string) (*Profile, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "linkedin: rate limit")
		}
	}

	u := c.baseURL + "/?" + url.Values{"username": {username}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "linkedin: create request")
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "linkedin: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckResponse("linkedin", resp); err != nil {
		return nil, err
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, eris.Wrap(err, "linkedin: decode response")
	}
	if p.Username == "" {
		return nil, eris.Wrapf(ErrProfileNotFound, "username %s", username)
	}
	return &p, nil
}
