// Package gemini wraps the Gemini API for structured JSON generation.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/candidate-profiler/internal/resilience"
)

// Client generates JSON constrained by a response schema.
type Client interface {
	GenerateJSON(ctx context.Context, req JSONRequest) (string, error)
}

// JSONRequest is one structured generation call.
type JSONRequest struct {
	Model  string
	System string
	Prompt string
	Schema *genai.Schema
}

// Config configures the client.
type Config struct {
	APIKey string
	// BaseURL overrides the Gemini API base URL. Used in tests.
	BaseURL string
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("gemini: api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) GenerateJSON(ctx context.Context, req JSONRequest) (string, error) {
	if req.Model == "" {
		return "", eris.New("gemini: model is required")
	}
	cfg := &genai.GenerateContentConfig{
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", classifyErr(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("gemini: empty response")
	}
	return text, nil
}

// classifyErr converts API errors to resilience.StatusError so retry and
// circuit breaking treat Gemini like the other upstreams.
func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &resilience.StatusError{Service: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return eris.Wrap(err, "gemini: generate content")
}
