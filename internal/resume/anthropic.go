package resume

import (
	"context"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/pkg/anthropic"
)

// AnthropicParser structures résumés with a Claude model.
type AnthropicParser struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicParser creates a parser. maxTokens defaults to 4096.
func NewAnthropicParser(client anthropic.Client, model string, maxTokens int64) *AnthropicParser {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicParser{client: client, model: model, maxTokens: maxTokens}
}

// Parse sends the résumé text and decodes the JSON reply.
func (p *AnthropicParser) Parse(ctx context.Context, text string) (*candidate.ParsedResume, error) {
	temp := 0.0
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: text}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(p.model, "resume_parse")
	return decode(resp.Text(), text)
}
