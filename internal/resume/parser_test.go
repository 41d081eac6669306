package resume

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-profiler/internal/config"
	"github.com/sells-group/candidate-profiler/pkg/anthropic"
	"github.com/sells-group/candidate-profiler/pkg/gemini"
)

const parsedJSON = `{
  "personal_info": {"name": " Jane Doe ", "email": "jane@example.com", "github_url": "https://github.com/janedoe"},
  "skills": ["Go", "go", "PostgreSQL", ""],
  "work_experience": [{"company": "Acme", "title": "Engineer", "start_date": "2019-01"}],
  "education": [{"institution": "State U", "degree": "BSc", "field": "CS"}],
  "years_of_experience": 6.5
}`

type fakeAnthropic struct {
	req  anthropic.MessageRequest
	text string
	err  error
}

func (f *fakeAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}}}, nil
}

type fakeGemini struct {
	req gemini.JSONRequest
	out string
	err error
}

func (f *fakeGemini) GenerateJSON(_ context.Context, req gemini.JSONRequest) (string, error) {
	f.req = req
	return f.out, f.err
}

func TestAnthropicParser_Parse(t *testing.T) {
	fake := &fakeAnthropic{text: parsedJSON}
	p := NewAnthropicParser(fake, "claude-haiku-4-5-20251001", 0)

	pr, err := p.Parse(context.Background(), "Jane Doe résumé")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", pr.PersonalInfo.Name)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, pr.Skills)
	assert.InDelta(t, 6.5, pr.YearsOfExperience, 0.001)
	assert.Equal(t, "Jane Doe résumé", pr.Text)

	assert.Equal(t, int64(4096), fake.req.MaxTokens)
	require.Len(t, fake.req.System, 1)
	assert.NotNil(t, fake.req.System[0].CacheControl)
	assert.Equal(t, "Jane Doe résumé", fake.req.Messages[0].Content)
}

func TestAnthropicParser_FencedOutput(t *testing.T) {
	fake := &fakeAnthropic{text: "Here you go:\n```json\n" + parsedJSON + "\n```"}
	pr, err := NewAnthropicParser(fake, "m", 100).Parse(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", pr.PersonalInfo.Name)
}

func TestAnthropicParser_ClientError(t *testing.T) {
	fake := &fakeAnthropic{err: errors.New("overloaded")}
	_, err := NewAnthropicParser(fake, "m", 100).Parse(context.Background(), "t")
	assert.EqualError(t, err, "overloaded")
}

func TestGeminiParser_Parse(t *testing.T) {
	fake := &fakeGemini{out: parsedJSON}
	pr, err := NewGeminiParser(fake, "gemini-2.5-flash").Parse(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", pr.PersonalInfo.Name)
	assert.Equal(t, "gemini-2.5-flash", fake.req.Model)
	assert.Same(t, resumeSchema, fake.req.Schema)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "bare", raw: parsedJSON},
		{name: "braces in prose", raw: "Result: " + parsedJSON + " done"},
		{name: "missing name", raw: `{"personal_info":{"name":""},"skills":[]}`, wantErr: ErrIncomplete},
		{name: "garbage", raw: "no json here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr, err := decode(tt.raw, "text")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.name == "garbage":
				assert.Error(t, err)
				assert.Nil(t, pr)
			default:
				require.NoError(t, err)
				assert.Equal(t, "Jane Doe", pr.PersonalInfo.Name)
			}
		})
	}
}

func TestNewParser(t *testing.T) {
	p, err := NewParser(context.Background(), config.LLMConfig{Provider: "anthropic", AnthropicKey: "k", AnthropicModel: "m"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicParser{}, p)

	p, err = NewParser(context.Background(), config.LLMConfig{Provider: "gemini", GeminiKey: "k", GeminiModel: "g"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiParser{}, p)

	_, err = NewParser(context.Background(), config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)

	_, err = NewParser(context.Background(), config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)
}
