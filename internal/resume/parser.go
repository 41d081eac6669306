package resume

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/config"
	"github.com/sells-group/candidate-profiler/pkg/anthropic"
	"github.com/sells-group/candidate-profiler/pkg/gemini"
)

// ErrIncomplete is returned when the model's output lacks the candidate's name.
var ErrIncomplete = eris.New("resume: parsed résumé is missing required fields")

// Parser structures résumé text.
type Parser interface {
	Parse(ctx context.Context, text string) (*candidate.ParsedResume, error)
}

const systemPrompt = `You extract structured data from résumé text.
Return ONLY a JSON object with exactly these keys and no commentary:

{
  "personal_info": {"name": "", "email": "", "phone": "", "location": "", "linkedin_url": "", "github_url": ""},
  "skills": [""],
  "work_experience": [{"company": "", "title": "", "start_date": "YYYY-MM", "end_date": "YYYY-MM or empty if current", "description": ""}],
  "education": [{"institution": "", "degree": "", "field": "", "end_date": "YYYY-MM"}],
  "years_of_experience": 0
}

Rules:
1. skills lists technical skills only, one technology per entry, as written on the résumé.
2. years_of_experience is total professional experience in years, computed from work_experience dates.
3. Use an empty string or empty array when a value is not present. Never invent values.
4. linkedin_url and github_url are full profile URLs when the résumé lists them.`

// NewParser creates the parser for the configured LLM provider.
func NewParser(ctx context.Context, cfg config.LLMConfig) (Parser, error) {
	switch cfg.Provider {
	case "anthropic", "":
		if cfg.AnthropicKey == "" {
			return nil, eris.New("resume: anthropic provider requires llm.anthropic_key")
		}
		return NewAnthropicParser(anthropic.NewClient(cfg.AnthropicKey), cfg.AnthropicModel, cfg.MaxTokens), nil
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GeminiKey})
		if err != nil {
			return nil, err
		}
		return NewGeminiParser(client, cfg.GeminiModel), nil
	default:
		return nil, eris.Errorf("resume: unknown llm provider %q", cfg.Provider)
	}
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	bracedJSON = regexp.MustCompile(`(?s)\{.*\}`)
)

// decode parses model output into a ParsedResume. It accepts bare JSON,
// JSON inside a markdown fence, or the outermost brace-delimited span.
func decode(raw, text string) (*candidate.ParsedResume, error) {
	candidates := []string{strings.TrimSpace(raw)}
	for _, m := range fencedJSON.FindAllStringSubmatch(raw, -1) {
		candidates = append(candidates, m[1])
	}
	if m := bracedJSON.FindString(raw); m != "" {
		candidates = append(candidates, m)
	}

	var lastErr error
	for _, c := range candidates {
		var pr candidate.ParsedResume
		if err := json.Unmarshal([]byte(c), &pr); err != nil {
			lastErr = err
			continue
		}
		return finish(&pr, text)
	}
	return nil, eris.Wrap(lastErr, "resume: no valid JSON in model output")
}

func finish(pr *candidate.ParsedResume, text string) (*candidate.ParsedResume, error) {
	pr.PersonalInfo.Name = strings.TrimSpace(pr.PersonalInfo.Name)
	if pr.PersonalInfo.Name == "" {
		return nil, ErrIncomplete
	}
	pr.Skills = dedupe(pr.Skills)
	if pr.YearsOfExperience < 0 {
		pr.YearsOfExperience = 0
	}
	pr.Text = text
	return pr, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
