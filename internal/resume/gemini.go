package resume

import (
	"context"

	"google.golang.org/genai"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/pkg/gemini"
)

var str = &genai.Schema{Type: genai.TypeString}

var resumeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"personal_info": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name":         str,
				"email":        str,
				"phone":        str,
				"location":     str,
				"linkedin_url": str,
				"github_url":   str,
			},
			Required: []string{"name"},
		},
		"skills": {Type: genai.TypeArray, Items: str},
		"work_experience": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"company":     str,
					"title":       str,
					"start_date":  str,
					"end_date":    str,
					"description": str,
				},
			},
		},
		"education": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"institution": str,
					"degree":      str,
					"field":       str,
					"end_date":    str,
				},
			},
		},
		"years_of_experience": {Type: genai.TypeNumber},
	},
	Required: []string{"personal_info", "skills", "work_experience", "education", "years_of_experience"},
}

// GeminiParser structures résumés with a Gemini model and a response schema.
type GeminiParser struct {
	client gemini.Client
	model  string
}

// NewGeminiParser creates a parser.
func NewGeminiParser(client gemini.Client, model string) *GeminiParser {
	return &GeminiParser{client: client, model: model}
}

// Parse sends the résumé text and decodes the schema-constrained reply.
func (p *GeminiParser) Parse(ctx context.Context, text string) (*candidate.ParsedResume, error) {
	out, err := p.client.GenerateJSON(ctx, gemini.JSONRequest{
		Model:  p.model,
		System: systemPrompt,
		Prompt: text,
		Schema: resumeSchema,
	})
	if err != nil {
		return nil, err
	}
	return decode(out, text)
}
