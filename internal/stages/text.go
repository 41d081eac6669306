package stages

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/documents"
	"github.com/sells-group/candidate-profiler/internal/resume"
)

// TextExtraction reads a candidate's résumé and structures it.
type TextExtraction struct {
	*Base
	docs      documents.Source
	extractor resume.TextExtractor
	parser    resume.Parser
}

// NewTextExtraction creates the text extraction stage.
func NewTextExtraction(deps Deps, docs documents.Source, extractor resume.TextExtractor, parser resume.Parser) (*TextExtraction, error) {
	base, err := NewBase(candidate.ExtractText, deps)
	if err != nil {
		return nil, err
	}
	return &TextExtraction{Base: base, docs: docs, extractor: extractor, parser: parser}, nil
}

// Process loads, extracts and parses the résumé. Handles found in the
// résumé are recorded so the search stage can skip looking for them.
func (s *TextExtraction) Process(ctx context.Context, c candidate.Candidate) (Result, error) {
	if c.ResumePath == "" {
		return Result{}, eris.Wrapf(ErrNoResume, "candidate %s", c.ID)
	}

	data, err := s.docs.Read(ctx, c.ResumePath)
	if err != nil {
		return Result{}, err
	}
	text, err := s.extractor.ExtractText(ctx, c.ResumePath, data)
	if err != nil {
		return Result{}, err
	}
	parsed, err := s.parser.Parse(ctx, text)
	if err != nil {
		return Result{}, err
	}

	patch := &candidate.Enrichment{Resume: parsed}
	h := candidate.Handles{
		LinkedIn: LinkedInHandle(parsed.PersonalInfo.LinkedInURL),
		GitHub:   GitHubHandle(parsed.PersonalInfo.GitHubURL),
	}
	if h.LinkedIn != "" || h.GitHub != "" {
		h.Source = "resume"
		patch.Handles = &h
	}
	return Result{CandidateID: c.ID, Patch: patch}, nil
}
