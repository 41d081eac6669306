package stages

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/pkg/serper"
)

const maxStoredResults = 30

// WebSearch looks for a candidate's LinkedIn and GitHub handles and general
// online presence through Serper.
type WebSearch struct {
	*Base
	client     serper.Client
	maxResults int
}

// NewWebSearch creates the web search stage.
func NewWebSearch(deps Deps, client serper.Client, maxResults int) (*WebSearch, error) {
	base, err := NewBase(candidate.GoogleScrape, deps)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	return &WebSearch{Base: base, client: client, maxResults: maxResults}, nil
}

type searchRun struct {
	attempts int
	failures int
	lastErr  error
	seen     map[string]bool
	results  []candidate.SearchResult
}

func (r *searchRun) add(hits []serper.OrganicResult) {
	for _, h := range hits {
		if h.Link == "" || r.seen[h.Link] || len(r.results) >= maxStoredResults {
			continue
		}
		r.seen[h.Link] = true
		r.results = append(r.results, candidate.SearchResult{
			Title:    h.Title,
			Link:     h.Link,
			Snippet:  h.Snippet,
			Position: h.Position,
		})
	}
}

// Process runs the profile and presence searches. Finding nothing is a
// success; the stage fails only when every search request failed.
func (s *WebSearch) Process(ctx context.Context, c candidate.Candidate) (Result, error) {
	name := candidateName(c)
	if name == "" {
		return Result{}, eris.Errorf("stages: candidate %s has no name to search", c.ID)
	}

	h := candidate.Handles{}
	if c.Enrichment.Handles != nil {
		h = *c.Enrichment.Handles
	}
	fromResume := h.LinkedIn != "" || h.GitHub != ""
	foundBySearch := false

	run := &searchRun{seen: map[string]bool{}}

	if h.LinkedIn == "" {
		h.LinkedIn = s.findHandle(ctx, run, name, "linkedin.com/in/", LinkedInHandle)
		foundBySearch = foundBySearch || h.LinkedIn != ""
	}
	if h.GitHub == "" {
		h.GitHub = s.findHandle(ctx, run, name, "github.com/", GitHubHandle)
		foundBySearch = foundBySearch || h.GitHub != ""
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if q := presenceQuery(name, c.Enrichment.Resume); q != "" {
		s.search(ctx, run, q)
	}

	if run.attempts > 0 && run.failures == run.attempts {
		return Result{}, eris.Wrapf(run.lastErr, "stages: all %d searches failed", run.attempts)
	}

	switch {
	case fromResume && foundBySearch:
		h.Source = "resume+search"
	case foundBySearch:
		h.Source = "search"
	}

	patch := &candidate.Enrichment{SearchResults: run.results}
	if h.LinkedIn != "" || h.GitHub != "" {
		patch.Handles = &h
	}
	s.log.Debug("web search finished",
		zap.String("candidate_id", c.ID),
		zap.Int("searches", run.attempts),
		zap.Int("results", len(run.results)),
		zap.String("linkedin", h.LinkedIn),
		zap.String("github", h.GitHub),
	)
	return Result{CandidateID: c.ID, Patch: patch}, nil
}

// findHandle tries each name variation with the site prefix until a result
// link yields a handle.
func (s *WebSearch) findHandle(ctx context.Context, run *searchRun, name, site string, extract func(string) string) string {
	for _, v := range NameVariations(name) {
		if ctx.Err() != nil {
			return ""
		}
		hits := s.search(ctx, run, v+" "+site)
		for _, hit := range hits {
			if handle := extract(hit.Link); handle != "" {
				return handle
			}
		}
	}
	return ""
}

func (s *WebSearch) search(ctx context.Context, run *searchRun, q string) []serper.OrganicResult {
	run.attempts++
	resp, err := s.client.Search(ctx, q, s.maxResults)
	if err != nil {
		run.failures++
		run.lastErr = err
		s.log.Warn("search failed", zap.String("query", q), zap.Error(err))
		return nil
	}
	run.add(resp.Organic)
	return resp.Organic
}

func candidateName(c candidate.Candidate) string {
	if c.Enrichment.Resume != nil && strings.TrimSpace(c.Enrichment.Resume.PersonalInfo.Name) != "" {
		return CleanName(c.Enrichment.Resume.PersonalInfo.Name)
	}
	return CleanName(c.Name)
}

// presenceQuery is the name plus the most recent employer and top skills.
func presenceQuery(name string, r *candidate.ParsedResume) string {
	q := `"` + name + `"`
	if r == nil {
		return q
	}
	if len(r.WorkExperience) > 0 && r.WorkExperience[0].Company != "" {
		q += " " + r.WorkExperience[0].Company
	}
	if n := min(len(r.Skills), 3); n > 0 {
		q += " developer " + strings.Join(r.Skills[:n], " ")
	}
	return q
}
