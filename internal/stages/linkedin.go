package stages

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/pkg/linkedin"
)

// LinkedInLookup fetches the candidate's professional-network profile.
type LinkedInLookup struct {
	*Base
	client linkedin.Client
}

// NewLinkedInLookup creates the LinkedIn stage.
func NewLinkedInLookup(deps Deps, client linkedin.Client) (*LinkedInLookup, error) {
	base, err := NewBase(candidate.LinkedInScrape, deps)
	if err != nil {
		return nil, err
	}
	return &LinkedInLookup{Base: base, client: client}, nil
}

// Process fetches and formats the profile for the candidate's handle.
func (s *LinkedInLookup) Process(ctx context.Context, c candidate.Candidate) (Result, error) {
	if c.Enrichment.Handles == nil || c.Enrichment.Handles.LinkedIn == "" {
		return Result{}, eris.Wrapf(ErrNoHandle, "linkedin: candidate %s", c.ID)
	}
	raw, err := s.client.GetProfile(ctx, c.Enrichment.Handles.LinkedIn)
	if err != nil {
		return Result{}, err
	}
	p := FormatLinkedIn(raw)
	if p.Username == "" {
		p.Username = c.Enrichment.Handles.LinkedIn
	}
	return Result{
		CandidateID: c.ID,
		Patch:       &candidate.Enrichment{LinkedIn: p},
	}, nil
}

// FormatLinkedIn maps the API payload onto the stored profile shape.
func FormatLinkedIn(raw *linkedin.Profile) *candidate.LinkedInProfile {
	p := &candidate.LinkedInProfile{
		ID:       string(raw.ID),
		Username: raw.Username,
		FullName: raw.FullName(),
		Headline: raw.Headline,
		Location: raw.Geo.Full,
		Summary:  raw.Summary,
	}
	for _, e := range raw.Educations {
		p.Educations = append(p.Educations, candidate.Education{
			Institution: e.SchoolName,
			Degree:      e.Degree,
			Field:       e.FieldOfStudy,
			EndDate:     e.End.String(),
		})
	}
	for _, pos := range raw.FullPositions {
		end := pos.End.String()
		if end == "" {
			end = "Present"
		}
		p.Experiences = append(p.Experiences, candidate.WorkExperience{
			Company:     pos.CompanyName,
			Title:       pos.Title,
			StartDate:   pos.Start.String(),
			EndDate:     end,
			Description: pos.Description,
		})
	}
	for _, sk := range raw.Skills {
		if sk.Name != "" {
			p.Skills = append(p.Skills, sk.Name)
		}
	}
	return p
}
