package stages

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/config"
)

// ProfileBuilder scores a candidate against the job they applied to.
type ProfileBuilder struct {
	*Base
	weights config.ProfileConfig
}

// NewProfileBuilder creates the profile creation stage.
func NewProfileBuilder(deps Deps, weights config.ProfileConfig) (*ProfileBuilder, error) {
	base, err := NewBase(candidate.ProfileCreation, deps)
	if err != nil {
		return nil, err
	}
	return &ProfileBuilder{Base: base, weights: weights}, nil
}

// Process loads the job and builds the scored profile. Passing candidates
// move to screening.
func (s *ProfileBuilder) Process(ctx context.Context, c candidate.Candidate) (Result, error) {
	if c.Enrichment.Resume == nil {
		return Result{}, eris.Wrapf(ErrNoResume, "profile: candidate %s", c.ID)
	}
	if c.JobID == "" {
		return Result{}, eris.Errorf("profile: candidate %s has no job", c.ID)
	}
	job, err := s.store.GetJob(ctx, c.JobID)
	if err != nil {
		return Result{}, eris.Wrapf(err, "profile: load job %s", c.JobID)
	}

	p := BuildProfile(c.Enrichment, job, s.weights)
	p.CreatedAt = s.now().UTC()

	res := Result{
		CandidateID: c.ID,
		Patch:       &candidate.Enrichment{Profile: p},
	}
	if p.Passed {
		res.Status = candidate.Screening
	}
	return res, nil
}

// BuildProfile scores enrichment data against job.
func BuildProfile(e candidate.Enrichment, job *candidate.Job, w config.ProfileConfig) *candidate.Profile {
	var skills []string
	var years float64
	if e.Resume != nil {
		skills = e.Resume.Skills
		years = e.Resume.YearsOfExperience
	}
	if e.LinkedIn != nil {
		skills = append(append([]string{}, skills...), e.LinkedIn.Skills...)
	}

	matched, missing := MatchSkills(skills, job.RequiredSkills)
	p := &candidate.Profile{
		MatchedSkills:   matched,
		MissingSkills:   missing,
		TechnicalScore:  TechnicalScore(len(matched), len(job.RequiredSkills)),
		ExperienceScore: ExperienceScore(years, job.MinYearsExperience, job.MaxYearsExperience),
		GitHub:          e.GitHub,
		OnlinePresence:  e.SearchResults,
	}
	if e.GitHub != nil {
		p.GitHubScore = GradeScore(e.GitHub.Rating)
	}
	p.OverallScore = round2(p.TechnicalScore*w.TechnicalWeight +
		p.ExperienceScore*w.ExperienceWeight +
		p.GitHubScore*w.GitHubWeight)
	p.Passed = p.OverallScore >= w.MinPassingScore
	return p
}

// MatchSkills splits required skills into those the candidate has and those
// missing, comparing case-insensitively. Output keeps the job's spelling.
func MatchSkills(have, required []string) (matched, missing []string) {
	set := make(map[string]bool, len(have))
	for _, s := range have {
		set[foldKey(s)] = true
	}
	matched = []string{}
	missing = []string{}
	for _, r := range required {
		if set[foldKey(r)] {
			matched = append(matched, r)
		} else {
			missing = append(missing, r)
		}
	}
	return matched, missing
}

// TechnicalScore is the percentage of required skills matched, to two
// decimal places.
func TechnicalScore(matched, required int) float64 {
	if required == 0 {
		return 0
	}
	return round2(float64(matched) / float64(required) * 100)
}

// ExperienceScore rates years against the job's range. Being over the
// maximum costs five points per year from a base of 70.
func ExperienceScore(years, minYears float64, maxYears *float64) float64 {
	switch {
	case years < minYears:
		if minYears == 0 {
			return 100
		}
		return round2(years / minYears * 100)
	case maxYears == nil || years <= *maxYears:
		return 100
	default:
		return math.Max(70-5*(years-*maxYears), 0)
	}
}

var gradeScores = map[string]float64{
	"A+": 100, "A": 95, "A-": 90,
	"B+": 85, "B": 80, "B-": 75,
	"C+": 70, "C": 65, "C-": 60,
}

// GradeScore converts a GitHub rating into points. Unknown ratings score 0.
func GradeScore(rating string) float64 {
	return gradeScores[rating]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
