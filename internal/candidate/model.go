package candidate

import (
	"time"
)

// Status is the recruiting status of a candidate, independent of enrichment.
type Status string

// Candidate statuses.
const (
	Applied      Status = "applied"
	Screening    Status = "screening"
	Interviewing Status = "interviewing"
	Offered      Status = "offered"
	Hired        Status = "hired"
	Rejected     Status = "rejected"
	Withdrawn    Status = "withdrawn"
)

// Candidate is a stored applicant and its enrichment progress.
type Candidate struct {
	ID           string     `json:"id"`
	JobID        string     `json:"job_id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	ResumePath   string     `json:"resume_path"`
	Status       Status     `json:"status"`
	State        State      `json:"pipeline_status"`
	LastError    string     `json:"last_error,omitempty"`
	Enrichment   Enrichment `json:"enrichment"`
	ClaimedBy    string     `json:"-"`
	ClaimedUntil *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Enrichment is everything the stages have learned about a candidate.
// Each stage writes only its own section.
type Enrichment struct {
	Resume        *ParsedResume    `json:"resume,omitempty"`
	Handles       *Handles         `json:"handles,omitempty"`
	SearchResults []SearchResult   `json:"search_results,omitempty"`
	LinkedIn      *LinkedInProfile `json:"linkedin,omitempty"`
	GitHub        *GitHubActivity  `json:"github,omitempty"`
	Profile       *Profile         `json:"profile,omitempty"`
}

// ParsedResume is the structured form of a résumé.
type ParsedResume struct {
	Text              string           `json:"text,omitempty"`
	PersonalInfo      PersonalInfo     `json:"personal_info"`
	Skills            []string         `json:"skills"`
	WorkExperience    []WorkExperience `json:"work_experience"`
	Education         []Education      `json:"education"`
	YearsOfExperience float64          `json:"years_of_experience"`
}

// PersonalInfo is contact and identity data from a résumé.
type PersonalInfo struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Location    string `json:"location,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	GitHubURL   string `json:"github_url,omitempty"`
}

// WorkExperience is one position from a résumé.
type WorkExperience struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// Education is one education entry from a résumé.
type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

// Handles are the profile usernames discovered for a candidate.
type Handles struct {
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Source   string `json:"source,omitempty"`
}

// SearchResult is one organic web search hit.
type SearchResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
	Position int    `json:"position"`
}

// LinkedInProfile is the formatted professional-network profile.
type LinkedInProfile struct {
	ID          string           `json:"id,omitempty"`
	Username    string           `json:"username"`
	FullName    string           `json:"full_name"`
	Headline    string           `json:"headline,omitempty"`
	Location    string           `json:"location,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Educations  []Education      `json:"educations,omitempty"`
	Experiences []WorkExperience `json:"experiences,omitempty"`
	Skills      []string         `json:"skills,omitempty"`
}

// GitHubActivity is the code-repository summary and rating.
type GitHubActivity struct {
	Username      string   `json:"username"`
	Followers     int      `json:"followers"`
	PublicRepos   int      `json:"public_repos"`
	TotalStars    int      `json:"total_stars"`
	Contributions int      `json:"contributions"`
	TopLanguages  []string `json:"top_languages,omitempty"`
	Score         int      `json:"score"`
	Rating        string   `json:"rating"`
}

// Profile is the synthesized candidate profile.
type Profile struct {
	TechnicalScore  float64         `json:"technical_score"`
	ExperienceScore float64         `json:"experience_score"`
	GitHubScore     float64         `json:"github_score"`
	OverallScore    float64         `json:"overall_score"`
	Passed          bool            `json:"passed"`
	MatchedSkills   []string        `json:"matched_skills"`
	MissingSkills   []string        `json:"missing_skills"`
	GitHub          *GitHubActivity `json:"github_activity,omitempty"`
	OnlinePresence  []SearchResult  `json:"online_presence,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Job is an opening candidates apply to.
type Job struct {
	ID                 string    `json:"id" yaml:"id"`
	Title              string    `json:"title" yaml:"title"`
	Description        string    `json:"description,omitempty" yaml:"description"`
	RequiredSkills     []string  `json:"required_skills" yaml:"required_skills"`
	MinYearsExperience float64   `json:"min_years_experience" yaml:"min_years_experience"`
	MaxYearsExperience *float64  `json:"max_years_experience,omitempty" yaml:"max_years_experience"`
	CreatedAt          time.Time `json:"created_at" yaml:"-"`
}
