package stages

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/pkg/github"
)

const topLanguageCount = 5

// GitHubLookup summarizes a candidate's public code activity.
type GitHubLookup struct {
	*Base
	client   github.Client
	maxRepos int
}

// NewGitHubLookup creates the GitHub stage.
func NewGitHubLookup(deps Deps, client github.Client, maxRepos int) (*GitHubLookup, error) {
	base, err := NewBase(candidate.GitHubScrape, deps)
	if err != nil {
		return nil, err
	}
	if maxRepos <= 0 {
		maxRepos = 100
	}
	return &GitHubLookup{Base: base, client: client, maxRepos: maxRepos}, nil
}

// Process loads the user, repositories and recent events and rates them.
func (s *GitHubLookup) Process(ctx context.Context, c candidate.Candidate) (Result, error) {
	if c.Enrichment.Handles == nil || c.Enrichment.Handles.GitHub == "" {
		return Result{}, eris.Wrapf(ErrNoHandle, "github: candidate %s", c.ID)
	}
	username := c.Enrichment.Handles.GitHub

	user, err := s.client.GetUser(ctx, username)
	if err != nil {
		return Result{}, err
	}

	var (
		repos  []github.Repo
		events []github.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		repos, err = s.client.ListRepos(gctx, username, s.maxRepos)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.client.ListEvents(gctx, username)
		if err != nil {
			// Events are best effort; contributions fall back to zero.
			s.log.Warn("github events unavailable", zap.String("username", username), zap.Error(err))
			events = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	activity := SummarizeGitHub(user, repos, events, s.now())
	return Result{
		CandidateID: c.ID,
		Patch:       &candidate.Enrichment{GitHub: activity},
	}, nil
}

// SummarizeGitHub computes the activity summary as of now.
func SummarizeGitHub(user *github.User, repos []github.Repo, events []github.Event, now time.Time) *candidate.GitHubActivity {
	a := &candidate.GitHubActivity{
		Username:    user.Login,
		Followers:   user.Followers,
		PublicRepos: user.PublicRepos,
	}

	langs := map[string]int{}
	for _, r := range repos {
		a.TotalStars += r.StargazersCount
		if !r.Fork && r.Language != "" {
			langs[r.Language]++
		}
	}
	a.TopLanguages = topLanguages(langs, topLanguageCount)

	since := now.AddDate(-1, 0, 0)
	for _, e := range events {
		if e.CreatedAt.After(since) {
			a.Contributions++
		}
	}

	a.Score = GitHubScore(a)
	a.Rating = GitHubRating(a.Score)
	return a
}

// GitHubScore weighs followers, repositories, contributions and stars.
func GitHubScore(a *candidate.GitHubActivity) int {
	return a.Followers + 2*a.PublicRepos + (a.Contributions/100)*5 + 10*a.TotalStars
}

var ratingBands = []struct {
	min    int
	rating string
}{
	{1000, "A+"}, {750, "A"}, {500, "A-"},
	{400, "B+"}, {300, "B"}, {200, "B-"},
	{100, "C+"}, {50, "C"},
}

// GitHubRating maps a score onto a letter grade.
func GitHubRating(score int) string {
	for _, b := range ratingBands {
		if score >= b.min {
			return b.rating
		}
	}
	return "C-"
}

func topLanguages(counts map[string]int, n int) []string {
	out := make([]string, 0, len(counts))
	for l := range counts {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
