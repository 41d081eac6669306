package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/config"
	"github.com/sells-group/candidate-profiler/internal/documents"
	"github.com/sells-group/candidate-profiler/internal/events"
	"github.com/sells-group/candidate-profiler/internal/pipeline"
	"github.com/sells-group/candidate-profiler/internal/resilience"
	"github.com/sells-group/candidate-profiler/internal/resume"
	"github.com/sells-group/candidate-profiler/internal/stages"
	"github.com/sells-group/candidate-profiler/internal/status"
	"github.com/sells-group/candidate-profiler/internal/store"
	"github.com/sells-group/candidate-profiler/pkg/github"
	"github.com/sells-group/candidate-profiler/pkg/linkedin"
	"github.com/sells-group/candidate-profiler/pkg/serper"
)

// Breaker settings shared by the outbound API clients.
const (
	breakerThreshold = 5
	breakerCooldown  = time.Minute
)

// pipelineEnv holds the store, publisher, registry and supervised runtimes
// needed by the serve and run commands.
type pipelineEnv struct {
	Store      store.Store
	Publisher  events.Publisher
	Registry   *status.Registry
	Supervisor *pipeline.Supervisor
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Publisher != nil {
		if err := pe.Publisher.Close(); err != nil {
			zap.L().Warn("close event publisher", zap.Error(err))
		}
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// stageBuilder constructs the stage behind one runtime.
type stageBuilder func(ctx context.Context, deps stages.Deps) (pipeline.Stage[candidate.Candidate, stages.Result], error)

type stageEntry struct {
	name  string
	cfg   func(*config.Config) config.StageConfig
	build stageBuilder
}

// stageTable lists the runtimes in pipeline order.
func stageTable() []stageEntry {
	return []stageEntry{
		{"text_extraction", func(c *config.Config) config.StageConfig { return c.Pipelines.TextExtraction }, buildTextExtraction},
		{"google_scraping", func(c *config.Config) config.StageConfig { return c.Pipelines.GoogleScraping }, buildWebSearch},
		{"linkedin_scraping", func(c *config.Config) config.StageConfig { return c.Pipelines.LinkedInScraping }, buildLinkedIn},
		{"github_scraping", func(c *config.Config) config.StageConfig { return c.Pipelines.GitHubScraping }, buildGitHub},
		{"profile_creation", func(c *config.Config) config.StageConfig { return c.Pipelines.ProfileCreation }, buildProfile},
	}
}

// stageNames returns every pipeline name in order.
func stageNames() []string {
	var names []string
	for _, e := range stageTable() {
		names = append(names, e.name)
	}
	return names
}

func descriptorFor(name string, sc config.StageConfig) pipeline.Descriptor {
	return pipeline.Descriptor{
		Name:            name,
		BatchSize:       sc.BatchSize,
		ProcessInterval: time.Duration(sc.ProcessIntervalSecs) * time.Second,
		IdleBackoff:     time.Duration(sc.IdleBackoffSecs) * time.Second,
	}
}

// initPipeline opens the store and builds runtimes. With only set, exactly
// those stages are built whether or not they are enabled; otherwise every
// enabled stage is. Callers should defer env.Close().
func initPipeline(ctx context.Context, only ...string) (*pipelineEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{
		Store:      st,
		Publisher:  events.NewPublisher(cfg.Kafka),
		Registry:   status.NewRegistry(),
		Supervisor: pipeline.NewSupervisor(),
	}
	if err := registerStages(ctx, env, only); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func registerStages(ctx context.Context, env *pipelineEnv, only []string) error {
	known := make(map[string]bool)
	for _, n := range stageNames() {
		known[n] = true
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		if !known[n] {
			return eris.Wrapf(pipeline.ErrUnknownPipeline, "%q (known: %s)", n, strings.Join(stageNames(), ", "))
		}
		want[n] = true
	}

	deps := stages.Deps{
		Store:     env.Store,
		Publisher: env.Publisher,
		Lease:     cfg.Store.ClaimLease(),
	}

	for _, e := range stageTable() {
		sc := e.cfg(cfg)
		switch {
		case len(want) > 0 && !want[e.name]:
			continue
		case len(want) == 0 && !sc.Enabled:
			zap.L().Info("pipeline disabled", zap.String("pipeline", e.name))
			continue
		}

		stage, err := e.build(ctx, deps)
		if err != nil {
			return eris.Wrapf(err, "build %s", e.name)
		}
		rt, err := pipeline.NewRuntime(descriptorFor(e.name, sc), stage, env.Registry)
		if err != nil {
			return err
		}
		if err := env.Supervisor.Register(rt); err != nil {
			return err
		}
	}
	return nil
}

func buildTextExtraction(ctx context.Context, deps stages.Deps) (pipeline.Stage[candidate.Candidate, stages.Result], error) {
	docs, err := documents.NewSource(ctx, cfg.Documents)
	if err != nil {
		return nil, err
	}
	parser, err := resume.NewParser(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	return stages.NewTextExtraction(deps, docs, resume.NewFileExtractor(cfg.Resume), parser)
}

func buildWebSearch(_ context.Context, deps stages.Deps) (pipeline.Stage[candidate.Candidate, stages.Result], error) {
	if cfg.Serper.Key == "" {
		return nil, eris.New("serper.key is required")
	}
	client := serper.NewClient(cfg.Serper.Key,
		serper.WithBaseURL(cfg.Serper.BaseURL),
		serper.WithMinInterval(time.Duration(cfg.Serper.SearchDelayMs)*time.Millisecond),
		serper.WithRetryPolicy(resilience.PolicyFromConfig(cfg.Retry)),
		serper.WithBreaker(resilience.NewBreaker("serper", breakerThreshold, breakerCooldown)),
	)
	return stages.NewWebSearch(deps, client, cfg.Serper.MaxResults)
}

func buildLinkedIn(_ context.Context, deps stages.Deps) (pipeline.Stage[candidate.Candidate, stages.Result], error) {
	if cfg.LinkedIn.RapidAPIKey == "" {
		return nil, eris.New("linkedin.rapidapi_key is required")
	}
	client := linkedin.NewClient(cfg.LinkedIn.RapidAPIKey,
		linkedin.WithBaseURL(cfg.LinkedIn.BaseURL),
		linkedin.WithHost(cfg.LinkedIn.Host),
		linkedin.WithRetryPolicy(resilience.PolicyFromConfig(cfg.Retry)),
		linkedin.WithBreaker(resilience.NewBreaker("linkedin", breakerThreshold, breakerCooldown)),
	)
	return stages.NewLinkedInLookup(deps, client)
}

func buildGitHub(_ context.Context, deps stages.Deps) (pipeline.Stage[candidate.Candidate, stages.Result], error) {
	if cfg.GitHub.Token == "" {
		zap.L().Warn("github.token not set, using unauthenticated rate limits")
	}
	client := github.NewClient(cfg.GitHub.Token,
		github.WithBaseURL(cfg.GitHub.BaseURL),
		github.WithRetryPolicy(resilience.PolicyFromConfig(cfg.Retry)),
		github.WithBreaker(resilience.NewBreaker("github", breakerThreshold, breakerCooldown)),
	)
	return stages.NewGitHubLookup(deps, client, cfg.GitHub.MaxRepos)
}

func buildProfile(_ context.Context, deps stages.Deps) (pipeline.Stage[candidate.Candidate, stages.Result], error) {
	return stages.NewProfileBuilder(deps, cfg.Profile)
}
