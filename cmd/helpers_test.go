package main

import (
	"path/filepath"
	"testing"

	"github.com/sells-group/candidate-profiler/internal/config"
)

// useTestConfig installs a config with a temp SQLite store and every
// pipeline disabled.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	stage := config.StageConfig{BatchSize: 5, ProcessIntervalSecs: 60, IdleBackoffSecs: 30}
	c := &config.Config{
		Store: config.StoreConfig{
			Driver:         "sqlite",
			DatabaseURL:    filepath.Join(dir, "profiler.db"),
			ClaimLeaseSecs: 60,
		},
		Server: config.ServerConfig{StopTimeoutSecs: 1, StreamIntervalMs: 50},
		Pipelines: config.PipelinesConfig{
			TextExtraction:   stage,
			GoogleScraping:   stage,
			LinkedInScraping: stage,
			GitHubScraping:   stage,
			ProfileCreation:  stage,
		},
		Documents: config.DocumentsConfig{Backend: "local", Dir: filepath.Join(dir, "resumes")},
		Profile: config.ProfileConfig{
			TechnicalWeight:  0.4,
			ExperienceWeight: 0.35,
			GitHubWeight:     0.25,
			MinPassingScore:  70,
		},
	}
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return c
}
