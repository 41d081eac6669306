package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/documents"
	"github.com/sells-group/candidate-profiler/internal/events"
	"github.com/sells-group/candidate-profiler/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJobFile(t *testing.T) {
	path := writeFile(t, "job.yaml", `
id: backend-1
title: Backend Engineer
description: Services in Go
required_skills: [Go, PostgreSQL, Kafka]
min_years_experience: 3
max_years_experience: 8
`)
	job, err := loadJobFile(path)
	require.NoError(t, err)
	assert.Equal(t, "backend-1", job.ID)
	assert.Equal(t, []string{"Go", "PostgreSQL", "Kafka"}, job.RequiredSkills)
	assert.InDelta(t, 3.0, job.MinYearsExperience, 0.001)
	require.NotNil(t, job.MaxYearsExperience)
	assert.InDelta(t, 8.0, *job.MaxYearsExperience, 0.001)
}

func TestLoadJobFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing id", "title: Engineer\n"},
		{"bad yaml", "id: [unclosed\n"},
		{"max below min", "id: j\ntitle: t\nmin_years_experience: 5\nmax_years_experience: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadJobFile(writeFile(t, "job.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	_, err := loadJobFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAddCandidate_UploadsResume(t *testing.T) {
	c := useTestConfig(t)
	ctx := context.Background()
	st, err := openStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.UpsertJob(ctx, &candidate.Job{ID: "job-1", Title: "Engineer"}))
	docs := documents.NewLocalSource(c.Documents.Dir)
	resumePath := writeFile(t, "ada.txt", "Ada Lovelace")

	cand := &candidate.Candidate{JobID: "job-1", Name: "Ada Lovelace", Email: "ada@example.com"}
	require.NoError(t, addCandidate(ctx, st, docs, cand, resumePath))

	assert.Equal(t, cand.ID+"/ada.txt", cand.ResumePath)
	data, err := docs.Read(ctx, cand.ResumePath)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", string(data))

	got, err := st.GetCandidate(ctx, cand.ID)
	require.NoError(t, err)
	assert.Equal(t, candidate.ExtractText, got.State)
	assert.Equal(t, candidate.Applied, got.Status)
}

func TestAddCandidate_Validation(t *testing.T) {
	useTestConfig(t)
	ctx := context.Background()
	st, err := openStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	err = addCandidate(ctx, st, nil, &candidate.Candidate{Name: " "}, "")
	assert.Error(t, err)

	err = addCandidate(ctx, st, nil, &candidate.Candidate{Name: "Ada", JobID: "nope"}, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWriteCounts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCounts(&buf, map[candidate.State]int{
		candidate.ProfileCreated:    3,
		candidate.ExtractText:       2,
		candidate.ExtractTextFailed: 0,
	}))
	out := buf.String()
	assert.Contains(t, out, "extract_text ")
	assert.NotContains(t, out, "extract_text_failed")
	assert.Contains(t, out, "total")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("extract_text")), bytes.Index(buf.Bytes(), []byte("profile_created")))
}

func TestWriteCandidateTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCandidateTable(&buf, []candidate.Candidate{
		{ID: "c1", Name: "Ada", State: candidate.GitHubScrape, Status: candidate.Applied},
	}))
	assert.Contains(t, buf.String(), "ID")
	assert.Contains(t, buf.String(), "github_scrape")
}

func TestFormatEvent(t *testing.T) {
	ev := events.Event{
		CandidateID: "c1",
		Stage:       "linkedin_scrape",
		Outcome:     "failure",
		From:        "linkedin_scrape",
		To:          "github_scrape",
		Error:       "linkedin: 429",
		At:          time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	assert.Equal(t, "09:30:00  c1  linkedin_scrape: linkedin_scrape -> github_scrape (failure)  error=linkedin: 429", formatEvent(ev))
}
