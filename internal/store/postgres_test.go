package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-profiler/internal/candidate"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var candidateCols = []string{
	"id", "job_id", "name", "email", "phone", "resume_path", "status", "pipeline_status",
	"last_error", "enrichment", "claimed_by", "claimed_until", "created_at", "updated_at",
}

func candidateRow(rows *pgxmock.Rows, id string, state candidate.State, enrichment string, claimedBy string, until *time.Time) *pgxmock.Rows {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return rows.AddRow(id, "job-1", "Ada Lovelace", "ada@example.com", "", "resumes/ada.pdf",
		"applied", string(state), "", []byte(enrichment), claimedBy, until, now, now)
}

func TestPostgresStore_CreateCandidate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO candidates`).
		WithArgs(pgxmock.AnyArg(), "job-1", "Ada Lovelace", "ada@example.com", "", "resumes/ada.pdf",
			"applied", "extract_text", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := &candidate.Candidate{JobID: "job-1", Name: "Ada Lovelace", Email: "ada@example.com", ResumePath: "resumes/ada.pdf"}
	require.NoError(t, s.CreateCandidate(context.Background(), c))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, candidate.ExtractText, c.State)
	assert.Equal(t, candidate.Applied, c.Status)
	assert.False(t, c.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCandidate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := candidateRow(pgxmock.NewRows(candidateCols), "c1", candidate.GitHubScrape,
		`{"handles":{"github":"ada"}}`, "", nil)
	mock.ExpectQuery(`SELECT .+ FROM candidates WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(rows)

	c, err := s.GetCandidate(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, candidate.GitHubScrape, c.State)
	require.NotNil(t, c.Enrichment.Handles)
	assert.Equal(t, "ada", c.Enrichment.Handles.GitHub)
	assert.Nil(t, c.ClaimedUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCandidate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM candidates WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetCandidate(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCandidates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(candidateCols)
	candidateRow(rows, "c1", candidate.ProfileCreated, `{}`, "", nil)
	candidateRow(rows, "c2", candidate.ProfileCreated, `{}`, "", nil)
	mock.ExpectQuery(`SELECT .+ FROM candidates WHERE true AND pipeline_status = \$1 AND job_id = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("profile_created", "job-1", 5, 10).
		WillReturnRows(rows)

	out, err := s.ListCandidates(context.Background(), CandidateFilter{
		State: candidate.ProfileCreated, JobID: "job-1", Limit: 5, Offset: 10,
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByState(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT pipeline_status, count\(\*\) FROM candidates GROUP BY pipeline_status`).
		WillReturnRows(pgxmock.NewRows([]string{"pipeline_status", "count"}).
			AddRow("extract_text", int64(4)).
			AddRow("profile_created", int64(9)))

	counts, err := s.CountByState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[candidate.State]int{candidate.ExtractText: 4, candidate.ProfileCreated: 9}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	until := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	rows := candidateRow(pgxmock.NewRows(candidateCols), "c1", candidate.LinkedInScrape, `{}`, "owner-1", &until)
	mock.ExpectQuery(`UPDATE candidates\s+SET claimed_by = \$1.+FOR UPDATE SKIP LOCKED.+RETURNING`).
		WithArgs("owner-1", float64(900), "linkedin_scrape", 10).
		WillReturnRows(rows)

	out, err := s.ClaimBatch(context.Background(), candidate.LinkedInScrape, 10, "owner-1", 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "owner-1", out[0].ClaimedBy)
	require.NotNil(t, out[0].ClaimedUntil)
	assert.Equal(t, until, *out[0].ClaimedUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimBatch_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE candidates`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := s.ClaimBatch(context.Background(), candidate.ExtractText, 10, "o", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim extract_text")
}

func TestPostgresStore_Advance(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE candidates\s+SET pipeline_status = \$1, enrichment = enrichment \|\| \$2::jsonb`).
		WithArgs("github_scrape", []byte(`{"handles":{"github":"ada"}}`), "", "", "c1", "google_scrape").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.Advance(context.Background(), Transition{
		ID:    "c1",
		From:  candidate.GoogleScrape,
		To:    candidate.GitHubScrape,
		Patch: &candidate.Enrichment{Handles: &candidate.Handles{GitHub: "ada"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Advance_Stale(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE candidates`).
		WithArgs("profile_created", []byte(`{}`), "screening", "", "c1", "profile_creation").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT pipeline_status FROM candidates WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"pipeline_status"}).AddRow("profile_created"))

	err := s.Advance(context.Background(), Transition{
		ID: "c1", From: candidate.ProfileCreation, To: candidate.ProfileCreated, Status: candidate.Screening,
	})
	assert.True(t, errors.Is(err, ErrStaleState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Advance_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE candidates`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "gone", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT pipeline_status FROM candidates`).
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)

	err := s.Advance(context.Background(), Transition{ID: "gone", From: candidate.ExtractText, To: candidate.GoogleScrape})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgresStore_Release(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE candidates SET claimed_by = '', claimed_until = NULL WHERE id = \$1 AND claimed_by = \$2`).
		WithArgs("c1", "owner-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Release(context.Background(), "c1", "owner-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Retry(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pipeline_status FROM candidates WHERE id = \$1 FOR UPDATE`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"pipeline_status"}).AddRow("extract_text_failed"))
	mock.ExpectExec(`UPDATE candidates SET pipeline_status = \$1`).
		WithArgs("extract_text", "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	st, err := s.Retry(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, candidate.ExtractText, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Retry_NotFailed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pipeline_status FROM candidates WHERE id = \$1 FOR UPDATE`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"pipeline_status"}).AddRow("github_scrape"))
	mock.ExpectRollback()

	_, err := s.Retry(context.Background(), "c1")
	assert.True(t, errors.Is(err, ErrNotRetryable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertAndGetJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	maxYears := 8.0
	mock.ExpectExec(`INSERT INTO jobs .+ ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("job-1", "Backend Engineer", "", []byte(`["go","postgres"]`), 3.0, &maxYears, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job := &candidate.Job{ID: "job-1", Title: "Backend Engineer", RequiredSkills: []string{"go", "postgres"},
		MinYearsExperience: 3, MaxYearsExperience: &maxYears}
	require.NoError(t, s.UpsertJob(context.Background(), job))

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, title, description, required_skills, min_years_experience, max_years_experience, created_at FROM jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "description", "required_skills", "min", "max", "created_at"}).
			AddRow("job-1", "Backend Engineer", "", []byte(`["go","postgres"]`), 3.0, &maxYears, created))

	got, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "postgres"}, got.RequiredSkills)
	require.NotNil(t, got.MaxYearsExperience)
	assert.InDelta(t, 8.0, *got.MaxYearsExperience, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM jobs WHERE id = \$1`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS jobs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
