package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/db"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres and returns a store.
func NewPostgres(ctx context.Context, connString string, cfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	required_skills      JSONB NOT NULL DEFAULT '[]',
	min_years_experience DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_years_experience DOUBLE PRECISION,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS candidates (
	id              TEXT PRIMARY KEY,
	job_id          TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL,
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	resume_path     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'applied',
	pipeline_status TEXT NOT NULL DEFAULT 'extract_text',
	last_error      TEXT NOT NULL DEFAULT '',
	enrichment      JSONB NOT NULL DEFAULT '{}',
	claimed_by      TEXT NOT NULL DEFAULT '',
	claimed_until   TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_candidates_pipeline_status ON candidates(pipeline_status, created_at);
CREATE INDEX IF NOT EXISTS idx_candidates_job_id ON candidates(job_id);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const candidateColumns = `id, job_id, name, email, phone, resume_path, status, pipeline_status, last_error, enrichment, claimed_by, claimed_until, created_at, updated_at`

// CreateCandidate inserts c, filling its ID, defaults and timestamps.
func (s *PostgresStore) CreateCandidate(ctx context.Context, c *candidate.Candidate) error {
	prepareCandidate(c, uuid.NewString, time.Now().UTC())
	enrichment, err := json.Marshal(c.Enrichment)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal enrichment")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO candidates (id, job_id, name, email, phone, resume_path, status, pipeline_status, enrichment, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.JobID, c.Name, c.Email, c.Phone, c.ResumePath, string(c.Status), string(c.State), enrichment, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: create candidate %s", c.ID)
}

// GetCandidate loads one candidate.
func (s *PostgresStore) GetCandidate(ctx context.Context, id string) (*candidate.Candidate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: candidate %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get candidate %s", id)
	}
	return c, nil
}

// ListCandidates returns candidates matching filter, newest first.
func (s *PostgresStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]candidate.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE true`
	args := []any{}
	argIdx := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND pipeline_status = $%d`, argIdx)
		args = append(args, string(filter.State))
		argIdx++
	}
	if filter.JobID != "" {
		query += fmt.Sprintf(` AND job_id = $%d`, argIdx)
		args = append(args, filter.JobID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	return collectCandidates(rows)
}

// CountByState returns the number of candidates in each enrichment state.
func (s *PostgresStore) CountByState(ctx context.Context) (map[candidate.State]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT pipeline_status, count(*) FROM candidates GROUP BY pipeline_status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by state")
	}
	defer rows.Close()

	out := make(map[candidate.State]int)
	for rows.Next() {
		var st string
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		out[candidate.State(st)] = int(n)
	}
	return out, eris.Wrap(rows.Err(), "postgres: count rows")
}

// ClaimBatch leases waiting candidates in a single statement. Concurrent
// claimers skip rows another transaction has locked.
func (s *PostgresStore) ClaimBatch(ctx context.Context, state candidate.State, limit int, owner string, lease time.Duration) ([]candidate.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE candidates
		 SET claimed_by = $1, claimed_until = now() + make_interval(secs => $2), updated_at = now()
		 WHERE id IN (
			SELECT id FROM candidates
			WHERE pipeline_status = $3 AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+candidateColumns,
		owner, lease.Seconds(), string(state), limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: claim %s", state)
	}
	return collectCandidates(rows)
}

// Advance applies a conditional state transition.
func (s *PostgresStore) Advance(ctx context.Context, t Transition) error {
	patch, err := patchJSON(t.Patch)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates
		 SET pipeline_status = $1, enrichment = enrichment || $2::jsonb, status = COALESCE(NULLIF($3, ''), status),
		     last_error = $4, claimed_by = '', claimed_until = NULL, updated_at = now()
		 WHERE id = $5 AND pipeline_status = $6`,
		string(t.To), patch, string(t.Status), t.Error, t.ID, string(t.From),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: advance candidate %s", t.ID)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = s.pool.QueryRow(ctx, `SELECT pipeline_status FROM candidates WHERE id = $1`, t.ID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "postgres: candidate %s", t.ID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: recheck candidate %s", t.ID)
	}
	return eris.Wrapf(ErrStaleState, "postgres: candidate %s is %s, expected %s", t.ID, current, t.From)
}

// Release drops owner's lease on a candidate.
func (s *PostgresStore) Release(ctx context.Context, id, owner string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE candidates SET claimed_by = '', claimed_until = NULL WHERE id = $1 AND claimed_by = $2`,
		id, owner,
	)
	return eris.Wrapf(err, "postgres: release candidate %s", id)
}

// Retry moves a failed candidate back to the stage it failed in.
func (s *PostgresStore) Retry(ctx context.Context, id string) (candidate.State, error) {
	var target candidate.State
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT pipeline_status FROM candidates WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "postgres: candidate %s", id)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: lock candidate %s", id)
		}

		target, err = retryTarget(candidate.State(current))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE candidates SET pipeline_status = $1, last_error = '', claimed_by = '', claimed_until = NULL, updated_at = now() WHERE id = $2`,
			string(target), id,
		)
		return eris.Wrapf(err, "postgres: retry candidate %s", id)
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// UpsertJob inserts or replaces a job.
func (s *PostgresStore) UpsertJob(ctx context.Context, j *candidate.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	skills, err := json.Marshal(nonNil(j.RequiredSkills))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal skills")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, title, description, required_skills, min_years_experience, max_years_experience, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			required_skills = EXCLUDED.required_skills,
			min_years_experience = EXCLUDED.min_years_experience,
			max_years_experience = EXCLUDED.max_years_experience`,
		j.ID, j.Title, j.Description, skills, j.MinYearsExperience, j.MaxYearsExperience, j.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert job %s", j.ID)
}

// GetJob loads one job.
func (s *PostgresStore) GetJob(ctx context.Context, id string) (*candidate.Job, error) {
	var j candidate.Job
	var skills []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, required_skills, min_years_experience, max_years_experience, created_at FROM jobs WHERE id = $1`,
		id,
	).Scan(&j.ID, &j.Title, &j.Description, &skills, &j.MinYearsExperience, &j.MaxYearsExperience, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	if err := json.Unmarshal(skills, &j.RequiredSkills); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal skills")
	}
	return &j, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCandidate(row scannable) (*candidate.Candidate, error) {
	var c candidate.Candidate
	var status, state string
	var enrichment []byte

	err := row.Scan(&c.ID, &c.JobID, &c.Name, &c.Email, &c.Phone, &c.ResumePath, &status, &state,
		&c.LastError, &enrichment, &c.ClaimedBy, &c.ClaimedUntil, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = candidate.Status(status)
	c.State = candidate.State(state)
	if len(enrichment) > 0 {
		if err := json.Unmarshal(enrichment, &c.Enrichment); err != nil {
			return nil, eris.Wrapf(err, "unmarshal enrichment for %s", c.ID)
		}
	}
	return &c, nil
}

func collectCandidates(rows pgx.Rows) ([]candidate.Candidate, error) {
	defer rows.Close()

	var out []candidate.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate candidates")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
