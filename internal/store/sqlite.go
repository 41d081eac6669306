package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/candidate-profiler/internal/candidate"
)

// SQLiteStore implements Store using modernc.org/sqlite. Lease expiry is
// stored as unix milliseconds so it compares numerically.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	required_skills      TEXT NOT NULL DEFAULT '[]',
	min_years_experience REAL NOT NULL DEFAULT 0,
	max_years_experience REAL,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
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
	enrichment      TEXT NOT NULL DEFAULT '{}',
	claimed_by      TEXT NOT NULL DEFAULT '',
	claimed_until   INTEGER,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_candidates_pipeline_status ON candidates(pipeline_status, created_at);
CREATE INDEX IF NOT EXISTS idx_candidates_job_id ON candidates(job_id);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteCandidateColumns = `id, job_id, name, email, phone, resume_path, status, pipeline_status, last_error, enrichment, claimed_by, claimed_until, created_at, updated_at`

// CreateCandidate inserts c, filling its ID, defaults and timestamps.
func (s *SQLiteStore) CreateCandidate(ctx context.Context, c *candidate.Candidate) error {
	prepareCandidate(c, uuid.NewString, s.now())
	enrichment, err := json.Marshal(c.Enrichment)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal enrichment")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO candidates (id, job_id, name, email, phone, resume_path, status, pipeline_status, enrichment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.JobID, c.Name, c.Email, c.Phone, c.ResumePath, string(c.Status), string(c.State), string(enrichment), c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: create candidate %s", c.ID)
}

// GetCandidate loads one candidate.
func (s *SQLiteStore) GetCandidate(ctx context.Context, id string) (*candidate.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteCandidateColumns+` FROM candidates WHERE id = ?`, id)
	c, err := scanSQLiteCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: candidate %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get candidate %s", id)
	}
	return c, nil
}

// ListCandidates returns candidates matching filter, newest first.
func (s *SQLiteStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]candidate.Candidate, error) {
	query := `SELECT ` + sqliteCandidateColumns + ` FROM candidates WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND pipeline_status = ?`
		args = append(args, string(filter.State))
	}
	if filter.JobID != "" {
		query += ` AND job_id = ?`
		args = append(args, filter.JobID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.limit(), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	return collectSQLiteCandidates(rows)
}

// CountByState returns the number of candidates in each enrichment state.
func (s *SQLiteStore) CountByState(ctx context.Context) (map[candidate.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pipeline_status, count(*) FROM candidates GROUP BY pipeline_status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by state")
	}
	defer rows.Close()

	out := make(map[candidate.State]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		out[candidate.State(st)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count rows")
}

// ClaimBatch leases waiting candidates. The UPDATE takes SQLite's write
// lock, so two claimers never receive the same row; the claimed rows are
// read back by their lease marker inside the same transaction.
func (s *SQLiteStore) ClaimBatch(ctx context.Context, state candidate.State, limit int, owner string, lease time.Duration) ([]candidate.Candidate, error) {
	now := s.now()
	until := now.Add(lease).UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin claim")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`UPDATE candidates
		 SET claimed_by = ?, claimed_until = ?, updated_at = ?
		 WHERE id IN (
			SELECT id FROM candidates
			WHERE pipeline_status = ? AND (claimed_until IS NULL OR claimed_until < ?)
			ORDER BY created_at
			LIMIT ?
		 )`,
		owner, until, now, string(state), now.UnixMilli(), limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: claim %s", state)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+sqliteCandidateColumns+` FROM candidates
		 WHERE pipeline_status = ? AND claimed_by = ? AND claimed_until = ?
		 ORDER BY created_at`,
		string(state), owner, until,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read claimed %s", state)
	}
	claimed, err := collectSQLiteCandidates(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit claim")
	}
	return claimed, nil
}

// Advance applies a conditional state transition.
func (s *SQLiteStore) Advance(ctx context.Context, t Transition) error {
	patch, err := patchJSON(t.Patch)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates
		 SET pipeline_status = ?, enrichment = json_patch(enrichment, ?), status = COALESCE(NULLIF(?, ''), status),
		     last_error = ?, claimed_by = '', claimed_until = NULL, updated_at = ?
		 WHERE id = ? AND pipeline_status = ?`,
		string(t.To), string(patch), string(t.Status), t.Error, s.now(), t.ID, string(t.From),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: advance candidate %s", t.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT pipeline_status FROM candidates WHERE id = ?`, t.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: candidate %s", t.ID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: recheck candidate %s", t.ID)
	}
	return eris.Wrapf(ErrStaleState, "sqlite: candidate %s is %s, expected %s", t.ID, current, t.From)
}

// Release drops owner's lease on a candidate.
func (s *SQLiteStore) Release(ctx context.Context, id, owner string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET claimed_by = '', claimed_until = NULL WHERE id = ? AND claimed_by = ?`,
		id, owner,
	)
	return eris.Wrapf(err, "sqlite: release candidate %s", id)
}

// Retry moves a failed candidate back to the stage it failed in.
func (s *SQLiteStore) Retry(ctx context.Context, id string) (candidate.State, error) {
	c, err := s.GetCandidate(ctx, id)
	if err != nil {
		return "", err
	}
	target, err := retryTarget(c.State)
	if err != nil {
		return "", err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET pipeline_status = ?, last_error = '', claimed_by = '', claimed_until = NULL, updated_at = ?
		 WHERE id = ? AND pipeline_status = ?`,
		string(target), s.now(), id, string(c.State),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: retry candidate %s", id)
	}
	if err := checkRowsAffected(res, "candidate", id); err != nil {
		return "", eris.Wrap(ErrStaleState, err.Error())
	}
	return target, nil
}

// UpsertJob inserts or replaces a job.
func (s *SQLiteStore) UpsertJob(ctx context.Context, j *candidate.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = s.now()
	}
	skills, err := json.Marshal(nonNil(j.RequiredSkills))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal skills")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, title, description, required_skills, min_years_experience, max_years_experience, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			required_skills = excluded.required_skills,
			min_years_experience = excluded.min_years_experience,
			max_years_experience = excluded.max_years_experience`,
		j.ID, j.Title, j.Description, string(skills), j.MinYearsExperience, j.MaxYearsExperience, j.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert job %s", j.ID)
}

// GetJob loads one job.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*candidate.Job, error) {
	var j candidate.Job
	var skills string
	var maxYears sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, required_skills, min_years_experience, max_years_experience, created_at FROM jobs WHERE id = ?`,
		id,
	).Scan(&j.ID, &j.Title, &j.Description, &skills, &j.MinYearsExperience, &maxYears, &j.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	if maxYears.Valid {
		v := maxYears.Float64
		j.MaxYearsExperience = &v
	}
	if err := json.Unmarshal([]byte(skills), &j.RequiredSkills); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal skills")
	}
	return &j, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not updated: %s", entity, id)
	}
	return nil
}

func scanSQLiteCandidate(row scannable) (*candidate.Candidate, error) {
	var c candidate.Candidate
	var status, state, enrichment string
	var claimedUntil sql.NullInt64

	err := row.Scan(&c.ID, &c.JobID, &c.Name, &c.Email, &c.Phone, &c.ResumePath, &status, &state,
		&c.LastError, &enrichment, &c.ClaimedBy, &claimedUntil, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = candidate.Status(status)
	c.State = candidate.State(state)
	if claimedUntil.Valid {
		t := time.UnixMilli(claimedUntil.Int64).UTC()
		c.ClaimedUntil = &t
	}
	if enrichment != "" {
		if err := json.Unmarshal([]byte(enrichment), &c.Enrichment); err != nil {
			return nil, eris.Wrapf(err, "unmarshal enrichment for %s", c.ID)
		}
	}
	return &c, nil
}

func collectSQLiteCandidates(rows *sql.Rows) ([]candidate.Candidate, error) {
	defer rows.Close()

	var out []candidate.Candidate
	for rows.Next() {
		c, err := scanSQLiteCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate candidates")
}
