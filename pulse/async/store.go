package async

import (
	"database/sql"
	"time"

	"github.com/teranos/reportcopilot/errors"
)

// Store handles persistence of report jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(job *Job) error {
	request, err := MarshalRequest(job.Request)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO report_jobs (
			id, template, client_id, status,
			stage, progress_pct, error,
			cancellation_requested, request, retry_of,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		job.ID,
		job.Template,
		job.ClientID,
		job.Status,
		job.Stage,
		job.ProgressPct,
		nullString(job.Error),
		job.CancellationRequested,
		request,
		nullString(job.RetryOf),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}
	return nil
}

// GetJob retrieves a job by ID. A missing job returns an error matching errors.ErrNotFound.
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + ` FROM report_jobs WHERE id = ?`

	job, err := scanJob(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return job, nil
}

// UpdateJob writes the mutable fields of job
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE report_jobs
		SET status = ?,
		    stage = ?,
		    progress_pct = ?,
		    error = ?,
		    cancellation_requested = ?,
		    started_at = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
	`

	res, err := s.db.Exec(query,
		job.Status,
		job.Stage,
		job.ProgressPct,
		nullString(job.Error),
		job.CancellationRequested,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update job")
	}
	return requireOne(res, job.ID)
}

// ListJobs returns the newest jobs, optionally filtered by status
func (s *Store) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	var query string
	var args []interface{}

	baseQuery := `SELECT ` + StandardJobSelectColumns() + ` FROM report_jobs`
	if status != nil {
		query = baseQuery + ` WHERE status = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`
		args = []interface{}{*status, limit}
	} else {
		query = baseQuery + ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}
	return jobs, nil
}

// UpdateStage records pipeline progress for a running job
func (s *Store) UpdateStage(id, stage string, pct int) error {
	res, err := s.db.Exec(`
		UPDATE report_jobs
		SET stage = ?, progress_pct = ?, updated_at = ?
		WHERE id = ?`,
		stage, clampProgress(pct), time.Now().UTC(), id)
	if err != nil {
		return errors.Wrapf(err, "failed to update stage of job %s", id)
	}
	return requireOne(res, id)
}

// RequestCancel flags an unfinished job for cancellation. It returns false
// when the job had already finished and nothing was changed.
func (s *Store) RequestCancel(id string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE report_jobs
		SET cancellation_requested = 1, stage = ?, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'running')`,
		StageCancelRequested, time.Now().UTC(), id)
	if err != nil {
		return false, errors.Wrapf(err, "failed to request cancellation of job %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	if n == 1 {
		return true, nil
	}
	if _, err := s.GetJob(id); err != nil {
		return false, err
	}
	return false, nil
}

// CancelQueued moves a job that no worker has claimed straight to canceled.
// It returns false when the job was not queued.
func (s *Store) CancelQueued(id string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE report_jobs
		SET status = 'canceled', stage = ?, progress_pct = 100, error = ?,
		    cancellation_requested = 1, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'queued'`,
		StageCanceled, CanceledBeforeStart, now, now, id)
	if err != nil {
		return false, errors.Wrapf(err, "failed to cancel job %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return n == 1, nil
}

// IsCancellationRequested reads the cancellation flag of a job
func (s *Store) IsCancellationRequested(id string) (bool, error) {
	var requested bool
	err := s.db.QueryRow(`SELECT cancellation_requested FROM report_jobs WHERE id = ?`, id).Scan(&requested)
	if errors.Is(err, sql.ErrNoRows) {
		return false, errors.NewNotFoundError("job not found: %s", id)
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to read cancellation flag of job %s", id)
	}
	return requested, nil
}

// ClaimNext moves the oldest queued job to running and returns it, or nil
// when the queue is empty
func (s *Store) ClaimNext() (*Job, error) {
	for {
		var id string
		err := s.db.QueryRow(`
			SELECT id FROM report_jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC, rowid ASC
			LIMIT 1`).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to find queued job")
		}

		job, err := s.Claim(id)
		if err != nil || job != nil {
			return job, err
		}
		// Another worker won the race, look again
	}
}

// Claim moves one queued job to running. It returns nil when the job is no
// longer queued. The conditional UPDATE makes the claim safe against other
// workers racing for the same row.
func (s *Store) Claim(id string) (*Job, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE report_jobs
		SET status = 'running', stage = ?, progress_pct = ?, error = NULL,
		    started_at = ?, updated_at = ?
		WHERE id = ? AND status = 'queued'`,
		StageStarting, startingProgress, now, now, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to claim job %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetJob(id)
}

// SubmittedSince returns the creation times of a client's jobs at or after since, oldest first
func (s *Store) SubmittedSince(clientID string, since time.Time) ([]time.Time, error) {
	rows, err := s.db.Query(`
		SELECT created_at FROM report_jobs
		WHERE client_id = ? AND created_at >= ?
		ORDER BY created_at ASC`, clientID, since.UTC())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list submissions of %s", clientID)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, errors.Wrap(err, "failed to scan submission time")
		}
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "error iterating submissions")
}

// RequeueOrphaned returns jobs left running by a dead process to the queue
func (s *Store) RequeueOrphaned() (int, error) {
	res, err := s.db.Exec(`
		UPDATE report_jobs
		SET status = 'queued', stage = ?, progress_pct = 0, error = NULL,
		    started_at = NULL, updated_at = ?
		WHERE status = 'running'`,
		StageQueued, time.Now().UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to requeue orphaned jobs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(n), nil
}

// DeleteFinishedBefore removes finished jobs last updated before cutoff
func (s *Store) DeleteFinishedBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM report_jobs
		WHERE status IN ('done', 'failed', 'canceled')
		  AND updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete finished jobs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(n), nil
}

func requireOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("job not found: %s", id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
