package async

import (
	"database/sql"

	"github.com/teranos/reportcopilot/errors"
)

// JobScanArgs holds the nullable columns scanned alongside a job row
type JobScanArgs struct {
	Request     string
	ErrorMsg    sql.NullString
	RetryOf     sql.NullString
	StartedAt   sql.NullTime
	CompletedAt sql.NullTime
}

// GetJobScanTargets returns pointers for the job and scan args, in the order
// of StandardJobSelectColumns
func GetJobScanTargets(job *Job, args *JobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.Template,
		&job.ClientID,
		&job.Status,
		&job.Stage,
		&job.ProgressPct,
		&args.ErrorMsg,
		&job.CancellationRequested,
		&args.Request,
		&args.RetryOf,
		&job.CreatedAt,
		&job.UpdatedAt,
		&args.StartedAt,
		&args.CompletedAt,
	}
}

// ProcessJobScanArgs copies the scanned nullable values into job
func ProcessJobScanArgs(job *Job, args *JobScanArgs) error {
	req, err := UnmarshalRequest(args.Request)
	if err != nil {
		return errors.Wrapf(err, "job %s", job.ID)
	}
	job.Request = req

	if args.ErrorMsg.Valid {
		job.Error = args.ErrorMsg.String
	}
	if args.RetryOf.Valid {
		job.RetryOf = args.RetryOf.String
	}
	if args.StartedAt.Valid {
		t := args.StartedAt.Time
		job.StartedAt = &t
	}
	if args.CompletedAt.Valid {
		t := args.CompletedAt.Time
		job.CompletedAt = &t
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanJob scans one job from a row
func scanJob(row rowScanner) (*Job, error) {
	var job Job
	args := &JobScanArgs{}
	if err := row.Scan(GetJobScanTargets(&job, args)...); err != nil {
		return nil, err
	}
	if err := ProcessJobScanArgs(&job, args); err != nil {
		return nil, err
	}
	return &job, nil
}

// StandardJobSelectColumns returns the column list for job SELECT queries
func StandardJobSelectColumns() string {
	return `id, template, client_id, status,
		stage, progress_pct, error,
		cancellation_requested, request, retry_of,
		created_at, updated_at, started_at, completed_at`
}
