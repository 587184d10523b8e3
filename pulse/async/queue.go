package async

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/report/template"
)

// Queue is the submission side of the job store: it validates requests
// before they are queued and applies the cancel and retry rules
type Queue struct {
	store     *Store
	templates *template.Registry
	log       *zap.SugaredLogger
}

// NewQueue creates a queue over store
func NewQueue(store *Store, templates *template.Registry, log *zap.SugaredLogger) *Queue {
	return &Queue{store: store, templates: templates, log: logger.OrNop(log).Named("queue")}
}

// Enqueue validates req and stores it as a queued job. A blank template
// selects the registry default.
func (q *Queue) Enqueue(req Request) (*Job, error) {
	return q.enqueue(req, "")
}

func (q *Queue) enqueue(req Request, retryOf string) (*Job, error) {
	cfg, err := q.templates.Resolve(req.Template)
	if err != nil {
		return nil, errors.WithSecondaryError(errors.NewInvalidRequestError("unknown template '%s'", req.Template), err)
	}
	req.Template = cfg.Key

	info, err := ValidateRequest(req, cfg)
	if err != nil {
		return nil, err
	}

	job, err := NewJob(req)
	if err != nil {
		return nil, err
	}
	job.RetryOf = retryOf

	if err := q.store.CreateJob(job); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Template: %s", job.Template))
		return nil, err
	}

	fields := []interface{}{logger.FieldJobID, job.ID, logger.FieldTemplate, job.Template}
	if req.ClientID != "" {
		fields = append(fields, logger.FieldClientID, req.ClientID)
	}
	if info != nil {
		fields = append(fields, "csv_rows", info.Rows, "numeric_columns", len(info.NumericColumns))
	}
	if retryOf != "" {
		fields = append(fields, "retry_of", retryOf)
	}
	q.log.Infow("Job queued", fields...)
	return job, nil
}

// CancelResult reports what a cancel request did
type CancelResult struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// Cancel stops a job. A queued job is canceled at once; a running job is
// flagged and stops at its next step boundary; a finished job is left alone.
func (q *Queue) Cancel(id string) (*CancelResult, error) {
	canceled, err := q.store.CancelQueued(id)
	if err != nil {
		return nil, err
	}
	if canceled {
		q.log.Infow("Queued job canceled", logger.FieldJobID, id)
		return &CancelResult{JobID: id, Status: JobStatusCanceled, Message: "Job canceled."}, nil
	}

	requested, err := q.store.RequestCancel(id)
	if err != nil {
		return nil, err
	}
	job, err := q.store.GetJob(id)
	if err != nil {
		return nil, err
	}
	if !requested {
		return &CancelResult{JobID: id, Status: job.Status, Message: "Job is already finished."}, nil
	}
	q.log.Infow("Job cancel requested", logger.FieldJobID, id, logger.FieldStatus, job.Status)
	return &CancelResult{JobID: id, Status: job.Status, Message: "Cancellation requested."}, nil
}

// Retry queues a new job with the inputs of a failed or canceled one
func (q *Queue) Retry(id string) (*Job, error) {
	old, err := q.store.GetJob(id)
	if err != nil {
		return nil, err
	}
	if !old.Retryable() {
		return nil, errors.NewInvalidRequestError("Only failed/canceled jobs can be retried (status: %s).", old.Status)
	}
	if old.Request.HasCSV() {
		if _, err := os.Stat(old.Request.CSVPath); err != nil {
			return nil, errors.NewInvalidRequestError("Retry source CSV is missing on disk.")
		}
	}
	return q.enqueue(old.Request, old.ID)
}
