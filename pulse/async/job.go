// Package async provides the report job queue: job records persisted to
// SQLite, a runner that executes one pipeline per job, and a worker pool.
package async

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/reportcopilot/errors"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusDone     JobStatus = "done"
	JobStatusFailed   JobStatus = "failed"
	JobStatusCanceled JobStatus = "canceled"
)

// Stages that are not pipeline stages
const (
	StageQueued          = "queued"
	StageStarting        = "starting"
	StageCancelRequested = "cancel_requested"
	StageDone            = "done"
	StageFailed          = "failed"
	StageCanceled        = "canceled"
)

// startingProgress is the percentage shown once a worker picks up a job
const startingProgress = 5

// CanceledBeforeStart is the error recorded for a job canceled while still queued
const CanceledBeforeStart = "Canceled by user."

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusRunning, JobStatusDone,
		JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no worker will touch a job in this status again
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed || s == JobStatusCanceled
}

// Request is the submission a job was created from, stored as JSON so a
// failed or canceled job can be retried with the same inputs
type Request struct {
	Template          string `json:"template"`
	ManualText        string `json:"manual_text"`
	Goal              string `json:"goal"`
	CSVPath           string `json:"csv_path,omitempty"`
	ExtraInstructions string `json:"extra_instructions"`
	IncludeReview     bool   `json:"include_review"`
	ClientID          string `json:"client_id,omitempty"`
}

// HasCSV reports whether the request carries a data file
func (r Request) HasCSV() bool {
	return strings.TrimSpace(r.CSVPath) != ""
}

// Job is one queued report generation
type Job struct {
	ID                    string     `json:"id"`
	Template              string     `json:"template"`
	ClientID              string     `json:"client_id,omitempty"`
	Status                JobStatus  `json:"status"`
	Stage                 string     `json:"stage"`
	ProgressPct           int        `json:"progress_pct"`
	Error                 string     `json:"error,omitempty"`
	CancellationRequested bool       `json:"cancellation_requested"`
	Request               Request    `json:"request"`
	RetryOf               string     `json:"retry_of,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a queued job for req with a fresh UUID
func NewJob(req Request) (*Job, error) {
	if strings.TrimSpace(req.Template) == "" {
		return nil, errors.New("template cannot be empty")
	}

	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		Template:  req.Template,
		ClientID:  req.ClientID,
		Status:    JobStatusQueued,
		Stage:     StageQueued,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Editable reports whether the job's report may be edited, fixed or regenerated
func (j *Job) Editable() bool {
	return j.Status.IsTerminal()
}

// Retryable reports whether the job may be resubmitted
func (j *Job) Retryable() bool {
	return j.Status == JobStatusFailed || j.Status == JobStatusCanceled
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	j.Stage = StageStarting
	j.ProgressPct = startingProgress
	j.Error = ""
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Complete marks the job as done
func (j *Job) Complete() {
	j.finish(JobStatusDone, StageDone, "")
}

// Fail marks the job as failed with an error message
func (j *Job) Fail(msg string) {
	j.finish(JobStatusFailed, StageFailed, msg)
}

// Cancel marks the job as canceled with a reason
func (j *Job) Cancel(reason string) {
	j.finish(JobStatusCanceled, StageCanceled, reason)
}

func (j *Job) finish(status JobStatus, stage, msg string) {
	now := time.Now().UTC()
	j.Status = status
	j.Stage = stage
	j.ProgressPct = 100
	j.Error = msg
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// String renders a job for log lines
func (j *Job) String() string {
	return fmt.Sprintf("%s[%s %s %d%%]", j.ID, j.Status, j.Stage, j.ProgressPct)
}

// clampProgress keeps a percentage within 0..100
func clampProgress(pct int) int {
	return max(0, min(100, pct))
}

// MarshalRequest converts a Request to its stored JSON form
func MarshalRequest(req Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal job request")
	}
	return string(data), nil
}

// UnmarshalRequest converts stored JSON back to a Request
func UnmarshalRequest(data string) (Request, error) {
	var req Request
	if data == "" {
		return req, nil
	}
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return req, errors.Wrap(err, "failed to unmarshal job request")
	}
	return req, nil
}
