package async

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/report/agent"
	"github.com/teranos/reportcopilot/report/artifact"
	"github.com/teranos/reportcopilot/report/pipeline"
	"github.com/teranos/reportcopilot/report/template"
)

// SectionRewriter rewrites one section of a finished report.
// *agent.Agents implements it.
type SectionRewriter interface {
	RegenerateSection(ctx context.Context, jobID string, req agent.SectionRequest) (string, map[string]string, error)
}

// Runner executes report jobs: one pipeline run per job, with progress and
// cancellation routed through the job store and results written as artifacts
type Runner struct {
	store     *Store
	templates *template.Registry
	pipeline  *pipeline.Pipeline
	rewriter  SectionRewriter
	artifacts *artifact.Store
	log       *zap.SugaredLogger
}

// NewRunner wires a runner. agents serves both the pipeline steps and section rewrites.
func NewRunner(store *Store, templates *template.Registry, agents *agent.Agents, artifacts *artifact.Store, log *zap.SugaredLogger) *Runner {
	return NewRunnerWithSteps(store, templates, agents, agents, artifacts, log)
}

// NewRunnerWithSteps wires a runner over explicit step implementations (for testing)
func NewRunnerWithSteps(store *Store, templates *template.Registry, steps pipeline.Steps, rewriter SectionRewriter, artifacts *artifact.Store, log *zap.SugaredLogger) *Runner {
	log = logger.OrNop(log).Named("runner")
	return &Runner{
		store:     store,
		templates: templates,
		pipeline:  pipeline.New(steps, log),
		rewriter:  rewriter,
		artifacts: artifacts,
		log:       log,
	}
}

// Store returns the job store the runner reports to
func (r *Runner) Store() *Store {
	return r.store
}

// Execute runs a claimed job to a terminal status. The job's outcome is
// recorded in the store; the returned error only reports store failures.
//
// When ctx ends without a user cancellation (worker shutdown) the job is put
// back in the queue instead of being marked canceled or failed, even if the
// step in flight failed because of it.
func (r *Runner) Execute(ctx context.Context, job *Job) error {
	ctx = logger.WithJobID(ctx, job.ID)
	log := logger.FromContext(ctx, r.log).With(logger.FieldTemplate, job.Template)
	log.Infow("Job started", "has_csv", job.Request.HasCSV())

	if job.CancellationRequested {
		job.Cancel(CanceledBeforeStart)
		return r.finish(log, job)
	}
	if job.Status != JobStatusRunning {
		job.Start()
		if err := r.store.UpdateJob(job); err != nil {
			return err
		}
	}

	cfg, err := r.templates.Get(job.Template)
	if err != nil {
		job.Fail(errors.Describe(err))
		return r.finish(log, job)
	}

	dir, err := r.artifacts.Dir(job.ID)
	if err != nil {
		job.Fail(errors.Describe(err))
		return r.finish(log, job)
	}

	req := job.Request
	rec := &artifact.Record{
		Template:               cfg.Key,
		TemplateDisplayName:    cfg.Name(),
		IncludeReviewRequested: req.IncludeReview,
		IncludeReviewEffective: req.IncludeReview && cfg.IncludeReview,
		HasCSV:                 req.HasCSV(),
		ExtraInstructions:      req.ExtraInstructions,
	}

	started := time.Now()
	res, err := r.pipeline.Run(ctx, pipeline.Request{
		JobID:             job.ID,
		ManualText:        req.ManualText,
		Goal:              req.Goal,
		CSVPath:           req.CSVPath,
		ExtraInstructions: req.ExtraInstructions,
		Template:          cfg,
		IncludeReview:     req.IncludeReview,
		Progress: func(stage string, pct int) {
			job.Stage, job.ProgressPct = stage, clampProgress(pct)
			if err := r.store.UpdateStage(job.ID, stage, pct); err != nil {
				log.Warnw("Failed to record stage", logger.FieldStage, stage, logger.FieldError, err)
			}
		},
		ShouldCancel: func() bool { return r.cancelRequested(log, job.ID) },
	})
	rec.PipelineDurationMS = time.Since(started).Milliseconds()
	log = log.With(logger.FieldDurationMS, rec.PipelineDurationMS)

	switch {
	case err == nil:
	case ctx.Err() != nil && !r.cancelRequested(log, job.ID):
		log.Infow("Worker stopping, job returned to queue")
		return r.requeue(job)
	case pipeline.IsCanceled(err) || ctx.Err() != nil:
		job.Cancel(pipeline.CanceledMessage)
		return r.finish(log, job)
	default:
		job.Fail(errors.Describe(err))
		rec.Error = job.Error
		if saveErr := dir.SaveRecord(rec); saveErr != nil {
			log.Warnw("Failed to write result record", logger.FieldError, saveErr)
		}
		return r.finish(log, job)
	}

	rec.Result = res
	if err := dir.Save(rec); err != nil {
		log.Warnw("Failed to write artifacts", logger.FieldPath, dir.Path, logger.FieldError, err)
	}
	log.Infow("Pipeline completed",
		"quality_ok", res.Quality.OK,
		logger.FieldIssues, len(res.Quality.Issues),
		"writes", res.WriteCount(),
	)

	if r.cancelRequested(log, job.ID) {
		job.Cancel(pipeline.CanceledMessage)
		return r.finish(log, job)
	}
	job.Complete()
	return r.finish(log, job)
}

func (r *Runner) cancelRequested(log *zap.SugaredLogger, id string) bool {
	requested, err := r.store.IsCancellationRequested(id)
	if err != nil {
		log.Warnw("Failed to read cancellation flag", logger.FieldError, err)
		return false
	}
	return requested
}

func (r *Runner) requeue(job *Job) error {
	job.Status = JobStatusQueued
	job.Stage = StageQueued
	job.ProgressPct = 0
	job.StartedAt = nil
	job.UpdatedAt = time.Now().UTC()
	return r.store.UpdateJob(job)
}

func (r *Runner) finish(log *zap.SugaredLogger, job *Job) error {
	if err := r.store.UpdateJob(job); err != nil {
		return errors.Wrapf(err, "failed to record %s status of job %s", job.Status, job.ID)
	}
	if job.Status == JobStatusFailed {
		log.Warnw("Job finished", logger.FieldStatus, job.Status, logger.FieldError, job.Error)
	} else {
		log.Infow("Job finished", logger.FieldStatus, job.Status)
	}
	return nil
}
