// Package pipeline sequences the generation steps of one report job:
// research, data, write, an optional structural repair, optional review and
// figure suggestions, and at most one quality-fix rewrite.
//
// A run is strictly sequential. Cancellation is cooperative: the caller's
// predicate and ctx are consulted only at step boundaries, so an in-flight
// generation call always completes before the run stops.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/report/agent"
	"github.com/teranos/reportcopilot/report/dataset"
	"github.com/teranos/reportcopilot/report/quality"
	"github.com/teranos/reportcopilot/report/sections"
	"github.com/teranos/reportcopilot/report/template"
)

// Stages reported through Request.Progress
const (
	StageResearch     = "research"
	StageData         = "data"
	StageWriter       = "writer"
	StageWriterRepair = "writer_repair"
	StageReviewer     = "reviewer"
	StageDiagram      = "diagram"
	StageQualityFix   = "quality_fix"
)

// StageProgress is the progress percentage announced when a stage starts
var StageProgress = map[string]int{
	StageResearch:     20,
	StageData:         35,
	StageWriter:       55,
	StageWriterRepair: 65,
	StageReviewer:     75,
	StageDiagram:      85,
	StageQualityFix:   88,
}

// Keys of Result.Status
const (
	StatusResearch   = "research"
	StatusData       = "data"
	StatusWriter     = "writer"
	StatusRepair     = "writer_repair"
	StatusReviewer   = "reviewer"
	StatusDiagram    = "diagram"
	StatusQualityFix = "writer_quality_fix"
)

// StepState summarizes how a step ended
type StepState string

const (
	StateOK       StepState = "ok"
	StateFailed   StepState = "failed"   // rewrite attempt failed, prior text kept
	StateSkipped  StepState = "skipped"  // not applicable to this run
	StateDegraded StepState = "degraded" // optional step failed, output left empty
	StateRejected StepState = "rejected" // rewrite returned empty text, prior text kept
)

// StepStatus records one step's outcome and timing
type StepStatus struct {
	State      StepState `json:"state"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// Steps is the set of generation steps a pipeline sequences.
// *agent.Agents implements it.
type Steps interface {
	Research(ctx context.Context, jobID string, in agent.Context) agent.StepResult
	Data(ctx context.Context, jobID string, in agent.Context) agent.StepResult
	Write(ctx context.Context, jobID string, in agent.Context) agent.StepResult
	Review(ctx context.Context, jobID string, in agent.Context) agent.StepResult
	Figures(ctx context.Context, jobID string, in agent.Context) agent.StepResult
}

// Request holds the inputs of one run
type Request struct {
	JobID             string
	ManualText        string
	Goal              string
	CSVPath           string
	ExtraInstructions string
	Template          *template.Config
	IncludeReview     bool

	// Progress is called with the stage name and percentage as each stage starts. Optional.
	Progress func(stage string, pct int)
	// ShouldCancel is polled before each step. Optional.
	ShouldCancel func() bool
}

// Result is everything a completed run produced
type Result struct {
	Theory         string                `json:"theory"`
	ResearchFacts  agent.ResearchFacts   `json:"research_facts"`
	DataSummary    *dataset.Summary      `json:"data_summary"`
	DataHighlights dataset.Highlights    `json:"data_highlights"`
	Report         string                `json:"report"`
	Sections       map[string]string     `json:"report_sections"`
	Review         string                `json:"review"`
	Figures        string                `json:"figures"`
	Quality        quality.Report        `json:"quality"`
	Status         map[string]StepStatus `json:"agent_status"`
}

// WriteCount returns how many writer invocations the run made
func (r *Result) WriteCount() int {
	n := 0
	for _, k := range []string{StatusWriter, StatusRepair, StatusQualityFix} {
		if _, ok := r.Status[k]; ok {
			n++
		}
	}
	return n
}

// Pipeline runs report jobs
type Pipeline struct {
	Steps  Steps
	Clock  func() time.Time
	Logger *zap.SugaredLogger
}

// New creates a pipeline over steps with the real clock
func New(steps Steps, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{Steps: steps, Clock: time.Now, Logger: logger.OrNop(log)}
}

func (p *Pipeline) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock()
}

// run carries the per-job state of one Run call
type run struct {
	p   *Pipeline
	ctx context.Context
	req Request
	log *zap.SugaredLogger
	res *Result
}

// Run executes the pipeline. It returns an error matching ErrCanceled when
// stopped at a step boundary, and a *StepError when research, data or the
// first write fails. Review and figure failures only degrade the result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Template == nil {
		return nil, errors.NewInvalidRequestError("template is required")
	}
	log := logger.OrNop(p.Logger).With(logger.FieldJobID, req.JobID, logger.FieldTemplate, req.Template.Key)

	r := &run{p: p, ctx: ctx, req: req, log: log, res: &Result{
		Sections: map[string]string{},
		Status:   map[string]StepStatus{},
	}}
	cfg := req.Template
	merged := cfg.MergeInstructions(req.ExtraInstructions)
	in := agent.Context{
		ManualText:        req.ManualText,
		Goal:              req.Goal,
		CSVPath:           req.CSVPath,
		PreviewRows:       cfg.PreviewRowCount(),
		ExtraInstructions: merged,
		Template:          cfg,
	}

	// research
	if err := r.enter(StageResearch); err != nil {
		return nil, err
	}
	research := r.step(StatusResearch, func() agent.StepResult { return p.Steps.Research(ctx, req.JobID, in) })
	if !research.OK {
		return nil, stepError(research)
	}
	in.TheoryText = research.Research.TheoryText
	in.ResearchFacts = research.Research.Facts
	r.res.Theory, r.res.ResearchFacts = in.TheoryText, in.ResearchFacts

	// data
	if err := r.enter(StageData); err != nil {
		return nil, err
	}
	data := r.step(StatusData, func() agent.StepResult { return p.Steps.Data(ctx, req.JobID, in) })
	if !data.OK {
		return nil, stepError(data)
	}
	in.DataSummary = data.Data.Summary
	in.DataHighlights = data.Data.Highlights
	r.res.DataSummary, r.res.DataHighlights = in.DataSummary, in.DataHighlights

	// write
	if err := r.enter(StageWriter); err != nil {
		return nil, err
	}
	written := r.step(StatusWriter, func() agent.StepResult { return p.Steps.Write(ctx, req.JobID, in) })
	if !written.OK {
		return nil, stepError(written)
	}
	r.res.Report, r.res.Sections = written.Writer.ReportText, written.Writer.Sections

	// structural repair, at most once
	if headers := cfg.WriterFormat; len(headers) > 0 {
		if missing := sections.Empty(r.res.Sections, headers); len(missing) > 0 {
			if err := r.enter(StageWriterRepair); err != nil {
				return nil, err
			}
			r.log.Infow("Required sections empty, repairing", logger.FieldCount, len(missing), "missing", missing)
			fix := in
			fix.ExtraInstructions = withInstructions(merged, RepairPrompt(missing, cfg))
			r.rewrite(StatusRepair, fix)
		}
	}

	// review
	if req.IncludeReview && cfg.IncludeReview {
		if err := r.enter(StageReviewer); err != nil {
			return nil, err
		}
		rin := in
		rin.ReportText = r.res.Report
		rv := r.step(StatusReviewer, func() agent.StepResult { return p.Steps.Review(ctx, req.JobID, rin) })
		if rv.OK {
			r.res.Review = rv.Review.ReviewText
		} else {
			r.degrade(StatusReviewer)
		}
	} else {
		r.res.Status[StatusReviewer] = StepStatus{State: StateSkipped}
	}

	// figures
	if cfg.FiguresEnabled() && in.DataSummary != nil {
		if err := r.enter(StageDiagram); err != nil {
			return nil, err
		}
		dg := r.step(StatusDiagram, func() agent.StepResult { return p.Steps.Figures(ctx, req.JobID, in) })
		if dg.OK {
			r.res.Figures = dg.Diagram.FiguresText
		} else {
			r.degrade(StatusDiagram)
		}
	} else {
		r.res.Status[StatusDiagram] = StepStatus{State: StateSkipped}
	}

	// quality gate, at most one fix
	r.res.Quality = quality.Evaluate(r.res.Report, cfg)
	if !r.res.Quality.OK {
		if err := r.enter(StageQualityFix); err != nil {
			return nil, err
		}
		r.log.Infow("Quality gate failed, rewriting", logger.FieldIssues, len(r.res.Quality.Issues))
		fix := in
		fix.ExtraInstructions = withInstructions(merged, quality.BuildFixPrompt(r.res.Quality.Issues, cfg))
		r.rewrite(StatusQualityFix, fix)
		r.res.Quality = quality.Evaluate(r.res.Report, cfg)
	}

	r.log.Infow("Pipeline finished",
		"quality_ok", r.res.Quality.OK,
		logger.FieldIssues, len(r.res.Quality.Issues),
		"writes", r.res.WriteCount(),
	)
	return r.res, nil
}

// enter checks for cancellation and announces the stage
func (r *run) enter(stage string) error {
	if err := r.ctx.Err(); err != nil {
		r.log.Infow("Run canceled", logger.FieldStage, stage, logger.FieldError, err)
		return errors.WithSecondaryError(errors.Wrapf(ErrCanceled, "before %s", stage), err)
	}
	if r.req.ShouldCancel != nil && r.req.ShouldCancel() {
		r.log.Infow("Run canceled", logger.FieldStage, stage)
		return errors.Wrapf(ErrCanceled, "before %s", stage)
	}
	pct := StageProgress[stage]
	r.log.Debugw("Stage started", logger.FieldStage, stage, logger.FieldProgress, pct)
	if r.req.Progress != nil {
		r.req.Progress(stage, pct)
	}
	return nil
}

// step times fn and records its status under key
func (r *run) step(key string, fn func() agent.StepResult) agent.StepResult {
	start := r.p.now()
	res := fn()
	st := StepStatus{State: StateOK, DurationMS: r.p.now().Sub(start).Milliseconds(), Warnings: res.Warnings}
	if !res.OK {
		st.State = StateFailed
		st.Error = res.ErrorMessage()
		r.log.Warnw("Step failed", logger.FieldStep, key, logger.FieldError, st.Error)
	}
	r.res.Status[key] = st
	return res
}

// degrade marks an optional step as failed without stopping the run
func (r *run) degrade(key string) {
	st := r.res.Status[key]
	st.State = StateDegraded
	r.res.Status[key] = st
}

// rewrite runs the writer once more and keeps its output only when non-empty
func (r *run) rewrite(key string, in agent.Context) {
	w := r.step(key, func() agent.StepResult { return r.p.Steps.Write(r.ctx, r.req.JobID, in) })
	if !w.OK {
		return
	}
	if w.ReportText() == "" {
		st := r.res.Status[key]
		st.State = StateRejected
		r.res.Status[key] = st
		return
	}
	r.res.Report, r.res.Sections = w.Writer.ReportText, w.Writer.Sections
}

// withInstructions appends a fix prompt to the merged instructions
func withInstructions(merged, prompt string) string {
	return strings.TrimSpace(merged + "\n\n" + prompt)
}

// RepairPrompt asks the writer to reproduce the report with the missing sections filled
func RepairPrompt(missing []string, cfg *template.Config) string {
	required := "(none)"
	if cfg != nil && len(cfg.WriterFormat) > 0 {
		required = quality.HeaderList(cfg.WriterFormat)
	}
	return "IMPORTANT FIX PASS:\n" +
		"- Your previous output is missing required sections: " + quality.HeaderList(missing) + "\n" +
		"- You MUST output the full report again using ALL required headers exactly.\n" +
		"- Required headers are: " + required + "\n" +
		"- Do not add extra headers.\n" +
		"- Keep the content consistent; only restructure/expand to include missing sections.\n" +
		"- Keep it clean and submission-ready.\n"
}
