package async

import (
	"context"
	"strings"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/report/agent"
	"github.com/teranos/reportcopilot/report/artifact"
	"github.com/teranos/reportcopilot/report/dataset"
	"github.com/teranos/reportcopilot/report/pipeline"
	"github.com/teranos/reportcopilot/report/quality"
	"github.com/teranos/reportcopilot/report/sections"
	"github.com/teranos/reportcopilot/report/template"
)

// Draft is the current report of a job as stored on disk
type Draft struct {
	JobID      string            `json:"job_id"`
	Template   string            `json:"template"`
	Headers    []string          `json:"headers"`
	ReportText string            `json:"report_text"`
	Sections   map[string]string `json:"sections"`
	Status     JobStatus         `json:"status"`
	Editable   bool              `json:"editable"`
}

// jobFiles bundles what the edit operations read for one job
type jobFiles struct {
	job    *Job
	cfg    *template.Config
	dir    *artifact.Dir
	record *artifact.Record
	report string
}

// load reads a job and its artifacts. The template recorded on the job is
// used when still registered, otherwise one is inferred from the report headers.
func (r *Runner) load(id string) (*jobFiles, error) {
	job, err := r.store.GetJob(id)
	if err != nil {
		return nil, err
	}
	dir, err := r.artifacts.Dir(id)
	if err != nil {
		return nil, err
	}
	report, err := dir.Report()
	if err != nil {
		return nil, err
	}
	rec, err := dir.LoadRecord()
	if errors.IsNotFoundError(err) {
		rec = &artifact.Record{Template: job.Template}
	} else if err != nil {
		return nil, err
	}

	cfg, err := r.templates.Get(job.Template)
	if err != nil {
		cfg = r.templates.InferFromReport(report)
		r.log.Infow("Inferred template from report headers",
			logger.FieldJobID, id, logger.FieldTemplate, cfg.Key, "recorded", job.Template)
	}
	return &jobFiles{job: job, cfg: cfg, dir: dir, record: rec, report: report}, nil
}

// requireEditable rejects jobs that are still queued or running
func requireEditable(job *Job, action string) error {
	if !job.Editable() {
		return errors.NewInvalidRequestError("%s is allowed only after job completion or failure (status: %s)", action, job.Status)
	}
	return nil
}

func (f *jobFiles) dataSummary() *dataset.Summary {
	if f.record.Result == nil {
		return nil
	}
	return f.record.Result.DataSummary
}

// store writes a new report text and refreshes the recorded sections and quality
func (f *jobFiles) store(report string, secs map[string]string) error {
	if err := f.dir.WriteText(artifact.ReportFile, report); err != nil {
		return err
	}
	if f.record.Result == nil {
		f.record.Result = &pipeline.Result{}
	}
	f.record.Result.Report = report
	f.record.Result.Sections = secs
	f.record.Result.Quality = quality.Evaluate(report, f.cfg)
	return f.dir.SaveRecord(f.record)
}

func (f *jobFiles) split(text string) map[string]string {
	if len(f.cfg.WriterFormat) == 0 {
		return map[string]string{}
	}
	return sections.Split(text, f.cfg.WriterFormat)
}

// Draft returns a job's current report split into its template sections
func (r *Runner) Draft(id string) (*Draft, error) {
	f, err := r.load(id)
	if err != nil {
		return nil, err
	}
	headers := f.cfg.WriterFormat
	if headers == nil {
		headers = []string{}
	}
	return &Draft{
		JobID:      id,
		Template:   f.cfg.Key,
		Headers:    headers,
		ReportText: f.report,
		Sections:   f.split(f.report),
		Status:     f.job.Status,
		Editable:   f.job.Editable(),
	}, nil
}

// SaveDraft replaces a finished job's report with an edited text
func (r *Runner) SaveDraft(id, text string) error {
	f, err := r.load(id)
	if err != nil {
		return err
	}
	if err := requireEditable(f.job, "Draft editing"); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.NewInvalidRequestError("Draft report text cannot be empty.")
	}
	if err := f.store(text, f.split(text)); err != nil {
		return err
	}
	r.log.Infow("Draft saved", logger.FieldJobID, id, logger.FieldSize, len(text))
	return nil
}

// FixQuality runs one quality-fix rewrite over a finished job's report and
// stores the result when the report was rewritten
func (r *Runner) FixQuality(ctx context.Context, id string) (*pipeline.FixResult, error) {
	f, err := r.load(id)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(f.job, "Quality fix"); err != nil {
		return nil, err
	}
	theory, err := f.dir.ReadText(artifact.TheoryFile)
	if err != nil {
		return nil, err
	}

	out, err := r.pipeline.FixQuality(ctx, pipeline.FixRequest{
		JobID:             id,
		Template:          f.cfg,
		ReportText:        f.report,
		TheoryText:        theory,
		DataSummary:       f.dataSummary(),
		ExtraInstructions: f.job.Request.ExtraInstructions,
	})
	if err != nil {
		return nil, err
	}
	if out.Rewritten {
		if err := f.store(out.Report, out.Sections); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RegenerateSection rewrites one section of a finished job's report and
// returns the new report text
func (r *Runner) RegenerateSection(ctx context.Context, id, section, instructions string) (string, error) {
	f, err := r.load(id)
	if err != nil {
		return "", err
	}
	if err := requireEditable(f.job, "Section regeneration"); err != nil {
		return "", err
	}
	theory, err := f.dir.ReadText(artifact.TheoryFile)
	if err != nil {
		return "", err
	}

	report, secs, err := r.rewriter.RegenerateSection(ctx, id, agent.SectionRequest{
		Template:     f.cfg,
		ReportText:   f.report,
		Section:      section,
		TheoryText:   theory,
		DataSummary:  f.dataSummary(),
		Instructions: instructions,
	})
	if err != nil {
		return "", err
	}
	if err := f.store(report, secs); err != nil {
		return "", err
	}
	r.log.Infow("Section regenerated", logger.FieldJobID, id, "section", section)
	return report, nil
}
