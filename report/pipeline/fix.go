package pipeline

import (
	"context"
	"strings"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/report/agent"
	"github.com/teranos/reportcopilot/report/dataset"
	"github.com/teranos/reportcopilot/report/quality"
	"github.com/teranos/reportcopilot/report/template"
)

// FixRequest asks for one quality-fix rewrite of a finished report
type FixRequest struct {
	JobID             string
	Template          *template.Config
	ReportText        string
	TheoryText        string
	DataSummary       *dataset.Summary
	ExtraInstructions string
}

// FixResult is the report after FixQuality. Rewritten is false when the
// report already passed the gate and was left untouched.
type FixResult struct {
	Report    string            `json:"report"`
	Sections  map[string]string `json:"report_sections"`
	Quality   quality.Report    `json:"quality"`
	Rewritten bool              `json:"rewritten"`
}

// FixQuality evaluates a stored report and, if it fails the gate, runs the
// writer once with the fix prompt. Unlike the in-run quality fix, a failed or
// empty rewrite is an error here.
func (p *Pipeline) FixQuality(ctx context.Context, req FixRequest) (*FixResult, error) {
	if req.Template == nil {
		return nil, errors.NewInvalidRequestError("template is required")
	}
	if strings.TrimSpace(req.ReportText) == "" {
		return nil, errors.NewInvalidRequestError("no report draft available for quality fix")
	}
	log := logger.OrNop(p.Logger).With(logger.FieldJobID, req.JobID, logger.FieldTemplate, req.Template.Key)

	report := quality.Evaluate(req.ReportText, req.Template)
	if report.OK {
		return &FixResult{Report: req.ReportText, Sections: report.Sections, Quality: report}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithSecondaryError(errors.Wrap(ErrCanceled, "before quality fix"), err)
	}

	in := agent.Context{
		Template:          req.Template,
		TheoryText:        req.TheoryText,
		DataSummary:       req.DataSummary,
		DataHighlights:    dataset.BuildHighlights(req.DataSummary),
		ExtraInstructions: withInstructions(strings.TrimSpace(req.ExtraInstructions), quality.BuildFixPrompt(report.Issues, req.Template)),
	}
	log.Infow("Applying quality fix", logger.FieldIssues, len(report.Issues))

	w := p.Steps.Write(ctx, req.JobID, in)
	if !w.OK {
		return nil, errors.Wrap(stepError(w), "quality fix failed")
	}
	text := w.ReportText()
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("quality fix returned empty report")
	}

	after := quality.Evaluate(text, req.Template)
	log.Infow("Quality fix applied", "quality_ok", after.OK, logger.FieldIssues, len(after.Issues))
	return &FixResult{Report: text, Sections: w.Writer.Sections, Quality: after, Rewritten: true}, nil
}
