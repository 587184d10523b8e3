package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportcopilot/ai/provider"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/report/dataset"
	"github.com/teranos/reportcopilot/report/template"
)

// Context is the state threaded through one pipeline run. Steps read from it;
// the orchestrator fills in each step's output before the next one runs.
type Context struct {
	ManualText        string
	Goal              string
	CSVPath           string
	PreviewRows       int
	ExtraInstructions string
	Template          *template.Config

	TheoryText     string
	ResearchFacts  ResearchFacts
	DataSummary    *dataset.Summary
	DataHighlights dataset.Highlights
	ReportText     string
}

// Agents runs the generation steps against one backend
type Agents struct {
	gen provider.Generator
	log *zap.SugaredLogger
}

// New creates the step runner. A nil logger discards output.
func New(gen provider.Generator, log *zap.SugaredLogger) *Agents {
	return &Agents{gen: gen, log: logger.OrNop(log)}
}

// generate performs the single backend call of a step
func (a *Agents) generate(ctx context.Context, jobID string, step Name, cfg *template.Config, system, user string) (string, error) {
	info := provider.CallInfo{JobID: jobID, Step: string(step)}
	if cfg != nil {
		info.Template = cfg.Key
	}
	ctx = provider.WithCall(ctx, info)

	start := time.Now()
	out, err := a.gen.Generate(ctx, system, user)
	a.log.Debugw("Generation call finished",
		logger.FieldJobID, jobID,
		logger.FieldStep, string(step),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		logger.FieldSize, len(out),
		logger.FieldError, err,
	)
	return out, err
}

// recoverStep converts a panic inside a step into a failed result
func (a *Agents) recoverStep(step Name, jobID string, res *StepResult) {
	if r := recover(); r != nil {
		a.log.Errorw("Step panicked", logger.FieldJobID, jobID, logger.FieldStep, string(step), "panic", r)
		*res = Fail(step, jobID, failMessage(step), fmt.Sprintf("Panic: %v", r))
	}
}

// failed converts an error into a failed result with a "<Type>: <message>" detail
func failed(step Name, jobID string, err error) StepResult {
	return Fail(step, jobID, failMessage(step), errors.Describe(err))
}

func failMessage(step Name) string {
	s := string(step)
	return strings.ToUpper(s[:1]) + s[1:] + " agent failed"
}

func displayName(cfg *template.Config) string {
	if cfg == nil || cfg.DisplayName == "" {
		return "Report"
	}
	return cfg.DisplayName
}

// prettyJSON renders v the way prompts embed structured data: two-space indent
func prettyJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode prompt data")
	}
	return string(b), nil
}

// summaryJSON renders a dataset summary, "{}" when absent
func summaryJSON(s *dataset.Summary) (string, error) {
	if s == nil {
		return "{}", nil
	}
	return prettyJSON(s)
}
