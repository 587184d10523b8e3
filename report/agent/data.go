package agent

import (
	"context"
	"time"

	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/report/dataset"
)

// Data summarizes the CSV, if any. Without a CSV path it succeeds with a nil summary.
func (a *Agents) Data(ctx context.Context, jobID string, in Context) (res StepResult) {
	defer a.recoverStep(Data, jobID, &res)

	if in.CSVPath == "" {
		return Success(jobID, &DataPayload{Highlights: dataset.BuildHighlights(nil)})
	}
	if err := ctx.Err(); err != nil {
		return failed(Data, jobID, err)
	}

	start := time.Now()
	table, err := dataset.Load(in.CSVPath)
	if err != nil {
		return failed(Data, jobID, err)
	}

	previewRows := in.PreviewRows
	if previewRows <= 0 && in.Template != nil {
		previewRows = in.Template.PreviewRowCount()
	}
	summary := dataset.Analyze(table, previewRows)
	highlights := dataset.BuildHighlights(summary)

	a.log.Debugw("Dataset analyzed",
		logger.FieldJobID, jobID,
		logger.FieldPath, in.CSVPath,
		logger.FieldCount, summary.NTotal,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)

	var warnings []string
	if len(summary.NumericColumns) == 0 {
		warnings = append(warnings, "CSV has no numeric columns; statistics limited to missingness")
	}
	if summary.NTotal < 2 {
		warnings = append(warnings, "CSV has fewer than 2 data rows")
	}
	return Success(jobID, &DataPayload{Summary: summary, Highlights: highlights}, warnings...)
}
