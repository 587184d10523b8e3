package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/report/dataset"
)

func TestFixQuality_PassingReportUntouched(t *testing.T) {
	cfg := objectiveConclusion()
	steps := &fakeSteps{cfg: cfg, writes: []string{"unused"}}

	out, err := newTestPipeline(steps).FixQuality(context.Background(), FixRequest{
		JobID:      "j1",
		Template:   cfg,
		ReportText: "Objective:\nx\n\nConclusion:\ny",
	})
	require.NoError(t, err)

	assert.False(t, out.Rewritten)
	assert.True(t, out.Quality.OK)
	assert.Empty(t, steps.writeInputs)
	assert.Equal(t, "y", out.Sections["Conclusion"])
}

func TestFixQuality_Rewrites(t *testing.T) {
	cfg := objectiveConclusion()
	cfg.Quality.RequiredGlobalTerms = []string{"dataset"}
	summary := &dataset.Summary{NTotal: 4, Columns: []string{"a"}}
	steps := &fakeSteps{cfg: cfg, writes: []string{"Objective:\nx\n\nConclusion:\nThe dataset agrees."}}

	out, err := newTestPipeline(steps).FixQuality(context.Background(), FixRequest{
		JobID:             "j1",
		Template:          cfg,
		ReportText:        "Objective:\nx\n\nConclusion:\ny",
		TheoryText:        "theory",
		DataSummary:       summary,
		ExtraInstructions: "Keep it short.",
	})
	require.NoError(t, err)

	assert.True(t, out.Rewritten)
	assert.True(t, out.Quality.OK)
	assert.Equal(t, "The dataset agrees.", out.Sections["Conclusion"])

	require.Len(t, steps.writeInputs, 1)
	in := steps.writeInputs[0]
	assert.Equal(t, "theory", in.TheoryText)
	assert.Same(t, summary, in.DataSummary)
	assert.Contains(t, in.ExtraInstructions, "Keep it short.\n\nIMPORTANT QUALITY FIX PASS:")
	assert.Contains(t, in.ExtraInstructions, "- Report should mention: dataset")
}

func TestFixQuality_UsesRawInstructions(t *testing.T) {
	cfg := objectiveConclusion()
	cfg.Instructions = "Template default tone."
	cfg.Quality.RequiredGlobalTerms = []string{"dataset"}
	steps := &fakeSteps{cfg: cfg, writes: []string{"Objective:\nx\n\nConclusion:\nThe dataset agrees."}}

	_, err := newTestPipeline(steps).FixQuality(context.Background(), FixRequest{
		JobID:             "j1",
		Template:          cfg,
		ReportText:        "Objective:\nx\n\nConclusion:\ny",
		ExtraInstructions: "Keep it short.",
	})
	require.NoError(t, err)

	require.Len(t, steps.writeInputs, 1)
	got := steps.writeInputs[0].ExtraInstructions
	assert.True(t, strings.HasPrefix(got, "Keep it short.\n\nIMPORTANT QUALITY FIX PASS:"), got)
	assert.NotContains(t, got, "Template default tone.")
}

func TestFixQuality_Errors(t *testing.T) {
	cfg := objectiveConclusion()
	cfg.Quality.RequiredGlobalTerms = []string{"dataset"}
	failing := "Objective:\nx\n\nConclusion:\ny"

	_, err := newTestPipeline(&fakeSteps{cfg: cfg}).FixQuality(context.Background(), FixRequest{Template: cfg, ReportText: "  "})
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = newTestPipeline(&fakeSteps{cfg: cfg}).FixQuality(context.Background(), FixRequest{ReportText: failing})
	assert.True(t, errors.IsInvalidRequestError(err))

	writerDown := &fakeSteps{cfg: cfg, writes: []string{"x"}, writeErr: []bool{true}}
	_, err = newTestPipeline(writerDown).FixQuality(context.Background(), FixRequest{Template: cfg, ReportText: failing})
	assert.True(t, errors.Is(err, ErrStepFailed))
	assert.Contains(t, err.Error(), "quality fix failed")

	empty := &fakeSteps{cfg: cfg, writes: []string{"   "}}
	_, err = newTestPipeline(empty).FixQuality(context.Background(), FixRequest{Template: cfg, ReportText: failing})
	assert.EqualError(t, err, "quality fix returned empty report")
}
