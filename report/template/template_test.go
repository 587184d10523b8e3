package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/reportcopilot/errors"
)

func TestBuiltin(t *testing.T) {
	reg := Builtin()

	assert.Equal(t, "lab_report", reg.Default())
	assert.Equal(t, []string{"lab_report", "data_insights", "study_guide"}, reg.Keys())

	lab, err := reg.Get("lab_report")
	require.NoError(t, err)
	assert.Equal(t, "Lab / Technical Report", lab.Name())
	assert.True(t, lab.IncludeReview)
	assert.True(t, lab.FiguresEnabled())
	assert.Equal(t, DefaultPreviewRows, lab.PreviewRowCount())
	assert.Equal(t, "Objective", lab.WriterFormat[0])
	assert.Equal(t, "References", lab.WriterFormat[len(lab.WriterFormat)-1])
	assert.Equal(t, 80, lab.Quality.MinWords["Results"])
	assert.Equal(t, []string{"mean", "min", "max"}, lab.Quality.RequiredTermsBySection["Results"])
	assert.Equal(t, []string{"dataset"}, lab.Quality.RequiredGlobalTerms)

	guide, err := reg.Get("study_guide")
	require.NoError(t, err)
	assert.False(t, guide.NeedsCSV)
	assert.Equal(t, []string{"?"}, guide.Quality.RequiredTermsBySection["Practice Questions"])
	assert.Empty(t, guide.Quality.RequiredGlobalTerms)
}

func TestGet_Unknown(t *testing.T) {
	_, err := Builtin().Get("essay")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownTemplate))
	assert.Contains(t, err.Error(), "essay")
}

func TestResolve(t *testing.T) {
	cfg, err := Builtin().Resolve("  ")
	require.NoError(t, err)
	assert.Equal(t, "lab_report", cfg.Key)

	cfg, err = Builtin().Resolve("data_insights")
	require.NoError(t, err)
	assert.Equal(t, "data_insights", cfg.Key)
}

func TestWithDefault(t *testing.T) {
	reg, err := Builtin().WithDefault("study_guide")
	require.NoError(t, err)
	assert.Equal(t, "study_guide", reg.Default())
	assert.Equal(t, "lab_report", Builtin().Default(), "the shared registry is not modified")

	cfg, err := reg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "study_guide", cfg.Key)

	same, err := Builtin().WithDefault("")
	require.NoError(t, err)
	assert.Same(t, Builtin(), same)

	_, err = Builtin().WithDefault("essay")
	assert.True(t, errors.Is(err, errors.ErrUnknownTemplate))
}

func TestMergeInstructions(t *testing.T) {
	tests := []struct {
		name     string
		template string
		extra    string
		want     string
	}{
		{name: "both", template: "  Be formal. ", extra: "\nUse SI units.\n", want: "Be formal.\n\nUse SI units."},
		{name: "template only", template: "Be formal.", extra: "   ", want: "Be formal."},
		{name: "extra only", template: "", extra: "Use SI units.", want: "Use SI units."},
		{name: "neither", template: "", extra: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Instructions: tt.template}
			assert.Equal(t, tt.want, cfg.MergeInstructions(tt.extra))
		})
	}
}

func TestValidateInputs(t *testing.T) {
	reg := Builtin()
	lab, _ := reg.Get("lab_report")
	insights, _ := reg.Get("data_insights")
	guide, _ := reg.Get("study_guide")

	assert.NoError(t, lab.ValidateInputs(true, true, ""))
	assert.Error(t, lab.ValidateInputs(false, false, ""), "lab report requires CSV")
	assert.Error(t, guide.ValidateInputs(true, false, ""), "study guide rejects CSV")
	assert.Error(t, insights.ValidateInputs(true, true, "a long enough goal"), "insights rejects review")
	assert.Error(t, insights.ValidateInputs(true, false, "short"), "insights needs goal >= 10 chars")
	assert.NoError(t, insights.ValidateInputs(true, false, "Summarize trends"))

	err := guide.ValidateInputs(true, false, "")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestLoad_ExtraYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default: memo
templates:
  - key: memo
    display_name: Memo
    include_figures: false
    preview_rows: 3
    instructions: Keep it under a page.
    form:
      allow_csv: false
    writer_format: [Summary, Actions]
    quality:
      min_words:
        Summary: 10
      required_global_terms: [owner]
`), 0644))

	reg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memo", reg.Default())
	assert.Equal(t, []string{"lab_report", "data_insights", "study_guide", "memo"}, reg.Keys())

	memo, err := reg.Get("memo")
	require.NoError(t, err)
	assert.False(t, memo.FiguresEnabled())
	assert.Equal(t, 3, memo.PreviewRowCount())
	assert.Equal(t, []string{"Summary", "Actions"}, memo.WriterFormat)
	assert.Equal(t, "Keep it under a page.", memo.MergeInstructions(""))

	// built-ins remain untouched
	_, err = Builtin().Get("memo")
	assert.Error(t, err)
}

func TestLoad_ExtraTOMLOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[templates]]
key = "study_guide"
display_name = "Exam Crib Sheet"
writer_format = ["Overview", "Practice Questions"]

[templates.quality.min_words]
"Practice Questions" = 5
`), 0644))

	reg, err := Load(path)
	require.NoError(t, err)

	guide, err := reg.Get("study_guide")
	require.NoError(t, err)
	assert.Equal(t, "Exam Crib Sheet", guide.Name())
	assert.Equal(t, 5, guide.Quality.MinWords["Practice Questions"])
	assert.Equal(t, "lab_report", reg.Default())
	assert.Len(t, reg.Keys(), 3)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path returns builtins", func(t *testing.T) {
		reg, err := Load("")
		require.NoError(t, err)
		assert.Same(t, Builtin(), reg)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "extra.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, errors.FlattenHints(err), ".toml")
	})

	t.Run("header with colon", func(t *testing.T) {
		path := filepath.Join(dir, "colon.yaml")
		require.NoError(t, os.WriteFile(path, []byte("templates:\n  - key: bad\n    writer_format: [\"Summary:\"]\n"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("unknown default", func(t *testing.T) {
		path := filepath.Join(dir, "default.yaml")
		require.NoError(t, os.WriteFile(path, []byte("default: ghost\n"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestInferFromReport(t *testing.T) {
	reg := Builtin()

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "lab headers", text: "Objective:\nx\nIntroduction:\ny\nResults:\nz", want: "lab_report"},
		{name: "insights headers", text: "Objective:\nx\nKey Insights:\ny\nNext Steps:\nz", want: "data_insights"},
		{name: "study guide headers", text: "Overview:\nx\nDefinitions:\ny", want: "study_guide"},
		{name: "no headers keeps first template", text: "free text", want: "lab_report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.InferFromReport(tt.text).Key)
		})
	}
}

func TestSortedSections(t *testing.T) {
	m := map[string]int{"Zeta": 1, "Results": 2, "Alpha": 3, "Objective": 4}
	got := SortedSections(m, []string{"Objective", "Results", "Conclusion"})
	assert.Equal(t, []string{"Objective", "Results", "Alpha", "Zeta"}, got)
}
