package quality

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/reportcopilot/report/template"
)

func resultsDiscussionTemplate() *template.Config {
	return &template.Config{
		Key:          "test",
		WriterFormat: []string{"Results", "Discussion"},
		Quality: template.Quality{
			RequiredTermsBySection: map[string][]string{"Discussion": {"limitation"}},
			MinWords:               map[string]int{"Results": 2},
		},
	}
}

func TestEvaluate_MissingRequiredTerm(t *testing.T) {
	report := "Results:\nGood data summary.\n\nDiscussion:\nThis section is present but lacks expected wording."

	got := Evaluate(report, resultsDiscussionTemplate())

	assert.False(t, got.OK)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, Issue{
		Kind:    KindMissingTerm,
		Section: "Discussion",
		Detail:  "Section 'Discussion' should mention at least one of: limitation.",
	}, got.Issues[0])
	assert.Equal(t, "Good data summary.", got.Sections["Results"])
}

func TestEvaluate_Passes(t *testing.T) {
	report := "Results:\nGood data summary.\n\nDiscussion:\nOne LIMITATION is sensor drift."

	got := Evaluate(report, resultsDiscussionTemplate())

	assert.True(t, got.OK)
	assert.Empty(t, got.Issues)
	assert.NotNil(t, got.Issues)
}

func TestEvaluate_IsPure(t *testing.T) {
	cfg, err := template.Builtin().Get("lab_report")
	require.NoError(t, err)
	report := "Objective:\nshort\n\nResults:\nA few words only.\n\nDiscussion:\nnothing relevant\n\nConclusion:\nDone."

	first := Evaluate(report, cfg)
	for i := 0; i < 20; i++ {
		again := Evaluate(report, cfg)
		require.Equal(t, first.OK, again.OK)
		require.Equal(t, first.Issues, again.Issues)
		require.Equal(t, first.Sections, again.Sections)
	}
}

func TestEvaluate_Rules(t *testing.T) {
	cfg := &template.Config{
		WriterFormat: []string{"Objective", "Results", "Discussion"},
		Quality: template.Quality{
			MinWords: map[string]int{"Results": 5, "Objective": 3, "Appendix": 1},
			RequiredTermsBySection: map[string][]string{
				"Results":    {"Mean", "median"},
				"Discussion": {"error"},
			},
			RequiredGlobalTerms: []string{"Dataset", "trend"},
		},
	}

	t.Run("missing header", func(t *testing.T) {
		got := Evaluate("Objective:\nMeasure the thing well.\nResults:\nThe mean was 4 in the dataset trend.", cfg)
		require.NotEmpty(t, got.Issues)
		assert.Equal(t, Issue{Kind: KindMissingHeader, Section: "Discussion", Detail: "Missing required header: Discussion:"}, got.Issues[0])
	})

	t.Run("header check is case-insensitive and whitespace tolerant", func(t *testing.T) {
		text := "  OBJECTIVE :  \nMeasure the thing well.\nresults:\nx\n\tDiscussion:\t\ny"
		assert.Empty(t, FindMissingHeaders(text, cfg.WriterFormat))
	})

	t.Run("header with trailing text is missing", func(t *testing.T) {
		assert.Equal(t, []string{"Objective"}, FindMissingHeaders("Objective: inline", []string{"Objective"}))
	})

	t.Run("header metacharacters are literal", func(t *testing.T) {
		headers := []string{"Answer Key (brief)", "Apparatus & Procedure"}
		assert.Empty(t, FindMissingHeaders("Answer Key (brief):\nA\nApparatus & Procedure:\nB", headers))
		assert.Equal(t, []string{"Answer Key (brief)"}, FindMissingHeaders("Answer Key brief:\n", headers[:1]))
	})

	t.Run("too short uses observed and expected counts", func(t *testing.T) {
		got := Evaluate("Objective:\nMeasure it.\nResults:\nmean is four\nDiscussion:\nsome error", cfg)
		assert.Contains(t, got.Issues, Issue{
			Kind:    KindTooShort,
			Section: "Objective",
			Detail:  "Section 'Objective' is too short (2 words, expected >= 3).",
		})
		assert.Contains(t, got.Issues, Issue{
			Kind:    KindTooShort,
			Section: "Results",
			Detail:  "Section 'Results' is too short (3 words, expected >= 5).",
		})
	})

	t.Run("empty sections skip word and term rules", func(t *testing.T) {
		got := Evaluate("dataset trend\nObjective:\n\nResults:\n\nDiscussion:\n", cfg)
		assert.Empty(t, got.Issues)
		assert.True(t, got.OK)
	})

	t.Run("required terms are case-insensitive and reported lowercased", func(t *testing.T) {
		got := Evaluate("Objective:\nMeasure the thing well.\nResults:\none two three four five\nDiscussion:\nAn ERROR budget.\ndataset trend", cfg)
		require.Len(t, got.Issues, 1)
		assert.Equal(t, "Section 'Results' should mention at least one of: mean, median.", got.Issues[0].Detail)
	})

	t.Run("global terms", func(t *testing.T) {
		got := Evaluate("Objective:\nMeasure the thing well.\nResults:\nThe MEAN is four point two.\nDiscussion:\nerror", cfg)
		assert.Equal(t, []Issue{
			{Kind: KindMissingGlobalTerm, Section: GlobalSection, Detail: "Report should mention: dataset"},
			{Kind: KindMissingGlobalTerm, Section: GlobalSection, Detail: "Report should mention: trend"},
		}, got.Issues)
	})

	t.Run("issue order follows header order then kind", func(t *testing.T) {
		got := Evaluate("Discussion:\nnothing\nResults:\nshort", cfg)
		assert.Equal(t, []Kind{KindMissingHeader, KindTooShort, KindMissingTerm, KindMissingGlobalTerm}, got.Kinds())
		assert.Equal(t, "Objective", got.Issues[0].Section)
	})
}

func TestEvaluate_NoHeaders(t *testing.T) {
	cfg := &template.Config{Quality: template.Quality{RequiredGlobalTerms: []string{"dataset"}}}
	got := Evaluate("anything", cfg)

	assert.Empty(t, got.Sections)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, KindMissingGlobalTerm, got.Issues[0].Kind)
}

func TestEvaluate_NilTemplate(t *testing.T) {
	var got Report
	require.NotPanics(t, func() { got = Evaluate("Results:\nanything", nil) })

	assert.True(t, got.OK)
	assert.Empty(t, got.Issues)
	assert.Empty(t, got.Sections)
}

func TestEvaluate_HeaderFollowedByHeader(t *testing.T) {
	// both header lines exist, so the gate passes even though Objective is empty
	cfg := &template.Config{WriterFormat: []string{"Objective", "Conclusion"}}
	got := Evaluate("Objective:\nConclusion:\ny", cfg)

	assert.True(t, got.OK, got.Issues)
	assert.Empty(t, got.Issues)
	assert.Equal(t, "", got.Sections["Objective"])
	assert.Equal(t, "y", got.Sections["Conclusion"])
}

func TestBuildFixPrompt(t *testing.T) {
	issues := []Issue{
		{Detail: "Section 'Discussion' is too short."},
		{Detail: "Report should mention: dataset"},
	}

	p := BuildFixPrompt(issues, &template.Config{WriterFormat: []string{"Results", "Discussion"}})

	assert.True(t, strings.HasPrefix(p, "IMPORTANT QUALITY FIX PASS:\n"))
	assert.Contains(t, p, "- Keep and preserve exact required headers: Results:, Discussion:\n")
	assert.Contains(t, p, "- Section 'Discussion' is too short.\n- Report should mention: dataset\n")
	assert.Contains(t, p, "- Do not invent facts or measurements.\n")
}

func TestBuildFixPrompt_CapsIssues(t *testing.T) {
	var issues []Issue
	for i := 0; i < 20; i++ {
		issues = append(issues, Issue{Detail: fmt.Sprintf("issue-%02d", i)})
	}

	p := BuildFixPrompt(issues, &template.Config{})

	assert.Contains(t, p, "(template-defined headers)")
	assert.Contains(t, p, "issue-11")
	assert.NotContains(t, p, "issue-12")
	assert.Equal(t, MaxFixIssues, strings.Count(p, "- issue-"))
}

func TestBuildFixPrompt_NilTemplate(t *testing.T) {
	var p string
	require.NotPanics(t, func() { p = BuildFixPrompt([]Issue{{Detail: "Report should mention: dataset"}}, nil) })

	assert.Contains(t, p, "- Keep and preserve exact required headers: (template-defined headers)\n")
	assert.Contains(t, p, "- Report should mention: dataset\n")
}
