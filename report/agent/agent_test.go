package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/reportcopilot/ai/provider"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/report/dataset"
	"github.com/teranos/reportcopilot/report/template"
)

type call struct {
	system, user string
	info         provider.CallInfo
}

// recorder returns out for every call and remembers what it was asked
type recorder struct {
	out   string
	err   error
	calls []call
}

func (r *recorder) Generate(ctx context.Context, system, user string) (string, error) {
	r.calls = append(r.calls, call{system: system, user: user, info: provider.CallFromContext(ctx)})
	return r.out, r.err
}

func testTemplate() *template.Config {
	return &template.Config{
		Key:           "lab",
		DisplayName:   "Lab Report",
		WriterFormat:  []string{"Objective", "Conclusion"},
		WriterRules:   []string{"Be concise.", "Cite the manual."},
		ReviewerFocus: []string{"Units"},
	}
}

func TestSuccessAndFail(t *testing.T) {
	ok := Success("job-1", &ReviewPayload{ReviewText: "fine"}, "w1")
	assert.True(t, ok.OK)
	assert.Equal(t, Reviewer, ok.Agent)
	assert.Equal(t, "job-1", ok.JobID)
	assert.Equal(t, []string{"w1"}, ok.Warnings)
	assert.Nil(t, ok.Error)
	require.NotNil(t, ok.Review)
	assert.Equal(t, "fine", ok.Review.ReviewText)

	bad := Fail(Writer, "job-1", "Writer agent failed", "Error: boom")
	assert.False(t, bad.OK)
	assert.Equal(t, Writer, bad.Agent)
	assert.Nil(t, bad.Research)
	assert.Nil(t, bad.Data)
	assert.Nil(t, bad.Writer)
	assert.Nil(t, bad.Review)
	assert.Nil(t, bad.Diagram)
	assert.Equal(t, "Writer agent failed: Error: boom", bad.ErrorMessage())
	assert.Empty(t, bad.ReportText())

	assert.Equal(t, "No report", Fail(Reviewer, "j", "No report", "").ErrorMessage())
}

func TestParseResearchFacts(t *testing.T) {
	text := "Preamble line\n" +
		"KEY CONCEPTS:\n" +
		"- Ohm's law; resistance\n" +
		"-- Power\n" +
		"\n" +
		"  Variables & Units:  \n" +
		"- V (volts)\n" +
		"Missing Info / Clarifications Needed:\n" +
		"- Apparatus details\n"

	facts := ParseResearchFacts(text)
	assert.Equal(t, []string{"Ohm's law", "resistance", "Power"}, facts.KeyConcepts)
	assert.Equal(t, []string{"V (volts)"}, facts.VariablesUnits)
	assert.Equal(t, []string{"Apparatus details"}, facts.MissingInfo)
	assert.Equal(t, []string{}, facts.EquationsModels)
	assert.False(t, facts.Empty())

	assert.True(t, ParseResearchFacts("no headers at all").Empty())
}

func TestResearch(t *testing.T) {
	gen := &recorder{out: "Key Concepts:\n- Heat\n"}
	a := New(gen, nil)

	res := a.Research(context.Background(), "job-1", Context{Goal: "  Measure heat.  ", ManualText: "\nManual body\n", Template: testTemplate()})
	require.True(t, res.OK, res.ErrorMessage())
	assert.Equal(t, Research, res.Agent)
	assert.Equal(t, "Key Concepts:\n- Heat\n", res.Research.TheoryText)
	assert.Equal(t, []string{"Heat"}, res.Research.Facts.KeyConcepts)
	assert.Empty(t, res.Warnings)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, researchSystem, gen.calls[0].system)
	assert.Equal(t, "GOAL:\nMeasure heat.\n\nMANUAL / NOTES TEXT:\nManual body\n\nExtract the structured theory now.", gen.calls[0].user)
	assert.Equal(t, provider.CallInfo{JobID: "job-1", Step: "research", Template: "lab"}, gen.calls[0].info)
}

func TestResearch_WarnsWithoutHeaders(t *testing.T) {
	res := New(&recorder{out: "free-form notes"}, nil).Research(context.Background(), "j", Context{})
	require.True(t, res.OK)
	assert.Len(t, res.Warnings, 1)
}

func TestResearch_GenerationError(t *testing.T) {
	res := New(&recorder{err: errors.New("backend down")}, nil).Research(context.Background(), "j", Context{})

	assert.False(t, res.OK)
	assert.Nil(t, res.Research)
	assert.Equal(t, "Research agent failed", res.Error.Message)
	assert.Equal(t, "Error: backend down", res.Error.Detail)
}

func TestStep_PanicBecomesFailure(t *testing.T) {
	gen := provider.GeneratorFunc(func(ctx context.Context, system, user string) (string, error) {
		panic("kaboom")
	})
	res := New(gen, nil).Write(context.Background(), "j", Context{Template: testTemplate()})

	assert.False(t, res.OK)
	assert.Equal(t, Writer, res.Agent)
	assert.Equal(t, "Writer agent failed", res.Error.Message)
	assert.Equal(t, "Panic: kaboom", res.Error.Detail)
}

func TestData_NoCSV(t *testing.T) {
	res := New(&recorder{}, nil).Data(context.Background(), "j", Context{})

	require.True(t, res.OK)
	assert.Nil(t, res.Data.Summary)
	assert.Empty(t, res.Data.Highlights.KeyFindings)
}

func TestData_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("time,temp\n0,20\n1,22\n2,24\n"), 0o644))

	gen := &recorder{}
	res := New(gen, nil).Data(context.Background(), "j", Context{CSVPath: path, PreviewRows: 2})

	require.True(t, res.OK, res.ErrorMessage())
	require.NotNil(t, res.Data.Summary)
	assert.Equal(t, 3, res.Data.Summary.NTotal)
	assert.Len(t, res.Data.Summary.PreviewHead, 2)
	assert.Contains(t, res.Data.Highlights.KeyFindings, "Dataset has 3 rows across 2 columns (2 numeric).")
	assert.Empty(t, gen.calls, "data step must not call the backend")
}

func TestData_MissingFile(t *testing.T) {
	res := New(&recorder{}, nil).Data(context.Background(), "j", Context{CSVPath: filepath.Join(t.TempDir(), "nope.csv")})

	assert.False(t, res.OK)
	assert.Equal(t, "Data agent failed", res.Error.Message)
	assert.True(t, strings.HasPrefix(res.Error.Detail, "PathError: "), res.Error.Detail)
}

func TestWriterSystemPrompt(t *testing.T) {
	want := "You are a helpful, high-quality writer producing a submission-ready document.\n" +
		"Write in a clear, natural student tone (not AI-sounding).\n\n" +
		"Template: Lab Report\n\n" +
		"STRICT FORMAT (use these exact headers, each on its own line, exactly as written):\n" +
		"Objective:\nConclusion:\n\n" +
		"Rules:\n- Be concise.\n- Cite the manual.\n\n" +
		"General rules:\n" +
		"- Use plain text headers exactly (no bold, no markdown).\n" +
		"- Do not invent facts, equipment models, settings, or numbers not supported by the provided manual_text or data summary.\n" +
		"- If details are missing, label them as assumptions explicitly.\n" +
		"- Keep the writing clean and submission-ready."
	assert.Equal(t, want, WriterSystemPrompt(testTemplate()))

	bare := WriterSystemPrompt(&template.Config{Key: "free"})
	assert.Contains(t, bare, "Template: Report\n\nSTRUCTURE: Use clear section headers appropriate for the template.\n\n\nGeneral rules:")
}

func TestWrite(t *testing.T) {
	gen := &recorder{out: "intro text\nObjective:\nMeasure.\nConclusion:\nDone."}
	in := Context{
		Template:          testTemplate(),
		TheoryText:        "theory",
		ExtraInstructions: "Be brief.",
		ResearchFacts:     ResearchFacts{KeyConcepts: []string{"Heat"}},
	}

	res := New(gen, nil).Write(context.Background(), "job-2", in)
	require.True(t, res.OK, res.ErrorMessage())
	assert.Equal(t, map[string]string{"Objective": "Measure.", "Conclusion": "Done."}, res.Writer.Sections)
	assert.Equal(t, gen.out, res.ReportText())

	require.Len(t, gen.calls, 1)
	user := gen.calls[0].user
	assert.True(t, strings.HasPrefix(user, "THEORY / NOTES EXTRACT:\ntheory\n\nSTRUCTURED RESEARCH FACTS (JSON):\n{\n  \"key_concepts\": [\n    \"Heat\"\n  ],"))
	assert.Contains(t, user, "\n\nDATA SUMMARY (JSON):\n{}\n\n")
	assert.Contains(t, user, "DATA HIGHLIGHTS (JSON):\n{\n  \"key_findings\": null,")
	assert.Contains(t, user, "EXTRA INSTRUCTIONS:\nBe brief.\n\n")
	assert.True(t, strings.HasSuffix(user, "Write the full document now following the required headers exactly."))
	assert.Equal(t, "writer", gen.calls[0].info.Step)
}

func TestWrite_NoHeadersNoSections(t *testing.T) {
	res := New(&recorder{out: "Anything:\nbody"}, nil).Write(context.Background(), "j", Context{Template: &template.Config{Key: "free"}})
	require.True(t, res.OK)
	assert.Empty(t, res.Writer.Sections)
}

func TestReview(t *testing.T) {
	gen := &recorder{out: "Strengths:\n- clear"}
	a := New(gen, nil)

	blank := a.Review(context.Background(), "j", Context{ReportText: "  \n"})
	assert.False(t, blank.OK)
	assert.Equal(t, "No report provided to reviewer", blank.Error.Message)
	assert.Empty(t, blank.Error.Detail)
	assert.Empty(t, gen.calls)

	res := a.Review(context.Background(), "j", Context{ReportText: "Objective:\nx", Template: testTemplate()})
	require.True(t, res.OK)
	assert.Equal(t, "Strengths:\n- clear", res.Review.ReviewText)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, "REPORT TO REVIEW:\nObjective:\nx\n\nReturn reviewer feedback now.", gen.calls[0].user)
	assert.Contains(t, gen.calls[0].system, "Focus areas:\n- Units\n\n")
	assert.True(t, strings.HasSuffix(gen.calls[0].system, "Suggested edits:\n- ...\n\nTemplate: Lab Report"))
}

func TestFigures(t *testing.T) {
	gen := &recorder{out: "Figure 1: plot"}
	summary := &dataset.Summary{NTotal: 4, Columns: []string{"a"}}

	res := New(gen, nil).Figures(context.Background(), "j", Context{TheoryText: "th", DataSummary: summary})
	require.True(t, res.OK)
	assert.Equal(t, Diagram, res.Agent)
	assert.Equal(t, "Figure 1: plot", res.Diagram.FiguresText)

	require.Len(t, gen.calls, 1)
	assert.True(t, strings.HasPrefix(gen.calls[0].system, "You suggest helpful figures/plots/diagrams to include in a report.\n\nTemplate: Report\n\nRules:\n"))
	assert.True(t, strings.HasPrefix(gen.calls[0].user, "THEORY / NOTES:\nth\n\nDATA SUMMARY (JSON):\n{\n  \"n_total\": 4,"))
	assert.True(t, strings.HasSuffix(gen.calls[0].user, "}\n\nSuggest figures now."))
}

func TestFigures_Error(t *testing.T) {
	res := New(&recorder{err: errors.New("timeout")}, nil).Figures(context.Background(), "j", Context{})
	assert.False(t, res.OK)
	assert.Equal(t, "Diagram agent failed", res.Error.Message)
}

func TestRegenerateSection(t *testing.T) {
	gen := &recorder{out: "  New conclusion.  "}
	a := New(gen, nil)
	req := SectionRequest{
		Template:   testTemplate(),
		ReportText: "Objective:\nMeasure.\n\nConclusion:\nOld.",
		Section:    "Conclusion",
		TheoryText: "th",
	}

	report, secs, err := a.RegenerateSection(context.Background(), "j", req)
	require.NoError(t, err)
	assert.Equal(t, "Objective:\nMeasure.\n\nConclusion:\nNew conclusion.", report)
	assert.Equal(t, "New conclusion.", secs["Conclusion"])

	require.Len(t, gen.calls, 1)
	assert.Equal(t, regenerateSystem, gen.calls[0].system)
	assert.Equal(t, "TEMPLATE: Lab Report\nTARGET SECTION: Conclusion\n\nCURRENT SECTION BODY:\nOld.\n\n"+
		"THEORY:\nth\n\nDATA SUMMARY (JSON):\n{}\n\nADDITIONAL INSTRUCTIONS:\n(none)\n", gen.calls[0].user)
}

func TestRegenerateSection_Rejects(t *testing.T) {
	a := New(&recorder{out: "x"}, nil)
	base := SectionRequest{Template: testTemplate(), ReportText: "Objective:\nx", Section: "Objective"}

	unknown := base
	unknown.Section = "Appendix"
	_, _, err := a.RegenerateSection(context.Background(), "j", unknown)
	assert.True(t, errors.IsInvalidRequestError(err))

	blank := base
	blank.ReportText = " "
	_, _, err = a.RegenerateSection(context.Background(), "j", blank)
	assert.True(t, errors.IsInvalidRequestError(err))

	_, _, err = New(&recorder{out: "   "}, nil).RegenerateSection(context.Background(), "j", base)
	assert.Error(t, err)
}
