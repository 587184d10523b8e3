package agent

import (
	"context"
	"strings"

	"github.com/teranos/reportcopilot/report/sections"
	"github.com/teranos/reportcopilot/report/template"
)

// WriterSystemPrompt renders the writer instructions for a template
func WriterSystemPrompt(cfg *template.Config) string {
	var headers, rules []string
	if cfg != nil {
		headers, rules = cfg.WriterFormat, cfg.WriterRules
	}

	formatNote := "STRUCTURE: Use clear section headers appropriate for the template.\n"
	if len(headers) > 0 {
		var b strings.Builder
		b.WriteString("STRICT FORMAT (use these exact headers, each on its own line, exactly as written):\n")
		for i, h := range headers {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(h + ":")
		}
		b.WriteString("\n")
		formatNote = b.String()
	}

	rulesBlock := ""
	if len(rules) > 0 {
		rulesBlock = "Rules:\n- " + strings.Join(rules, "\n- ") + "\n"
	}

	prompt := "You are a helpful, high-quality writer producing a submission-ready document.\n" +
		"Write in a clear, natural student tone (not AI-sounding).\n\n" +
		"Template: " + displayName(cfg) + "\n\n" +
		formatNote + "\n" +
		rulesBlock + "\n" +
		"General rules:\n" +
		"- Use plain text headers exactly (no bold, no markdown).\n" +
		"- Do not invent facts, equipment models, settings, or numbers not supported by the provided manual_text or data summary.\n" +
		"- If details are missing, label them as assumptions explicitly.\n" +
		"- Keep the writing clean and submission-ready.\n"
	return strings.TrimSpace(prompt)
}

// Write produces the full report. Sections are split out when the template
// defines required headers.
func (a *Agents) Write(ctx context.Context, jobID string, in Context) (res StepResult) {
	defer a.recoverStep(Writer, jobID, &res)

	facts, err := prettyJSON(in.ResearchFacts)
	if err != nil {
		return failed(Writer, jobID, err)
	}
	summary, err := summaryJSON(in.DataSummary)
	if err != nil {
		return failed(Writer, jobID, err)
	}
	highlights, err := prettyJSON(in.DataHighlights)
	if err != nil {
		return failed(Writer, jobID, err)
	}

	user := "THEORY / NOTES EXTRACT:\n" + in.TheoryText + "\n\n" +
		"STRUCTURED RESEARCH FACTS (JSON):\n" + facts + "\n\n" +
		"DATA SUMMARY (JSON):\n" + summary + "\n\n" +
		"DATA HIGHLIGHTS (JSON):\n" + highlights + "\n\n" +
		"EXTRA INSTRUCTIONS:\n" + in.ExtraInstructions + "\n\n" +
		"Prefer the structured facts/highlights when available, and use full data summary for supporting detail.\n" +
		"Write the full document now following the required headers exactly."

	text, err := a.generate(ctx, jobID, Writer, in.Template, WriterSystemPrompt(in.Template), user)
	if err != nil {
		return failed(Writer, jobID, err)
	}

	secs := map[string]string{}
	if in.Template != nil && len(in.Template.WriterFormat) > 0 {
		secs = sections.Split(text, in.Template.WriterFormat)
	}
	return Success(jobID, &WriterPayload{ReportText: text, Sections: secs})
}
