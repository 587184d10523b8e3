package agent

import (
	"context"
	"strings"

	"github.com/teranos/reportcopilot/report/template"
)

func reviewerSystem(cfg *template.Config) string {
	focus := ""
	if cfg != nil && len(cfg.ReviewerFocus) > 0 {
		focus = "Focus areas:\n- " + strings.Join(cfg.ReviewerFocus, "\n- ") + "\n\n"
	}
	prompt := "You are a careful reviewer.\n\n" +
		"Task:\n" +
		"- Review the report and return concise reviewer feedback for the student.\n" +
		"- Do not rewrite the report itself.\n" +
		"- Do not invent facts or numbers.\n" +
		"- Point out missing information explicitly.\n" +
		"- Keep feedback practical and specific.\n\n" +
		focus +
		"Return format (plain text only):\n" +
		"Strengths:\n- ...\n\n" +
		"Issues to fix:\n- ...\n\n" +
		"Suggested edits:\n- ...\n\n" +
		"Template: " + displayName(cfg) + "\n"
	return strings.TrimSpace(prompt)
}

// Review returns feedback on the current report text
func (a *Agents) Review(ctx context.Context, jobID string, in Context) (res StepResult) {
	defer a.recoverStep(Reviewer, jobID, &res)

	if strings.TrimSpace(in.ReportText) == "" {
		return Fail(Reviewer, jobID, "No report provided to reviewer", "")
	}

	user := "REPORT TO REVIEW:\n" + in.ReportText + "\n\nReturn reviewer feedback now."
	feedback, err := a.generate(ctx, jobID, Reviewer, in.Template, reviewerSystem(in.Template), user)
	if err != nil {
		return failed(Reviewer, jobID, err)
	}
	return Success(jobID, &ReviewPayload{ReviewText: feedback})
}
