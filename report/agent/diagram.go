package agent

import (
	"context"
	"strings"

	"github.com/teranos/reportcopilot/report/template"
)

func diagramSystem(cfg *template.Config) string {
	prompt := "You suggest helpful figures/plots/diagrams to include in a report.\n\n" +
		"Template: " + displayName(cfg) + "\n\n" +
		"Rules:\n" +
		"- Suggest 3-5 figures maximum.\n" +
		"- Do NOT invent experimental apparatus details.\n" +
		"- If a CSV/data_summary exists, prioritize plots derived from it (e.g., time-series, histogram, box plot).\n" +
		"- Keep suggestions generic and applicable; do not hardcode numbers from a single dataset.\n" +
		"- Output plain text (no markdown), with clear titles and 1-2 sentences each explaining why it helps.\n"
	return strings.TrimSpace(prompt)
}

// Figures suggests figures for the report from the theory and data summary
func (a *Agents) Figures(ctx context.Context, jobID string, in Context) (res StepResult) {
	defer a.recoverStep(Diagram, jobID, &res)

	summary, err := summaryJSON(in.DataSummary)
	if err != nil {
		return failed(Diagram, jobID, err)
	}
	user := "THEORY / NOTES:\n" + in.TheoryText + "\n\n" +
		"DATA SUMMARY (JSON):\n" + summary + "\n\n" +
		"Suggest figures now."

	text, err := a.generate(ctx, jobID, Diagram, in.Template, diagramSystem(in.Template), user)
	if err != nil {
		return failed(Diagram, jobID, err)
	}
	return Success(jobID, &DiagramPayload{FiguresText: text})
}
