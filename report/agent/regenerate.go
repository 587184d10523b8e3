package agent

import (
	"context"
	"strings"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/report/dataset"
	"github.com/teranos/reportcopilot/report/sections"
	"github.com/teranos/reportcopilot/report/template"
)

// regenerateStep tags section rewrites in usage rows
const regenerateStep Name = "regenerate_section"

const regenerateSystem = "You revise exactly one report section.\n" +
	"Rules:\n" +
	"- Return only the rewritten section body text (no section header).\n" +
	"- Preserve factual consistency with theory/data.\n" +
	"- Do not invent measurements.\n" +
	"- Keep it detailed, clear, and submission-ready.\n"

// SectionRequest asks for one section of a finished report to be rewritten
type SectionRequest struct {
	Template     *template.Config
	ReportText   string
	Section      string
	TheoryText   string
	DataSummary  *dataset.Summary
	Instructions string
}

// RegenerateSection rewrites one section and returns the reassembled report
// along with its section map.
func (a *Agents) RegenerateSection(ctx context.Context, jobID string, req SectionRequest) (string, map[string]string, error) {
	if req.Template == nil {
		return "", nil, errors.NewInvalidRequestError("template is required")
	}
	target := strings.TrimSpace(req.Section)
	if target == "" {
		return "", nil, errors.NewInvalidRequestError("section is required")
	}
	headers := req.Template.WriterFormat
	if len(headers) == 0 {
		return "", nil, errors.NewInvalidRequestError("template '%s' has no sections to regenerate", req.Template.Key)
	}
	known := false
	for _, h := range headers {
		if h == target {
			known = true
			break
		}
	}
	if !known {
		return "", nil, errors.NewInvalidRequestError("unknown section '%s' for template '%s'", target, req.Template.Key)
	}
	if strings.TrimSpace(req.ReportText) == "" {
		return "", nil, errors.NewInvalidRequestError("no report draft available for regeneration")
	}

	secs := sections.Split(req.ReportText, headers)
	summary, err := summaryJSON(req.DataSummary)
	if err != nil {
		return "", nil, err
	}
	extra := strings.TrimSpace(req.Instructions)
	if extra == "" {
		extra = "(none)"
	}

	user := "TEMPLATE: " + req.Template.Name() + "\n" +
		"TARGET SECTION: " + target + "\n\n" +
		"CURRENT SECTION BODY:\n" + secs[target] + "\n\n" +
		"THEORY:\n" + req.TheoryText + "\n\n" +
		"DATA SUMMARY (JSON):\n" + summary + "\n\n" +
		"ADDITIONAL INSTRUCTIONS:\n" + extra + "\n"

	out, err := a.generate(ctx, jobID, regenerateStep, req.Template, regenerateSystem, user)
	if err != nil {
		return "", nil, errors.Wrapf(err, "regenerating section %q", target)
	}
	body := strings.TrimSpace(out)
	if body == "" {
		return "", nil, errors.New("model returned empty section content")
	}

	secs[target] = body
	return sections.Join(secs, headers), secs, nil
}
