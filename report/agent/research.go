package agent

import (
	"context"
	"strings"
)

const researchSystem = `You extract and summarize theory/notes from the provided manual text.

Rules:
- Only use what the user provided in manual_text.
- If information is missing, list it under "Missing Info / Clarifications Needed".
- Keep it structured and detailed.
- Preserve broad topic coverage from the source (do not collapse many topics into a few bullets).
- Prefer specific, content-rich bullets over generic summaries.

Return format:
Key Concepts:
Variables & Units:
Equations/Models:
Procedure Requirements:
Assumptions (explicitly stated in manual):
Missing Info / Clarifications Needed:
`

// Research headers, in the order the research prompt lists them
const (
	hdrKeyConcepts    = "Key Concepts:"
	hdrVariablesUnits = "Variables & Units:"
	hdrEquations      = "Equations/Models:"
	hdrProcedure      = "Procedure Requirements:"
	hdrAssumptions    = "Assumptions (explicitly stated in manual):"
	hdrMissingInfo    = "Missing Info / Clarifications Needed:"
)

var researchHeaders = []string{hdrKeyConcepts, hdrVariablesUnits, hdrEquations, hdrProcedure, hdrAssumptions, hdrMissingInfo}

// Research extracts structured theory from the manual text
func (a *Agents) Research(ctx context.Context, jobID string, in Context) (res StepResult) {
	defer a.recoverStep(Research, jobID, &res)

	user := "GOAL:\n" + strings.TrimSpace(in.Goal) + "\n\n" +
		"MANUAL / NOTES TEXT:\n" + strings.TrimSpace(in.ManualText) + "\n\n" +
		"Extract the structured theory now."

	theory, err := a.generate(ctx, jobID, Research, in.Template, researchSystem, user)
	if err != nil {
		return failed(Research, jobID, err)
	}

	facts := ParseResearchFacts(theory)
	var warnings []string
	if facts.Empty() {
		warnings = append(warnings, "research output contained none of the expected headers")
	}
	return Success(jobID, &ResearchPayload{TheoryText: theory, Facts: facts}, warnings...)
}

// ParseResearchFacts collects the lines under each research header. Header
// lines match case-insensitively after trimming. Items are split on newlines
// and ";", with leading dashes removed.
func ParseResearchFacts(theory string) ResearchFacts {
	blocks := make(map[string][]string, len(researchHeaders))
	current := ""
	for _, line := range strings.Split(theory, "\n") {
		trimmed := strings.TrimSpace(line)
		hit := ""
		for _, h := range researchHeaders {
			if strings.EqualFold(trimmed, h) {
				hit = h
				break
			}
		}
		if hit != "" {
			current = hit
			continue
		}
		if current != "" {
			blocks[current] = append(blocks[current], line)
		}
	}

	return ResearchFacts{
		KeyConcepts:           splitList(blocks[hdrKeyConcepts]),
		VariablesUnits:        splitList(blocks[hdrVariablesUnits]),
		EquationsModels:       splitList(blocks[hdrEquations]),
		ProcedureRequirements: splitList(blocks[hdrProcedure]),
		Assumptions:           splitList(blocks[hdrAssumptions]),
		MissingInfo:           splitList(blocks[hdrMissingInfo]),
	}
}

func splitList(lines []string) []string {
	items := []string{}
	for _, raw := range lines {
		s := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "-"))
		if s == "" {
			continue
		}
		for _, part := range strings.Split(s, ";") {
			if p := strings.TrimSpace(part); p != "" {
				items = append(items, p)
			}
		}
	}
	return items
}
