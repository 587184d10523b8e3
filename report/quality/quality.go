// Package quality implements the rule-based report quality gate.
//
// Evaluate is a pure function of the report text and template: it performs no
// I/O and returns issues in a deterministic order.
package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/teranos/reportcopilot/report/sections"
	"github.com/teranos/reportcopilot/report/template"
)

// Kind classifies a quality issue
type Kind string

const (
	KindMissingHeader     Kind = "missing_header"
	KindTooShort          Kind = "too_short"
	KindMissingTerm       Kind = "missing_term"
	KindMissingGlobalTerm Kind = "missing_global_term"
)

// GlobalSection is the section name reported for document-wide issues
const GlobalSection = "*"

// MaxFixIssues caps how many issues are listed in a fix prompt
const MaxFixIssues = 12

// Issue is one failed quality rule
type Issue struct {
	Kind    Kind   `json:"kind"`
	Section string `json:"section"`
	Detail  string `json:"detail"`
}

// Report is the outcome of one evaluation
type Report struct {
	OK       bool              `json:"ok"`
	Issues   []Issue           `json:"issues"`
	Sections map[string]string `json:"sections"`
}

// Evaluate checks text against the template's required headers and quality
// rules. A nil template has no headers and no rules.
func Evaluate(text string, cfg *template.Config) Report {
	if cfg == nil {
		cfg = &template.Config{}
	}
	headers := cfg.WriterFormat
	secs := map[string]string{}
	if len(headers) > 0 {
		secs = sections.Split(text, headers)
	}

	issues := []Issue{}

	for _, h := range FindMissingHeaders(text, headers) {
		issues = append(issues, Issue{
			Kind:    KindMissingHeader,
			Section: h,
			Detail:  fmt.Sprintf("Missing required header: %s:", h),
		})
	}

	q := cfg.Quality
	for _, sec := range template.SortedSections(q.MinWords, headers) {
		minWords := q.MinWords[sec]
		body := strings.TrimSpace(secs[sec])
		if body == "" {
			continue
		}
		if n := wordCount(body); n < minWords {
			issues = append(issues, Issue{
				Kind:    KindTooShort,
				Section: sec,
				Detail:  fmt.Sprintf("Section '%s' is too short (%d words, expected >= %d).", sec, n, minWords),
			})
		}
	}

	for _, sec := range template.SortedSections(q.RequiredTermsBySection, headers) {
		body := strings.ToLower(secs[sec])
		if body == "" {
			continue
		}
		terms := lowerAll(q.RequiredTermsBySection[sec])
		if len(terms) > 0 && !containsAny(body, terms) {
			issues = append(issues, Issue{
				Kind:    KindMissingTerm,
				Section: sec,
				Detail:  fmt.Sprintf("Section '%s' should mention at least one of: %s.", sec, strings.Join(terms, ", ")),
			})
		}
	}

	lowered := strings.ToLower(text)
	for _, term := range lowerAll(q.RequiredGlobalTerms) {
		if !strings.Contains(lowered, term) {
			issues = append(issues, Issue{
				Kind:    KindMissingGlobalTerm,
				Section: GlobalSection,
				Detail:  fmt.Sprintf("Report should mention: %s", term),
			})
		}
	}

	return Report{OK: len(issues) == 0, Issues: issues, Sections: secs}
}

// FindMissingHeaders returns the headers that do not appear alone on a line
// as "<header>:". Matching is case-insensitive and tolerates whitespace
// around the header and colon.
func FindMissingHeaders(text string, headers []string) []string {
	var missing []string
	for _, h := range headers {
		if !headerPattern(h).MatchString(text) {
			missing = append(missing, h)
		}
	}
	return missing
}

func headerPattern(h string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*` + regexp.QuoteMeta(h) + `[ \t]*:[ \t\r]*$`)
}

// BuildFixPrompt renders the instruction block handed back to the writer when
// the gate fails. Only the first MaxFixIssues issues are listed.
func BuildFixPrompt(issues []Issue, cfg *template.Config) string {
	required := "(template-defined headers)"
	if cfg != nil && len(cfg.WriterFormat) > 0 {
		required = HeaderList(cfg.WriterFormat)
	}

	if len(issues) > MaxFixIssues {
		issues = issues[:MaxFixIssues]
	}
	bullets := make([]string, len(issues))
	for i, issue := range issues {
		bullets[i] = "- " + issue.Detail
	}

	var b strings.Builder
	b.WriteString("IMPORTANT QUALITY FIX PASS:\n")
	b.WriteString("- Revise and return the FULL report.\n")
	b.WriteString("- Keep and preserve exact required headers: " + required + "\n")
	b.WriteString("- Do not invent facts or measurements.\n")
	b.WriteString("- Improve only the sections needed to resolve these quality issues:\n")
	b.WriteString(strings.Join(bullets, "\n") + "\n")
	return b.String()
}

// HeaderList renders headers as "A:, B:, C:"
func HeaderList(headers []string) string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = h + ":"
	}
	return strings.Join(out, ", ")
}

// Kinds returns the distinct issue kinds in first-seen order
func (r Report) Kinds() []Kind {
	var kinds []Kind
	seen := map[Kind]bool{}
	for _, issue := range r.Issues {
		if !seen[issue.Kind] {
			kinds = append(kinds, issue.Kind)
			seen[issue.Kind] = true
		}
	}
	return kinds
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func containsAny(body string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(body, t) {
			return true
		}
	}
	return false
}
