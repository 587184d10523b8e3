// Package agent implements the document-generation steps of the report
// pipeline. Every step returns a StepResult: a fixed envelope carrying either
// exactly one typed payload or an error, never both.
package agent

import (
	"github.com/teranos/reportcopilot/report/dataset"
)

// Name identifies a generation step
type Name string

const (
	Research Name = "research"
	Data     Name = "data"
	Writer   Name = "writer"
	Reviewer Name = "reviewer"
	Diagram  Name = "diagram"
)

// StepError describes why a step failed
type StepError struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// StepResult is the outcome of one step. OK results carry the payload matching
// Agent; failed results carry Error and no payload.
type StepResult struct {
	OK       bool       `json:"ok"`
	Agent    Name       `json:"agent"`
	JobID    string     `json:"job_id"`
	Warnings []string   `json:"warnings"`
	Error    *StepError `json:"error,omitempty"`

	Research *ResearchPayload `json:"research,omitempty"`
	Data     *DataPayload     `json:"data,omitempty"`
	Writer   *WriterPayload   `json:"writer,omitempty"`
	Review   *ReviewPayload   `json:"review,omitempty"`
	Diagram  *DiagramPayload  `json:"diagram,omitempty"`
}

// Payload is implemented by the per-step payload types
type Payload interface {
	attach(r *StepResult)
}

// ResearchFacts are the structured lists parsed out of the research text
type ResearchFacts struct {
	KeyConcepts           []string `json:"key_concepts"`
	VariablesUnits        []string `json:"variables_units"`
	EquationsModels       []string `json:"equations_models"`
	ProcedureRequirements []string `json:"procedure_requirements"`
	Assumptions           []string `json:"assumptions"`
	MissingInfo           []string `json:"missing_info"`
}

// Empty reports whether no facts were found
func (f ResearchFacts) Empty() bool {
	return len(f.KeyConcepts)+len(f.VariablesUnits)+len(f.EquationsModels)+
		len(f.ProcedureRequirements)+len(f.Assumptions)+len(f.MissingInfo) == 0
}

type ResearchPayload struct {
	TheoryText string        `json:"theory_text"`
	Facts      ResearchFacts `json:"research_facts"`
}

// DataPayload carries the dataset summary. Summary is nil when no CSV was supplied.
type DataPayload struct {
	Summary    *dataset.Summary   `json:"data_summary"`
	Highlights dataset.Highlights `json:"data_highlights"`
}

type WriterPayload struct {
	ReportText string            `json:"report_text"`
	Sections   map[string]string `json:"sections"`
}

type ReviewPayload struct {
	ReviewText string `json:"review_text"`
}

type DiagramPayload struct {
	FiguresText string `json:"figures_text"`
}

func (p *ResearchPayload) attach(r *StepResult) { r.Agent, r.Research = Research, p }
func (p *DataPayload) attach(r *StepResult)     { r.Agent, r.Data = Data, p }
func (p *WriterPayload) attach(r *StepResult)   { r.Agent, r.Writer = Writer, p }
func (p *ReviewPayload) attach(r *StepResult)   { r.Agent, r.Review = Reviewer, p }
func (p *DiagramPayload) attach(r *StepResult)  { r.Agent, r.Diagram = Diagram, p }

// Success builds an OK result; the agent name follows from the payload type
func Success(jobID string, payload Payload, warnings ...string) StepResult {
	r := StepResult{OK: true, JobID: jobID, Warnings: []string{}}
	r.Warnings = append(r.Warnings, warnings...)
	payload.attach(&r)
	return r
}

// Fail builds a failed result with no payload
func Fail(agent Name, jobID, message, detail string) StepResult {
	return StepResult{
		Agent:    agent,
		JobID:    jobID,
		Warnings: []string{},
		Error:    &StepError{Message: message, Detail: detail},
	}
}

// ErrorMessage returns "message: detail", or just the message when there is no detail
func (r StepResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	if r.Error.Detail == "" {
		return r.Error.Message
	}
	return r.Error.Message + ": " + r.Error.Detail
}

// ReportText returns the writer output of an OK writer result, or ""
func (r StepResult) ReportText() string {
	if !r.OK || r.Writer == nil {
		return ""
	}
	return r.Writer.ReportText
}
