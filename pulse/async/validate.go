package async

import (
	"os"
	"strings"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/report/dataset"
	"github.com/teranos/reportcopilot/report/template"
)

// Maximum lengths of free-text submission fields, in characters after trimming
var fieldLimits = []struct {
	name string
	max  int
	get  func(Request) string
}{
	{"goal", 3000, func(r Request) string { return r.Goal }},
	{"extra_instructions", 5000, func(r Request) string { return r.ExtraInstructions }},
	{"manual_text", 400000, func(r Request) string { return r.ManualText }},
}

// CSVInfo describes a validated data file
type CSVInfo struct {
	Rows           int      `json:"rows"`
	Columns        []string `json:"columns"`
	NumericColumns []string `json:"numeric_columns"`
}

// ValidateRequest checks a submission against the length limits, the
// template's form rules and, when a CSV is attached, its shape. All
// failures match errors.ErrInvalidRequest.
func ValidateRequest(req Request, cfg *template.Config) (*CSVInfo, error) {
	if cfg == nil {
		return nil, errors.NewInvalidRequestError("template is required")
	}
	for _, f := range fieldLimits {
		if len([]rune(strings.TrimSpace(f.get(req)))) > f.max {
			return nil, errors.NewInvalidRequestError("Field '%s' is too long (max %d chars).", f.name, f.max)
		}
	}
	if err := cfg.ValidateInputs(req.HasCSV(), req.IncludeReview, req.Goal); err != nil {
		return nil, err
	}
	if !req.HasCSV() {
		return nil, nil
	}
	return ValidateCSV(req.CSVPath)
}

// ValidateCSV requires a readable CSV with at least 2 data rows and one numeric column
func ValidateCSV(path string) (*CSVInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "CSV file %s is not readable", path)
	}
	t, err := dataset.Load(path)
	if err != nil {
		return nil, errors.WithSecondaryError(
			errors.NewInvalidRequestError("Could not read CSV. Make sure it is a valid .csv file."), err)
	}
	if len(t.Rows) < 2 {
		return nil, errors.NewInvalidRequestError("CSV must have at least 2 rows of data.")
	}
	numeric := t.NumericColumns()
	if len(numeric) == 0 {
		return nil, errors.NewInvalidRequestError("CSV must contain at least one numeric column.")
	}
	return &CSVInfo{Rows: len(t.Rows), Columns: t.Columns, NumericColumns: numeric}, nil
}
