package async

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/report/template"
)

func builtin(t *testing.T, key string) *template.Config {
	t.Helper()
	cfg, err := template.Builtin().Get(key)
	require.NoError(t, err)
	return cfg
}

func TestValidateRequest_FieldLimits(t *testing.T) {
	cfg := builtin(t, "study_guide")

	tests := []struct {
		name    string
		req     Request
		wantMsg string
	}{
		{"goal", Request{Goal: strings.Repeat("g", 3001)}, "Field 'goal' is too long (max 3000 chars)."},
		{"extra", Request{ExtraInstructions: strings.Repeat("e", 5001)}, "Field 'extra_instructions' is too long (max 5000 chars)."},
		{"manual", Request{ManualText: strings.Repeat("m", 400001)}, "Field 'manual_text' is too long (max 400000 chars)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRequest(tt.req, cfg)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidRequestError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("limits count runes after trimming", func(t *testing.T) {
		goal := "  " + strings.Repeat("é", 3000) + "  "
		_, err := ValidateRequest(Request{Goal: goal}, cfg)
		assert.NoError(t, err)
	})
}

func TestValidateRequest_TemplateRules(t *testing.T) {
	csv := writeCSV(t, "time,temp\n0,20\n1,25\n")

	t.Run("lab report requires a CSV", func(t *testing.T) {
		_, err := ValidateRequest(Request{Goal: "g"}, builtin(t, "lab_report"))
		assert.True(t, errors.IsInvalidRequestError(err))
	})

	t.Run("study guide rejects a CSV", func(t *testing.T) {
		_, err := ValidateRequest(Request{CSVPath: csv}, builtin(t, "study_guide"))
		assert.True(t, errors.IsInvalidRequestError(err))
	})

	t.Run("study guide rejects review", func(t *testing.T) {
		_, err := ValidateRequest(Request{IncludeReview: true}, builtin(t, "study_guide"))
		assert.True(t, errors.IsInvalidRequestError(err))
	})

	t.Run("data insights needs a longer goal", func(t *testing.T) {
		_, err := ValidateRequest(Request{CSVPath: csv, Goal: "short"}, builtin(t, "data_insights"))
		assert.True(t, errors.IsInvalidRequestError(err))

		info, err := ValidateRequest(Request{CSVPath: csv, Goal: "Find trends in temperature"}, builtin(t, "data_insights"))
		require.NoError(t, err)
		assert.Equal(t, 2, info.Rows)
	})

	t.Run("no template", func(t *testing.T) {
		_, err := ValidateRequest(Request{}, nil)
		assert.True(t, errors.IsInvalidRequestError(err))
	})

	t.Run("no CSV gives no info", func(t *testing.T) {
		info, err := ValidateRequest(Request{ManualText: "notes"}, builtin(t, "study_guide"))
		require.NoError(t, err)
		assert.Nil(t, info)
	})
}

func TestValidateCSV(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		info, err := ValidateCSV(writeCSV(t, "sample,temp,mass\na,20.5,1\nb,25.1,2\nc,31.0,3\n"))
		require.NoError(t, err)
		assert.Equal(t, 3, info.Rows)
		assert.Equal(t, []string{"sample", "temp", "mass"}, info.Columns)
		assert.Equal(t, []string{"temp", "mass"}, info.NumericColumns)
	})

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"one row", "time,temp\n0,20\n", "CSV must have at least 2 rows of data."},
		{"no numeric column", "name,color\na,red\nb,blue\n", "CSV must contain at least one numeric column."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateCSV(writeCSV(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.IsInvalidRequestError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := ValidateCSV(filepath.Join(t.TempDir(), "nope.csv"))
		assert.True(t, errors.IsInvalidRequestError(err))
	})
}
