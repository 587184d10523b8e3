// Package template holds the document-type configurations that drive report
// generation: required section headers, writer rules, reviewer focus, and
// quality rules.
//
// Templates are loaded once at startup and never mutated afterwards. Callers
// receive shared *Config values and must treat them as read-only.
package template

import (
	"strings"

	"github.com/teranos/reportcopilot/errors"
)

// DefaultPreviewRows is the number of CSV rows shown to the writer when a
// template does not override it.
const DefaultPreviewRows = 10

// Config is the immutable configuration of one document type
type Config struct {
	Key             string   `yaml:"key" toml:"key" json:"key"`
	DisplayName     string   `yaml:"display_name" toml:"display_name" json:"display_name"`
	PDFTitleDefault string   `yaml:"pdf_title_default" toml:"pdf_title_default" json:"pdf_title_default"`
	NeedsCSV        bool     `yaml:"needs_csv" toml:"needs_csv" json:"needs_csv"`
	IncludePlots    bool     `yaml:"include_plots" toml:"include_plots" json:"include_plots"`
	IncludeReview   bool     `yaml:"include_review" toml:"include_review" json:"include_review"`
	IncludeFigures  *bool    `yaml:"include_figures,omitempty" toml:"include_figures,omitempty" json:"include_figures,omitempty"` // nil = true
	PreviewRows     int      `yaml:"preview_rows,omitempty" toml:"preview_rows,omitempty" json:"preview_rows,omitempty"`       // 0 = DefaultPreviewRows
	Instructions    string   `yaml:"instructions,omitempty" toml:"instructions,omitempty" json:"instructions,omitempty"`
	Form            Form     `yaml:"form" toml:"form" json:"form"`
	WriterFormat    []string `yaml:"writer_format" toml:"writer_format" json:"writer_format"`
	WriterRules     []string `yaml:"writer_rules" toml:"writer_rules" json:"writer_rules"`
	ReviewerFocus   []string `yaml:"reviewer_focus" toml:"reviewer_focus" json:"reviewer_focus"`
	Quality         Quality  `yaml:"quality" toml:"quality" json:"quality"`
}

// Form describes which inputs a template accepts
type Form struct {
	AllowCSV          bool   `yaml:"allow_csv" toml:"allow_csv" json:"allow_csv"`
	RequireCSV        bool   `yaml:"require_csv" toml:"require_csv" json:"require_csv"`
	AllowReview       bool   `yaml:"allow_review" toml:"allow_review" json:"allow_review"`
	GoalMinLen        int    `yaml:"goal_min_len" toml:"goal_min_len" json:"goal_min_len"`
	GoalPlaceholder   string `yaml:"goal_placeholder" toml:"goal_placeholder" json:"goal_placeholder"`
	ManualPlaceholder string `yaml:"manual_placeholder" toml:"manual_placeholder" json:"manual_placeholder"`
	ExtraPlaceholder  string `yaml:"extra_placeholder" toml:"extra_placeholder" json:"extra_placeholder"`
}

// Quality holds the rules evaluated by the quality gate
type Quality struct {
	MinWords               map[string]int      `yaml:"min_words" toml:"min_words" json:"min_words"`
	RequiredTermsBySection map[string][]string `yaml:"required_terms_by_section" toml:"required_terms_by_section" json:"required_terms_by_section"`
	RequiredGlobalTerms    []string            `yaml:"required_global_terms" toml:"required_global_terms" json:"required_global_terms"`
}

// FiguresEnabled reports whether the diagram step may run (default true)
func (c *Config) FiguresEnabled() bool {
	return c.IncludeFigures == nil || *c.IncludeFigures
}

// PreviewRowCount returns the number of preview rows handed to the writer
func (c *Config) PreviewRowCount() int {
	if c.PreviewRows <= 0 {
		return DefaultPreviewRows
	}
	return c.PreviewRows
}

// Name returns the display name, falling back to the key
func (c *Config) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Key
}

// MergeInstructions joins the template's default instructions with caller
// instructions, separated by a blank line. Blank sides are omitted.
func (c *Config) MergeInstructions(extra string) string {
	var parts []string
	if s := strings.TrimSpace(c.Instructions); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(extra); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}

// ValidateInputs checks a submission against the template's form rules
func (c *Config) ValidateInputs(hasCSV, includeReview bool, goal string) error {
	if c.Form.RequireCSV && !hasCSV {
		return errors.Wrapf(errors.ErrInvalidRequest, "template '%s' requires a CSV upload", c.Key)
	}
	if !c.Form.AllowCSV && hasCSV {
		return errors.Wrapf(errors.ErrInvalidRequest, "template '%s' does not accept CSV uploads", c.Key)
	}
	if includeReview && !c.Form.AllowReview {
		return errors.Wrapf(errors.ErrInvalidRequest, "template '%s' does not support reviewer feedback", c.Key)
	}
	if n := len([]rune(strings.TrimSpace(goal))); n < c.Form.GoalMinLen {
		return errors.Wrapf(errors.ErrInvalidRequest, "template '%s' requires goal length >= %d characters", c.Key, c.Form.GoalMinLen)
	}
	return nil
}

// validate checks structural rules for a template loaded from a file
func (c *Config) validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return errors.New("template key cannot be empty")
	}
	seen := make(map[string]bool, len(c.WriterFormat))
	for _, h := range c.WriterFormat {
		if strings.TrimSpace(h) == "" || h != strings.TrimSpace(h) {
			return errors.Newf("template '%s': header %q must be non-empty and trimmed", c.Key, h)
		}
		if strings.HasSuffix(h, ":") {
			return errors.Newf("template '%s': header %q must not include the trailing colon", c.Key, h)
		}
		if seen[h] {
			return errors.Newf("template '%s': duplicate header %q", c.Key, h)
		}
		seen[h] = true
	}
	for sec, n := range c.Quality.MinWords {
		if n < 0 {
			return errors.Newf("template '%s': min_words for %q must be >= 0, got %d", c.Key, sec, n)
		}
	}
	if c.PreviewRows < 0 {
		return errors.Newf("template '%s': preview_rows must be >= 0, got %d", c.Key, c.PreviewRows)
	}
	return nil
}
