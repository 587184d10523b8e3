package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Highlights are the short findings and calculation strings handed to the writer
type Highlights struct {
	KeyFindings         []string `json:"key_findings"`
	CalculationSnippets []string `json:"calculation_snippets"`
}

// BuildHighlights reduces a summary to plain-language findings.
// A nil summary yields empty highlights.
func BuildHighlights(s *Summary) Highlights {
	h := Highlights{KeyFindings: []string{}, CalculationSnippets: []string{}}
	if s == nil {
		return h
	}

	h.KeyFindings = append(h.KeyFindings, fmt.Sprintf(
		"Dataset has %d rows across %d columns (%d numeric).",
		s.NTotal, len(s.Columns), len(s.NumericColumns),
	))

	if col, pct, ok := highestMissingness(s); ok {
		h.KeyFindings = append(h.KeyFindings, fmt.Sprintf("Highest missingness is in '%s' (%.1f%%).", col, pct))
	}

	if tr := s.Analysis.PrimaryTrend; tr != nil {
		h.KeyFindings = append(h.KeyFindings, fmt.Sprintf(
			"Primary linear trend suggests '%s' changes by %.4g per 1 unit of '%s'.", tr.Y, tr.Slope, tr.X,
		))
		if tr.R2 != nil {
			h.CalculationSnippets = append(h.CalculationSnippets, fmt.Sprintf(
				"Linear fit on (%s, %s): slope=%.6g, intercept=%s, R^2=%.4f", tr.X, tr.Y, tr.Slope, reprFloat(tr.Intercept), *tr.R2,
			))
		}
	}

	if len(s.Analysis.TopCorrelations) > 0 {
		c := s.Analysis.TopCorrelations[0]
		h.KeyFindings = append(h.KeyFindings, fmt.Sprintf(
			"Strongest observed correlation is between '%s' and '%s' (r=%.3f).", c.Pair[0], c.Pair[1], c.Corr,
		))
		h.CalculationSnippets = append(h.CalculationSnippets, fmt.Sprintf(
			"Pearson correlation: r(%s, %s) = %.6g", c.Pair[0], c.Pair[1], c.Corr,
		))
	}

	if col, count := mostOutliers(s); count > 0 {
		h.KeyFindings = append(h.KeyFindings, fmt.Sprintf("Most IQR outliers occur in '%s' (%d points).", col, count))
	}

	return h
}

// highestMissingness picks the column with the largest missing percentage
// among columns with any missing cells. Ties keep column order.
func highestMissingness(s *Summary) (string, float64, bool) {
	type entry struct {
		col string
		pct float64
	}
	var cols []entry
	for _, c := range s.Columns {
		m := s.Analysis.Missingness[c]
		if m.Count > 0 {
			cols = append(cols, entry{c, m.Pct})
		}
	}
	if len(cols) == 0 {
		return "", 0, false
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].pct > cols[j].pct })
	return cols[0].col, cols[0].pct, true
}

// mostOutliers returns the numeric column with the most IQR outliers.
// Ties keep column order.
func mostOutliers(s *Summary) (string, int) {
	best, bestCount := "", -1
	for _, c := range s.NumericColumns {
		if n, ok := s.Analysis.OutliersIQRCount[c]; ok && n > bestCount {
			best, bestCount = c, n
		}
	}
	return best, bestCount
}

// reprFloat renders v as its shortest round-trip form, always with a decimal
// point or exponent ("2.0", "0.125", "1e-05").
func reprFloat(v float64) string {
	abs := math.Abs(v)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
