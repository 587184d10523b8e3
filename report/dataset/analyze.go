package dataset

import (
	"math"
	"sort"
	"strings"
)

// MaxCorrelations caps how many correlation pairs a summary keeps
const MaxCorrelations = 5

// timeColumnNames are matched case-insensitively, in priority order, before
// falling back to any column whose name starts with "time".
var timeColumnNames = []string{"time", "t", "time_s", "time_sec", "seconds", "timestamp"}

// Summary is the descriptive statistics computed for one table
type Summary struct {
	NTotal         int              `json:"n_total"`
	PreviewRows    int              `json:"preview_rows"`
	Columns        []string         `json:"columns"`
	NumericColumns []string         `json:"numeric_columns"`
	PreviewHead    []map[string]any `json:"preview_head"`
	Analysis       Analysis         `json:"auto_analysis"`
}

// Analysis groups the automatic checks run over a table
type Analysis struct {
	Missingness      map[string]Missing     `json:"missingness"`
	NumericSummary   map[string]ColumnStats `json:"numeric_summary,omitempty"`
	OutliersIQRCount map[string]int         `json:"outliers_iqr_count,omitempty"`
	PrimaryTrend     *Trend                 `json:"primary_trend,omitempty"`
	TopCorrelations  []Correlation          `json:"top_correlations,omitempty"`
}

// Missing counts missing cells in one column
type Missing struct {
	Count int     `json:"missing_count"`
	Pct   float64 `json:"missing_pct"`
}

// ColumnStats summarises one numeric column. Std is nil below two values.
type ColumnStats struct {
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	Std    *float64 `json:"std"`
}

// Trend is a least-squares line of Y on X. R2 is nil when Y is constant.
type Trend struct {
	X         string   `json:"x"`
	Y         string   `json:"y"`
	NUsed     int      `json:"n_used"`
	Slope     float64  `json:"slope"`
	Intercept float64  `json:"intercept"`
	R2        *float64 `json:"r2"`
}

// Correlation is a Pearson r between two numeric columns
type Correlation struct {
	Pair [2]string `json:"pair"`
	Corr float64   `json:"corr"`
}

// Analyze computes the summary for t, keeping previewRows rows of raw data
func Analyze(t *Table, previewRows int) *Summary {
	numeric := t.NumericColumns()
	s := &Summary{
		NTotal:         len(t.Rows),
		PreviewRows:    previewRows,
		Columns:        append([]string(nil), t.Columns...),
		NumericColumns: append([]string{}, numeric...),
		PreviewHead:    t.Head(previewRows),
		Analysis: Analysis{
			Missingness: make(map[string]Missing, len(t.Columns)),
		},
	}

	for c, name := range t.Columns {
		miss := t.MissingCount(c)
		pct := 0.0
		if len(t.Rows) > 0 {
			pct = float64(miss) / float64(len(t.Rows)) * 100
		}
		s.Analysis.Missingness[name] = Missing{Count: miss, Pct: pct}
	}

	if len(numeric) > 0 {
		s.Analysis.NumericSummary = make(map[string]ColumnStats, len(numeric))
		s.Analysis.OutliersIQRCount = make(map[string]int, len(numeric))
		for _, name := range numeric {
			values, _ := t.Values(name)
			s.Analysis.NumericSummary[name] = columnStats(values)
			s.Analysis.OutliersIQRCount[name] = iqrOutlierCount(values)
		}
	}

	s.Analysis.PrimaryTrend = primaryTrend(t, numeric)
	if len(numeric) >= 2 {
		s.Analysis.TopCorrelations = topCorrelations(t, numeric)
	}

	return s
}

func columnStats(values []float64) ColumnStats {
	vals := present(values)
	sorted := sortedCopy(vals)
	st := ColumnStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean(vals),
		Median: quantile(sorted, 0.5),
	}
	if sd, ok := sampleStd(vals); ok {
		st.Std = &sd
	}
	return st
}

// DetectTimeColumn returns the time-like column, or "" when none matches
func DetectTimeColumn(columns []string) string {
	lower := make(map[string]string, len(columns))
	for _, c := range columns {
		lower[strings.ToLower(c)] = c
	}
	for _, candidate := range timeColumnNames {
		if c, ok := lower[candidate]; ok {
			return c
		}
	}
	for _, c := range columns {
		if strings.HasPrefix(strings.ToLower(c), "time") {
			return c
		}
	}
	return ""
}

// primaryTrend fits the first numeric non-time column against the time column.
// Returns nil when there is no numeric time column, no other numeric column,
// fewer than two complete pairs, or no variance in time.
func primaryTrend(t *Table, numeric []string) *Trend {
	timeCol := DetectTimeColumn(t.Columns)
	if timeCol == "" {
		return nil
	}
	x, ok := t.Values(timeCol)
	if !ok {
		return nil
	}

	yCol := ""
	for _, c := range numeric {
		if c != timeCol {
			yCol = c
			break
		}
	}
	if yCol == "" {
		return nil
	}
	y, _ := t.Values(yCol)

	xs, ys := pairwise(x, y)
	slope, intercept, r2, ok := linearFit(xs, ys)
	if !ok {
		return nil
	}
	return &Trend{X: timeCol, Y: yCol, NUsed: len(xs), Slope: slope, Intercept: intercept, R2: r2}
}

// topCorrelations returns the MaxCorrelations strongest pairs by |r|.
// Pairs with undefined r are skipped; ties keep column order.
func topCorrelations(t *Table, numeric []string) []Correlation {
	var pairs []Correlation
	for i, a := range numeric {
		xa, _ := t.Values(a)
		for _, b := range numeric[i+1:] {
			xb, _ := t.Values(b)
			if r, ok := pearson(xa, xb); ok {
				pairs = append(pairs, Correlation{Pair: [2]string{a, b}, Corr: r})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].Corr) > math.Abs(pairs[j].Corr)
	})
	if len(pairs) > MaxCorrelations {
		pairs = pairs[:MaxCorrelations]
	}
	return pairs
}
