// Package dataset loads tabular CSV data and reduces it to descriptive
// statistics and short natural-language highlights for the writer.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/teranos/reportcopilot/errors"
)

// missingTokens are cell values treated as missing, matching common CSV exports
var missingTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true, "N/A": true,
	"NA": true, "NULL": true, "NaN": true, "None": true, "n/a": true, "nan": true, "null": true,
}

// Table is a parsed CSV file. Rows are padded to len(Columns).
type Table struct {
	Columns []string
	Rows    [][]string

	numeric map[string][]float64
}

// Load reads a CSV file with a header row
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return t, nil
}

// Parse reads CSV data with a header row from r
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("csv has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{Columns: dedupeColumns(header)}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read row %d", line)
		}
		if len(record) > len(t.Columns) {
			return nil, errors.Newf("row %d has %d fields, header has %d", line, len(record), len(t.Columns))
		}
		for len(record) < len(t.Columns) {
			record = append(record, "")
		}
		t.Rows = append(t.Rows, record)
	}

	t.detectNumeric()
	return t, nil
}

// dedupeColumns renames repeated column names to "name.1", "name.2", ...
func dedupeColumns(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if n, ok := seen[name]; ok {
			candidate := fmt.Sprintf("%s.%d", name, n)
			for seen[candidate] > 0 {
				n++
				candidate = fmt.Sprintf("%s.%d", name, n)
			}
			seen[name] = n + 1
			seen[candidate] = 1
			out[i] = candidate
			continue
		}
		seen[name] = 1
		out[i] = name
	}
	return out
}

// IsMissing reports whether a cell counts as missing
func IsMissing(cell string) bool {
	return missingTokens[strings.TrimSpace(cell)]
}

// detectNumeric marks a column numeric iff it has at least one non-missing
// cell and every non-missing cell parses as a float. Non-finite values
// (inf, nan spellings) are stored as missing so summaries stay JSON-encodable.
func (t *Table) detectNumeric() {
	t.numeric = make(map[string][]float64)
	for c, name := range t.Columns {
		values := make([]float64, len(t.Rows))
		present := 0
		ok := true
		for r, row := range t.Rows {
			cell := row[c]
			if IsMissing(cell) {
				values[r] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				ok = false
				break
			}
			if math.IsInf(v, 0) || math.IsNaN(v) {
				values[r] = math.NaN()
				continue
			}
			values[r] = v
			present++
		}
		if ok && present > 0 {
			t.numeric[name] = values
		}
	}
}

// NumericColumns returns numeric column names in file order
func (t *Table) NumericColumns() []string {
	var out []string
	for _, name := range t.Columns {
		if _, ok := t.numeric[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Values returns the parsed values of a numeric column (NaN = missing)
func (t *Table) Values(column string) ([]float64, bool) {
	v, ok := t.numeric[column]
	return v, ok
}

// MissingCount returns the number of missing cells in column index c
func (t *Table) MissingCount(c int) int {
	n := 0
	if values, ok := t.numeric[t.Columns[c]]; ok {
		for _, v := range values {
			if math.IsNaN(v) {
				n++
			}
		}
		return n
	}
	for _, row := range t.Rows {
		if IsMissing(row[c]) {
			n++
		}
	}
	return n
}

// Head returns the first n rows as column -> value maps.
// Numeric cells are float64, missing cells nil, everything else string.
func (t *Table) Head(n int) []map[string]any {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([]map[string]any, 0, max(n, 0))
	for r := 0; r < n; r++ {
		rec := make(map[string]any, len(t.Columns))
		for c, name := range t.Columns {
			values := t.numeric[name]
			switch {
			case IsMissing(t.Rows[r][c]):
				rec[name] = nil
			case values != nil && math.IsNaN(values[r]):
				rec[name] = nil
			case values != nil:
				rec[name] = values[r]
			default:
				rec[name] = t.Rows[r][c]
			}
		}
		out = append(out, rec)
	}
	return out
}
