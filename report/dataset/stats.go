package dataset

import (
	"math"
	"sort"
)

// present drops NaN (missing) values
func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// pairwise returns the rows where both x and y are present
func pairwise(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 standard deviation; undefined for fewer than 2 values
func sampleStd(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1)), true
}

// quantile uses linear interpolation between closest ranks on sorted input
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

// iqrOutlierCount counts values outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR].
// Returns 0 when there are no values or the IQR is zero.
func iqrOutlierCount(values []float64) int {
	vals := present(values)
	if len(vals) == 0 {
		return 0
	}
	sorted := sortedCopy(vals)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	if iqr == 0 || math.IsNaN(iqr) {
		return 0
	}
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr

	n := 0
	for _, v := range vals {
		if v < lo || v > hi {
			n++
		}
	}
	return n
}

// linearFit is an ordinary least squares fit of y on x.
// ok is false with fewer than 2 points or zero variance in x.
// r2 is nil when y has zero total sum of squares.
func linearFit(x, y []float64) (slope, intercept float64, r2 *float64, ok bool) {
	if len(x) < 2 {
		return 0, 0, nil, false
	}
	xm, ym := mean(x), mean(y)

	var sxx, sxy float64
	for i := range x {
		dx := x[i] - xm
		sxx += dx * dx
		sxy += dx * (y[i] - ym)
	}
	if sxx == 0 {
		return 0, 0, nil, false
	}
	slope = sxy / sxx
	intercept = ym - slope*xm

	var ssTot, ssRes float64
	for i := range x {
		pred := slope*x[i] + intercept
		ssTot += (y[i] - ym) * (y[i] - ym)
		ssRes += (y[i] - pred) * (y[i] - pred)
	}
	if ssTot != 0 {
		v := 1 - ssRes/ssTot
		r2 = &v
	}
	return slope, intercept, r2, true
}

// pearson returns the correlation of pairwise-complete values.
// ok is false when fewer than 2 pairs remain or either side has zero variance.
func pearson(x, y []float64) (float64, bool) {
	xs, ys := pairwise(x, y)
	if len(xs) < 2 {
		return 0, false
	}
	xm, ym := mean(xs), mean(ys)

	var sxx, syy, sxy float64
	for i := range xs {
		dx, dy := xs[i]-xm, ys[i]-ym
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	r := sxy / math.Sqrt(sxx*syy)
	// clamp rounding drift
	return math.Max(-1, math.Min(1, r)), true
}
