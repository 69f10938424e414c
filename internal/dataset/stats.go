package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnStats holds descriptive statistics for one numeric column.
// Fields other than Count are NaN when undefined (Std needs two values).
type ColumnStats struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Q50    float64
	Q75    float64
	Max    float64
}

// Describe computes count, mean, sample standard deviation, min, quartiles
// and max for each column. With no columns it describes every inferred
// numeric column. Missing and text cells are skipped.
func Describe(t *Table, columns ...string) ([]ColumnStats, error) {
	if len(columns) == 0 {
		columns = InferNumericColumns(t)
	}

	out := make([]ColumnStats, 0, len(columns))
	for _, name := range columns {
		vals, err := numericValues(t, name)
		if err != nil {
			return nil, err
		}
		out = append(out, describeValues(name, vals))
	}
	return out, nil
}

func describeValues(name string, vals []float64) ColumnStats {
	nan := math.NaN()
	s := ColumnStats{Column: name, Count: len(vals), Mean: nan, Std: nan, Min: nan, Q25: nan, Q50: nan, Q75: nan, Max: nan}
	if len(vals) == 0 {
		return s
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	s.Mean = stat.Mean(sorted, nil)
	s.Std = sampleStd(sorted)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Q25 = quantileSorted(sorted, 0.25)
	s.Q50 = quantileSorted(sorted, 0.50)
	s.Q75 = quantileSorted(sorted, 0.75)
	return s
}

// sampleStd is the N-1 standard deviation, NaN below two values
func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	return stat.StdDev(vals, nil)
}

// quantileSorted interpolates linearly between the closest ranks:
// h = (n-1)p, q = x[floor(h)] + (h-floor(h)) * (x[floor(h)+1]-x[floor(h)]).
// gonum's stat.Quantile offers Empirical and LinInterp estimators, neither of
// which is this one.
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Quantile returns the p-quantile (0 <= p <= 1) of a column's numeric values
func Quantile(t *Table, column string, p float64) (float64, error) {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, invalidArgument("quantile %v outside [0,1]", p)
	}
	vals, err := numericValues(t, column)
	if err != nil {
		return 0, err
	}
	sort.Float64s(vals)
	return quantileSorted(vals, p), nil
}

// MeanStd returns the mean and sample standard deviation of a column and
// the number of values used
func MeanStd(t *Table, column string) (mean, std float64, n int, err error) {
	vals, err := numericValues(t, column)
	if err != nil {
		return 0, 0, 0, err
	}
	if len(vals) == 0 {
		return math.NaN(), math.NaN(), 0, nil
	}
	return stat.Mean(vals, nil), sampleStd(vals), len(vals), nil
}

// Sum adds a column's numeric values, skipping missing ones
func Sum(t *Table, column string) (float64, error) {
	vals, err := numericValues(t, column)
	if err != nil {
		return 0, err
	}
	return floats.Sum(vals), nil
}

// CorrelationMatrix is a symmetric matrix of Pearson coefficients
type CorrelationMatrix struct {
	Columns []string
	Values  [][]float64
}

// At returns the coefficient between two columns
func (m *CorrelationMatrix) At(a, b string) (float64, error) {
	i, j := -1, -1
	for k, name := range m.Columns {
		if name == a {
			i = k
		}
		if name == b {
			j = k
		}
	}
	if i < 0 {
		return 0, &MissingColumnError{Column: a}
	}
	if j < 0 {
		return 0, &MissingColumnError{Column: b}
	}
	return m.Values[i][j], nil
}

// Correlation computes pairwise Pearson correlation over rows where both
// values are numeric. With no columns it uses every inferred numeric column.
// A pair with fewer than two shared values, or a constant column, yields NaN.
func Correlation(t *Table, columns ...string) (*CorrelationMatrix, error) {
	if len(columns) == 0 {
		columns = InferNumericColumns(t)
	}

	cols := make([][]Value, len(columns))
	for i, name := range columns {
		vals, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = coerceAll(vals)
	}

	m := &CorrelationMatrix{Columns: append([]string(nil), columns...), Values: make([][]float64, len(columns))}
	for i := range m.Values {
		m.Values[i] = make([]float64, len(columns))
	}

	for i := range columns {
		for j := i; j < len(columns); j++ {
			x, y := pairwise(cols[i], cols[j])
			r := pearson(x, y)
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m, nil
}

func pearson(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

func pairwise(a, b []Value) (x, y []float64) {
	for i := range a {
		fa, okA := a[i].Float()
		fb, okB := b[i].Float()
		if okA && okB {
			x = append(x, fa)
			y = append(y, fb)
		}
	}
	return x, y
}

// numericValues coerces a column's text on the fly and drops what does not parse
func numericValues(t *Table, column string) ([]float64, error) {
	vals, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := toNumber(v).Float(); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func coerceAll(vals []Value) []Value {
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = toNumber(v)
	}
	return out
}
