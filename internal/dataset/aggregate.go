package dataset

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// DivisionPolicy decides what a zero denominator produces
type DivisionPolicy int

const (
	// DivisionMissing stores a missing value for the row
	DivisionMissing DivisionPolicy = iota
	// DivisionError fails the whole computation
	DivisionError
	// DivisionInf keeps the IEEE 754 result: ±Inf, or missing for 0/0
	DivisionInf
)

// String returns the policy name used in configuration
func (p DivisionPolicy) String() string {
	switch p {
	case DivisionError:
		return "error"
	case DivisionInf:
		return "inf"
	default:
		return "missing"
	}
}

// ParseDivisionPolicy parses "missing", "error" or "inf"
func ParseDivisionPolicy(s string) (DivisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "missing":
		return DivisionMissing, nil
	case "error":
		return DivisionError, nil
	case "inf", "infinity":
		return DivisionInf, nil
	default:
		return DivisionMissing, invalidArgument("unknown division policy %q", s)
	}
}

// RowSum appends out = a + b computed per row. A missing operand gives a
// missing result.
func RowSum(t *Table, a, b, out string) (*Table, error) {
	return rowWise(t, a, b, out, func(_ int, x, y float64) (Value, error) {
		return Number(x + y), nil
	})
}

// Ratio appends out = num / den computed per row under the given policy
func Ratio(t *Table, num, den, out string, policy DivisionPolicy) (*Table, error) {
	return rowWise(t, num, den, out, func(row int, x, y float64) (Value, error) {
		return divide(row, num, den, x, y, policy)
	})
}

// Growth appends out = (dl - ul) / ul computed per row under the given policy
func Growth(t *Table, dl, ul, out string, policy DivisionPolicy) (*Table, error) {
	return rowWise(t, dl, ul, out, func(row int, x, y float64) (Value, error) {
		return divide(row, dl, ul, x-y, y, policy)
	})
}

func divide(row int, num, den string, x, y float64, policy DivisionPolicy) (Value, error) {
	if y != 0 {
		return Number(x / y), nil
	}
	switch policy {
	case DivisionError:
		return Value{}, &DivisionByZeroError{Row: row, Numerator: num, Denominator: den}
	case DivisionInf:
		// float division by zero yields ±Inf, and NaN for 0/0 which Number stores as missing
		return Number(x / y), nil
	default:
		return Missing(), nil
	}
}

func rowWise(t *Table, a, b, out string, fn func(row int, x, y float64) (Value, error)) (*Table, error) {
	ca, err := t.ColumnIndex(a)
	if err != nil {
		return nil, err
	}
	cb, err := t.ColumnIndex(b)
	if err != nil {
		return nil, err
	}

	vals := make([]Value, t.Len())
	for i, row := range t.rows {
		x, okX := toNumber(row[ca]).Float()
		y, okY := toNumber(row[cb]).Float()
		if !okX || !okY {
			vals[i] = Missing()
			continue
		}
		v, err := fn(i, x, y)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return t.WithColumn(out, vals)
}

// TopN returns the n rows with the largest numeric value in key, largest
// first. Ties keep their original relative order; rows whose key is
// missing are never selected. When keep is given the result holds only
// those columns.
func TopN(t *Table, key string, n int, keep ...string) (*Table, error) {
	if n < 0 {
		return nil, invalidArgument("top n must be non-negative, got %d", n)
	}
	order, err := sortedOrder(t, key, true)
	if err != nil {
		return nil, err
	}
	if n < len(order) {
		order = order[:n]
	}
	top := t.pick(order)
	if len(keep) == 0 {
		return top, nil
	}
	return top.Select(keep...)
}

// SortBy returns the rows stably sorted by a numeric column; missing
// values go last in either direction
func SortBy(t *Table, column string, desc bool) (*Table, error) {
	order, err := sortedOrder(t, column, desc)
	if err != nil {
		return nil, err
	}
	c := t.index[column]
	for i, row := range t.rows {
		if _, ok := toNumber(row[c]).Float(); !ok {
			order = append(order, i)
		}
	}
	return t.pick(order), nil
}

// sortedOrder returns the indices of rows with a numeric key, stably sorted
func sortedOrder(t *Table, key string, desc bool) ([]int, error) {
	c, err := t.ColumnIndex(key)
	if err != nil {
		return nil, err
	}

	type keyed struct {
		row int
		val float64
	}
	ks := make([]keyed, 0, t.Len())
	for i, row := range t.rows {
		if f, ok := toNumber(row[c]).Float(); ok {
			ks = append(ks, keyed{row: i, val: f})
		}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if desc {
			return ks[i].val > ks[j].val
		}
		return ks[i].val < ks[j].val
	})

	order := make([]int, len(ks))
	for i, k := range ks {
		order[i] = k.row
	}
	return order, nil
}

// CategoryTotal is the sum of one column
type CategoryTotal struct {
	Column string
	Total  float64
	Count  int
}

// CategorySum returns one total per column, in the given order. Missing
// values are skipped.
func CategorySum(t *Table, columns []string) ([]CategoryTotal, error) {
	out := make([]CategoryTotal, 0, len(columns))
	for _, name := range columns {
		vals, err := numericValues(t, name)
		if err != nil {
			return nil, err
		}
		out = append(out, CategoryTotal{Column: name, Total: floats.Sum(vals), Count: len(vals)})
	}
	return out, nil
}

// SortedDesc returns the totals largest first, ties in input order
func SortedDesc(totals []CategoryTotal) []CategoryTotal {
	out := append([]CategoryTotal(nil), totals...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out
}

// GrandTotal adds the category totals
func GrandTotal(totals []CategoryTotal) float64 {
	sum := 0.0
	for _, c := range totals {
		sum += c.Total
	}
	return sum
}

// LabeledValue pairs a row label with a numeric result
type LabeledValue struct {
	Label string
	Value Value
}

// Pairs extracts (label, value) pairs from two columns, in row order
func Pairs(t *Table, label, value string) ([]LabeledValue, error) {
	cl, err := t.ColumnIndex(label)
	if err != nil {
		return nil, err
	}
	cv, err := t.ColumnIndex(value)
	if err != nil {
		return nil, err
	}
	out := make([]LabeledValue, t.Len())
	for i, row := range t.rows {
		out[i] = LabeledValue{Label: row[cl].String(), Value: toNumber(row[cv])}
	}
	return out, nil
}

// String renders a pair for logs and debugging
func (lv LabeledValue) String() string {
	return fmt.Sprintf("%s=%s", lv.Label, lv.Value)
}
