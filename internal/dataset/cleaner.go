package dataset

// CleanStats counts what a Clean call removed
type CleanStats struct {
	RowsIn         int
	RowsDropped    int // rows with a missing value on input
	RowsCoercedOut int // rows that lost a value to numeric coercion
	RowsOut        int
	NumericColumns []string
}

// DropIncomplete removes every row holding a missing value in any column
func DropIncomplete(t *Table) *Table {
	keep := make([]int, 0, t.Len())
	for i, row := range t.rows {
		if complete(row) {
			keep = append(keep, i)
		}
	}
	return t.pick(keep)
}

func complete(row []Value) bool {
	for _, v := range row {
		if v.IsMissing() {
			return false
		}
	}
	return true
}

// Coerce converts the named columns to numbers. Values that do not parse
// become missing; an unknown column is an error.
func Coerce(t *Table, columns []string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, name := range columns {
		c, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = c
	}

	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		r := make([]Value, len(row))
		copy(r, row)
		for _, c := range idx {
			r[c] = toNumber(r[c])
		}
		rows[i] = r
	}
	return newTableUnchecked(t.Columns(), rows), nil
}

// InferNumericColumns returns, in table order, the columns whose present
// values all parse as numbers. Columns with no present value are skipped.
func InferNumericColumns(t *Table) []string {
	var out []string
	for c, name := range t.columns {
		seen := false
		numeric := true
		for _, row := range t.rows {
			v := row[c]
			switch v.Kind() {
			case KindMissing:
				continue
			case KindText:
				if _, ok := parseNumber(v.text); !ok {
					numeric = false
				}
			}
			seen = true
			if !numeric {
				break
			}
		}
		if seen && numeric {
			out = append(out, name)
		}
	}
	return out
}

// Clean drops incomplete rows and coerces the given columns to numbers,
// inferring the numeric columns when none are given. Rows that lose a
// value to coercion are dropped too, so the result has no missing value
// and Clean(Clean(t, cols), cols) equals Clean(t, cols).
func Clean(t *Table, columns ...string) (*Table, error) {
	out, _, err := CleanWithStats(t, columns...)
	return out, err
}

// CleanWithStats is Clean that also reports row counts
func CleanWithStats(t *Table, columns ...string) (*Table, CleanStats, error) {
	stats := CleanStats{RowsIn: t.Len()}

	dropped := DropIncomplete(t)
	stats.RowsDropped = t.Len() - dropped.Len()

	if len(columns) == 0 {
		columns = InferNumericColumns(dropped)
	}
	stats.NumericColumns = append([]string(nil), columns...)

	coerced, err := Coerce(dropped, columns)
	if err != nil {
		return nil, stats, err
	}

	out := DropIncomplete(coerced)
	stats.RowsCoercedOut = coerced.Len() - out.Len()
	stats.RowsOut = out.Len()
	return out, stats, nil
}
