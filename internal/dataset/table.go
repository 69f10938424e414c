package dataset

import (
	"fmt"
	"strconv"
)

// Table is an in-memory record table: named columns in source order and
// rows of values. Operations return new tables and never modify the receiver.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// NewTable builds a table. Column names must be unique; short rows are
// padded with missing values and long rows are rejected.
func NewTable(columns []string, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, invalidArgument("duplicate column %q", name)
		}
		index[name] = i
	}

	normalized := make([][]Value, len(rows))
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, invalidArgument("row %d has %d values for %d columns", i, len(row), len(columns))
		}
		r := make([]Value, len(columns))
		copy(r, row)
		normalized[i] = r
	}

	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{columns: cols, index: index, rows: normalized}, nil
}

// MustNewTable is NewTable that panics on error, for fixtures
func MustNewTable(columns []string, rows [][]Value) *Table {
	t, err := NewTable(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// uniqueHeader renames blank and repeated header cells the way pandas does:
// blanks become "Unnamed: i" and repeats get ".1", ".2" suffixes.
func uniqueHeader(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	suffix := make(map[string]int, len(raw))
	for i, name := range raw {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for used[name] {
			suffix[base]++
			name = fmt.Sprintf("%s.%d", base, suffix[base])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// Columns returns a copy of the column names
func (t *Table) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.columns)
}

// HasColumn reports whether the column exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of a column
func (t *Table) ColumnIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, &MissingColumnError{Column: name}
	}
	return i, nil
}

// Row returns a copy of row i
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.rows[i]))
	copy(row, t.rows[i])
	return row
}

// Value returns the value at row i in the named column
func (t *Table) Value(i int, column string) (Value, error) {
	c, err := t.ColumnIndex(column)
	if err != nil {
		return Value{}, err
	}
	if i < 0 || i >= len(t.rows) {
		return Value{}, invalidArgument("row %d out of range [0,%d)", i, len(t.rows))
	}
	return t.rows[i][c], nil
}

// Column returns a copy of a column's values
func (t *Table) Column(name string) ([]Value, error) {
	c, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	vals := make([]Value, len(t.rows))
	for i, row := range t.rows {
		vals[i] = row[c]
	}
	return vals, nil
}

// Floats returns the numeric values of a column, skipping missing and text cells
func (t *Table) Floats(name string) ([]float64, error) {
	c, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(t.rows))
	for _, row := range t.rows {
		if f, ok := row[c].Float(); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// WithColumn returns a table with the column replaced, or appended when new.
// len(vals) must equal the row count.
func (t *Table) WithColumn(name string, vals []Value) (*Table, error) {
	if len(vals) != len(t.rows) {
		return nil, invalidArgument("column %q has %d values for %d rows", name, len(vals), len(t.rows))
	}

	c, exists := t.index[name]
	columns := t.Columns()
	if !exists {
		c = len(columns)
		columns = append(columns, name)
	}

	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		r := make([]Value, len(columns))
		copy(r, row)
		r[c] = vals[i]
		rows[i] = r
	}
	return newTableUnchecked(columns, rows), nil
}

// Select projects the table onto the given columns, in the given order
func (t *Table) Select(columns ...string) (*Table, error) {
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
		r := make([]Value, len(idx))
		for j, c := range idx {
			r[j] = row[c]
		}
		rows[i] = r
	}
	return NewTable(columns, rows)
}

// Equal reports whether both tables have the same columns and values
func (t *Table) Equal(o *Table) bool {
	if t.Width() != o.Width() || t.Len() != o.Len() {
		return false
	}
	for i, name := range t.columns {
		if o.columns[i] != name {
			return false
		}
	}
	for i, row := range t.rows {
		for j, v := range row {
			if !v.Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// Records renders the table as string records, header first
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.rows)+1)
	out = append(out, t.Columns())
	for _, row := range t.rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = v.String()
		}
		out = append(out, rec)
	}
	return out
}

// pick returns a table holding the given rows, in the given order
func (t *Table) pick(order []int) *Table {
	rows := make([][]Value, len(order))
	for i, r := range order {
		row := make([]Value, len(t.rows[r]))
		copy(row, t.rows[r])
		rows[i] = row
	}
	return newTableUnchecked(t.Columns(), rows)
}

func newTableUnchecked(columns []string, rows [][]Value) *Table {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}
	return &Table{columns: columns, index: index, rows: rows}
}
