package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usageFixture() *Table {
	return MustNewTable([]string{"User", "DL", "UL"}, [][]Value{
		{txt("u1"), txt("100"), txt("50")},
		{txt("u2"), txt("200"), na},
		{txt("u3"), na, txt("10")},
	})
}

func TestClean_DropIncompleteScenario(t *testing.T) {
	cleaned, err := Clean(usageFixture(), "DL", "UL")
	require.NoError(t, err)
	require.Equal(t, 1, cleaned.Len())

	withTotal, err := RowSum(cleaned, "DL", "UL", "Total")
	require.NoError(t, err)

	total, err := withTotal.Value(0, "Total")
	require.NoError(t, err)
	assert.Equal(t, num(150), total)

	user, _ := withTotal.Value(0, "User")
	assert.Equal(t, txt("u1"), user)
}

func TestDropIncomplete(t *testing.T) {
	tbl := MustNewTable([]string{"a", "b", "label"}, [][]Value{
		{num(1), num(2), txt("x")},
		{num(1), num(2), na},
		{na, na, na},
		{txt("oops"), num(2), txt("y")},
	})

	out := DropIncomplete(tbl)
	assert.Equal(t, 2, out.Len(), "text cells are not missing")
	assert.Equal(t, 4, tbl.Len())
	assertNoMissing(t, out)
}

func TestCoerce(t *testing.T) {
	tbl := MustNewTable([]string{"a", "b"}, [][]Value{
		{txt("1"), txt("keep")},
		{txt("x"), txt("2")},
		{num(3), na},
		{txt("1,500"), txt("3")},
	})

	out, err := Coerce(tbl, []string{"a"})
	require.NoError(t, err)

	a, _ := out.Column("a")
	assert.Equal(t, []Value{num(1), na, num(3), num(1500)}, a)
	b, _ := out.Column("b")
	assert.Equal(t, []Value{txt("keep"), txt("2"), na, txt("3")}, b, "other columns untouched")

	_, err = Coerce(tbl, []string{"missing"})
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestInferNumericColumns(t *testing.T) {
	tbl := MustNewTable([]string{"num", "mixed", "text", "empty", "sep"}, [][]Value{
		{txt("1"), txt("1"), txt("a"), na, txt("1,000")},
		{txt("2.5"), txt("b"), txt("c"), na, txt("2")},
		{na, txt("3"), txt("d"), na, num(4)},
	})

	assert.Equal(t, []string{"num", "sep"}, InferNumericColumns(tbl))
}

func TestClean_Properties(t *testing.T) {
	tests := []struct {
		name string
		tbl  *Table
		cols []string
	}{
		{name: "usage", tbl: usageFixture(), cols: []string{"DL", "UL"}},
		{
			name: "coercion failures",
			tbl: MustNewTable([]string{"k", "v", "w"}, [][]Value{
				{txt("a"), txt("1"), txt("x")},
				{txt("b"), txt("bad"), txt("2")},
				{txt("c"), txt("3"), txt("4")},
				{txt("d"), na, txt("5")},
			}),
			cols: []string{"v", "w"},
		},
		{name: "inferred", tbl: usageFixture()},
		{name: "empty", tbl: MustNewTable([]string{"a"}, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once, err := Clean(tt.tbl, tt.cols...)
			require.NoError(t, err)
			assertNoMissing(t, once)

			for _, c := range tt.cols {
				vals, err := once.Column(c)
				require.NoError(t, err)
				for _, v := range vals {
					assert.Equal(t, KindNumber, v.Kind(), "column %s", c)
				}
			}

			twice, err := Clean(once, tt.cols...)
			require.NoError(t, err)
			assert.True(t, once.Equal(twice), "clean must be idempotent")
		})
	}
}

func TestCleanWithStats(t *testing.T) {
	tbl := MustNewTable([]string{"k", "v"}, [][]Value{
		{txt("a"), txt("1")},
		{txt("b"), na},
		{txt("c"), txt("oops")},
		{txt("d"), txt("4")},
	})

	out, stats, err := CleanWithStats(tbl, "v")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, CleanStats{
		RowsIn:         4,
		RowsDropped:    1,
		RowsCoercedOut: 1,
		RowsOut:        2,
		NumericColumns: []string{"v"},
	}, stats)
}

func TestCleanWithStats_InfersColumns(t *testing.T) {
	_, stats, err := CleanWithStats(usageFixture())
	require.NoError(t, err)
	assert.Equal(t, []string{"DL", "UL"}, stats.NumericColumns)
}

func assertNoMissing(t *testing.T, tbl *Table) {
	t.Helper()
	for i := 0; i < tbl.Len(); i++ {
		for j, v := range tbl.Row(i) {
			assert.False(t, v.IsMissing(), "row %d column %s is missing", i, tbl.Columns()[j])
		}
	}
}
