package dataset

import (
	"math"
	"sort"
)

// Histogram holds equal-width bin edges and counts. Edges has one more
// entry than Counts; every bin is half-open except the last, which
// includes its upper edge.
type Histogram struct {
	Column string
	Edges  []float64
	Counts []int
}

// NewHistogram bins a column's finite numeric values into equal-width bins.
// A constant column is binned over [v-0.5, v+0.5].
func NewHistogram(t *Table, column string, bins int) (*Histogram, error) {
	if bins <= 0 {
		return nil, invalidArgument("bins must be positive, got %d", bins)
	}
	vals, err := finiteValues(t, column)
	if err != nil {
		return nil, err
	}

	h := &Histogram{Column: column, Edges: make([]float64, bins+1), Counts: make([]int, bins)}
	if len(vals) == 0 {
		return h, nil
	}

	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	width := (hi - lo) / float64(bins)
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*width
	}
	h.Edges[bins] = hi

	for _, v := range vals {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		h.Counts[b]++
	}
	return h, nil
}

// BoxStats summarises a column the way a boxplot draws it. Whiskers reach
// the most extreme values within 1.5 IQR of the quartiles; values beyond
// them are outliers.
type BoxStats struct {
	Column       string
	Count        int
	Min          float64
	Q1           float64
	Median       float64
	Q3           float64
	Max          float64
	IQR          float64
	LowerWhisker float64
	UpperWhisker float64
	LowOutliers  int
	HighOutliers int
}

// Outliers returns the total outlier count
func (b BoxStats) Outliers() int {
	return b.LowOutliers + b.HighOutliers
}

// NewBoxStats computes boxplot statistics for a column
func NewBoxStats(t *Table, column string) (*BoxStats, error) {
	vals, err := finiteValues(t, column)
	if err != nil {
		return nil, err
	}
	nan := math.NaN()
	b := &BoxStats{Column: column, Count: len(vals), Min: nan, Q1: nan, Median: nan, Q3: nan, Max: nan, IQR: nan, LowerWhisker: nan, UpperWhisker: nan}
	if len(vals) == 0 {
		return b, nil
	}

	sort.Float64s(vals)
	b.Min, b.Max = vals[0], vals[len(vals)-1]
	b.Q1 = quantileSorted(vals, 0.25)
	b.Median = quantileSorted(vals, 0.5)
	b.Q3 = quantileSorted(vals, 0.75)
	b.IQR = b.Q3 - b.Q1

	lowFence := b.Q1 - 1.5*b.IQR
	highFence := b.Q3 + 1.5*b.IQR
	b.LowerWhisker, b.UpperWhisker = b.Q1, b.Q3
	for _, v := range vals {
		switch {
		case v < lowFence:
			b.LowOutliers++
		case v > highFence:
			b.HighOutliers++
		default:
			b.LowerWhisker = math.Min(b.LowerWhisker, v)
			b.UpperWhisker = math.Max(b.UpperWhisker, v)
		}
	}
	return b, nil
}

// DecileColumn is the column Deciles appends
const DecileColumn = "Decile"

// DecileSegment aggregates the rows of one decile
type DecileSegment struct {
	Decile int
	Count  int
	KeyMin float64
	KeyMax float64
	Sum    float64
}

// Deciles partitions rows into 10 equal-frequency bins by ranking key
// (ties ranked in row order) and appends a Decile column numbered 1 to 10,
// lowest values first. Rows with a missing key get a missing decile. Each
// segment reports the key range and the sum of sumColumn; sumColumn may
// equal key.
func Deciles(t *Table, key, sumColumn string) (*Table, []DecileSegment, error) {
	order, err := sortedOrder(t, key, false)
	if err != nil {
		return nil, nil, err
	}
	ck := t.index[key]
	cs, err := t.ColumnIndex(sumColumn)
	if err != nil {
		return nil, nil, err
	}

	segments := make([]DecileSegment, 10)
	for i := range segments {
		segments[i] = DecileSegment{Decile: i + 1, KeyMin: math.NaN(), KeyMax: math.NaN()}
	}

	labels := make([]Value, t.Len())
	n := len(order)
	for rank0, row := range order {
		d := decileOf(rank0+1, n)
		labels[row] = Number(float64(d))

		seg := &segments[d-1]
		k, _ := toNumber(t.rows[row][ck]).Float()
		if seg.Count == 0 {
			seg.KeyMin, seg.KeyMax = k, k
		} else {
			seg.KeyMin = math.Min(seg.KeyMin, k)
			seg.KeyMax = math.Max(seg.KeyMax, k)
		}
		seg.Count++
		if s, ok := toNumber(t.rows[row][cs]).Float(); ok {
			seg.Sum += s
		}
	}

	out, err := t.WithColumn(DecileColumn, labels)
	if err != nil {
		return nil, nil, err
	}
	return out, segments, nil
}

// decileOf maps rank r (1..n) to the first decile k whose upper edge
// 1 + (n-1)k/10 is at least r; the edges are the linear quantiles of the ranks
func decileOf(r, n int) int {
	for k := 1; k < 10; k++ {
		edge := 1 + float64(n-1)*float64(k)/10
		if float64(r) <= edge {
			return k
		}
	}
	return 10
}

func finiteValues(t *Table, column string) ([]float64, error) {
	vals, err := numericValues(t, column)
	if err != nil {
		return nil, err
	}
	out := vals[:0]
	for _, v := range vals {
		if !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out, nil
}

// ScatterPoint is one row plotted as (X, Y), identified by its row index
// and label
type ScatterPoint struct {
	Row   int
	Label string
	X     float64
	Y     float64
}

// Scatter pairs the x and y columns row by row. Rows where either value is
// not a finite number are skipped; a missing label renders as empty.
func Scatter(t *Table, label, x, y string) ([]ScatterPoint, error) {
	cl, err := t.ColumnIndex(label)
	if err != nil {
		return nil, err
	}
	cx, err := t.ColumnIndex(x)
	if err != nil {
		return nil, err
	}
	cy, err := t.ColumnIndex(y)
	if err != nil {
		return nil, err
	}

	points := make([]ScatterPoint, 0, len(t.rows))
	for i, row := range t.rows {
		xv, okx := toNumber(row[cx]).Float()
		yv, oky := toNumber(row[cy]).Float()
		if !okx || !oky || math.IsInf(xv, 0) || math.IsInf(yv, 0) {
			continue
		}
		points = append(points, ScatterPoint{Row: i, Label: row[cl].String(), X: xv, Y: yv})
	}
	return points, nil
}
