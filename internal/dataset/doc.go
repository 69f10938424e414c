// Package dataset holds the in-memory record table used by the usage
// analysis and the operations over it: loading CSV and spreadsheet files,
// dropping incomplete rows, numeric coercion, and the aggregate reducers
// (row sums, top-N, category totals, ratios, descriptive statistics,
// correlation, histograms, boxplot statistics and deciles).
//
// Every operation returns a new table and leaves its input untouched.
package dataset
