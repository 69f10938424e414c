package domain

import (
	"math"
	"time"
)

// UsageReport is the full result of one analysis run over a usage dataset
type UsageReport struct {
	RunID       string             `json:"run_id"`
	Source      string             `json:"source"`
	GeneratedAt time.Time          `json:"generated_at"`
	Policy      string             `json:"division_policy"`
	Rows        RowCounts          `json:"rows"`
	TopN        int                `json:"top_n"`
	Consumers   []Consumer         `json:"top_consumers"`
	Services    []ServiceTotal     `json:"services"`
	GrandTotal  float64            `json:"grand_total_bytes"`
	Ratios      []LabeledValue     `json:"top_ratios"`
	Growth      []LabeledValue     `json:"top_growth"`
	Behavior    BehaviorSummary    `json:"behavior"`
	Statistics  []ColumnStatistics `json:"statistics"`
	Deciles     []DecileSegment    `json:"deciles"`
}

// RowCounts tracks rows through the cleaning stage
type RowCounts struct {
	Loaded     int `json:"loaded"`
	Incomplete int `json:"dropped_incomplete"`
	CoercedOut int `json:"dropped_non_numeric"`
	Kept       int `json:"kept"`
}

// Consumer is one row of the top consumer table
type Consumer struct {
	Rank       int     `json:"rank"`
	Label      string  `json:"label"`
	TotalBytes float64 `json:"total_bytes"`
	Download   float64 `json:"download_bytes"`
	Upload     float64 `json:"upload_bytes"`
}

// ServiceTotal is the download and upload volume of one service
type ServiceTotal struct {
	Service  string  `json:"service"`
	Download float64 `json:"download_bytes"`
	Upload   float64 `json:"upload_bytes"`
	Total    float64 `json:"total_bytes"`
	Share    float64 `json:"share"`
}

// LabeledValue pairs a row label with a result that may be undefined.
// Value is nil when the result is missing or not finite.
type LabeledValue struct {
	Label string   `json:"label"`
	Value *float64 `json:"value"`
}

// BehaviorSummary describes per-user total data usage
type BehaviorSummary struct {
	Column string   `json:"column"`
	Users  int      `json:"users"`
	Mean   *float64 `json:"mean"`
	Std    *float64 `json:"std"`
}

// ColumnStatistics is the descriptive summary of one numeric column
type ColumnStatistics struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Std    *float64 `json:"std"`
	Min    *float64 `json:"min"`
	Q25    *float64 `json:"q25"`
	Median *float64 `json:"median"`
	Q75    *float64 `json:"q75"`
	Max    *float64 `json:"max"`
}

// CorrelationMatrix holds Pearson coefficients in column order
type CorrelationMatrix struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// Histogram holds equal-width bins for a column
type Histogram struct {
	Column string    `json:"column"`
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// BoxPlot holds the values a boxplot is drawn from
type BoxPlot struct {
	Column       string   `json:"column"`
	Count        int      `json:"count"`
	Min          *float64 `json:"min"`
	Q1           *float64 `json:"q1"`
	Median       *float64 `json:"median"`
	Q3           *float64 `json:"q3"`
	Max          *float64 `json:"max"`
	IQR          *float64 `json:"iqr"`
	LowerWhisker *float64 `json:"lower_whisker"`
	UpperWhisker *float64 `json:"upper_whisker"`
	LowOutliers  int      `json:"low_outliers"`
	HighOutliers int      `json:"high_outliers"`
}

// ScatterPoint is one user plotted by two columns
type ScatterPoint struct {
	Row   int     `json:"row"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Scatter pairs two columns per user, labelled by location
type Scatter struct {
	X      string         `json:"x"`
	Y      string         `json:"y"`
	Points []ScatterPoint `json:"points"`
}

// DecileSegment summarises one of ten equal-frequency user segments
type DecileSegment struct {
	Decile int      `json:"decile"`
	Users  int      `json:"users"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Total  float64  `json:"total_bytes"`
}

// RunRecord is the stored summary of one analysis run
type RunRecord struct {
	ID         string        `json:"id" db:"id"`
	Source     string        `json:"source" db:"source"`
	Policy     string        `json:"division_policy" db:"policy"`
	RowsLoaded int           `json:"rows_loaded" db:"rows_loaded"`
	RowsKept   int           `json:"rows_kept" db:"rows_kept"`
	TotalBytes float64       `json:"total_bytes" db:"total_bytes"`
	Duration   time.Duration `json:"duration_ns" db:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at" db:"-"`
	Status     RunStatus     `json:"status" db:"status"`
	Error      string        `json:"error,omitempty" db:"error"`
}

// RunStatus is the outcome of a run
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Float returns a pointer to f, or nil when f is NaN or infinite
func Float(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
