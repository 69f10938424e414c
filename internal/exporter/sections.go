package exporter

import (
	"strings"
	"time"

	"tellcocli/pkg/contracts/domain"
)

// Section names, also used as XLSX sheet names
const (
	SectionSummary     = "Summary"
	SectionConsumers   = "Top Consumers"
	SectionServices    = "Services"
	SectionRatios      = "Top Ratios"
	SectionGrowth      = "Top Growth"
	SectionStatistics  = "Statistics"
	SectionDeciles     = "Deciles"
	SectionCorrelation = "Correlation"
	SectionHistogram   = "Histogram"
	SectionBoxPlot     = "Box Plot"
	SectionScatter     = "Scatter"
)

// Section is one tabular part of a report. Cells hold string, int,
// float64 or nil (an undefined number).
type Section struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Records renders the rows as text
func (s Section) Records() [][]string {
	out := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = formatCell(v)
		}
		out[i] = rec
	}
	return out
}

// ReportSections splits a report into its sections, in display order
func ReportSections(r *domain.UsageReport) []Section {
	return []Section{
		summarySection(r),
		consumersSection(r.Consumers),
		servicesSection(r.Services, r.GrandTotal),
		labeledSection(SectionRatios, "Download/Upload Ratio", r.Ratios),
		labeledSection(SectionGrowth, "Download Growth", r.Growth),
		statisticsSection(r.Statistics),
		decilesSection(r.Deciles),
	}
}

// FindSection returns the section with the given name, ignoring case
func FindSection(sections []Section, name string) (Section, bool) {
	for _, s := range sections {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Section{}, false
}

// SectionNames lists the names of sections
func SectionNames(sections []Section) []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.Name
	}
	return names
}

func summarySection(r *domain.UsageReport) Section {
	return Section{
		Name:    SectionSummary,
		Headers: []string{"Field", "Value"},
		Rows: [][]any{
			{"Run ID", r.RunID},
			{"Source", r.Source},
			{"Generated At", r.GeneratedAt.Format(time.RFC3339)},
			{"Division Policy", r.Policy},
			{"Rows Loaded", r.Rows.Loaded},
			{"Rows Dropped (incomplete)", r.Rows.Incomplete},
			{"Rows Dropped (non-numeric)", r.Rows.CoercedOut},
			{"Rows Kept", r.Rows.Kept},
			{"Users", r.Behavior.Users},
			{"Mean Total Data (Bytes)", opt(r.Behavior.Mean)},
			{"Std Total Data (Bytes)", opt(r.Behavior.Std)},
			{"Grand Total (Bytes)", r.GrandTotal},
		},
	}
}

func consumersSection(consumers []domain.Consumer) Section {
	s := Section{
		Name:    SectionConsumers,
		Headers: []string{"Rank", "Label", "Total (Bytes)", "Download (Bytes)", "Upload (Bytes)"},
	}
	for _, c := range consumers {
		s.Rows = append(s.Rows, []any{c.Rank, c.Label, c.TotalBytes, c.Download, c.Upload})
	}
	return s
}

func servicesSection(services []domain.ServiceTotal, grand float64) Section {
	s := Section{
		Name:    SectionServices,
		Headers: []string{"Service", "Download (Bytes)", "Upload (Bytes)", "Total (Bytes)", "Share (%)"},
	}
	for _, svc := range services {
		s.Rows = append(s.Rows, []any{svc.Service, svc.Download, svc.Upload, svc.Total, roundTo(svc.Share*100, 2)})
	}
	s.Rows = append(s.Rows, []any{"All services", nil, nil, grand, nil})
	return s
}

func labeledSection(name, valueHeader string, values []domain.LabeledValue) Section {
	s := Section{Name: name, Headers: []string{"Rank", "Label", valueHeader}}
	for i, lv := range values {
		s.Rows = append(s.Rows, []any{i + 1, lv.Label, opt(lv.Value)})
	}
	return s
}

func statisticsSection(stats []domain.ColumnStatistics) Section {
	s := Section{
		Name:    SectionStatistics,
		Headers: []string{"Column", "Count", "Mean", "Std", "Min", "25%", "50%", "75%", "Max"},
	}
	for _, cs := range stats {
		s.Rows = append(s.Rows, []any{
			cs.Column, cs.Count, opt(cs.Mean), opt(cs.Std), opt(cs.Min),
			opt(cs.Q25), opt(cs.Median), opt(cs.Q75), opt(cs.Max),
		})
	}
	return s
}

func decilesSection(deciles []domain.DecileSegment) Section {
	s := Section{
		Name:    SectionDeciles,
		Headers: []string{"Decile", "Users", "Min (Bytes)", "Max (Bytes)", "Total (Bytes)"},
	}
	for _, d := range deciles {
		s.Rows = append(s.Rows, []any{d.Decile, d.Users, opt(d.Min), opt(d.Max), d.Total})
	}
	return s
}

// CorrelationSection lays out a correlation matrix with column names as
// both the header and the first cell of each row
func CorrelationSection(m *domain.CorrelationMatrix) Section {
	s := Section{Name: SectionCorrelation, Headers: append([]string{""}, m.Columns...)}
	for i, row := range m.Values {
		cells := make([]any, 0, len(row)+1)
		cells = append(cells, m.Columns[i])
		for _, v := range row {
			cells = append(cells, opt(v))
		}
		s.Rows = append(s.Rows, cells)
	}
	return s
}

// HistogramSection lists one row per bin
func HistogramSection(h *domain.Histogram) Section {
	s := Section{
		Name:    SectionHistogram,
		Headers: []string{"Bin", "From", "To", "Count"},
	}
	for i, c := range h.Counts {
		s.Rows = append(s.Rows, []any{i + 1, h.Edges[i], h.Edges[i+1], c})
	}
	return s
}

// BoxPlotSection lists the boxplot statistics of one column
func BoxPlotSection(b *domain.BoxPlot) Section {
	return Section{
		Name:    SectionBoxPlot,
		Headers: []string{"Statistic", b.Column},
		Rows: [][]any{
			{"Count", b.Count},
			{"Min", opt(b.Min)},
			{"Lower Whisker", opt(b.LowerWhisker)},
			{"Q1", opt(b.Q1)},
			{"Median", opt(b.Median)},
			{"Q3", opt(b.Q3)},
			{"Upper Whisker", opt(b.UpperWhisker)},
			{"Max", opt(b.Max)},
			{"IQR", opt(b.IQR)},
			{"Low Outliers", b.LowOutliers},
			{"High Outliers", b.HighOutliers},
		},
	}
}

// opt unwraps an optional number; nil stays an untyped nil cell
func opt(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// ScatterSection lists one row per plotted user
func ScatterSection(sc *domain.Scatter) Section {
	s := Section{
		Name:    SectionScatter,
		Headers: []string{"Row", "Label", sc.X, sc.Y},
	}
	for _, p := range sc.Points {
		s.Rows = append(s.Rows, []any{p.Row, p.Label, p.X, p.Y})
	}
	return s
}
