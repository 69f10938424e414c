package analysis

import (
	"context"
	"sort"

	"tellcocli/internal/dataset"
	apperrors "tellcocli/internal/errors"
	"tellcocli/pkg/contracts/domain"
)

// Report assembles every report section for a prepared dataset
func (a *Analyzer) Report(ctx context.Context, p *Prepared, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, error) {
	_, span := a.startStage(ctx, "aggregate", p.Source)
	report, err := a.buildReport(p, topN, policy)
	endStage(span, err)
	return report, err
}

func (a *Analyzer) buildReport(p *Prepared, topN int, policy dataset.DivisionPolicy) (*domain.UsageReport, error) {
	consumers, err := a.TopConsumers(p, topN)
	if err != nil {
		return nil, err
	}
	services, grand, err := a.ServiceUsage(p)
	if err != nil {
		return nil, err
	}
	ratios, err := a.Ratios(p, topN, policy)
	if err != nil {
		return nil, err
	}
	growth, err := a.Growth(p, topN, policy)
	if err != nil {
		return nil, err
	}
	behavior, err := a.Behavior(p)
	if err != nil {
		return nil, err
	}
	stats, err := a.Describe(p)
	if err != nil {
		return nil, err
	}
	deciles, err := a.Deciles(p, "")
	if err != nil {
		return nil, err
	}

	return &domain.UsageReport{
		Source: p.Source,
		Policy: policy.String(),
		Rows: domain.RowCounts{
			Loaded:     p.Stats.RowsIn,
			Incomplete: p.Stats.RowsDropped,
			CoercedOut: p.Stats.RowsCoercedOut,
			Kept:       p.Stats.RowsOut,
		},
		TopN:       topN,
		Consumers:  consumers,
		Services:   services,
		GrandTotal: grand,
		Ratios:     ratios,
		Growth:     growth,
		Behavior:   behavior,
		Statistics: stats,
		Deciles:    deciles,
	}, nil
}

// TopConsumers returns the n rows with the highest total data, largest first
func (a *Analyzer) TopConsumers(p *Prepared, n int) ([]domain.Consumer, error) {
	s := p.Schema
	top, err := dataset.TopN(p.Table, s.TotalData, n, s.Label, s.TotalData, s.TotalDownload, s.TotalUpload)
	if err != nil {
		return nil, apperrors.NewComputationError("top consumers", err)
	}

	out := make([]domain.Consumer, top.Len())
	for i := range out {
		row := top.Row(i)
		total, _ := row[1].Float()
		dl, _ := row[2].Float()
		ul, _ := row[3].Float()
		out[i] = domain.Consumer{
			Rank:       i + 1,
			Label:      row[0].String(),
			TotalBytes: total,
			Download:   dl,
			Upload:     ul,
		}
	}
	return out, nil
}

// ServiceUsage returns download plus upload volume per service, largest
// first, and the total across services. Share is each service's fraction
// of that total.
func (a *Analyzer) ServiceUsage(p *Prepared) ([]domain.ServiceTotal, float64, error) {
	s := p.Schema
	downloads, err := dataset.CategorySum(p.Table, s.DownloadColumns())
	if err != nil {
		return nil, 0, apperrors.NewComputationError("service usage", err)
	}
	uploads, err := dataset.CategorySum(p.Table, s.UploadColumns())
	if err != nil {
		return nil, 0, apperrors.NewComputationError("service usage", err)
	}

	grand := dataset.GrandTotal(downloads) + dataset.GrandTotal(uploads)
	out := make([]domain.ServiceTotal, len(s.Services))
	for i, svc := range s.Services {
		total := downloads[i].Total + uploads[i].Total
		share := 0.0
		if grand != 0 {
			share = total / grand
		}
		out[i] = domain.ServiceTotal{
			Service:  svc.Name,
			Download: downloads[i].Total,
			Upload:   uploads[i].Total,
			Total:    total,
			Share:    share,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out, grand, nil
}

// Ratios returns the n highest download/upload ratios
func (a *Analyzer) Ratios(p *Prepared, n int, policy dataset.DivisionPolicy) ([]domain.LabeledValue, error) {
	s := p.Schema
	t, err := dataset.Ratio(p.Table, s.TotalDownload, s.TotalUpload, s.Ratio, policy)
	if err != nil {
		return nil, apperrors.NewComputationError("download upload ratio", err)
	}
	return topPairs(t, s.Label, s.Ratio, n)
}

// Growth returns the n highest (download - upload) / upload values
func (a *Analyzer) Growth(p *Prepared, n int, policy dataset.DivisionPolicy) ([]domain.LabeledValue, error) {
	s := p.Schema
	t, err := dataset.Growth(p.Table, s.TotalDownload, s.TotalUpload, s.Growth, policy)
	if err != nil {
		return nil, apperrors.NewComputationError("download growth", err)
	}
	return topPairs(t, s.Label, s.Growth, n)
}

func topPairs(t *dataset.Table, label, value string, n int) ([]domain.LabeledValue, error) {
	top, err := dataset.TopN(t, value, n)
	if err != nil {
		return nil, apperrors.NewComputationError("top "+value, err)
	}
	pairs, err := dataset.Pairs(top, label, value)
	if err != nil {
		return nil, apperrors.NewComputationError("top "+value, err)
	}
	out := make([]domain.LabeledValue, len(pairs))
	for i, pv := range pairs {
		out[i] = domain.LabeledValue{Label: pv.Label, Value: floatOrNil(pv.Value)}
	}
	return out, nil
}

// Behavior summarises total data per user
func (a *Analyzer) Behavior(p *Prepared) (domain.BehaviorSummary, error) {
	col := p.Schema.TotalData
	mean, std, n, err := dataset.MeanStd(p.Table, col)
	if err != nil {
		return domain.BehaviorSummary{}, apperrors.NewComputationError("user behavior", err)
	}
	return domain.BehaviorSummary{
		Column: col,
		Users:  n,
		Mean:   domain.Float(mean),
		Std:    domain.Float(std),
	}, nil
}

// Describe returns descriptive statistics for columns, or for every
// numeric schema column plus total data when none are given
func (a *Analyzer) Describe(p *Prepared, columns ...string) ([]domain.ColumnStatistics, error) {
	if len(columns) == 0 {
		columns = reportColumns(p.Schema)
	}
	stats, err := dataset.Describe(p.Table, columns...)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ColumnStatistics, len(stats))
	for i, cs := range stats {
		out[i] = domain.ColumnStatistics{
			Column: cs.Column,
			Count:  cs.Count,
			Mean:   domain.Float(cs.Mean),
			Std:    domain.Float(cs.Std),
			Min:    domain.Float(cs.Min),
			Q25:    domain.Float(cs.Q25),
			Median: domain.Float(cs.Q50),
			Q75:    domain.Float(cs.Q75),
			Max:    domain.Float(cs.Max),
		}
	}
	return out, nil
}

// Correlation returns the Pearson matrix of columns, defaulting to the
// report columns
func (a *Analyzer) Correlation(p *Prepared, columns ...string) (*domain.CorrelationMatrix, error) {
	if len(columns) == 0 {
		columns = reportColumns(p.Schema)
	}
	m, err := dataset.Correlation(p.Table, columns...)
	if err != nil {
		return nil, err
	}

	out := &domain.CorrelationMatrix{Columns: m.Columns, Values: make([][]*float64, len(m.Values))}
	for i, row := range m.Values {
		out.Values[i] = make([]*float64, len(row))
		for j, v := range row {
			out.Values[i][j] = domain.Float(v)
		}
	}
	return out, nil
}

// Histogram bins column into bins equal-width bins. An empty column means
// total data; bins <= 0 means the configured default.
func (a *Analyzer) Histogram(p *Prepared, column string, bins int) (*domain.Histogram, error) {
	if column == "" {
		column = p.Schema.TotalData
	}
	if bins <= 0 {
		bins = a.opts.HistogramBins
	}
	h, err := dataset.NewHistogram(p.Table, column, bins)
	if err != nil {
		return nil, err
	}
	return &domain.Histogram{Column: h.Column, Edges: h.Edges, Counts: h.Counts}, nil
}

// BoxPlot returns boxplot statistics for column, total data by default
func (a *Analyzer) BoxPlot(p *Prepared, column string) (*domain.BoxPlot, error) {
	if column == "" {
		column = p.Schema.TotalData
	}
	b, err := dataset.NewBoxStats(p.Table, column)
	if err != nil {
		return nil, err
	}
	return &domain.BoxPlot{
		Column:       b.Column,
		Count:        b.Count,
		Min:          domain.Float(b.Min),
		Q1:           domain.Float(b.Q1),
		Median:       domain.Float(b.Median),
		Q3:           domain.Float(b.Q3),
		Max:          domain.Float(b.Max),
		IQR:          domain.Float(b.IQR),
		LowerWhisker: domain.Float(b.LowerWhisker),
		UpperWhisker: domain.Float(b.UpperWhisker),
		LowOutliers:  b.LowOutliers,
		HighOutliers: b.HighOutliers,
	}, nil
}

// Scatter pairs column x with column y per user, total download against
// total upload by default
func (a *Analyzer) Scatter(p *Prepared, x, y string) (*domain.Scatter, error) {
	if x == "" {
		x = p.Schema.TotalDownload
	}
	if y == "" {
		y = p.Schema.TotalUpload
	}
	points, err := dataset.Scatter(p.Table, p.Schema.Label, x, y)
	if err != nil {
		return nil, err
	}

	out := &domain.Scatter{X: x, Y: y, Points: make([]domain.ScatterPoint, len(points))}
	for i, pt := range points {
		out.Points[i] = domain.ScatterPoint{Row: pt.Row, Label: pt.Label, X: pt.X, Y: pt.Y}
	}
	return out, nil
}

// Deciles segments users into ten equal-frequency groups by column (total
// data by default) and sums total data per group
func (a *Analyzer) Deciles(p *Prepared, column string) ([]domain.DecileSegment, error) {
	if column == "" {
		column = p.Schema.TotalData
	}
	_, segments, err := dataset.Deciles(p.Table, column, p.Schema.TotalData)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DecileSegment, len(segments))
	for i, seg := range segments {
		out[i] = domain.DecileSegment{
			Decile: seg.Decile,
			Users:  seg.Count,
			Min:    domain.Float(seg.KeyMin),
			Max:    domain.Float(seg.KeyMax),
			Total:  seg.Sum,
		}
	}
	return out, nil
}

// reportColumns lists the numeric schema columns followed by total data
func reportColumns(s dataset.Schema) []string {
	return append(s.NumericColumns(), s.TotalData)
}

func floatOrNil(v dataset.Value) *float64 {
	f, ok := v.Float()
	if !ok {
		return nil
	}
	return domain.Float(f)
}
