// Package exporter writes usage reports to files.
//
// A report is first split into Sections (summary, top consumers, services,
// ratios, growth, statistics, deciles). CSVWriter stacks all sections into
// one UTF-8 CSV file with a BOM so Excel opens it correctly; XLSXWriter
// puts each section on its own sheet with numeric cells. Exporter chooses
// between them from the file extension.
//
//	exp := exporter.New(paths, logger)
//	path, err := exp.Export("usage-report.xlsx", report)
package exporter
