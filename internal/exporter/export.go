package exporter

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"tellcocli/internal/config"
	"tellcocli/internal/dataset"
	"tellcocli/pkg/contracts/domain"
)

// Exporter picks the report writer from the output file extension
type Exporter struct {
	csv  *CSVWriter
	xlsx *XLSXWriter
}

// New creates an exporter writing relative paths into the reports directory
func New(paths *config.Paths, logger *slog.Logger) *Exporter {
	return &Exporter{
		csv:  NewCSVWriter(paths, logger),
		xlsx: NewXLSXWriter(paths, logger),
	}
}

// Export writes the report as CSV or XLSX and returns the written path
func (e *Exporter) Export(filePath string, report *domain.UsageReport) (string, error) {
	if report == nil {
		return "", fmt.Errorf("export %s: nil report: %w", filePath, dataset.ErrInvalidArgument)
	}
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".csv":
		return e.csv.WriteReport(filePath, report)
	case ".xlsx":
		return e.xlsx.WriteReport(filePath, report)
	default:
		return "", &dataset.UnsupportedFormatError{Path: filePath, Ext: ext}
	}
}

// ExportSection writes a single section, as a plain CSV table or a one
// sheet workbook
func (e *Exporter) ExportSection(filePath string, s Section) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".csv":
		return e.csv.WriteSection(filePath, s)
	case ".xlsx":
		return e.xlsx.WriteSections(filePath, []Section{s})
	default:
		return "", &dataset.UnsupportedFormatError{Path: filePath, Ext: ext}
	}
}

// ContentType returns the MIME type of an export format
func ContentType(format string) string {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "csv":
		return "text/csv; charset=utf-8"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
