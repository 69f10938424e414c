package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"tellcocli/internal/config"
	"tellcocli/pkg/contracts/domain"
)

// maxSheetName is Excel's sheet name length limit
const maxSheetName = 31

// XLSXWriter writes reports as workbooks with one sheet per section
type XLSXWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewXLSXWriter creates an XLSX writer; paths resolve like NewCSVWriter's
func NewXLSXWriter(paths *config.Paths, logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{paths: paths, logger: logger.With(slog.String("component", "xlsx_exporter"))}
}

// WriteReport writes every report section to its own sheet
func (w *XLSXWriter) WriteReport(filePath string, report *domain.UsageReport) (string, error) {
	return w.WriteSections(filePath, ReportSections(report))
}

// WriteSections writes sections to a workbook in order. Numbers are stored
// as numeric cells and undefined values as empty cells.
func (w *XLSXWriter) WriteSections(filePath string, sections []Section) (string, error) {
	if len(sections) == 0 {
		return "", fmt.Errorf("write workbook: no sections")
	}
	fullPath := filePath
	if !filepath.IsAbs(filePath) && w.paths != nil {
		fullPath = w.paths.GetReportPath(filePath)
	}

	w.logger.Info("Writing XLSX report",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("sheets", len(sections)))

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return "", fmt.Errorf("create header style: %w", err)
	}

	for i, s := range sections {
		name := sheetName(s.Name)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return "", fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return "", fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, s, headerStyle); err != nil {
			return "", fmt.Errorf("write sheet %s: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return fullPath, nil
}

func writeSheet(f *excelize.File, sheet string, s Section, headerStyle int) error {
	header := make([]any, len(s.Headers))
	for i, h := range s.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		copy(values, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if len(s.Headers) == 0 {
		return nil
	}
	last, err := excelize.ColumnNumberToName(len(s.Headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 20)
}

// sheetName truncates to Excel's limit
func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}
