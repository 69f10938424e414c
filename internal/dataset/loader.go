package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is a supported source file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// ctxCheckInterval is how many rows are read between context checks
const ctxCheckInterval = 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadOptions tunes how a file is read
type LoadOptions struct {
	// Sheet selects a workbook sheet; empty picks the first sheet with a header row
	Sheet string
	// Delimiter for CSV input; zero means ','
	Delimiter rune
	// NAValues are cell contents read as missing; nil means DefaultNAValues
	NAValues []string
}

// DetectFormat maps a file extension to a Format. Every extension that is
// not explicitly supported is an error.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", &UnsupportedFormatError{Path: path, Ext: ext}
	}
}

// Load reads a whole CSV or spreadsheet file into memory
func Load(ctx context.Context, path string) (*Table, error) {
	return LoadWithOptions(ctx, path, LoadOptions{})
}

// LoadWithOptions is Load with explicit options
func LoadWithOptions(ctx context.Context, path string, opts LoadOptions) (*Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := decode(ctx, f, format, opts)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return t, nil
}

// LoadReader reads a table of the given format from r
func LoadReader(ctx context.Context, r io.Reader, format Format, opts LoadOptions) (*Table, error) {
	switch format {
	case FormatCSV, FormatXLSX, FormatXLS:
		return decode(ctx, r, format, opts)
	default:
		return nil, &UnsupportedFormatError{Path: "<reader>", Ext: string(format)}
	}
}

func decode(ctx context.Context, r io.Reader, format Format, opts LoadOptions) (*Table, error) {
	parser := newCellParser(opts.NAValues)
	switch format {
	case FormatCSV:
		return readCSV(ctx, r, opts, parser)
	case FormatXLSX, FormatXLS:
		return readWorkbook(ctx, r, opts, parser)
	default:
		return nil, &UnsupportedFormatError{Ext: string(format)}
	}
}

func readCSV(ctx context.Context, r io.Reader, opts LoadOptions, parser cellParser) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, &ParseError{Err: err}
		}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Err: ErrNoHeader}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}
	columns := uniqueHeader(trimAll(header))

	var rows [][]Value
	for line := 2; ; line++ {
		if line%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		if len(rec) > len(columns) {
			return nil, &ParseError{Line: line, Err: fmt.Errorf("expected %d fields, saw %d", len(columns), len(rec))}
		}
		rows = append(rows, parseRecord(rec, len(columns), parser))
	}

	return NewTable(columns, rows)
}

func readWorkbook(ctx context.Context, r io.Reader, opts LoadOptions, parser cellParser) (*Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if opts.Sheet != "" {
		sheets = []string{opts.Sheet}
	}

	for _, sheet := range sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
		}

		headerAt := firstNonBlank(rows)
		if headerAt < 0 {
			continue
		}
		columns := uniqueHeader(trimAll(rows[headerAt]))

		var data [][]Value
		for i, rec := range rows[headerAt+1:] {
			if i%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if isBlank(rec) {
				continue
			}
			if len(rec) > len(columns) {
				return nil, &ParseError{Line: headerAt + i + 2, Err: fmt.Errorf("expected %d cells, saw %d", len(columns), len(rec))}
			}
			data = append(data, parseRecord(rec, len(columns), parser))
		}
		return NewTable(columns, data)
	}

	return nil, &ParseError{Err: ErrNoHeader}
}

func parseRecord(rec []string, width int, parser cellParser) []Value {
	row := make([]Value, width)
	for i, cell := range rec {
		row[i] = parser.parse(cell)
	}
	return row
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func firstNonBlank(rows [][]string) int {
	for i, row := range rows {
		if !isBlank(row) {
			return i
		}
	}
	return -1
}
