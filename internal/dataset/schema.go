package dataset

import (
	"errors"
	"fmt"
)

// Service names one usage category and its download/upload byte columns
type Service struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Download string `yaml:"download" json:"download" validate:"required"`
	Upload   string `yaml:"upload" json:"upload" validate:"required"`
}

// Schema maps logical fields to physical column names
type Schema struct {
	Label         string    `yaml:"label" json:"label" validate:"required"`
	TotalDownload string    `yaml:"total_download" json:"total_download" validate:"required"`
	TotalUpload   string    `yaml:"total_upload" json:"total_upload" validate:"required"`
	Services      []Service `yaml:"services" json:"services" validate:"dive"`

	// Derived column names written by the pipeline
	TotalData string `yaml:"total_data" json:"total_data" validate:"required"`
	Ratio     string `yaml:"ratio" json:"ratio" validate:"required"`
	Growth    string `yaml:"growth" json:"growth" validate:"required"`
}

// DefaultSchema returns the column layout of the TellCo xDR export
func DefaultSchema() Schema {
	return Schema{
		Label:         "Last Location Name",
		TotalDownload: "Total DL (Bytes)",
		TotalUpload:   "Total UL (Bytes)",
		Services: []Service{
			{Name: "Youtube", Download: "Youtube DL (Bytes)", Upload: "Youtube UL (Bytes)"},
			{Name: "Netflix", Download: "Netflix DL (Bytes)", Upload: "Netflix UL (Bytes)"},
			{Name: "Gaming", Download: "Gaming DL (Bytes)", Upload: "Gaming UL (Bytes)"},
			{Name: "Other", Download: "Other DL (Bytes)", Upload: "Other UL (Bytes)"},
		},
		TotalData: "Total Data (Bytes)",
		Ratio:     "Download Upload Ratio",
		Growth:    "Total Download Growth",
	}
}

// NumericColumns lists every source column that must be numeric, totals first
func (s Schema) NumericColumns() []string {
	cols := []string{s.TotalDownload, s.TotalUpload}
	for _, svc := range s.Services {
		cols = append(cols, svc.Download, svc.Upload)
	}
	return cols
}

// DownloadColumns lists the per-service download columns
func (s Schema) DownloadColumns() []string {
	cols := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		cols = append(cols, svc.Download)
	}
	return cols
}

// UploadColumns lists the per-service upload columns
func (s Schema) UploadColumns() []string {
	cols := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		cols = append(cols, svc.Upload)
	}
	return cols
}

// Bind checks that every column the schema names exists in t. All missing
// columns are reported together; each is a *MissingColumnError.
func (s Schema) Bind(t *Table) error {
	type field struct{ name, column string }
	fields := []field{
		{"label", s.Label},
		{"total_download", s.TotalDownload},
		{"total_upload", s.TotalUpload},
	}
	for i, svc := range s.Services {
		fields = append(fields,
			field{fmt.Sprintf("services[%d].download", i), svc.Download},
			field{fmt.Sprintf("services[%d].upload", i), svc.Upload},
		)
	}

	var errs []error
	for _, f := range fields {
		if !t.HasColumn(f.column) {
			errs = append(errs, &MissingColumnError{Column: f.column, Field: f.name})
		}
	}
	return errors.Join(errs...)
}
