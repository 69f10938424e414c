package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"tellcocli/internal/exporter"
	"tellcocli/pkg/contracts/domain"
)

func printSections(w io.Writer, sections []exporter.Section) {
	for _, s := range sections {
		printSection(w, s)
	}
}

func printSection(w io.Writer, s exporter.Section) {
	fmt.Fprintf(w, "\n%s\n", s.Name)

	table := tablewriter.NewWriter(w)
	table.SetHeader(s.Headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(s.Records())
	if len(s.Rows) == 0 {
		table.SetCaption(true, "no rows")
	}
	table.Render()
}

func printRuns(w io.Writer, runs []domain.RunRecord) {
	fmt.Fprintf(w, "\nRecent runs\n")

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Source", "Policy", "Loaded", "Kept", "Total Bytes", "Duration", "Created", "Status"})
	table.SetAutoFormatHeaders(false)
	for _, r := range runs {
		status := string(r.Status)
		if r.Error != "" {
			status += ": " + r.Error
		}
		table.Append([]string{
			r.ID,
			r.Source,
			r.Policy,
			strconv.Itoa(r.RowsLoaded),
			strconv.Itoa(r.RowsKept),
			strconv.FormatFloat(r.TotalBytes, 'f', -1, 64),
			r.Duration.Round(time.Millisecond).String(),
			r.CreatedAt.Local().Format(time.DateTime),
			status,
		})
	}
	table.Render()
}
