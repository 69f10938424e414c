// Command usage-eda analyses a TellCo xDR usage export from the terminal.
//
//	usage-eda -file data.csv | -latest [-top 10] [-policy missing|error|inf] [-schema schema.yaml]
//	          [-sheet name] [-export out.xlsx|out.csv] [-section name] [-interactive]
//	          [-history runs.db] [-runs 20] [-config config.yaml] [-v]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"tellcocli/internal/analysis"
	"tellcocli/internal/config"
	"tellcocli/internal/dataset"
	"tellcocli/internal/exporter"
	"tellcocli/internal/files"
	"tellcocli/internal/infrastructure"
	"tellcocli/internal/store"
	"tellcocli/internal/validation"
	"tellcocli/pkg/contracts"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage error")

// cliOptions holds the parsed command line
type cliOptions struct {
	File        string
	Latest      bool
	ConfigFile  string
	TopN        int
	Policy      string
	SchemaFile  string
	Sheet       string
	Export      string
	Section     string
	Interactive bool
	HistoryDB   string
	Runs        int
	Verbose     bool
	Version     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("usage-eda", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.File, "file", "", "usage dataset to analyse (.csv, .xlsx or .xls)")
	fs.BoolVar(&opts.Latest, "latest", false, "analyse the newest dataset in the configured data directory")
	fs.StringVar(&opts.ConfigFile, "config", "", "YAML config file (defaults to the usual search locations)")
	fs.IntVar(&opts.TopN, "top", 0, "rows in the top-N tables (defaults to the configured value)")
	fs.StringVar(&opts.Policy, "policy", "", "zero denominator policy: missing, error or inf")
	fs.StringVar(&opts.SchemaFile, "schema", "", "YAML column mapping overriding the default header")
	fs.StringVar(&opts.Sheet, "sheet", "", "worksheet to read from workbooks (defaults to the first)")
	fs.StringVar(&opts.Export, "export", "", "write the report, or only -section, to this .csv or .xlsx file")
	fs.StringVar(&opts.Section, "section", "", "print only this section, e.g. \"Top Consumers\" or \"Correlation\"")
	fs.BoolVar(&opts.Interactive, "interactive", false, "pick sections from a menu")
	fs.StringVar(&opts.HistoryDB, "history", "", "SQLite run history to record into")
	fs.IntVar(&opts.Runs, "runs", 0, "list the N most recent runs from -history")
	fs.BoolVar(&opts.Verbose, "v", false, "log pipeline progress to stderr")
	fs.BoolVar(&opts.Version, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	if opts.Version {
		return opts, nil
	}
	if opts.File == "" && !opts.Latest && opts.Runs == 0 {
		return nil, fmt.Errorf("%w: -file is required", errUsage)
	}
	if opts.File != "" && opts.Latest {
		return nil, fmt.Errorf("%w: -file and -latest are exclusive", errUsage)
	}
	if opts.Runs < 0 || opts.Runs > config.MaxRunHistory {
		return nil, fmt.Errorf("%w: -runs must be between 1 and %d", errUsage, config.MaxRunHistory)
	}
	if opts.Runs > 0 && opts.HistoryDB == "" {
		return nil, fmt.Errorf("%w: -runs needs -history", errUsage)
	}
	if opts.TopN < 0 {
		return nil, fmt.Errorf("%w: -top must be positive", errUsage)
	}
	if opts.Interactive && opts.Section != "" {
		return nil, fmt.Errorf("%w: -interactive and -section are exclusive", errUsage)
	}
	return opts, nil
}

// loadConfig overlays the command line on the file and environment config
func loadConfig(opts *cliOptions) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.ConfigFile != "" {
		cfg, err = config.LoadFrom(opts.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.TopN > 0 {
		cfg.Analysis.TopN = opts.TopN
	}
	if opts.Policy != "" {
		cfg.Analysis.DivisionPolicy = strings.ToLower(opts.Policy)
	}
	if opts.SchemaFile != "" {
		cfg.Analysis.SchemaFile = opts.SchemaFile
	}
	if opts.Sheet != "" {
		cfg.Analysis.Sheet = opts.Sheet
	}

	level := "warn"
	if opts.Verbose {
		level = "info"
	}
	cfg.Logging = config.LoggingConfig{Level: level, Format: "json", Output: "console"}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdin io.ReadCloser, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return exitUsage
	}
	if opts.Version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	if err := execute(ctx, opts, stdin, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "usage-eda: %v\n", err)
		return exitError
	}
	return exitOK
}

func execute(ctx context.Context, opts *cliOptions, stdin io.ReadCloser, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	logger, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	ctx = infrastructure.EnsureTraceID(ctx)

	var history *store.Store
	if opts.HistoryDB != "" {
		history, err = store.Open(ctx, opts.HistoryDB, store.Options{
			Retention: config.MaxRunHistory,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		defer history.Close()
	}

	if opts.Latest {
		latest, err := latestDataset(cfg, logger)
		if err != nil {
			return err
		}
		opts.File = latest
	}
	if opts.File == "" {
		return listRuns(ctx, stdout, history, opts.Runs)
	}

	analyzerOpts, err := analysis.OptionsFromConfig(cfg.Analysis)
	if err != nil {
		return err
	}
	options := []analysis.Option{analysis.WithLogger(logger)}
	if history != nil {
		options = append(options, analysis.WithRecorder(history))
	}
	analyzer, err := analysis.New(analyzerOpts, options...)
	if err != nil {
		return err
	}

	validator := validation.NewFileValidator(logger)
	if _, err := validator.ValidateDatasetFile(opts.File, cfg.Analysis.MaxFileSize); err != nil {
		return err
	}
	if opts.Export != "" {
		if err := validator.ValidateExportPath(opts.Export); err != nil {
			return err
		}
	}

	report, err := analyzer.Analyze(ctx, opts.File)
	if err != nil {
		return err
	}

	exp := exporter.New(nil, logger)
	if opts.Export != "" && opts.Section == "" {
		path, err := exp.Export(opts.Export, report)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "report written to %s\n", path)
	}

	sections := exporter.ReportSections(report)
	extras := &extraSections{analyzer: analyzer, path: opts.File}

	switch {
	case opts.Interactive:
		return interactive(ctx, stdin, stdout, sections, extras)
	case opts.Section != "":
		s, err := findSection(ctx, sections, extras, opts.Section)
		if err != nil {
			return err
		}
		if opts.Export != "" {
			path, err := exp.ExportSection(opts.Export, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(stderr, "%s written to %s\n", s.Name, path)
		}
		printSection(stdout, s)
	default:
		fmt.Fprintf(stdout, "%s: %s (run %s)\n", contracts.GetVersionString(), filepath.Base(opts.File), report.RunID)
		printSections(stdout, sections)
	}

	if opts.Runs > 0 {
		return listRuns(ctx, stdout, history, opts.Runs)
	}
	return nil
}

// extraSections computes the sections that are not part of a report on
// demand, preparing the dataset at most once
type extraSections struct {
	analyzer *analysis.Analyzer
	path     string
	prepared *analysis.Prepared
}

// names lists the on-demand sections
func (e *extraSections) names() []string {
	return []string{exporter.SectionCorrelation, exporter.SectionHistogram, exporter.SectionBoxPlot, exporter.SectionScatter}
}

func (e *extraSections) section(ctx context.Context, name string) (exporter.Section, error) {
	if e.prepared == nil {
		p, err := e.analyzer.Prepare(ctx, e.path)
		if err != nil {
			return exporter.Section{}, err
		}
		e.prepared = p
	}

	switch name {
	case exporter.SectionCorrelation:
		m, err := e.analyzer.Correlation(e.prepared)
		if err != nil {
			return exporter.Section{}, err
		}
		return exporter.CorrelationSection(m), nil
	case exporter.SectionHistogram:
		h, err := e.analyzer.Histogram(e.prepared, "", 0)
		if err != nil {
			return exporter.Section{}, err
		}
		return exporter.HistogramSection(h), nil
	case exporter.SectionBoxPlot:
		b, err := e.analyzer.BoxPlot(e.prepared, "")
		if err != nil {
			return exporter.Section{}, err
		}
		return exporter.BoxPlotSection(b), nil
	case exporter.SectionScatter:
		sc, err := e.analyzer.Scatter(e.prepared, "", "")
		if err != nil {
			return exporter.Section{}, err
		}
		return exporter.ScatterSection(sc), nil
	}
	return exporter.Section{}, fmt.Errorf("%w: unknown section %q", dataset.ErrInvalidArgument, name)
}

// findSection looks name up case-insensitively among report and extra sections
func findSection(ctx context.Context, sections []exporter.Section, extras *extraSections, name string) (exporter.Section, error) {
	if s, ok := exporter.FindSection(sections, name); ok {
		return s, nil
	}
	for _, n := range extras.names() {
		if strings.EqualFold(n, name) {
			return extras.section(ctx, n)
		}
	}
	known := append(exporter.SectionNames(sections), extras.names()...)
	return exporter.Section{}, fmt.Errorf("%w: unknown section %q (one of: %s)",
		dataset.ErrInvalidArgument, name, strings.Join(known, ", "))
}

// latestDataset returns the most recently modified dataset in the data
// directory
func latestDataset(cfg *config.Config, logger *slog.Logger) (string, error) {
	paths, err := cfg.Paths.Resolve()
	if err != nil {
		return "", err
	}
	found, err := files.NewDiscovery(paths.DataDir, logger).FindDatasets()
	if err != nil {
		return "", err
	}
	latest, ok := files.GetLatestFile(found)
	if !ok {
		return "", fmt.Errorf("no datasets in %s: %w", paths.DataDir, os.ErrNotExist)
	}
	return latest.Path, nil
}

func listRuns(ctx context.Context, w io.Writer, history *store.Store, limit int) error {
	runs, err := history.List(ctx, limit)
	if err != nil {
		return err
	}
	printRuns(w, runs)
	return nil
}
