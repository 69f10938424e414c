package analysis

import (
	"fmt"

	"tellcocli/internal/config"
	"tellcocli/internal/dataset"
)

// Options fixes the schema and the defaults of an Analyzer
type Options struct {
	Schema        dataset.Schema
	TopN          int
	Policy        dataset.DivisionPolicy
	HistogramBins int
	Load          dataset.LoadOptions
}

// DefaultOptions uses the TellCo column layout and the configured defaults
func DefaultOptions() Options {
	return Options{
		Schema:        dataset.DefaultSchema(),
		TopN:          config.DefaultTopN,
		Policy:        dataset.DivisionMissing,
		HistogramBins: config.DefaultHistogramBins,
	}
}

// OptionsFromConfig builds Options from the analysis section of the config,
// loading the schema file when one is set
func OptionsFromConfig(cfg config.AnalysisConfig) (Options, error) {
	schema, err := config.LoadSchema(cfg.SchemaFile)
	if err != nil {
		return Options{}, err
	}
	policy, err := dataset.ParseDivisionPolicy(cfg.DivisionPolicy)
	if err != nil {
		return Options{}, fmt.Errorf("analysis config: %w", err)
	}
	return Options{
		Schema:        schema,
		TopN:          cfg.TopN,
		Policy:        policy,
		HistogramBins: cfg.HistogramBins,
		Load:          dataset.LoadOptions{Sheet: cfg.Sheet},
	}, nil
}

func (o Options) validate() error {
	if o.TopN <= 0 {
		return fmt.Errorf("%w: top n must be positive, got %d", dataset.ErrInvalidArgument, o.TopN)
	}
	if o.HistogramBins <= 0 {
		return fmt.Errorf("%w: histogram bins must be positive, got %d", dataset.ErrInvalidArgument, o.HistogramBins)
	}
	return config.ValidateSchema(o.Schema)
}
