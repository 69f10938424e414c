// Package analysis runs the usage pipeline end to end.
//
// An Analyzer loads a dataset, binds it to a column schema, cleans it and
// derives total data per row (Prepare), then reduces it to report sections:
// top consumers, per-service volume, ratio and growth rankings, behaviour
// summary, descriptive statistics, correlation, histogram, boxplot and
// decile segmentation. Analyze does both and assembles a
// domain.UsageReport, tracing each stage with OpenTelemetry and recording
// the run through an optional RunRecorder.
package analysis
