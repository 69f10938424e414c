package analysis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of pipeline spans
const TracerName = "tellcocli.analysis"

// startStage opens a span for one pipeline stage
func (a *Analyzer) startStage(ctx context.Context, stage, source string) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, fmt.Sprintf("analysis.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("analysis.stage", stage),
			attribute.String("dataset.source", source),
		),
	)
}

// endStage records err on span and ends it
func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
