// Package otel provides OpenTelemetry span helpers shared across the service.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on spans across the service
const (
	AttrSourceName  = attribute.Key("source.name")
	AttrSourceType  = attribute.Key("source.type")
	AttrModuleName  = attribute.Key("module.name")
	AttrModuleFiles = attribute.Key("module.files")
	AttrLoadID      = attribute.Key("load.id")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise it returns
// the span already in ctx (a no-op span when there is none).
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span failed.
// The status description stays generic so that addresses and credentials
// embedded in errors do not end up in span status.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
