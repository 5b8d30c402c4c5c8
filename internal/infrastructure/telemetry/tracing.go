package telemetry

import (
	"context"
	"fmt"

	"github.com/erp/catalogsync/internal/application/catalogsync"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for run spans.
const TracerName = "catalogsync"

// StartSpan starts an internal span named name with attrs. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, opts...)
}

// RecordError records err on the span and marks the span failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// ---------------------------------------------------------------------------
// Traced task
// ---------------------------------------------------------------------------

// tracedTask wraps a catalogsync.Task in one span per run.
type tracedTask struct {
	next catalogsync.Task
}

// TraceTask returns task with each Run wrapped in a "catalogsync.<task>" span.
func TraceTask(task catalogsync.Task) catalogsync.Task {
	return &tracedTask{next: task}
}

func (t *tracedTask) Name() string {
	return t.next.Name()
}

func (t *tracedTask) Run(ctx context.Context, req catalogsync.RunRequest) (*catalogsync.RunResult, error) {
	p := req.Payload
	ctx, span := StartSpan(ctx, fmt.Sprintf("catalogsync.%s", t.next.Name()),
		AttrTask.String(t.next.Name()),
		AttrSource.String(p.Source),
		AttrDataType.String(p.DataType),
		AttrLoop.Int(p.Loop.Int()),
	)
	defer span.End()

	result, err := t.next.Run(ctx, req)
	if result != nil {
		span.SetAttributes(
			AttrOutcome.String(result.Outcome.String()),
			attribute.Int("catalogsync.offset", result.Offset),
			attribute.Int("catalogsync.total", result.Total),
		)
		if result.NextToken != "" {
			span.SetAttributes(attribute.String("catalogsync.next_token", result.NextToken))
		}
	}
	if err != nil {
		RecordError(span, err)
		return result, err
	}
	SetOK(span)
	return result, nil
}
