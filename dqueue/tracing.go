package dqueue

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "dqueue"

// injectTraceContext stamps the current span context into metadata under a reserved
// key, so a consumer on another process can continue the same trace.
func injectTraceContext(ctx context.Context, metadata map[string]string) map[string]string {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		metadata[traceMetaPrefix+k] = v
	}
	return metadata
}

// extractTraceContext reverses injectTraceContext, returning ctx unchanged if
// metadata carries no trace context.
func extractTraceContext(ctx context.Context, metadata map[string]string) context.Context {
	carrier := propagation.MapCarrier{}
	for k, v := range metadata {
		if rest, ok := stripTraceMetaPrefix(k); ok {
			carrier[rest] = v
		}
	}
	if len(carrier) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

const traceMetaPrefix = "_dqueue_trace_"

func stripTraceMetaPrefix(k string) (string, bool) {
	if len(k) <= len(traceMetaPrefix) || k[:len(traceMetaPrefix)] != traceMetaPrefix {
		return "", false
	}
	return k[len(traceMetaPrefix):], true
}

// startDeliverySpan starts the coarse per-delivery span that is always emitted,
// regardless of VerboseTracing.
func startDeliverySpan(ctx context.Context, queue, operationID string, msg QueuedMessage) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("PROCESS %s", operationID),
		trace.WithAttributes(
			semconv.MessagingSystem("postgresql"),
			semconv.MessagingOperationProcess,
			semconv.MessagingDestinationName(queue),
			semconv.MessagingMessageID(msg.ID),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
}

// withVerboseSpan runs fn inside a sub-span named name when enabled is true
// (Config.VerboseTracing), or runs it unchanged otherwise. Used to wrap the
// handle/settle steps without a span per delivery when tracing detail isn't
// needed.
func withVerboseSpan(ctx context.Context, enabled bool, name string, fn func(context.Context) error) error {
	if !enabled {
		return fn(ctx)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func endSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
