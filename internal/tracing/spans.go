package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for backend calls.
const (
	AttrOperation  = "signup.operation"
	AttrEmail      = "signup.email"
	AttrRequestID  = "http.request_id"
	AttrMethod     = "http.request.method"
	AttrURL        = "url.full"
	AttrStatusCode = "http.response.status_code"
	AttrErrorMsg   = "error.message"
)

// Span names.
const (
	SpanPrefixAPI  = "api."
	SpanPrefixStub = "stub."
)

// Event names.
const (
	EventRetryableFailure = "request.failed"
	EventLinkIssued       = "verification.link_issued"
	EventEmailVerified    = "verification.completed"
)

// StartClientSpan starts a client span for a backend call named api.<op>.
func StartClientSpan(ctx context.Context, tracer trace.Tracer, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(AttrOperation, op))
	return tracer.Start(ctx, SpanPrefixAPI+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// StartServerSpan starts a server span for a stub handler, continuing any
// trace context carried by the request headers.
func StartServerSpan(r *http.Request, tracer trace.Tracer, route string) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return tracer.Start(ctx, SpanPrefixStub+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String(AttrMethod, r.Method)),
	)
}

// Inject writes the span context of ctx into outgoing headers.
func Inject(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// RecordError marks span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(AttrErrorMsg, err.Error()))
}
