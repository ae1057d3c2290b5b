package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_FileExporterWritesSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "traces.jsonl")

	p, err := NewProvider(Config{Enabled: true, Exporter: "file", FilePath: path, SampleRate: 1})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := StartClientSpan(context.Background(), p.Tracer(), "register",
		attribute.String(AttrEmail, "ann@example.com"))
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []SpanRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 1)
	require.Equal(t, "api.register", records[0].Name)
	require.Equal(t, "client", records[0].Kind)
	require.Equal(t, "register", records[0].Attributes[AttrOperation])
	require.Equal(t, "ann@example.com", records[0].Attributes[AttrEmail])
}

func TestNewProvider_Errors(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "file"})
	require.ErrorContains(t, err, "file_path required")

	_, err = NewProvider(Config{Enabled: true, Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported exporter type")
}

func TestNewProvider_NoneStillRecords(t *testing.T) {
	p, err := NewProvider(Config{Enabled: true, Exporter: "none"})
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	_, span := p.Tracer().Start(context.Background(), "x")
	require.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	_, span := StartClientSpan(context.Background(), tp.Tracer("test"), "send_verification")
	RecordError(span, errors.New("connection refused"))
	RecordError(span, nil)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Equal(t, "connection refused", ended[0].Status().Description)
	require.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
}

func TestInjectAndStartServerSpan_ShareTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := tp.Tracer("test")

	ctx, client := StartClientSpan(context.Background(), tracer, "check_verified")
	req := httptest.NewRequest(http.MethodGet, "/api/check-email-verified", nil)
	Inject(ctx, req.Header)
	require.NotEmpty(t, req.Header.Get("traceparent"))

	_, server := StartServerSpan(req, tracer, "check_verified")
	server.End()
	client.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, ended[1].SpanContext().TraceID(), ended[0].SpanContext().TraceID())
	require.Equal(t, "stub.check_verified", ended[0].Name())
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	require.Empty(t, RequestIDFromContext(ctx))
	require.Equal(t, ctx, ContextWithRequestID(ctx, ""))

	ctx, id := EnsureRequestID(ctx)
	require.Len(t, id, 36)
	require.Equal(t, id, RequestIDFromContext(ctx))

	again, same := EnsureRequestID(ctx)
	require.Equal(t, id, same)
	require.Equal(t, ctx, again)
}

func TestFileExporter_ShutdownTwice(t *testing.T) {
	exp, err := NewFileExporter(filepath.Join(t.TempDir(), "t.jsonl"))
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))
	require.NoError(t, exp.Shutdown(context.Background()))

	stub := tracetest.SpanStub{Name: "late"}
	err = exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()})
	require.Error(t, err)
}
