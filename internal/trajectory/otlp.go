package trajectory

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	defaultServiceName = "deep-research"
	attrPrefix         = "deep_research."
)

// OTLPExporter mirrors trajectory spans to an OTLP/HTTP collector.
type OTLPExporter struct {
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewOTLPExporter creates an exporter for endpoint. It returns nil when
// endpoint is empty (export disabled). endpoint is either host:port, which
// is sent over plain HTTP, or a full URL.
func NewOTLPExporter(ctx context.Context, endpoint, serviceName string) (*OTLPExporter, error) {
	if endpoint == "" {
		return nil, nil
	}

	var opts []otlptracehttp.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return newExporter(sdktrace.WithBatcher(exporter), serviceName), nil
}

func newExporter(processor sdktrace.TracerProviderOption, serviceName string) *OTLPExporter {
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
	provider := sdktrace.NewTracerProvider(processor, sdktrace.WithResource(res))
	return &OTLPExporter{
		provider: provider,
		tracer:   provider.Tracer("deep-research/ralph"),
	}
}

// Shutdown flushes and closes the exporter.
func (e *OTLPExporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	return e.provider.Shutdown(ctx)
}

// exportSpan is the OTLP side of a trajectory span.
type exportSpan struct {
	ctx  context.Context
	span oteltrace.Span
}

func (e *OTLPExporter) startSpan(parent *exportSpan, name EventType, start time.Time, attrs map[string]string) *exportSpan {
	if e == nil {
		return nil
	}
	ctx := context.Background()
	if parent != nil {
		ctx = parent.ctx
	}
	ctx, span := e.tracer.Start(ctx, string(name),
		oteltrace.WithTimestamp(start),
		oteltrace.WithAttributes(otelAttributes(attrs)...),
	)
	return &exportSpan{ctx: ctx, span: span}
}

func (s *exportSpan) end(at time.Time, attrs map[string]string, err error) {
	if s == nil {
		return
	}
	s.span.SetAttributes(otelAttributes(attrs)...)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End(oteltrace.WithTimestamp(at))
}

// otelAttributes namespaces trajectory attributes under deep_research.*.
func otelAttributes(attrs map[string]string) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(attrPrefix+k, v))
	}
	return kvs
}
