// Package telemetry wraps OpenTelemetry tracing and metrics behind the
// narrow Span/Metrics surface the engine, scheduler and dispatcher use to
// instrument a tick. Ported from the teacher's telemetry.OTelProvider,
// trimmed to the two exporters JACK actually needs (OTLP/gRPC for
// production, stdout for local development) and to counters/spans the
// reasoning core emits.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Span is the narrow tracing surface the reasoning core depends on. It is
// satisfied by an OpenTelemetry span or by NoopSpan in tests.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// Metrics is the narrow metrics surface: monotonic counters keyed by name
// plus low-cardinality labels, grounded on the teacher's cardinality-aware
// metric emission (only a fixed label set is ever passed through).
type Metrics interface {
	Inc(name string, labels ...string)
	Observe(name string, value float64, labels ...string)
}

// Provider bundles a tracer and a meter behind Span/Metrics. Exactly one
// Provider exists per engine; agents/scheduler/dispatch obtain spans and
// counters from it rather than touching the otel API directly, so the
// reasoning core stays free of vendor imports outside this package.
type Provider struct {
	tracer trace.Tracer
	meter  metric.Meter

	tp *sdktrace.TracerProvider

	mu       sync.Mutex
	counters map[string]metric.Float64Counter
}

// Config selects the exporter and service identity for a Provider.
type Config struct {
	ServiceName string
	// Endpoint is the OTLP/gRPC collector address. Empty means "use the
	// stdout exporter" (suitable for local development and tests).
	Endpoint string
}

// NewProvider builds a Provider. With no endpoint configured it exports
// spans to stdout — harmless in tests, useful for `jackd run -v`.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	var exporter sdktrace.SpanExporter
	var err error
	if cfg.Endpoint != "" {
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: build exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	return &Provider{
		tracer:   tp.Tracer("jack/engine"),
		meter:    otel.GetMeterProvider().Meter("jack/engine"),
		tp:       tp,
		counters: make(map[string]metric.Float64Counter),
	}, nil
}

// Shutdown flushes and stops the underlying exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartSpan opens a span named for a reasoning-core event: a scheduler
// expansion, an intention tick, an action dispatch.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	spanCtx, span := p.tracer.Start(ctx, name)
	return spanCtx, &otelSpan{span: span}
}

// Inc increments a named counter by one, tagged with labels (e.g.
// "goal", "SoakGoal", "outcome", "success").
func (p *Provider) Inc(name string, labels ...string) {
	p.Observe(name, 1, labels...)
}

// Observe records a value against a named counter (action invocation
// counts, schedule rebuild counts, auction timeout counts per §11).
func (p *Provider) Observe(name string, value float64, labels ...string) {
	counter := p.counterFor(name)
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

func (p *Provider) counterFor(name string) metric.Float64Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return c
	}
	c, _ := p.meter.Float64Counter(name)
	p.counters[name] = c
	return c
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", value)))
}

func (s *otelSpan) RecordError(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
}

// NoopSpan satisfies Span without recording anything; used by tests and by
// callers that construct an engine without a Provider.
type NoopSpan struct{}

func (NoopSpan) End()                             {}
func (NoopSpan) SetAttribute(string, interface{}) {}
func (NoopSpan) RecordError(error)                {}

// NoopMetrics satisfies Metrics without recording anything.
type NoopMetrics struct{}

func (NoopMetrics) Inc(string, ...string)            {}
func (NoopMetrics) Observe(string, float64, ...string) {}
