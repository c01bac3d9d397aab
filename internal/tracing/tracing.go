// Package tracing wraps OpenTelemetry span creation for corvus: one span
// per dispatched call, and one for each outbound callback forward. Uses
// the otlptracehttp exporter with a disabled-by-default noop tracer,
// trimmed to corvus's two span kinds.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds telemetry configuration for one corvus host process.
type Config struct {
	Enabled     bool
	Endpoint    string // e.g. localhost:4318
	ServiceName string // e.g. "corvus-echo"
	SampleRate  float64
}

type provider struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	enabled bool
}

var global = &provider{enabled: false, tracer: trace.NewNoopTracerProvider().Tracer("")}

// Init installs the global tracer provider. Calling Init with
// cfg.Enabled false (the default) leaves every span a no-op, so
// instrumented code never needs its own enabled check.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		global = &provider{enabled: false, tracer: trace.NewNoopTracerProvider().Tracer("")}
		return nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return fmt.Errorf("tracing: build resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("tracing: create OTLP exporter: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 && cfg.SampleRate >= 0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	global = &provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName), enabled: true}
	return nil
}

// Shutdown flushes and closes the tracer provider, if one was started.
func Shutdown(ctx context.Context) error {
	if global.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return global.tp.Shutdown(ctx)
}

// Enabled reports whether Init installed a real exporter.
func Enabled() bool {
	return global.enabled
}

// Attribute keys attached to corvus spans.
var (
	AttrContract  = attribute.Key("corvus.contract")
	AttrOperation = attribute.Key("corvus.operation")
	AttrSessionID = attribute.Key("corvus.session_id")
)

// StartDispatch opens a server-kind span around one Dispatcher.Invoke
// call.
func StartDispatch(ctx context.Context, contract, operation, sessionID string) (context.Context, trace.Span) {
	return global.tracer.Start(ctx, "corvus.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(AttrContract.String(contract), AttrOperation.String(operation), AttrSessionID.String(sessionID)),
	)
}

// StartCallback opens a client-kind span around one outbound callback
// Proxy.Call issued from inside a dispatch.
func StartCallback(ctx context.Context, contract, operation string) (context.Context, trace.Span) {
	return global.tracer.Start(ctx, "corvus.callback",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrContract.String(contract), AttrOperation.String(operation)),
	)
}

// End marks the span's outcome and ends it. err nil means success.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
