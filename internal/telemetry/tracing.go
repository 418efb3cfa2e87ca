package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer name all Omnio spans are created under.
const instrumentationName = "github.com/tai-kun/omnio-sub001/pkg/engine"

// Config configures Init. Grounded on the teacher's internal/telemetry
// Config (Enabled/ServiceName/SampleRate), with the exporter swapped from
// OTLP-over-gRPC to the stdout exporter: omnio is an embedded library with
// no always-on collector to export to, so a host process that wants
// tracing gets spans on its own stdout/stderr rather than needing a
// gRPC endpoint configured up front.
type Config struct {
	Enabled     bool
	ServiceName string
	SampleRate  float64 // 0 disables sampling, 1 samples everything
}

// Init installs a process-wide TracerProvider per cfg and returns a
// shutdown function that flushes and releases it. When cfg.Enabled is
// false, Init installs nothing (the global provider is left as it is)
// and returns a no-op shutdown, mirroring the teacher's
// "telemetry.enabled" gate.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = "omnio"
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("constructing stdout trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(name)),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	SetTracerProvider(tp)

	return func(shutdownCtx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(shutdownCtx)
	}, nil
}

// Tracer returns a tracer bound to otel's global TracerProvider. Callers
// that never call Init (or call it with Enabled: false) get otel's no-op
// provider, so spans are free unless a host process configures a real
// one.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// SetTracerProvider installs a process-wide TracerProvider. Engine
// instances pick it up automatically via Tracer().
func SetTracerProvider(tp trace.TracerProvider) {
	otel.SetTracerProvider(tp)
}

// StartSpan starts a span for an engine operation and returns the updated
// context plus an end function that also records the error, if any.
func StartSpan(ctx context.Context, op string) (context.Context, func(err error)) {
	ctx, span := Tracer().Start(ctx, op)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
