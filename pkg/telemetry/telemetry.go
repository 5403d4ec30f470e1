// Package telemetry wraps OpenTelemetry tracing. Document loading, matching,
// planning and linting each run inside a span; with tracing disabled the
// global no-op provider makes those spans free.
package telemetry

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/jingkaihe/plugdoc"

// Samplers accepted by Config.Sampler
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// Config controls span export
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Sampler        string
	Ratio          float64
}

// Shutdown flushes pending spans and stops the exporter
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// sampler maps the configured strategy onto an SDK sampler. An empty name
// samples everything.
func (c Config) sampler() (sdktrace.Sampler, error) {
	switch c.Sampler {
	case "", SamplerAlways:
		return sdktrace.AlwaysSample(), nil
	case SamplerNever:
		return sdktrace.NeverSample(), nil
	case SamplerRatio:
		if c.Ratio < 0 || c.Ratio > 1 {
			return nil, errors.Errorf("tracing ratio must be between 0 and 1, got %v", c.Ratio)
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.Ratio)), nil
	}
	return nil, errors.Errorf("unknown tracing sampler '%s', must be one of: always, never, ratio", c.Sampler)
}

// InitTracer installs a global tracer provider exporting over OTLP/HTTP and
// returns its shutdown. The exporter endpoint comes from the standard
// OTEL_EXPORTER_OTLP_* variables. When tracing is disabled nothing is
// installed and the shutdown does nothing.
func InitTracer(ctx context.Context, cfg Config) (Shutdown, error) {
	if !cfg.Enabled {
		return noop, nil
	}

	sampler, err := cfg.sampler()
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return noop, errors.Wrap(err, "failed to describe tracing resource")
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return noop, errors.Wrap(err, "failed to create OTLP trace exporter")
	}

	// CLI runs are short, so batches are flushed quickly
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		var result *multierror.Error
		if err := provider.Shutdown(ctx); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "failed to shut down tracer provider"))
		}
		if err := exporter.Shutdown(ctx); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "failed to shut down trace exporter"))
		}
		return result.ErrorOrNil()
	}, nil
}

// Tracer returns the plugdoc tracer of the global provider
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(instrumentation)
}

// WithSpan runs f inside a span named name, marking the span failed when f
// returns an error. The error is returned unchanged.
func WithSpan(ctx context.Context, name string, f func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	if err := f(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// SetAttributes annotates the span carried by ctx, if any
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
