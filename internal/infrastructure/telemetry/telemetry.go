// Package telemetry exports pipeline stage spans and durations over OTLP/HTTP.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"ablemap/internal/domain/port"
)

const instrumentationName = "ablemap"

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Endpoint string // host:port of the OTLP/HTTP collector
	Service  string
	Version  string
}

// Provider owns the tracer and meter used by the assessment pipeline.
type Provider struct {
	Enabled bool

	tracer trace.Tracer
	meter  metric.Meter
	logger port.Logger

	stageDuration metric.Float64Histogram
	stageErrors   metric.Int64Counter

	shutdown []func(context.Context) error
}

var _ port.Instrumentation = (*Provider)(nil)

// NewProvider configures OTLP exporters. When disabled it returns a
// provider backed by no-op tracer and meter that still logs stage timings.
func NewProvider(ctx context.Context, cfg Config, logger port.Logger) (*Provider, error) {
	if !cfg.Enabled {
		p := &Provider{
			tracer: tracenoop.NewTracerProvider().Tracer(""),
			meter:  metricnoop.NewMeterProvider().Meter(""),
			logger: logger,
		}
		p.initInstruments()
		return p, nil
	}

	if cfg.Service == "" {
		cfg.Service = instrumentationName
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)
	otel.SetMeterProvider(mp)

	if logger != nil {
		logger.Printf("telemetry enabled (OTLP http) endpoint=%s", cfg.Endpoint)
	}

	p := &Provider{
		Enabled:  true,
		tracer:   tp.Tracer(instrumentationName),
		meter:    mp.Meter(instrumentationName),
		logger:   logger,
		shutdown: []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}
	p.initInstruments()
	return p, nil
}

func (p *Provider) initInstruments() {
	// Telemetry is best-effort; instrument errors leave nil instruments.
	p.stageDuration, _ = p.meter.Float64Histogram("ablemap_stage_duration_ms",
		metric.WithDescription("Duration of assessment pipeline stages"),
		metric.WithUnit("ms"))
	p.stageErrors, _ = p.meter.Int64Counter("ablemap_stage_errors_total")
}

// Measure starts a span for stage. The returned func ends it, records the
// duration and logs the timing.
func (p *Provider) Measure(ctx context.Context, stage string) (context.Context, func(err error)) {
	if p == nil {
		return ctx, func(error) {}
	}
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, stage)
	attrs := metric.WithAttributes(attribute.String("stage", stage))

	return ctx, func(err error) {
		ms := float64(time.Since(start).Microseconds()) / 1000
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if p.stageErrors != nil {
				p.stageErrors.Add(ctx, 1, attrs)
			}
		}
		span.End()
		if p.stageDuration != nil {
			p.stageDuration.Record(ctx, ms, attrs)
		}
		if p.logger != nil {
			if err != nil {
				p.logger.Printf("%s failed after %.1fms: %v", stage, ms, err)
			} else {
				p.logger.Printf("%s took %.1fms", stage, ms)
			}
		}
	}
}

// Shutdown flushes exporters.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	for _, fn := range p.shutdown {
		_ = fn(ctx)
	}
}
