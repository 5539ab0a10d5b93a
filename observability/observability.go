// Package observability wraps the dispatch engine's Forward pass with
// OpenTelemetry tracing and metrics, grounded on nevindra-oasis/observer's
// Init/Instruments shape but scoped to trace+metric exporters only (the
// pack carries otlptracehttp/otlpmetrichttp/sdk/sdk-metric, not an OTLP log
// exporter).
package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/executor"
)

const scopeName = "github.com/corvidwing/dispatch/observability"

// Instruments holds the OTEL instruments dispatch emits.
type Instruments struct {
	Tracer trace.Tracer

	EventsForwarded metric.Int64Counter
	TasksRun        metric.Int64Counter
	TasksErrored    metric.Int64Counter
	ForwardDuration metric.Float64Histogram
}

// Init configures trace and metric providers with OTLP HTTP exporters
// (standard OTEL_EXPORTER_OTLP_* env vars), returning Instruments and a
// shutdown func to call on process exit.
func Init(ctx context.Context, serviceName string) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}
	return inst, shutdown, nil
}

func newInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)

	eventsForwarded, err := meter.Int64Counter("dispatch.events.forwarded",
		metric.WithDescription("Events routed through Engine.Forward"))
	if err != nil {
		return nil, err
	}
	tasksRun, err := meter.Int64Counter("dispatch.tasks.run",
		metric.WithDescription("Handler tasks completed"))
	if err != nil {
		return nil, err
	}
	tasksErrored, err := meter.Int64Counter("dispatch.tasks.errored",
		metric.WithDescription("Handler tasks that returned an error"))
	if err != nil {
		return nil, err
	}
	forwardDuration, err := meter.Float64Histogram("dispatch.forward.duration",
		metric.WithDescription("Engine.Forward wall time"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:          tracer,
		EventsForwarded: eventsForwarded,
		TasksRun:        tasksRun,
		TasksErrored:    tasksErrored,
		ForwardDuration: forwardDuration,
	}, nil
}

// Forward wraps eng.Forward in a span and records the dispatch metrics,
// without altering routing or scheduling.
func (i *Instruments) Forward(ctx context.Context, eng *engine.Engine, ev *event.Event, source engine.EventSource, extra map[string]any) []executor.Result {
	ctx, span := i.Tracer.Start(ctx, "dispatch.forward")
	defer span.End()

	start := time.Now()
	i.EventsForwarded.Add(ctx, 1)

	results := eng.Forward(ctx, ev, source, extra)

	i.ForwardDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	for _, r := range results {
		i.TasksRun.Add(ctx, 1)
		if r.Err != nil {
			i.TasksErrored.Add(ctx, 1)
		}
	}
	return results
}
