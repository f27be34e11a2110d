// Package telemetry wires OpenTelemetry tracing and metrics for the daemon:
// a span per IPC request, and counters for the events spec.md §9 calls out
// as advisory instrumentation (cache hit/miss/stale, singleflight
// collapses, plugin timeouts, safety blocks, breaker transitions). No OTLP
// exporter is wired — the retrieved dependency set carries the SDK modules
// but no exporter package, so traces are recorded in-process via
// spanLogger and metrics are read back through a manual reader exposed at
// /metrics by internal/debughttp, rather than pushed to a collector.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds the process-wide tracer, meter, and the counters the
// arbiter/cache/ipcserver record against.
type Telemetry struct {
	tracer trace.Tracer
	reader *sdkmetric.ManualReader

	cacheEvents       metric.Int64Counter
	singleflightCollapses metric.Int64Counter
	pluginTimeouts    metric.Int64Counter
	safetyBlocks      metric.Int64Counter
	breakerTransitions metric.Int64Counter
}

// New builds a Telemetry instance and registers its providers as the
// process-wide otel defaults. The returned shutdown func flushes and stops
// both providers; callers should defer it.
func New(serviceName string) (*Telemetry, func(context.Context) error, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(newSpanLogger()),
	)
	otel.SetTracerProvider(tp)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(serviceName)
	cacheEvents, err := meter.Int64Counter("nudge.cache.events",
		metric.WithDescription("cache Get outcomes, tagged by status=hit|miss|stale"))
	if err != nil {
		return nil, nil, err
	}
	sfCollapses, err := meter.Int64Counter("nudge.singleflight.collapses",
		metric.WithDescription("requests that joined an in-flight computation instead of starting one"))
	if err != nil {
		return nil, nil, err
	}
	pluginTimeouts, err := meter.Int64Counter("nudge.plugins.timeouts",
		metric.WithDescription("plugin Gather calls that exceeded their deadline"))
	if err != nil {
		return nil, nil, err
	}
	safetyBlocks, err := meter.Int64Counter("nudge.safety.blocks",
		metric.WithDescription("suggestions withheld by the dangerous-command validator"))
	if err != nil {
		return nil, nil, err
	}
	breakerTransitions, err := meter.Int64Counter("nudge.llm.breaker_transitions",
		metric.WithDescription("LLM circuit breaker state transitions, tagged by state"))
	if err != nil {
		return nil, nil, err
	}

	t := &Telemetry{
		tracer:                 tp.Tracer(serviceName),
		reader:                 reader,
		cacheEvents:            cacheEvents,
		singleflightCollapses:  sfCollapses,
		pluginTimeouts:         pluginTimeouts,
		safetyBlocks:           safetyBlocks,
		breakerTransitions:     breakerTransitions,
	}

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}
	return t, shutdown, nil
}

// StartRequestSpan opens a span for one IPC request (spec.md §9: a span per
// request). op is "complete", "diagnose", or a control op name.
func (t *Telemetry) StartRequestSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "nudge.request",
		trace.WithAttributes(attribute.String("nudge.op", op)))
}

// RecordCacheStatus increments the cache event counter for one of
// "hit"/"miss"/"stale".
func (t *Telemetry) RecordCacheStatus(ctx context.Context, status string) {
	t.cacheEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordSingleflightCollapse counts a request that joined an in-flight
// computation rather than triggering its own LLM call.
func (t *Telemetry) RecordSingleflightCollapse(ctx context.Context) {
	t.singleflightCollapses.Add(ctx, 1)
}

// RecordPluginTimeout counts a plugin whose Gather exceeded its deadline.
func (t *Telemetry) RecordPluginTimeout(ctx context.Context, plugin string) {
	t.pluginTimeouts.Add(ctx, 1, metric.WithAttributes(attribute.String("plugin", plugin)))
}

// RecordSafetyBlock counts a suggestion withheld as dangerous.
func (t *Telemetry) RecordSafetyBlock(ctx context.Context) {
	t.safetyBlocks.Add(ctx, 1)
}

// RecordBreakerTransition counts a circuit breaker state change.
func (t *Telemetry) RecordBreakerTransition(ctx context.Context, state string) {
	t.breakerTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}
