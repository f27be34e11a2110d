package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanLogger is a minimal SpanProcessor that logs each finished span via
// zerolog instead of exporting it to a collector — the repo's dependency
// set carries the otel SDK but no OTLP exporter, so the logger is the span
// processor, matching how every other ambient concern here routes through
// the teacher's zerolog logger rather than a dedicated telemetry backend.
type spanLogger struct{}

func newSpanLogger() sdktrace.SpanProcessor {
	return &spanLogger{}
}

func (spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (spanLogger) OnEnd(s sdktrace.ReadOnlySpan) {
	evt := log.Info()
	if s.Status().Code == codes.Error {
		evt = log.Warn()
	}
	evt.
		Str("span", s.Name()).
		Dur("duration", s.EndTime().Sub(s.StartTime())).
		Str("status", s.Status().Description).
		Msg("telemetry: span finished")
}

func (spanLogger) Shutdown(context.Context) error { return nil }

func (spanLogger) ForceFlush(context.Context) error { return nil }
