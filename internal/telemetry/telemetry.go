// Package telemetry provides span recording for a run, exported via
// OpenTelemetry: Init installs a console span exporter and Trace wraps a
// function in a span tagged with the run id. The runner does not call
// Trace, so a run exports no per-task spans.
package telemetry

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Options configures telemetry for one run. Unset (zero value) Options
// leaves telemetry disabled: Trace calls still run fn, they just produce
// no spans, so instrumented code never has to branch on whether telemetry
// is configured.
type Options struct {
	Enabled    bool
	AppName    string
	AppVersion string
}

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer = noop{}
	runID    string
)

// Init wires a console span exporter and installs it as the process-wide
// tracer provider when opts.Enabled. Safe to call once per run; Shutdown
// tears it down again.
func Init(ctx context.Context, opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if !opts.Enabled {
		return nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	provider = tp
	tracer = tp.Tracer(opts.AppName, trace.WithInstrumentationVersion(opts.AppVersion))
	runID = uuid.NewString()

	return nil
}

// Shutdown flushes and releases the tracer provider installed by Init. A
// no-op when telemetry was never enabled.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if provider == nil {
		return nil
	}

	err := provider.Shutdown(ctx)
	provider = nil
	tracer = noop{}
	runID = ""

	return err
}

// Trace runs fn inside a span named name carrying attrs, recording any
// returned error on the span. With telemetry disabled this still runs fn,
// just without a real span underneath.
func Trace(ctx context.Context, name string, attrs map[string]any, fn func(ctx context.Context) error) error {
	mu.Lock()
	t := tracer
	id := runID
	mu.Unlock()

	spanAttrs := toAttributes(attrs)
	if id != "" {
		spanAttrs = append(spanAttrs, attribute.String("run.id", id))
	}

	spanCtx, span := t.Start(ctx, name, trace.WithAttributes(spanAttrs...))
	defer span.End()

	err := fn(spanCtx)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))

	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		default:
			out = append(out, attribute.String(k, fmtAny(val)))
		}
	}

	return out
}

func fmtAny(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}

	return ""
}

// noop is the tracer used when telemetry is disabled: Start returns the
// existing (no-op) span already reachable from ctx, so every code path
// behaves identically whether or not a real provider is installed.
type noop struct{}

func (noop) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}
