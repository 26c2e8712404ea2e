// File: internal/observability/tracing.go
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/uiprobe/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xkilldash9x/uiprobe"

// Span attribute keys shared by the harness and the CLI.
var (
	AttrRunID       = attribute.Key("uiprobe.run.id")
	AttrScenario    = attribute.Key("uiprobe.scenario")
	AttrTargetURL   = attribute.Key("uiprobe.target_url")
	AttrEngine      = attribute.Key("uiprobe.engine")
	AttrStepIndex   = attribute.Key("uiprobe.step.index")
	AttrStepName    = attribute.Key("uiprobe.step.name")
	AttrStepAction  = attribute.Key("uiprobe.step.action")
	AttrLocator     = attribute.Key("uiprobe.step.locator")
	AttrFailureKind = attribute.Key("uiprobe.failure.kind")
)

// TracerProvider owns the SDK provider and whatever sink it exports to.
// When tracing is disabled it is inert and Shutdown is a no-op.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	sink     io.Closer
}

// NewTracerProvider installs a global tracer provider exporting spans as JSON
// to cfg.Output (stderr when empty). A disabled config returns an inert provider
// and leaves the global no-op tracer in place.
func NewTracerProvider(cfg config.TracingConfig, serviceName, version string) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{}, nil
	}

	var (
		w    io.Writer = os.Stderr
		sink io.Closer
	)
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace output '%s': %w", cfg.Output, err)
		}
		w, sink = f, f
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		closeQuietly(sink)
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		closeQuietly(sink)
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{provider: provider, sink: sink}, nil
}

// Enabled reports whether spans are actually being exported.
func (tp *TracerProvider) Enabled() bool {
	return tp != nil && tp.provider != nil
}

// Shutdown flushes pending spans and closes the output file, if any.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if !tp.Enabled() {
		return nil
	}
	err := tp.provider.Shutdown(ctx)
	if tp.sink != nil {
		err = errors.Join(err, tp.sink.Close())
	}
	return err
}

// Tracer returns the package tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, spanName, opts...)
}

// AddEvent adds an event to the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
