package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.uber.org/zap"
)

type Options struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	Insecure    bool
	ServiceName string
	SampleRatio float64
	// Writer receives spans from the stdout exporter. Defaults to stderr.
	Writer io.Writer
}

// Init installs the global tracer provider. The returned function flushes and
// stops it; it is a no-op when tracing is disabled.
func Init(ctx context.Context, opts Options, log *zap.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !opts.Enabled {
		return noop, nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	serviceName := strings.TrimSpace(opts.ServiceName)
	if serviceName == "" {
		serviceName = "quiz-app"
	}

	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return noop, fmt.Errorf("trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		log.Warn("otel resource init failed", zap.Error(err))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("tracing initialized",
		zap.String("service", serviceName),
		zap.String("exporter", opts.Exporter),
		zap.String("endpoint", opts.Endpoint),
	)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Exporter)) {
	case "", "stdout":
		writer := opts.Writer
		if writer == nil {
			writer = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(writer))
	case "otlp", "otlphttp":
		var clientOpts []otlptracehttp.Option
		if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
			clientOpts = append(clientOpts, otlptracehttp.WithEndpoint(endpoint))
		}
		if opts.Insecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, clientOpts...)
	default:
		return nil, fmt.Errorf("unknown exporter %q", opts.Exporter)
	}
}
