// Package observability wires OpenTelemetry trace and log export and builds
// the zap logger.
package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/rl1809/marketplace/internal/config"
)

// ShutdownFunc flushes and stops an exporter pipeline.
type ShutdownFunc func(context.Context) error

func newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
}

func headers(cfg *config.Config) map[string]string {
	if cfg.OtelAuthHeader == "" {
		return nil
	}
	return map[string]string{"Authorization": cfg.OtelAuthHeader}
}

func joinShutdown(fns []ShutdownFunc) ShutdownFunc {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range fns {
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

// SetupLoggingSDK installs a global OTLP/HTTP logger provider.
func SetupLoggingSDK(ctx context.Context, cfg *config.Config) (ShutdownFunc, error) {
	var shutdownFuncs []ShutdownFunc

	res, err := newResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.OtelEndpoint),
		otlploghttp.WithURLPath(config.LogsPath),
		otlploghttp.WithHeaders(headers(cfg)),
	)
	if err != nil {
		return joinShutdown(shutdownFuncs), fmt.Errorf("OTLP log exporter: %w", err)
	}

	logProcessor := sdklog.NewBatchProcessor(logExporter,
		sdklog.WithExportTimeout(config.ExportTimeout),
		sdklog.WithMaxQueueSize(config.MaxQueueSize),
	)
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(logProcessor),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(loggerProvider)
	shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)

	return joinShutdown(shutdownFuncs), nil
}

// SetupTracingSDK installs a global OTLP/HTTP tracer provider and the W3C
// propagators used for Kafka headers.
func SetupTracingSDK(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	var shutdownFuncs []ShutdownFunc

	res, err := newResource()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OtelEndpoint),
		otlptracehttp.WithURLPath(config.TracesPath),
		otlptracehttp.WithHeaders(headers(cfg)),
	)
	if err != nil {
		return nil, joinShutdown(shutdownFuncs), fmt.Errorf("OTLP trace exporter: %w", err)
	}

	traceProcessor := sdktrace.NewBatchSpanProcessor(traceExporter,
		sdktrace.WithExportTimeout(config.ExportTimeout),
		sdktrace.WithMaxQueueSize(config.MaxQueueSize),
	)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(traceProcessor),
	)
	otel.SetTracerProvider(tracerProvider)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)

	return tracerProvider, joinShutdown(shutdownFuncs), nil
}
