package config

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var tp *sdktrace.TracerProvider

func setupTraceProvider(ctx context.Context) error {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(Config.OpenTelemetryGrpcEndpoint),
		otlptracegrpc.WithInsecure(),
	)

	if err != nil {
		return err
	}

	tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("orgportal"),
		)),
	)

	// Set global tracer provider
	otel.SetTracerProvider(tp)

	return nil
}

func ShutdownTraceProvider() error {
	if tp != nil {
		return tp.Shutdown(context.Background())
	}
	return nil
}
