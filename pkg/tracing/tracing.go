// Package tracing configures OpenTelemetry trace export for opsbox.
package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/opsbox/opsbox/pkg/version"
)

// ServiceName is reported as the service.name resource attribute.
const ServiceName = "opsbox"

// ShutdownFunc flushes and stops a provider.
type ShutdownFunc func(ctx context.Context) error

// Opt configures [Setup].
type Opt func(*options)

type options struct {
	exporter sdktrace.SpanExporter
	insecure bool
}

// WithExporter replaces the OTLP exporter.
func WithExporter(exp sdktrace.SpanExporter) Opt {
	return func(o *options) {
		o.exporter = exp
	}
}

// WithInsecure disables TLS for the OTLP connection.
func WithInsecure(insecure bool) Opt {
	return func(o *options) {
		o.insecure = insecure
	}
}

// Setup installs a global tracer provider exporting to endpoint over
// OTLP/gRPC and returns it with its shutdown function. With an empty
// endpoint and no exporter, a no-op provider is returned and nothing is
// installed.
//
//nolint:ireturn // Either the SDK or the no-op provider.
func Setup(ctx context.Context, endpoint string, opts ...Opt) (trace.TracerProvider, ShutdownFunc, error) {
	o := &options{insecure: true}
	for _, opt := range opts {
		opt(o)
	}

	if endpoint == "" && o.exporter == nil {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	exp := o.exporter
	if exp == nil {
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if o.insecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}

		var err error

		exp, err = otlptracegrpc.New(ctx, clientOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
			attribute.String("service.version", version.GetVersion()),
		)),
	)

	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		err := tp.ForceFlush(ctx)

		return errors.Join(err, tp.Shutdown(ctx))
	}

	return tp, shutdown, nil
}
