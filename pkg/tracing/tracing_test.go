package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/opsbox/opsbox/pkg/tracing"
)

func TestSetup_NoEndpoint(t *testing.T) {
	t.Parallel()

	tp, shutdown, err := tracing.Setup(t.Context(), "")
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(t.Context(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(t.Context()))
}

//nolint:paralleltest // Installs the global tracer provider.
func TestSetup_Exporter(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()

	tp, shutdown, err := tracing.Setup(context.Background(), "", tracing.WithExporter(exp))
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(t.Context(), "apply")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	sdktp, ok := tp.(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, sdktp.ForceFlush(t.Context()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "apply", spans[0].Name)

	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}

	assert.Equal(t, tracing.ServiceName, service)
	require.NoError(t, shutdown(t.Context()))
}
