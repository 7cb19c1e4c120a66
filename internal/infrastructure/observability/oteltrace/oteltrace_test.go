package oteltrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracerRecordsAttributes(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	tr := NewWithProvider(tp, "")
	ctx, span := tr.Start(context.Background(), "UC.Buy", attribute.String("use_case", "shopping.buy"))
	require.True(t, span.SpanContext().IsValid())
	assert.NotNil(t, ctx)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "UC.Buy", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("use_case", "shopping.buy"))
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "shopping", "test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
