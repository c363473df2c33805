package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartJobSpan_EndSpanRecordsFailure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := Tracer
	Tracer = provider.Tracer("test")
	t.Cleanup(func() { Tracer = prev })

	_, ok := StartJobSpan(context.Background(), "story.expire", "job-1")
	EndSpan(ok, nil)
	_, failed := StartJobSpan(context.Background(), "story.expire", "job-2")
	EndSpan(failed, errors.New("story vanished"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "job.story.expire", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("job.id", "job-1"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "story vanished", spans[1].Status().Description)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "0.25")
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "monolith-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(TracingConfig{ServiceName: "monolith-test", Enabled: true, Exporter: "carrier-pigeon"})
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc")
	assert.Equal(t, "abc", ExtractCorrelationID(ctx))
	assert.Empty(t, ExtractCorrelationID(context.Background()))
	assert.Len(t, correlated(ctx, nil), 1)
	assert.Empty(t, correlated(context.Background(), nil))
}
