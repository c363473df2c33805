package middleware

import (
	"net/http/httptest"
	"testing"

	"monolith/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := observability.Tracer
	observability.Tracer = provider.Tracer("test")
	t.Cleanup(func() { observability.Tracer = prev })

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/posts/:id", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/boom", func(*fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadGateway, "upstream")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/posts/17", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	_, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "GET /posts/:id", ok.Name())
	assert.Contains(t, ok.Attributes(), attribute.Int("http.response.status_code", fiber.StatusNoContent))
	assert.Contains(t, ok.Attributes(), attribute.Int64("user.id", 7))
	assert.Equal(t, codes.Unset, ok.Status().Code)

	failed := spans[1]
	assert.Contains(t, failed.Attributes(), attribute.Int("http.response.status_code", fiber.StatusBadGateway))
	assert.Equal(t, codes.Error, failed.Status().Code)
}
