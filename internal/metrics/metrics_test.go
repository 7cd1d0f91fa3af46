package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareAndHandler(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/metrics", Handler())
	app.Get("/ping/:id", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "no") })

	for _, path := range []string{"/ping/1", "/ping/2", "/teapot"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	ObserveGeneration("groq", nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(b)

	assert.Contains(t, out, `padhloyaar_http_requests_total{method="GET",route="/ping/:id",status="200"} 2`)
	assert.Contains(t, out, `padhloyaar_http_requests_total{method="GET",route="/teapot",status="418"} 1`)
	assert.Contains(t, out, `padhloyaar_http_request_duration_seconds_bucket`)
	assert.Contains(t, out, `padhloyaar_ai_generations_total{outcome="ok",provider="groq"} 1`)
	assert.NotContains(t, out, `route="/metrics"`)
}
