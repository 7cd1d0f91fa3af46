package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padhloyaar/padhloyaar-api/internal/account"
	"github.com/padhloyaar/padhloyaar-api/internal/auth"
	"github.com/padhloyaar/padhloyaar-api/internal/domain"
	"github.com/padhloyaar/padhloyaar-api/internal/history"
	"github.com/padhloyaar/padhloyaar-api/internal/logging"
	"github.com/padhloyaar/padhloyaar-api/internal/quota"
)

const testSecret = "router-test-secret"

type fixedCounter struct{}

func (fixedCounter) CountSince(context.Context, string, time.Time) (int, error) { return 3, nil }

func (fixedCounter) Record(context.Context, string, string, string, string) error { return nil }

type emptyHistory struct{}

func (emptyHistory) List(context.Context, string, string, int) ([]history.Entry, error) {
	return []history.Entry{}, nil
}
func (emptyHistory) Add(context.Context, *history.Entry) error { return nil }
func (emptyHistory) Delete(context.Context, string, string) error { return history.ErrNotFound }
func (emptyHistory) Clear(context.Context, string) (int64, error) { return 0, nil }

func token(t *testing.T, sub string) string {
	t.Helper()
	claims := auth.Claims{
		Email: "r@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: logging.ErrorHandler(nil)})
	limiter := quota.NewLimiter(fixedCounter{}, quota.DefaultLimits(), nil)
	r := &Router{
		Verifier:       auth.NewVerifier(testSecret),
		UsageHandler:   quota.NewHandler(limiter, nil),
		HistoryHandler: history.NewHandler(emptyHistory{}),
	}
	r.RegisterRoutes(app)
	return app
}

func TestRouter_Health(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestRouter_AnonymousUsage(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest("GET", "/api/usage", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var dec quota.Decision
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dec))
	assert.Equal(t, "anonymous", dec.Tier)
	assert.Equal(t, 3, dec.Used)
	assert.Equal(t, 7, dec.Remaining)
}

func TestRouter_HistoryRequiresAuth(t *testing.T) {
	app := newApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/history", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "0b7f6f5e-2c1a-4a57-9a43-3b9a2c6a1e11"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRouter_BadBearerRejectedOnOptionalRoutes(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := newApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWindowLimit(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: logging.ErrorHandler(nil)})
	app.Get("/x", RateLimitTools(2, nil), func(c *fiber.Ctx) error { return c.SendString("ok") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestWindowLimit_DisabledWhenZero(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: logging.ErrorHandler(nil)})
	app.Get("/x", RateLimitSensitive(0, nil), func(c *fiber.Ctx) error { return c.SendString("ok") })
	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestCorsMiddleware_Credentials(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: logging.ErrorHandler(nil)})
	app.Use(CorsMiddleware("https://padhloyaar.ai"))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "https://padhloyaar.ai")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "https://padhloyaar.ai", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestErrorHandler_JSONShape(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: logging.ErrorHandler(nil)})
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "no coffee") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db exploded") })

	cases := []struct {
		path   string
		status int
		msg    string
	}{
		{"/teapot", fiber.StatusTeapot, "no coffee"},
		{"/boom", fiber.StatusInternalServerError, "internal server error"},
		{"/missing", fiber.StatusNotFound, "Cannot GET /missing"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.path)
		assert.Equal(t, fiber.MIMEApplicationJSON, resp.Header.Get(fiber.HeaderContentType), tc.path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, tc.msg, body["error"], tc.path)
	}
}

type deletedData struct{ calls int }

func (d *deletedData) Profile(context.Context, string) (*domain.Profile, error) { return nil, nil }
func (d *deletedData) UsageLogs(context.Context, string) ([]domain.UsageLog, error) {
	return nil, nil
}
func (d *deletedData) History(context.Context, string) ([]history.Entry, error) { return nil, nil }
func (d *deletedData) DeleteUserData(context.Context, string) (map[string]int64, error) {
	d.calls++
	return map[string]int64{"profiles": 1}, nil
}

func TestRouter_AccountDeleteDoesNotTouchProfile(t *testing.T) {
	touched := make(chan string, 4)
	v := auth.NewVerifier(testSecret)
	v.Touch = func(_ context.Context, userID, _ string) { touched <- userID }

	data := &deletedData{}
	app := fiber.New(fiber.Config{ErrorHandler: logging.ErrorHandler(nil)})
	r := &Router{
		Verifier:       v,
		AccountHandler: account.NewHandler(account.Deps{Data: data}),
	}
	r.RegisterRoutes(app)

	bearer := "Bearer " + token(t, "0b7f6f5e-2c1a-4a57-9a43-3b9a2c6a1e11")

	req := httptest.NewRequest("DELETE", "/api/account", nil)
	req.Header.Set("Authorization", bearer)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, data.calls)

	select {
	case uid := <-touched:
		t.Fatalf("profile touched for %s during account deletion", uid)
	case <-time.After(100 * time.Millisecond):
	}

	req = httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", bearer)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	select {
	case uid := <-touched:
		assert.Equal(t, "0b7f6f5e-2c1a-4a57-9a43-3b9a2c6a1e11", uid)
	case <-time.After(time.Second):
		t.Fatal("profile not touched on a regular request")
	}
}
