package router

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/account"
	"github.com/padhloyaar/padhloyaar-api/internal/admin"
	"github.com/padhloyaar/padhloyaar-api/internal/auth"
	"github.com/padhloyaar/padhloyaar-api/internal/billing"
	"github.com/padhloyaar/padhloyaar-api/internal/gamification"
	"github.com/padhloyaar/padhloyaar-api/internal/history"
	"github.com/padhloyaar/padhloyaar-api/internal/logging"
	"github.com/padhloyaar/padhloyaar-api/internal/metrics"
	"github.com/padhloyaar/padhloyaar-api/internal/quota"
	"github.com/padhloyaar/padhloyaar-api/internal/reports"
	"github.com/padhloyaar/padhloyaar-api/internal/tools"
)

type Router struct {
	Log        *zap.Logger
	CorsOrigin string
	Verifier   *auth.Verifier

	// Per-minute window limits; Storage nil keeps counters in process.
	ToolsPerMinute     int
	SensitivePerMinute int
	Storage            fiber.Storage

	AdminKeyHash string

	ToolsHandler    *tools.Handler
	UsageHandler    *quota.Handler
	ReportsHandler  *reports.Handler
	HistoryHandler  *history.Handler
	ProgressHandler *gamification.Handler
	BillingHandler  *billing.Handler
	AccountHandler  *account.Handler
	AdminHandler    *admin.Handler
}

func (r *Router) RegisterRoutes(app *fiber.App) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	app.Use(metrics.Middleware())
	app.Use(logging.RequestLogger(log))
	app.Use(CorsMiddleware(r.CorsOrigin))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Get("/metrics", metrics.Handler())

	optional := r.Verifier.OptionalAuth()
	required := r.Verifier.RequireAuth()
	toolsLimit := RateLimitTools(r.ToolsPerMinute, r.Storage)
	sensitive := RateLimitSensitive(r.SensitivePerMinute, r.Storage)

	// Shared report links are public.
	if r.ReportsHandler != nil {
		app.Get("/r/:token", r.ReportsHandler.Download)
	}

	// Stripe calls the webhook without a bearer token.
	if r.BillingHandler != nil {
		app.Post("/api/stripe/webhook", r.BillingHandler.Webhook)
	}

	if r.AdminHandler != nil {
		app.Get("/api/admin/stats", admin.RequireAdminKey(r.AdminKeyHash), r.AdminHandler.Stats)
	}

	// Account deletion must not recreate the profile it removes.
	if r.AccountHandler != nil {
		app.Delete("/api/account", auth.WithoutTouch())
	}

	api := app.Group("/api", optional)

	if r.UsageHandler != nil {
		api.Get("/usage", r.UsageHandler.Usage)
	}

	if r.ToolsHandler != nil {
		api.Get("/ai/providers", r.ToolsHandler.Providers)
		api.Get("/tools", r.ToolsHandler.List)
		api.Post("/tools/:tool", toolsLimit, r.ToolsHandler.Run)
		api.Post("/flashcards", toolsLimit, r.ToolsHandler.Flashcards)
		api.Post("/exam", toolsLimit, r.ToolsHandler.Exam)
	}

	if r.ReportsHandler != nil {
		api.Post("/exam/pdf", toolsLimit, r.ReportsHandler.ExamPDF)
	}

	if r.HistoryHandler != nil {
		api.Get("/history", required, r.HistoryHandler.List)
		api.Post("/history", required, r.HistoryHandler.Add)
		api.Delete("/history", required, r.HistoryHandler.Clear)
		api.Delete("/history/:id", required, r.HistoryHandler.Delete)
	}

	if r.ProgressHandler != nil {
		api.Get("/progress", required, r.ProgressHandler.GetProgress)
		api.Post("/progress/activity", required, r.ProgressHandler.RecordActivity)
	}

	if r.BillingHandler != nil {
		api.Post("/checkout", required, sensitive, r.BillingHandler.Checkout)
		api.Post("/portal", required, sensitive, r.BillingHandler.Portal)
	}

	if r.AccountHandler != nil {
		api.Get("/me", required, r.AccountHandler.Me)
		api.Get("/account/export", required, sensitive, r.AccountHandler.Export)
		api.Delete("/account", required, sensitive, r.AccountHandler.Delete)
	}
}
