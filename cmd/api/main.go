package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/account"
	"github.com/padhloyaar/padhloyaar-api/internal/admin"
	"github.com/padhloyaar/padhloyaar-api/internal/ai"
	"github.com/padhloyaar/padhloyaar-api/internal/audit"
	"github.com/padhloyaar/padhloyaar-api/internal/auth"
	"github.com/padhloyaar/padhloyaar-api/internal/billing"
	"github.com/padhloyaar/padhloyaar-api/internal/config"
	"github.com/padhloyaar/padhloyaar-api/internal/domain"
	"github.com/padhloyaar/padhloyaar-api/internal/gamification"
	"github.com/padhloyaar/padhloyaar-api/internal/history"
	"github.com/padhloyaar/padhloyaar-api/internal/jobs"
	"github.com/padhloyaar/padhloyaar-api/internal/logging"
	"github.com/padhloyaar/padhloyaar-api/internal/quota"
	"github.com/padhloyaar/padhloyaar-api/internal/reports"
	"github.com/padhloyaar/padhloyaar-api/internal/router"
	"github.com/padhloyaar/padhloyaar-api/internal/supabase"
	"github.com/padhloyaar/padhloyaar-api/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	// Audit writes go through pgx directly.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	app := fiber.New(fiber.Config{ErrorHandler: logging.ErrorHandler(logger)})

	// Stores
	quotaStore := &quota.Store{DB: db}
	billingStore := billing.NewStore(db)
	historyStore := history.NewStore(db)
	progressStore := &gamification.Store{DB: db}
	accountStore := account.NewStore(db)
	reportStore := reports.NewStore(db)

	recorder := audit.NewRecorder(pool, logger)

	verifier := auth.NewVerifier(cfg.SupabaseJWTSecret)
	verifier.Touch = func(ctx context.Context, userID, email string) {
		if err := accountStore.Touch(ctx, userID, email); err != nil {
			logger.Warn("touch profile failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	limiter := quota.NewLimiter(quotaStore, quota.Limits{
		Anonymous: cfg.LimitAnonymous,
		Free:      cfg.LimitFree,
		Pro:       cfg.LimitPro,
	}, logger)

	engine := ai.NewEngine(logger.Named("ai"), ai.EngineConfig{
		RequestsPerSecond: cfg.AIProviderRPS,
		CacheSize:         cfg.AICacheSize,
		CacheTTL:          cfg.AICacheTTL(),
		Timeout:           cfg.AITimeout(),
	},
		ai.NewGemini(cfg.GoogleAPIKey, cfg.GoogleModel),
		ai.NewGroq(cfg.GroqAPIKey, cfg.GroqModel, cfg.AITimeout()),
		ai.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AITimeout()),
	)
	if !engine.Configured() {
		logger.Warn("no AI provider configured; tool calls will return 503")
	}

	catalog, err := tools.DefaultCatalog()
	if err != nil {
		return err
	}

	reportService, err := reports.NewService(reportStore, cfg.ExportDir, cfg.PublicURL, logger.Named("reports"))
	if err != nil {
		return err
	}

	var gateway billing.Gateway
	var canceler account.SubscriptionCanceler
	if cfg.StripeSecretKey != "" {
		sg := billing.NewStripeGateway(cfg.StripeSecretKey)
		gateway, canceler = sg, sg
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; checkout and portal disabled")
	}

	var authAdmin account.UserDeleter
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceRoleKey != "" {
		a, err := supabase.NewAdmin(supabase.Config{URL: cfg.SupabaseURL, ServiceRoleKey: cfg.SupabaseServiceRoleKey})
		if err != nil {
			return err
		}
		authAdmin = a
	}

	var storage fiber.Storage
	if cfg.RedisURL != "" {
		rs, err := router.NewRedisStorage(cfg.RedisURL, "")
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rs.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, using in-process rate limits", zap.Error(err))
			_ = rs.Close()
		} else {
			storage = rs
			defer rs.Close()
		}
	}

	r := &router.Router{
		Log:                logger,
		CorsOrigin:         cfg.CorsOrigin,
		Verifier:           verifier,
		ToolsPerMinute:     cfg.RateLimitPerMinute,
		SensitivePerMinute: cfg.AuthRateLimitPerMinute,
		Storage:            storage,
		AdminKeyHash:       cfg.AdminAPIKeyHash,

		ToolsHandler: tools.NewHandler(tools.Deps{
			Catalog: catalog,
			Engine:  engine,
			Limiter: limiter,
			Tiers:   billingStore,
			History: historyStore,
			XP:      progressStore,
			Log:     logger.Named("tools"),
		}),
		UsageHandler:    quota.NewHandler(limiter, billingStore),
		ReportsHandler:  reports.NewHandler(reportService),
		HistoryHandler:  history.NewHandler(historyStore),
		ProgressHandler: gamification.NewHandler(progressStore),
		BillingHandler: billing.NewHandler(billingStore, gateway, billing.Options{
			Prices: map[domain.Tier]string{
				domain.TierPro:  cfg.PriceFor(string(domain.TierPro)),
				domain.TierTeam: cfg.PriceFor(string(domain.TierTeam)),
			},
			WebhookSecret: cfg.StripeWebhookSecret,
			AppURL:        cfg.AppURL,
			Audit:         recorder,
			Log:           logger.Named("billing"),
		}),
		AccountHandler: account.NewHandler(account.Deps{
			Data:          accountStore,
			Subscriptions: billingStore,
			Progress:      progressStore,
			Canceler:      canceler,
			AuthAdmin:     authAdmin,
			Reports:       reportService,
			Tiers:         billingStore,
			Limiter:       limiter,
			Audit:         recorder,
			Log:           logger.Named("account"),
		}),
		AdminHandler: admin.NewHandler(db, quotaStore),
	}
	r.RegisterRoutes(app)

	scheduler := jobs.New(logger, quotaStore, reportService, cfg.UsageRetention())
	if err := scheduler.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	return app.ShutdownWithContext(shutdownCtx)
}
