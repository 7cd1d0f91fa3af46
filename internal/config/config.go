package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port       string `envconfig:"PORT" default:"8080"`
	Env        string `envconfig:"ENV" default:"dev"`
	CorsOrigin string `envconfig:"CORS_ORIGIN" default:"*"`
	AppURL     string `envconfig:"APP_URL" default:"http://localhost:3000"`
	PublicURL  string `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	ExportDir  string `envconfig:"EXPORT_DIR" default:"./data"`

	// DB / Supabase
	DatabaseURL            string `envconfig:"DATABASE_URL" required:"true"`
	SupabaseJWTSecret      string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`
	SupabaseURL            string `envconfig:"SUPABASE_URL"`
	SupabaseServiceRoleKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`

	// AI providers
	GoogleAPIKey     string `envconfig:"GOOGLE_API_KEY"`
	GoogleModel      string `envconfig:"GOOGLE_MODEL" default:"gemini-2.0-flash"`
	GroqAPIKey       string `envconfig:"GROQ_API_KEY"`
	GroqModel        string `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel      string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	AITimeoutSeconds int    `envconfig:"AI_TIMEOUT_SECONDS" default:"60"`
	AICacheSize      int    `envconfig:"AI_CACHE_SIZE" default:"512"`
	AICacheTTLSecs   int    `envconfig:"AI_CACHE_TTL_SECONDS" default:"600"`
	AIProviderRPS    int    `envconfig:"AI_PROVIDER_RPS" default:"5"`

	// Stripe
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePricePro      string `envconfig:"STRIPE_PRICE_PRO"`
	StripePriceTeam     string `envconfig:"STRIPE_PRICE_TEAM"`

	// Limits
	LimitAnonymous         int    `envconfig:"LIMIT_ANONYMOUS" default:"10"`
	LimitFree              int    `envconfig:"LIMIT_FREE" default:"100"`
	LimitPro               int    `envconfig:"LIMIT_PRO" default:"0"`
	RateLimitPerMinute     int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	AuthRateLimitPerMinute int    `envconfig:"AUTH_RATE_LIMIT_PER_MINUTE" default:"10"`
	RedisURL               string `envconfig:"REDIS_URL"`
	UsageRetentionDays     int    `envconfig:"USAGE_RETENTION_DAYS" default:"90"`

	// Admin
	AdminAPIKeyHash string `envconfig:"ADMIN_API_KEY_HASH"`
}

// Load reads .env (if present) and decodes the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.SupabaseURL = strings.TrimRight(strings.TrimSpace(c.SupabaseURL), "/")
	return c, nil
}

func (c Config) AITimeout() time.Duration {
	if c.AITimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

func (c Config) AICacheTTL() time.Duration {
	return time.Duration(c.AICacheTTLSecs) * time.Second
}

func (c Config) UsageRetention() time.Duration {
	days := c.UsageRetentionDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// PriceFor maps a plan name to the configured Stripe price id.
func (c Config) PriceFor(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case "pro":
		return c.StripePricePro
	case "team":
		return c.StripePriceTeam
	}
	return ""
}
