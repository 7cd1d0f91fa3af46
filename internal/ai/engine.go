// Package ai selects an LLM provider for a prompt and calls it.
//
// Providers are kept in a fixed priority order. A caller may name a preferred
// provider; if it is configured it is used, otherwise the first configured
// provider wins. A provider failure is returned as is: there is no retry
// against the next provider.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/padhloyaar/padhloyaar-api/internal/metrics"
)

// ErrNoProvider is returned when no provider has an API key.
var ErrNoProvider = errors.New("No AI configured")

const (
	ProviderGoogle = "google"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"

	// Auto lets the engine pick the first configured provider.
	Auto = "auto"
)

// Request is what a provider receives.
type Request struct {
	System      string
	Prompt      string
	JSON        bool
	Temperature float64
}

// Provider wraps one LLM vendor.
type Provider interface {
	ID() string
	Configured() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// Options tune a single Generate call.
type Options struct {
	Provider    string
	System      string
	JSON        bool
	Temperature float64
	NoCache     bool
}

// Result carries the generated text and where it came from.
type Result struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Cached   bool   `json:"cached"`
}

// ProviderInfo is the public view of a registered provider.
type ProviderInfo struct {
	ID         string `json:"id"`
	Configured bool   `json:"configured"`
}

type EngineConfig struct {
	// RequestsPerSecond paces outbound calls per provider; 0 disables pacing.
	RequestsPerSecond int
	CacheSize         int
	CacheTTL          time.Duration
	Timeout           time.Duration
}

type Engine struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	cache     *Cache
	timeout   time.Duration
	log       *zap.Logger
}

// NewEngine registers providers in the given priority order.
func NewEngine(log *zap.Logger, cfg EngineConfig, providers ...Provider) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		providers: providers,
		limiters:  make(map[string]*rate.Limiter, len(providers)),
		timeout:   cfg.Timeout,
		log:       log,
	}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		e.cache = NewCache(cfg.CacheSize, cfg.CacheTTL)
	}
	if cfg.RequestsPerSecond > 0 {
		for _, p := range providers {
			e.limiters[p.ID()] = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond)
		}
	}
	return e
}

// Providers lists every registered provider with its configured flag.
func (e *Engine) Providers() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(e.providers))
	for _, p := range e.providers {
		out = append(out, ProviderInfo{ID: p.ID(), Configured: p.Configured()})
	}
	return out
}

// Configured reports whether any provider can serve requests.
func (e *Engine) Configured() bool {
	for _, p := range e.providers {
		if p.Configured() {
			return true
		}
	}
	return false
}

// Select resolves the provider for a request.
func (e *Engine) Select(preferred string) (Provider, error) {
	preferred = strings.ToLower(strings.TrimSpace(preferred))
	if preferred != "" && preferred != Auto {
		for _, p := range e.providers {
			if p.ID() == preferred && p.Configured() {
				return p, nil
			}
		}
	}
	for _, p := range e.providers {
		if p.Configured() {
			return p, nil
		}
	}
	return nil, ErrNoProvider
}

// Generate runs prompt against the selected provider.
func (e *Engine) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	p, err := e.Select(opts.Provider)
	if err != nil {
		return Result{}, err
	}

	req := Request{
		System:      opts.System,
		Prompt:      prompt,
		JSON:        opts.JSON,
		Temperature: opts.Temperature,
	}

	key := cacheKey(p.ID(), req)
	if e.cache != nil && !opts.NoCache {
		if text, ok := e.cache.Get(key); ok {
			return Result{Text: text, Provider: p.ID(), Cached: true}, nil
		}
	}

	if e.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
	}

	if lim := e.limiters[p.ID()]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("%s: wait for rate limiter: %w", p.ID(), err)
		}
	}

	start := time.Now()
	text, err := p.Generate(ctx, req)
	metrics.ObserveGeneration(p.ID(), err)
	if err != nil {
		e.log.Warn("generation failed", zap.String("provider", p.ID()), zap.Error(err))
		return Result{}, fmt.Errorf("%s: %w", p.ID(), err)
	}
	e.log.Debug("generation done",
		zap.String("provider", p.ID()),
		zap.Duration("took", time.Since(start)),
		zap.Int("response_len", len(text)),
	)

	if e.cache != nil && !opts.NoCache {
		e.cache.Add(key, text)
	}
	return Result{Text: text, Provider: p.ID()}, nil
}
