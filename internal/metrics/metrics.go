package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "padhloyaar",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "padhloyaar",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route"},
	)

	aiGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "padhloyaar",
			Subsystem: "ai",
			Name:      "generations_total",
			Help:      "LLM generations by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	quotaRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "padhloyaar",
			Subsystem: "quota",
			Name:      "rejections_total",
			Help:      "Requests rejected by the daily usage limit.",
		},
		[]string{"tier"},
	)

	toolRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "padhloyaar",
			Subsystem: "tools",
			Name:      "runs_total",
			Help:      "Study tool invocations.",
		},
		[]string{"tool", "tier"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		aiGenerations,
		quotaRejections,
		toolRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry on a Fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

// Middleware records request count and latency by matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		route := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func ObserveGeneration(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	aiGenerations.WithLabelValues(provider, outcome).Inc()
}

func ObserveQuotaRejection(tier string) {
	quotaRejections.WithLabelValues(tier).Inc()
}

func ObserveToolRun(tool, tier string) {
	toolRuns.WithLabelValues(tool, tier).Inc()
}
