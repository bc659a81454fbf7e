// Package httpapi wires the HTTP transport (Gin) to the bot dispatcher, the
// health surface, and the shared middleware. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging, panic recovery,
// metrics, compression, and rate limiting.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after the logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. CORS
//
// Rate limiting is split by surface: the probe and metrics routes are
// limited per client IP, while the webhook sheds per platform sender after
// decode, because every delivery arrives from the same few platform egress
// IPs.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/luckyjet/go-prediction-backend/internal/bot"
	"github.com/luckyjet/go-prediction-backend/internal/config"
	"github.com/luckyjet/go-prediction-backend/internal/http/handlers"
	"github.com/luckyjet/go-prediction-backend/internal/http/middleware"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

// Deps carries the injected collaborators for route registration.
type Deps struct {
	Pool       *storage.Pool
	Dispatcher *bot.Dispatcher
	// Caches maps namespace names to occupancy reporters for /health.
	Caches map[string]handlers.Occupancy
}

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine: the health surface, Prometheus metrics, and the platform webhook.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB); webhook payloads are small
	r.Use(limitBody(1 << 20))

	// 6) Compression for the JSON surfaces
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics
	r.Use(middleware.Metrics())

	// 8) CORS: the surface is machine-to-machine, allow-all is fine
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"X-Request-ID", "Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": "method_not_allowed", "message": "method not allowed"})
	})

	// One limiter instance backs both surfaces; the key namespaces keep the
	// buckets apart.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	ipLimited := rl.Handler()

	health := &handlers.HealthHandler{
		Pool:        d.Pool,
		Caches:      d.Caches,
		PingTimeout: 2 * time.Second,
	}
	webhook := &handlers.WebhookHandler{
		Secret:   cfg.Bot.WebhookSecret,
		Dispatch: d.Dispatcher.HandleUpdate,
		Timeout:  30 * time.Second,
		Limiter:  rl,
		Log:      d.Dispatcher.Log,
	}

	r.GET("/", ipLimited, health.Live)
	r.GET("/health", ipLimited, health.Health)
	r.GET("/ready", ipLimited, health.Ready)
	r.GET("/metrics", ipLimited, gin.WrapH(promhttp.Handler()))
	r.POST("/webhook/:secret", webhook.Handle)
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Oversized bodies error on downstream reads.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
