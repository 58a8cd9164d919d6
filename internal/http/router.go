// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, and rate limiting.
//
// Routes:
//   - GET  /health, GET /metrics, GET /swagger/*any (when enabled)
//   - GET  {base}/metadata?url=
//   - POST {base}/organizations, GET {base}/organizations, GET {base}/organizations/:id
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-org-enricher/internal/config"
	"github.com/tbourn/go-org-enricher/internal/http/handlers"
	"github.com/tbourn/go-org-enricher/internal/http/middleware"
	"github.com/tbourn/go-org-enricher/internal/repo"
	"github.com/tbourn/go-org-enricher/internal/services"
)

// maxBodyBytes caps request bodies; the API only accepts small JSON payloads.
const maxBodyBytes = 1 << 20

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. The organization service is built here from db; the metadata
// service is injected so the server binary owns the extractor and its cache.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: access log with PII scrubbing
//  4. RequestLogger: request-scoped logger for handlers
//  5. Recovery: capture panics after logging is in place
//  6. Body size limiter
//  7. Metrics
//  8. Gzip (skips /metrics, which promhttp compresses itself)
//  9. Rate limiter (per client IP; health, metrics and docs exempt)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, meta handlers.MetadataService, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		URLParams:   []string{"url"},
	}))
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP()).
		Exempt("/health", "/metrics", "/swagger")
	r.Use(rl.Handler())

	useCORS(r, cfg.CORS.AllowedOrigins)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	orgSvc := services.NewOrganizationService(db, repo.Organizations{})
	h := handlers.New(orgSvc, meta, handlers.WithIdempotencyTTL(cfg.IdempotencyTTL))

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/metadata",
			middleware.MarkMetadataRoute(),
			middleware.PublicCache(cfg.Metadata.CacheTTL),
			h.GetMetadata,
		)

		api.POST("/organizations", h.CreateOrganization)
		api.GET("/organizations", h.ListOrganizations)
		api.GET("/organizations/:id", h.GetOrganization)
	}
}

// useCORS installs the CORS posture. With no allowlist every origin is
// accepted (and ACAO: * is forced even without an Origin header); otherwise
// allowed origins are echoed back.
func useCORS(r *gin.Engine, origins []string) {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match", "Idempotency-Key"},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length", "Idempotency-Replayed", middleware.HeaderMetadataFallback},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		base.AllowAllOrigins = true
		r.Use(cors.New(base))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	base.AllowOrigins = origins
	r.Use(cors.New(base))
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Oversized bodies surface as *http.MaxBytesError on read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
