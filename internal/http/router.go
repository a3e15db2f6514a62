// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
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

	"github.com/tbourn/go-lab-backend/internal/config"
	"github.com/tbourn/go-lab-backend/internal/domain"
	"github.com/tbourn/go-lab-backend/internal/http/handlers"
	"github.com/tbourn/go-lab-backend/internal/http/middleware"
	"github.com/tbourn/go-lab-backend/internal/repo"
	"github.com/tbourn/go-lab-backend/internal/services"
)

// linkRepoShim adapts the repository free functions to the
// services.LinkRepo interface expected by the PatientLinkService. This
// keeps services decoupled from the concrete repo package while
// reusing existing functions.
type linkRepoShim struct{}

// GetPatientLink proxies repo.GetPatientLink.
func (linkRepoShim) GetPatientLink(ctx context.Context, db *gorm.DB, id string) (*domain.PatientLink, error) {
	return repo.GetPatientLink(ctx, db, id)
}

// GetTestOrder proxies repo.GetTestOrder.
func (linkRepoShim) GetTestOrder(ctx context.Context, db *gorm.DB, id string) (*domain.TestOrder, error) {
	return repo.GetTestOrder(ctx, db, id)
}

// CreatePatientLink proxies repo.CreatePatientLink.
func (linkRepoShim) CreatePatientLink(ctx context.Context, db *gorm.DB, testOrderID string, now time.Time) (*domain.PatientLink, error) {
	return repo.CreatePatientLink(ctx, db, testOrderID, now)
}

// TouchPatientLink proxies repo.TouchPatientLink.
func (linkRepoShim) TouchPatientLink(ctx context.Context, db *gorm.DB, id string, refreshedAt time.Time) error {
	return repo.TouchPatientLink(ctx, db, id, refreshedAt)
}

// referenceListerShim backs the paginated listing endpoints straight
// from the reference tables; listings deliberately bypass the caches so
// admins always see current rows.
type referenceListerShim struct{ db *gorm.DB }

// ListDevicesPage returns one page of device types plus the total count.
func (l referenceListerShim) ListDevicesPage(ctx context.Context, page, pageSize int) ([]domain.DeviceType, int64, error) {
	total, err := repo.CountDeviceTypes(ctx, l.db)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.DeviceType{}, 0, nil
	}
	items, err := repo.ListDeviceTypesPage(ctx, l.db, (page-1)*pageSize, pageSize)
	return items, total, err
}

// ListSpecimensPage returns one page of specimen types plus the total count.
func (l referenceListerShim) ListSpecimensPage(ctx context.Context, page, pageSize int) ([]domain.SpecimenType, int64, error) {
	total, err := repo.CountSpecimenTypes(ctx, l.db)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.SpecimenType{}, 0, nil
	}
	items, err := repo.ListSpecimenTypesPage(ctx, l.db, (page-1)*pageSize, pageSize)
	return items, total, err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// The reference service is injected (not constructed here) because its
// lifecycle (scheduler registration, warm-up, teardown) belongs to the
// composing application.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, refSvc *services.ReferenceDataService, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (birth dates are PII)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress responses (reference listings are repetitive JSON)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, linkID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, linkID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per link/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByLinkOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
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
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true, // patient data; never cache response bodies
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (optional)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/caches
	linkSvc := services.NewPatientLinkService(db, linkRepoShim{})
	linkSvc.Validity = cfg.LinkValidity
	h := handlers.New(refSvc, referenceListerShim{db: db}, linkSvc, db, cfg.IdempotencyTTL)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Reference data
		api.GET("/reference/devices", h.ListDevices)
		api.GET("/reference/devices/lookup", h.LookupDevice)
		api.GET("/reference/specimens", h.ListSpecimens)
		api.GET("/reference/specimens/lookup", h.LookupSpecimen)
		api.POST("/reference/caches/refresh", h.RefreshCaches)

		// Patient links
		api.POST("/links", h.CreateLink)
		api.GET("/links/:id/organization", h.CurrentOrganization)
		api.POST("/links/:id/verify", h.VerifyLink)
		api.POST("/links/:id/refresh", h.RefreshLink)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
