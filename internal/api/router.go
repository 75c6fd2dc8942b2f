// Package api wires together all HTTP routes for the feedback service.
//
// Route grouping:
//   - /api/feedback/submit and /api/auth/login are public and carry their own,
//     stricter rate limits on top of the general API limit.
//   - Every other /api route requires a bearer session; registering an
//     administrator additionally requires the super_admin role.
//   - /health, /ready and /version sit outside /api and are never rate limited.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/feedback-system/feedback-system/internal/analytics"
	"github.com/feedback-system/feedback-system/internal/api/admin"
	"github.com/feedback-system/feedback-system/internal/api/public"
	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/audit"
	"github.com/feedback-system/feedback-system/internal/auth"
	"github.com/feedback-system/feedback-system/internal/config"
	"github.com/feedback-system/feedback-system/internal/db/models"
	"github.com/feedback-system/feedback-system/internal/export"
	"github.com/feedback-system/feedback-system/internal/middleware"
	"github.com/feedback-system/feedback-system/internal/moderation"
	"github.com/feedback-system/feedback-system/internal/storage"
)

// Version is reported by /version. It is overridden at build time with -ldflags.
var Version = "0.1.0"

// MsgRouteNotFound is returned for any unmatched path.
const MsgRouteNotFound = "Route not found"

// readinessProbePath is a known-absent object used to exercise the archive backend.
const readinessProbePath = ".readiness-probe"

// Dependencies carries everything NewRouter needs. Archive and Redis are optional.
type Dependencies struct {
	Config     *config.Config
	DB         *sql.DB
	Verifier   *auth.Verifier
	Moderation *moderation.Engine
	Analytics  *analytics.Engine
	Audit      *audit.Recorder
	Export     *export.Service
	Archive    storage.Storage
	Redis      *redis.Client
}

// BackgroundServices holds resources started by NewRouter that must be released during
// graceful shutdown. The caller (cmd/server) calls Shutdown after the HTTP server stops.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops the in-memory rate limiter cleanup goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(deps Dependencies) (*gin.Engine, *BackgroundServices) {
	cfg := deps.Config
	bg := &BackgroundServices{}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		slog.Warn("invalid trusted proxies, ignoring", "error", err)
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	router.GET("/health", healthCheckHandler(deps.DB))
	router.GET("/ready", readinessHandler(deps.DB, deps.Archive))
	router.GET("/version", versionHandler())

	authHandler := admin.NewAuthHandler(deps.Verifier, deps.Audit)
	feedbackHandler := admin.NewFeedbackHandler(deps.Moderation)
	statsHandler := admin.NewStatsHandler(deps.Analytics)
	auditHandler := admin.NewAuditLogHandler(deps.Audit)
	exportHandler := admin.NewExportHandler(deps.Export)
	submitHandler := public.NewSubmitHandler(deps.Moderation)

	rl := cfg.Security.RateLimiting
	var apiLimit, loginLimit, submitLimit []gin.HandlerFunc
	if rl.Enabled {
		apiLimit = []gin.HandlerFunc{middleware.RateLimitMiddleware(
			newLimiter(bg, deps.Redis, middleware.APIRateLimitConfig(rl), "api"), "api", middleware.MsgTooManyRequests)}
		loginLimit = []gin.HandlerFunc{middleware.RateLimitMiddleware(
			newLimiter(bg, deps.Redis, middleware.LoginRateLimitConfig(rl), "login"), "login", middleware.MsgTooManyLoginAttempts)}
		submitLimit = []gin.HandlerFunc{middleware.RateLimitMiddleware(
			newLimiter(bg, deps.Redis, middleware.SubmitRateLimitConfig(rl), "submit"), "submit", middleware.MsgTooManySubmissions)}
	}

	requireAuth := middleware.AuthMiddleware(deps.Verifier)

	apiGroup := router.Group("/api", apiLimit...)
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/login", append(loginLimit, authHandler.Login)...)
		authGroup.POST("/register", requireAuth, middleware.RequireRole(models.RoleSuperAdmin), authHandler.Register)
		authGroup.GET("/verify", requireAuth, authHandler.Verify)
		authGroup.POST("/logout", requireAuth, authHandler.Logout)

		feedbackGroup := apiGroup.Group("/feedback")
		feedbackGroup.POST("/submit", append(submitLimit, submitHandler.Submit)...)

		moderated := feedbackGroup.Group("", requireAuth)
		moderated.GET("", feedbackHandler.List)
		moderated.GET("/analytics", statsHandler.GetAnalytics)
		moderated.GET("/export", exportHandler.Export)
		moderated.GET("/audit-logs", auditHandler.List)
		moderated.GET("/:id", feedbackHandler.Get)
		moderated.PUT("/:id/approve", feedbackHandler.Approve)
		moderated.PUT("/:id/reject", feedbackHandler.Reject)
		moderated.PATCH("/:id", feedbackHandler.UpdateStatus)
		moderated.DELETE("/:id", feedbackHandler.Delete)

		apiGroup.GET("/dashboard/stats", requireAuth, statsHandler.GetDashboardStats)

		adminGroup := apiGroup.Group("/admin", requireAuth)
		adminGroup.GET("/dashboard/stats", statsHandler.GetDashboardStats)
		adminGroup.GET("/dashboard/category-distribution", statsHandler.GetCategoryDistribution)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apperrors.Response{Success: false, Message: MsgRouteNotFound})
	})

	return router, bg
}

// newLimiter returns a Redis-backed limiter when a client is configured and an
// in-memory one otherwise. In-memory limiters are tracked so Shutdown can stop them.
func newLimiter(bg *BackgroundServices, client *redis.Client, cfg middleware.RateLimitConfig, prefix string) middleware.Limiter {
	if client != nil {
		return middleware.NewRedisRateLimiter(client, cfg, prefix)
	}
	l := middleware.NewRateLimiter(cfg)
	bg.rateLimiters = append(bg.rateLimiters, l)
	return l
}

func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler checks the database and, when export archiving is enabled, the
// archive backend.
func readinessHandler(db *sql.DB, archive storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if archive != nil {
			// Exists exercises credentials and connectivity without creating state.
			if _, err := archive.Exists(c.Request.Context(), readinessProbePath); err != nil {
				checks["archive"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "archive storage not ready",
				})
				return
			}
			checks["archive"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs one structured line per request. The output format follows the
// global slog handler configured by telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logRequest(c, time.Since(start), path, query)
	}
}

func logRequest(c *gin.Context, latency time.Duration, path, query string) {
	level := slog.LevelInfo
	if c.Writer.Status() >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", middleware.GetRequestID(c)),
		slog.String("user_agent", c.Request.UserAgent()),
	}
	if a, ok := middleware.CurrentAdmin(c); ok {
		attrs = append(attrs, slog.String("admin_id", a.ID))
	}
	slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
}

// CORSMiddleware answers preflight requests and sets CORS headers for allowed origins.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		methods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		wildcard := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" {
				allowed, wildcard = true, true
				break
			}
			if allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" || wildcard {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", fmt.Sprintf("%s, Content-Disposition, Retry-After", middleware.RequestIDHeader))
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
