// Package main is the entry point for the feedback service binary.
// It dispatches four subcommands (serve, migrate, seed-admin and version) via a
// switch on os.Args so the binary's full CLI surface is readable in one place.
// The serve command applies pending migrations on startup when
// database.auto_migrate is set, so freshly deployed containers need no separate
// migration step.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- pprof is only served on the dedicated profiling port, never on the API listener.
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/feedback-system/feedback-system/internal/analytics"
	"github.com/feedback-system/feedback-system/internal/api"
	"github.com/feedback-system/feedback-system/internal/audit"
	"github.com/feedback-system/feedback-system/internal/auth"
	"github.com/feedback-system/feedback-system/internal/config"
	"github.com/feedback-system/feedback-system/internal/db"
	"github.com/feedback-system/feedback-system/internal/db/repositories"
	"github.com/feedback-system/feedback-system/internal/export"
	"github.com/feedback-system/feedback-system/internal/middleware"
	"github.com/feedback-system/feedback-system/internal/moderation"
	"github.com/feedback-system/feedback-system/internal/notify"
	"github.com/feedback-system/feedback-system/internal/safego"
	"github.com/feedback-system/feedback-system/internal/storage"
	"github.com/feedback-system/feedback-system/internal/telemetry"

	// Import storage backends to register them
	_ "github.com/feedback-system/feedback-system/internal/storage/azure"
	_ "github.com/feedback-system/feedback-system/internal/storage/gcs"
	_ "github.com/feedback-system/feedback-system/internal/storage/local"
	_ "github.com/feedback-system/feedback-system/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("Feedback Service v%s\n", api.Version)
		return nil
	}

	configPath := os.Getenv("CONFIG_PATH")

	switch command {
	case "serve":
		// Only the logging section is reloaded at runtime.
		cfg, err := config.Watch(configPath, func(l config.LoggingConfig) {
			telemetry.SetLevel(l.Level)
		})
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runMigrations(cfg, os.Args[2])
	case "seed-admin":
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runSeedAdmin(cfg)
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, seed-admin, version", command)
	}
}

func connect(cfg *config.Config) (*sqlx.DB, error) {
	database, err := db.Connect(context.Background(), cfg.Database.GetDSN(), db.PoolOptions{
		MaxOpen:         cfg.Database.MaxConnections,
		MaxIdle:         cfg.Database.MinIdleConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return sqlx.NewDb(database, "postgres"), nil
}

func serve(cfg *config.Config) error {
	// Initialise structured logger as early as possible so all subsequent log output
	// uses the configured format and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Fails outside dev mode when FBS_JWT_SECRET is unset.
	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	slog.Info("connecting to database",
		"host", cfg.Database.Host, "port", cfg.Database.Port,
		"name", cfg.Database.Name, "user", cfg.Database.User, "sslmode", cfg.Database.SSLMode)
	dbx, err := connect(cfg)
	if err != nil {
		return err
	}
	defer dbx.Close()
	database := dbx.DB

	ctx, stopCollectors := context.WithCancel(context.Background())
	defer stopCollectors()
	telemetry.StartDBStatsCollector(ctx, database, 30*time.Second)

	if cfg.Database.AutoMigrate {
		slog.Info("running database migrations")
		if err := db.RunMigrations(database, "up"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	if version, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema version", "version", version, "dirty", dirty)
	}

	// Background work: audit writes, archive uploads and notification emails.
	pool := safego.NewPool(cfg.Workers.Count, cfg.Workers.QueueSize)

	adminRepo := repositories.NewAdminRepository(database)
	auditRepo := repositories.NewAuditRepository(database)
	feedbackRepo := repositories.NewFeedbackRepository(dbx)

	if cfg.Seed.AdminUsername != "" {
		if _, err := ensureAdmin(ctx, adminRepo, cfg.Seed, cfg.Auth.BcryptCost); err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
	}

	tokens := auth.NewTokenIssuer(auth.GetJWTSecret(), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	verifier, err := auth.NewVerifier(adminRepo, tokens, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	var shipper audit.Shipper
	if len(cfg.Audit.Shippers) > 0 {
		ms, err := audit.NewMultiShipper(cfg.Audit.Shippers)
		if err != nil {
			return fmt.Errorf("failed to configure audit shippers: %w", err)
		}
		defer ms.Close()
		shipper = ms
		slog.Info("audit shipping enabled", "shippers", ms.Len())
	}
	recorder := audit.NewRecorder(auditRepo, shipper, pool)

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Notifications.Enabled {
		notifier = notify.NewSMTPNotifier(cfg.Notifications)
		slog.Info("notification emails enabled", "smtp_host", cfg.Notifications.SMTP.Host)
	}
	dispatcher := notify.NewDispatcher(notifier, pool, cfg.Notifications.SendTimeout)

	var (
		archiveStore storage.Storage
		archiver     *export.Archiver
	)
	if cfg.Export.Archive.Enabled {
		archiveStore, err = storage.NewStorage(&cfg.Export.Archive)
		if err != nil {
			return fmt.Errorf("failed to initialize archive storage: %w", err)
		}
		archiver, err = export.NewArchiver(archiveStore, cfg.Export.Archive, pool)
		if err != nil {
			return fmt.Errorf("failed to initialize export archiver: %w", err)
		}
		slog.Info("export archiving enabled", "backend", cfg.Export.Archive.Backend)
	}

	var redisClient *redis.Client
	if cfg.Security.RateLimiting.Enabled && cfg.Security.RateLimiting.RedisURL != "" {
		redisClient, err = middleware.NewRedisClient(cfg.Security.RateLimiting.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to configure redis rate limiting: %w", err)
		}
		defer redisClient.Close()
		slog.Info("rate limits shared through redis")
	}

	startSideServers(cfg)

	router, bgServices := api.NewRouter(api.Dependencies{
		Config:     cfg,
		DB:         database,
		Verifier:   verifier,
		Moderation: moderation.NewEngine(feedbackRepo, recorder, dispatcher),
		Analytics:  analytics.NewEngine(feedbackRepo),
		Audit:      recorder,
		Export:     export.NewService(feedbackRepo, recorder, archiver),
		Archive:    archiveStore,
		Redis:      redisClient,
	})

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", server.Addr, "tls", cfg.Security.TLS.Enabled)
		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-errCh:
		_ = gracefulStop(nil, bgServices, pool, cfg.Server.ShutdownTimeout)
		return fmt.Errorf("failed to start server: %w", err)
	}

	if err := gracefulStop(server, bgServices, pool, cfg.Server.ShutdownTimeout); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

// startSideServers serves Prometheus metrics and pprof on dedicated ports so neither
// is reachable through the public API listener.
func startSideServers(cfg *config.Config) {
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go(func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	if cfg.Telemetry.Profiling.Enabled {
		pprofAddr := fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port)
		safego.Go(func() {
			slog.Info("starting pprof server", "addr", pprofAddr)
			// net/http/pprof registers its handlers on http.DefaultServeMux at init time.
			srv := &http.Server{ //nolint:gosec // #nosec G112 -- internal-only pprof port
				Addr:         pprofAddr,
				Handler:      http.DefaultServeMux,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("pprof server error", "error", err)
			}
		})
	}
}

func runMigrations(cfg *config.Config, direction string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	dbx, err := connect(cfg)
	if err != nil {
		return err
	}
	defer dbx.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(dbx.DB, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(dbx.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed successfully", "version", version, "dirty", dirty)
	return nil
}
