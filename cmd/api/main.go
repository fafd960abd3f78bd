package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dppapi/docs"
	"dppapi/internal/cache"
	"dppapi/internal/config"
	"dppapi/internal/database"
	"dppapi/internal/database/migration"
	"dppapi/internal/events"
	handlers "dppapi/internal/http/handler"
	"dppapi/internal/http/middleware"
	"dppapi/internal/logger"
	dppotel "dppapi/internal/otel"
	"dppapi/internal/record/postgres"
	"dppapi/internal/service"
	"dppapi/internal/storage"
)

// @title Digital Product Passport API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	shutdownTracing, err := dppotel.Init(ctx, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, zlog); err != nil {
		zlog.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		zlog.Fatal("failed to initialize object storage", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engineMetrics, err := service.NewMetrics(reg)
	if err != nil {
		zlog.Fatal("failed to register engine metrics", zap.Error(err))
	}

	opts := []service.Option{
		service.WithMetrics(engineMetrics),
		service.WithConfig(service.Config{
			MaxAttempts: cfg.Engine.MaxAttempts,
			BackoffBase: time.Duration(cfg.Engine.BackoffBaseMs) * time.Millisecond,
		}),
	}

	// Redis is a display-only cache for aggregate status; optional.
	if cfg.Redis.Addr != "" {
		statusCache, err := cache.NewRedisCache(cfg.Redis)
		if err != nil {
			zlog.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer statusCache.Close()
		opts = append(opts, service.WithCache(statusCache))
	}

	// NATS status-change events are optional as well.
	if cfg.NATS.URL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATS, zlog)
		if err != nil {
			zlog.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer pub.Close()
		opts = append(opts, service.WithEvents(pub))
	}

	passportStore := postgres.NewPassportPostgres(db)
	passportSvc := service.NewPassportService(passportStore, zlog, opts...)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		zlog.Fatal("failed to register http metrics", zap.Error(err))
	}

	// RequestID first so the logger and error payloads can pick it up.
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(zlog))
	app.Use(promMiddleware.Handler())
	app.Use(otelfiber.Middleware())

	handlers.RegisterRoutes(app, db, passportSvc, objStore)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port
	zlog.Info("starting server", zap.String("addr", addr), zap.String("env", cfg.Env))

	if err := app.Listen(addr); err != nil {
		zlog.Fatal("failed to start server", zap.Error(err))
	}
}
