package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"boardapi/docs"
	"boardapi/internal/config"
	"boardapi/internal/database"
	"boardapi/internal/database/migration"
	handlers "boardapi/internal/http/handler"
	"boardapi/internal/http/middleware"
	"boardapi/internal/logger"
	"boardapi/internal/otel"
	"boardapi/internal/repository"
	"boardapi/internal/repository/rediscache"
	"boardapi/internal/repository/sqlstore"
	"boardapi/internal/service"
	"boardapi/internal/storage"
)

// @title Board API
// @version 1.0
// @description Bulletin board posts with optional image upload.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.New(cfg.Location())
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal("tracing_init_failed", zap.Error(err))
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("db_connect_failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Driver, log); err != nil {
		log.Fatal("db_migration_failed", zap.Error(err))
	}

	store, err := newStorage(cfg)
	if err != nil {
		log.Fatal("storage_init_failed", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}

	repo, closeCache := newRepository(ctx, cfg, db, log)
	defer closeCache()

	postSvc := service.NewPostService(store, repo)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    (cfg.Storage.MaxUploadMB + 1) * 1024 * 1024,
	})

	prom, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("metrics_init_failed", zap.Error(err))
	}

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(prom.Handler())

	handlers.RegisterRoutes(app, db, postSvc)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

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

	go func() {
		<-ctx.Done()
		log.Info("server_shutdown")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server_shutdown_failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	log.Info("server_start", zap.String("addr", addr), zap.String("storage", cfg.Storage.Backend), zap.String("db_driver", cfg.Database.Driver))

	if err := app.Listen(addr); err != nil {
		log.Error("server_listen_failed", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn("tracing_shutdown_failed", zap.Error(err))
	}
}

func newStorage(cfg *config.AppConfig) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal, "":
		return storage.NewLocal(cfg.Storage.UploadDir)
	case config.StorageMinIO:
		return storage.NewMinIO(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// newRepository returns the SQL store, wrapped by the Redis read cache when REDIS_ADDR is set
// and the server answers. An unreachable Redis only disables caching.
func newRepository(ctx context.Context, cfg *config.AppConfig, db *sql.DB, log *zap.Logger) (repository.PostRepository, func()) {
	var repo repository.PostRepository = sqlstore.NewPostStore(db, database.Dialect(cfg.Database.Driver))
	if cfg.Redis.Addr == "" {
		return repo, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("cache_disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = client.Close()
		return repo, func() {}
	}

	log.Info("cache_enabled", zap.String("addr", cfg.Redis.Addr), zap.Int("ttl_sec", cfg.Redis.TTLSec))
	ttl := time.Duration(cfg.Redis.TTLSec) * time.Second
	return rediscache.New(repo, client, ttl, log), func() { _ = client.Close() }
}
